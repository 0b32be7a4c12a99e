package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultCurrency = "INR"
	defaultPerPage  = 10
	maxPerPage      = 50

	finishTimeout = 10 * time.Second
)

// Service coordinates order creation, cancellation and status changes over a
// store without multi-statement transactions. Partial writes are undone with
// explicit compensations.
type Service struct {
	Catalog  Catalog
	Cart     Cart
	Coupons  Coupons
	Orders   OrderStore
	Ledger   *Ledger
	Notifier Notifier
	Pricing  Calculator
	Currency string
	Log      *zap.Logger
	Now      Clock
}

type CreateOrderInput struct {
	UserID     string
	Shipping   Address
	Billing    *Address
	Notes      string
	CouponCode string
}

type UpdateStatusInput struct {
	Status        string
	PaymentStatus string
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *Service) logger() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) currency() string {
	if s.Currency == "" {
		return defaultCurrency
	}
	return s.Currency
}

// detached keeps ctx values but ignores its cancellation. Stock writes that
// undo or finish an already started sequence run on it.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finishTimeout)
}

func persistence(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}

// CreateOrder turns the user's cart into an order. Validation happens before
// any write; once writes begin, a failure undoes the earlier steps.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (OrderDetail, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return OrderDetail{}, ErrInvalidInput
	}

	cart, err := s.Cart.CartLines(ctx, in.UserID)
	if err != nil {
		return OrderDetail{}, persistence("load cart", err)
	}
	if len(cart) == 0 {
		return OrderDetail{}, ErrEmptyCart
	}

	products := make([]Product, len(cart))
	priced := make([]PricedLine, len(cart))
	for i, cl := range cart {
		if cl.Quantity <= 0 {
			return OrderDetail{}, fmt.Errorf("%w: quantity for %s", ErrInvalidInput, cl.ProductID)
		}
		p, err := s.Catalog.GetProduct(ctx, cl.ProductID)
		if errors.Is(err, ErrStoreNotFound) {
			return OrderDetail{}, fmt.Errorf("%w: %s", ErrProductUnavailable, cl.ProductID)
		}
		if err != nil {
			return OrderDetail{}, persistence("load product", err)
		}
		if !p.IsActive {
			return OrderDetail{}, fmt.Errorf("%w: %s", ErrProductUnavailable, p.Name)
		}
		if cl.Quantity > p.StockQuantity {
			return OrderDetail{}, fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
		}
		products[i] = p
		priced[i] = PricedLine{UnitPrice: p.Price, Quantity: cl.Quantity}
	}

	now := s.now()
	totals := s.Pricing.Compute(priced, decimal.Zero)

	var coupon *Coupon
	if code := NormalizeCouponCode(in.CouponCode); code != "" {
		c, err := s.Coupons.CouponByCode(ctx, code)
		if errors.Is(err, ErrStoreNotFound) {
			return OrderDetail{}, ErrCouponNotFound
		}
		if err != nil {
			return OrderDetail{}, persistence("load coupon", err)
		}
		discount, err := ValidateCoupon(c, totals.Subtotal, now)
		if err != nil {
			return OrderDetail{}, err
		}
		if discount.GreaterThan(totals.Subtotal) {
			discount = totals.Subtotal
		}
		totals = s.Pricing.Compute(priced, discount)
		coupon = &c
	}
	if totals.Total.IsNegative() {
		return OrderDetail{}, fmt.Errorf("%w: negative total", ErrInvalidInput)
	}

	order := Order{
		ID:              uuid.NewString(),
		UserID:          in.UserID,
		OrderNumber:     NewOrderNumber(now),
		Status:          StatusPending,
		PaymentStatus:   PaymentPending,
		Subtotal:        totals.Subtotal,
		DiscountAmount:  totals.Discount,
		ShippingAmount:  totals.Shipping,
		TaxAmount:       totals.Tax,
		TotalAmount:     totals.Total,
		Currency:        s.currency(),
		ShippingAddress: in.Shipping,
		BillingAddress:  in.Billing,
		Notes:           in.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if coupon != nil {
		order.CouponCode = coupon.Code
	}
	lines := make([]OrderLine, len(cart))
	for i, cl := range cart {
		p := products[i]
		lines[i] = OrderLine{
			ID:          uuid.NewString(),
			OrderID:     order.ID,
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductSKU:  p.SKU,
			UnitPrice:   p.Price,
			Quantity:    cl.Quantity,
			TotalPrice:  p.Price.Mul(decimal.NewFromInt(int64(cl.Quantity))),
		}
	}

	if err := s.Orders.InsertOrder(ctx, order); err != nil {
		return OrderDetail{}, persistence("insert order", err)
	}
	if err := s.Orders.InsertOrderLines(ctx, lines); err != nil {
		return OrderDetail{}, s.compensate(ctx, order, nil, persistence("insert order lines", err))
	}

	for i, l := range lines {
		if err := s.Ledger.Reserve(ctx, l.ProductID, l.Quantity, order.ID); err != nil {
			if errors.Is(err, ErrProductUnavailable) {
				err = fmt.Errorf("%w: %s", ErrProductUnavailable, l.ProductName)
			} else if errors.Is(err, ErrInsufficientStock) {
				err = fmt.Errorf("%w: %s", ErrInsufficientStock, l.ProductName)
			}
			return OrderDetail{}, s.compensate(ctx, order, lines[:i], err)
		}
	}

	if coupon != nil {
		if err := s.claimCoupon(ctx, *coupon, totals.Subtotal, now); err != nil {
			return OrderDetail{}, s.compensate(ctx, order, lines, err)
		}
	}

	log := s.logger().With(zap.String("order_id", order.ID), zap.String("order_number", order.OrderNumber))
	if err := s.Cart.ClearCart(ctx, in.UserID); err != nil {
		log.Warn("clear cart failed", zap.String("user_id", in.UserID), zap.Error(err))
	}

	detail := OrderDetail{Order: order, Items: lines}
	if s.Notifier != nil {
		if err := s.Notifier.NotifyOrderCreated(ctx, detail); err != nil {
			log.Warn("order notification failed", zap.Error(err))
		}
	}
	log.Info("order created",
		zap.String("user_id", order.UserID),
		zap.String("total", order.TotalAmount.StringFixed(moneyPlaces)),
		zap.Int("lines", len(lines)),
	)
	return detail, nil
}

// claimCoupon bumps used_count once. A lost race re-reads and re-validates
// the coupon, so a limit reached or a deactivation in the meantime is
// reported instead of overshot.
func (s *Service) claimCoupon(ctx context.Context, c Coupon, subtotal decimal.Decimal, now time.Time) error {
	for attempt := 0; attempt < s.Ledger.retries(); attempt++ {
		ok, err := s.Coupons.ClaimCouponUsage(ctx, c.ID, c.UsedCount)
		if err != nil {
			return persistence("claim coupon", err)
		}
		if ok {
			return nil
		}
		c, err = s.Coupons.CouponByCode(ctx, c.Code)
		if err != nil {
			return persistence("reload coupon", err)
		}
		if _, err := ValidateCoupon(c, subtotal, now); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: coupon %s usage kept changing", ErrPersistence, c.Code)
}

// compensate releases reserved lines and deletes the order. If any of that
// fails the result is a persistence failure and the leftovers are logged.
func (s *Service) compensate(ctx context.Context, o Order, reserved []OrderLine, cause error) error {
	ctx, cancel := detached(ctx)
	defer cancel()
	log := s.logger().With(zap.String("order_id", o.ID), zap.String("order_number", o.OrderNumber))
	log.Info("rolling back order", zap.Error(cause))

	clean := true
	for i := len(reserved) - 1; i >= 0; i-- {
		l := reserved[i]
		if err := s.Ledger.Release(ctx, l.ProductID, l.Quantity, o.ID, MovementCompensate); err != nil {
			clean = false
		}
	}
	if err := s.Orders.DeleteOrder(ctx, o.ID); err != nil {
		log.Error("delete of rolled back order failed, manual reconciliation required", zap.Error(err))
		clean = false
	}
	if !clean {
		return fmt.Errorf("%w: rollback incomplete for %s after: %v", ErrPersistence, o.OrderNumber, cause)
	}
	return cause
}

func (s *Service) loadOrder(ctx context.Context, id string) (Order, error) {
	o, err := s.Orders.GetOrder(ctx, id)
	if errors.Is(err, ErrStoreNotFound) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, persistence("load order", err)
	}
	return o, nil
}

func (s *Service) GetOrder(ctx context.Context, id string, who Principal) (OrderDetail, error) {
	o, err := s.loadOrder(ctx, id)
	if err != nil {
		return OrderDetail{}, err
	}
	if o.UserID != who.ID && !who.IsAdmin {
		return OrderDetail{}, ErrForbidden
	}
	lines, err := s.Orders.OrderLines(ctx, o.ID)
	if err != nil {
		return OrderDetail{}, persistence("load order lines", err)
	}
	return OrderDetail{Order: o, Items: lines}, nil
}

func (s *Service) ListOrders(ctx context.Context, f ListOrdersFilter) (OrderPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultPerPage
	}
	if f.PerPage > maxPerPage {
		f.PerPage = maxPerPage
	}
	if f.Status != "" {
		st, err := ParseStatus(string(f.Status))
		if err != nil {
			return OrderPage{}, err
		}
		f.Status = st
	}
	list, total, err := s.Orders.ListOrders(ctx, f)
	if err != nil {
		return OrderPage{}, persistence("list orders", err)
	}
	page := OrderPage{
		Orders:  make([]OrderDetail, 0, len(list)),
		Page:    f.Page,
		PerPage: f.PerPage,
		Total:   total,
		Pages:   (total + f.PerPage - 1) / f.PerPage,
	}
	for _, o := range list {
		lines, err := s.Orders.OrderLines(ctx, o.ID)
		if err != nil {
			return OrderPage{}, persistence("load order lines", err)
		}
		page.Orders = append(page.Orders, OrderDetail{Order: o, Items: lines})
	}
	return page, nil
}

// CancelOrder releases stock for every line and moves the order to
// cancelled. Coupon usage is kept.
func (s *Service) CancelOrder(ctx context.Context, id string, who Principal) (Order, error) {
	o, err := s.loadOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != who.ID && !who.IsAdmin {
		return Order{}, ErrForbidden
	}
	return s.cancel(ctx, o)
}

func (s *Service) cancel(ctx context.Context, o Order) (Order, error) {
	if !o.Status.Cancellable() {
		return Order{}, ErrNotCancellable
	}
	lines, err := s.Orders.OrderLines(ctx, o.ID)
	if err != nil {
		return Order{}, persistence("load order lines", err)
	}

	// Once stock starts moving the sequence finishes even if the caller leaves.
	ctx, cancel := detached(ctx)
	defer cancel()

	var released []OrderLine
	var releaseErr error
	for _, l := range lines {
		if err := s.Ledger.Release(ctx, l.ProductID, l.Quantity, o.ID, MovementRelease); err != nil {
			// Keep going: the order is cancelled regardless so a retry
			// cannot release the other lines twice.
			releaseErr = err
			continue
		}
		released = append(released, l)
	}

	from := o.Status
	if err := applyTransition(&o, StatusCancelled, s.now()); err != nil {
		return Order{}, err
	}
	ok, err := s.Orders.SwapOrderStatus(ctx, o, from)
	if err != nil || !ok {
		// Someone else moved the order first; take the released stock back.
		for _, l := range released {
			if rerr := s.Ledger.Reserve(ctx, l.ProductID, l.Quantity, o.ID); rerr != nil {
				s.logger().Error("re-reserve after lost cancel failed, manual reconciliation required",
					zap.String("order_id", o.ID), zap.String("product_id", l.ProductID),
					zap.Int("quantity", l.Quantity), zap.Error(rerr))
			}
		}
		if err != nil {
			return Order{}, persistence("cancel order", err)
		}
		return Order{}, ErrNotCancellable
	}

	s.logger().Info("order cancelled", zap.String("order_id", o.ID), zap.String("order_number", o.OrderNumber))
	if releaseErr != nil {
		return o, fmt.Errorf("%w: order cancelled with unreleased stock: %v", ErrPersistence, releaseErr)
	}
	return o, nil
}

// UpdateOrderStatus is admin-only. A move to cancelled goes through the same
// stock release as CancelOrder.
func (s *Service) UpdateOrderStatus(ctx context.Context, id string, in UpdateStatusInput, who Principal) (Order, error) {
	if !who.IsAdmin {
		return Order{}, ErrForbidden
	}
	if in.Status == "" && in.PaymentStatus == "" {
		return Order{}, ErrInvalidStatus
	}
	var to Status
	if in.Status != "" {
		st, err := ParseStatus(in.Status)
		if err != nil {
			return Order{}, err
		}
		to = st
	}
	var pay PaymentStatus
	if in.PaymentStatus != "" {
		ps, err := ParsePaymentStatus(in.PaymentStatus)
		if err != nil {
			return Order{}, err
		}
		pay = ps
	}

	o, err := s.loadOrder(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if to == StatusCancelled {
		if pay != "" {
			o.PaymentStatus = pay
		}
		return s.cancel(ctx, o)
	}

	from := o.Status
	now := s.now()
	if to != "" {
		if err := applyTransition(&o, to, now); err != nil {
			return Order{}, err
		}
	}
	if pay != "" {
		o.PaymentStatus = pay
		o.UpdatedAt = now
	}
	ok, err := s.Orders.SwapOrderStatus(ctx, o, from)
	if err != nil {
		return Order{}, persistence("update order status", err)
	}
	if !ok {
		return Order{}, ErrInvalidTransition
	}
	s.logger().Info("order status updated",
		zap.String("order_id", o.ID), zap.String("from", string(from)), zap.String("to", string(o.Status)))
	return o, nil
}
