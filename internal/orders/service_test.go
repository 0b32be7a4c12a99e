package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	buyer = Principal{ID: "user-1"}
	other = Principal{ID: "user-2"}
	admin = Principal{ID: "admin-1", IsAdmin: true}
)

// hookStore lets a test fail or interleave individual store calls. With
// honourCtx set, writes fail once their context is done, like a remote store.
type hookStore struct {
	*MemStore
	honourCtx     bool
	insertErr     error
	deleteErr     error
	afterLines    func()
	beforeClaim   func()
	beforeSwapOrd func()
}

func (h *hookStore) ctxErr(ctx context.Context) error {
	if h.honourCtx {
		return ctx.Err()
	}
	return nil
}

func (h *hookStore) SwapStock(ctx context.Context, id string, expected, next int) (bool, error) {
	if err := h.ctxErr(ctx); err != nil {
		return false, err
	}
	return h.MemStore.SwapStock(ctx, id, expected, next)
}

func (h *hookStore) InsertOrder(ctx context.Context, o Order) error {
	if err := h.ctxErr(ctx); err != nil {
		return err
	}
	if h.insertErr != nil {
		return h.insertErr
	}
	return h.MemStore.InsertOrder(ctx, o)
}

func (h *hookStore) InsertOrderLines(ctx context.Context, lines []OrderLine) error {
	if err := h.MemStore.InsertOrderLines(ctx, lines); err != nil {
		return err
	}
	if h.afterLines != nil {
		h.afterLines()
	}
	return nil
}

func (h *hookStore) DeleteOrder(ctx context.Context, id string) error {
	if err := h.ctxErr(ctx); err != nil {
		return err
	}
	if h.deleteErr != nil {
		return h.deleteErr
	}
	return h.MemStore.DeleteOrder(ctx, id)
}

func (h *hookStore) ClaimCouponUsage(ctx context.Context, id string, expected int) (bool, error) {
	if h.beforeClaim != nil {
		h.beforeClaim()
		h.beforeClaim = nil
	}
	if err := h.ctxErr(ctx); err != nil {
		return false, err
	}
	return h.MemStore.ClaimCouponUsage(ctx, id, expected)
}

func (h *hookStore) SwapOrderStatus(ctx context.Context, o Order, from Status) (bool, error) {
	if h.beforeSwapOrd != nil {
		h.beforeSwapOrd()
		h.beforeSwapOrd = nil
	}
	if err := h.ctxErr(ctx); err != nil {
		return false, err
	}
	return h.MemStore.SwapOrderStatus(ctx, o, from)
}

type recordingNotifier struct {
	mu   sync.Mutex
	got  []OrderDetail
	fail error
}

func (n *recordingNotifier) NotifyOrderCreated(_ context.Context, d OrderDetail) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.got = append(n.got, d)
	return n.fail
}

type fixture struct {
	svc      *Service
	mem      *MemStore
	hooks    *hookStore
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mem := NewMemStore()
	hooks := &hookStore{MemStore: mem}
	n := &recordingNotifier{}

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var tick int
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	svc := &Service{
		Catalog:  hooks,
		Cart:     hooks,
		Coupons:  hooks,
		Orders:   hooks,
		Ledger:   &Ledger{Catalog: hooks, Journal: hooks, Log: zap.NewNop(), Now: clock},
		Notifier: n,
		Pricing:  DefaultCalculator(),
		Currency: "INR",
		Log:      zap.NewNop(),
		Now:      clock,
	}
	return &fixture{svc: svc, mem: mem, hooks: hooks, notifier: n}
}

func (f *fixture) product(id, price string, stock int) {
	f.mem.PutProduct(Product{ID: id, SKU: "SKU-" + id, Name: "Drone " + id, Price: money(price), StockQuantity: stock, IsActive: true})
}

func (f *fixture) stock(t *testing.T, id string) int {
	t.Helper()
	return stockOf(t, f.mem, id)
}

func (f *fixture) orderCount(t *testing.T) int {
	t.Helper()
	_, total, err := f.mem.ListOrders(context.Background(), ListOrdersFilter{Page: 1, PerPage: 100})
	require.NoError(t, err)
	return total
}

func (f *fixture) create(t *testing.T, coupon string) (OrderDetail, error) {
	t.Helper()
	return f.svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:     buyer.ID,
		Shipping:   Address{FirstName: "Asha", City: "Pune", Country: "IN"},
		CouponCode: coupon,
	})
}

func TestCreateOrder_HappyPath(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 10)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 2})

	d, err := f.create(t, "")
	require.NoError(t, err)

	o := d.Order
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.Regexp(t, `^ORD-\d{14}-[0-9A-F]{8}$`, o.OrderNumber)
	assertMoney(t, "200", o.Subtotal, "Subtotal")
	assertMoney(t, "830", o.ShippingAmount, "ShippingAmount")
	assertMoney(t, "16", o.TaxAmount, "TaxAmount")
	assertMoney(t, "1046", o.TotalAmount, "TotalAmount")
	assert.Equal(t, "INR", o.Currency)

	require.Len(t, d.Items, 1)
	assert.Equal(t, "Drone p1", d.Items[0].ProductName)
	assertMoney(t, "200", d.Items[0].TotalPrice, "TotalPrice")

	assert.Equal(t, 8, f.stock(t, "p1"))
	cart, _ := f.mem.CartLines(context.Background(), buyer.ID)
	assert.Empty(t, cart)

	stored, err := f.svc.GetOrder(context.Background(), o.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, o.OrderNumber, stored.Order.OrderNumber)
	assert.Len(t, stored.Items, 1)

	ms, _ := f.mem.Movements(context.Background(), "p1", 0)
	require.Len(t, ms, 1)
	assert.Equal(t, o.ID, ms[0].OrderID)

	require.Len(t, f.notifier.got, 1)
	assert.Equal(t, o.ID, f.notifier.got[0].Order.ID)
}

func TestCreateOrder_EmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.create(t, "")
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateOrder_InactiveProduct(t *testing.T) {
	f := newFixture(t)
	f.mem.PutProduct(Product{ID: "p1", Name: "Retired", Price: money("10"), StockQuantity: 5})
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})

	_, err := f.create(t, "")
	assert.ErrorIs(t, err, ErrProductUnavailable)
	assert.Equal(t, 0, f.orderCount(t))
}

func TestCreateOrder_InsufficientStockWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 1)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 2})

	_, err := f.create(t, "")
	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, 0, f.orderCount(t))
	assert.Equal(t, 1, f.stock(t, "p1"))
	cart, _ := f.mem.CartLines(context.Background(), buyer.ID)
	assert.Len(t, cart, 1)
}

func TestCreateOrder_CouponCapped(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 10)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 2})
	f.mem.PutCoupon(Coupon{
		ID: "c1", Code: "drone10", DiscountType: DiscountPercentage, Value: money("10"),
		MaximumDiscount: ptr(money("15")), IsActive: true,
	})

	d, err := f.create(t, " Drone10 ")
	require.NoError(t, err)
	assertMoney(t, "15", d.Order.DiscountAmount, "DiscountAmount")
	assertMoney(t, "14.80", d.Order.TaxAmount, "TaxAmount")
	assertMoney(t, "1029.80", d.Order.TotalAmount, "TotalAmount")
	assert.Equal(t, "DRONE10", d.Order.CouponCode)

	c, _ := f.mem.CouponByCode(context.Background(), "DRONE10")
	assert.Equal(t, 1, c.UsedCount)
}

func TestCreateOrder_CouponUsageLimit(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 10)
	f.mem.PutCoupon(Coupon{
		ID: "c1", Code: "TWICE", DiscountType: DiscountFixed, Value: money("5"),
		UsageLimit: ptr(2), IsActive: true,
	})

	for i := 0; i < 2; i++ {
		f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
		_, err := f.create(t, "TWICE")
		require.NoError(t, err)
	}
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
	_, err := f.create(t, "TWICE")
	assert.ErrorIs(t, err, ErrCouponUsageExceeded)

	c, _ := f.mem.CouponByCode(context.Background(), "TWICE")
	assert.Equal(t, 2, c.UsedCount)
	assert.Equal(t, 2, f.orderCount(t))
	assert.Equal(t, 8, f.stock(t, "p1"))
}

func TestCreateOrder_CouponRejectedBeforeWrites(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 10)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
	past := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	f.mem.PutCoupon(Coupon{ID: "c1", Code: "OLD", DiscountType: DiscountFixed, Value: money("5"), ActiveUntil: &past, IsActive: true})

	_, err := f.create(t, "OLD")
	assert.ErrorIs(t, err, ErrCouponExpired)

	_, err = f.create(t, "MISSING")
	assert.ErrorIs(t, err, ErrCouponNotFound)

	assert.Equal(t, 0, f.orderCount(t))
	assert.Equal(t, 10, f.stock(t, "p1"))
}

func TestCreateOrder_ReservationFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 5)
	f.product("p2", "50", 5)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 2})
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p2", Quantity: 3})
	// another buyer drains p2 between validation and reservation
	f.hooks.afterLines = func() { f.product("p2", "50", 1) }

	_, err := f.create(t, "")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	assert.Equal(t, 5, f.stock(t, "p1"))
	assert.Equal(t, 1, f.stock(t, "p2"))
	assert.Equal(t, 0, f.orderCount(t))

	ms, _ := f.mem.Movements(context.Background(), "p1", 0)
	require.Len(t, ms, 2)
	assert.Equal(t, MovementCompensate, ms[0].Reason)
	assert.Equal(t, MovementReserve, ms[1].Reason)
	assert.Empty(t, f.notifier.got)
}

func TestCreateOrder_CouponRaceRollsBack(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 5)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
	coupon := Coupon{ID: "c1", Code: "ONCE", DiscountType: DiscountFixed, Value: money("5"), UsageLimit: ptr(1), IsActive: true}
	f.mem.PutCoupon(coupon)
	f.hooks.beforeClaim = func() {
		taken := coupon
		taken.UsedCount = 1
		f.mem.PutCoupon(taken)
	}

	_, err := f.create(t, "ONCE")
	assert.ErrorIs(t, err, ErrCouponUsageExceeded)
	assert.Equal(t, 5, f.stock(t, "p1"))
	assert.Equal(t, 0, f.orderCount(t))

	c, _ := f.mem.CouponByCode(context.Background(), "ONCE")
	assert.Equal(t, 1, c.UsedCount)
}

func TestCreateOrder_CouponDeactivatedDuringClaim(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 5)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
	coupon := Coupon{ID: "c1", Code: "FLASH", DiscountType: DiscountFixed, Value: money("5"), IsActive: true}
	f.mem.PutCoupon(coupon)
	f.hooks.beforeClaim = func() {
		off := coupon
		off.IsActive = false
		off.UsedCount = 1
		f.mem.PutCoupon(off)
	}

	_, err := f.create(t, "FLASH")
	assert.ErrorIs(t, err, ErrCouponNotActive)
	assert.Equal(t, 5, f.stock(t, "p1"))
	assert.Equal(t, 0, f.orderCount(t))
}

func TestCreateOrder_RollbackOutlivesCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.hooks.honourCtx = true
	f.product("p1", "100", 10)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 2})
	f.mem.PutCoupon(Coupon{ID: "c1", Code: "SAVE5", DiscountType: DiscountFixed, Value: money("5"), IsActive: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.hooks.beforeClaim = cancel

	_, err := f.svc.CreateOrder(ctx, CreateOrderInput{UserID: buyer.ID, CouponCode: "SAVE5"})
	assert.ErrorIs(t, err, ErrPersistence)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 10, f.stock(t, "p1"))
	assert.Equal(t, 0, f.orderCount(t))
	c, _ := f.mem.CouponByCode(context.Background(), "SAVE5")
	assert.Equal(t, 0, c.UsedCount)
}

func TestCreateOrder_InsertFailure(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 5)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
	f.hooks.insertErr = errors.New("pq: relation orders is locked")

	_, err := f.create(t, "")
	assert.ErrorIs(t, err, ErrPersistence)
	code, msg := ErrorCode(err)
	assert.Equal(t, CodePersistence, code)
	assert.NotContains(t, msg, "locked")
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestCreateOrder_FailedRollbackIsPersistence(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 5)
	f.product("p2", "50", 5)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p2", Quantity: 2})
	f.hooks.afterLines = func() { f.product("p2", "50", 0) }
	f.hooks.deleteErr = errors.New("timeout")

	_, err := f.create(t, "")
	assert.ErrorIs(t, err, ErrPersistence)
	assert.NotErrorIs(t, err, ErrInsufficientStock)
	// stock is still put back even though the order row lingers
	assert.Equal(t, 5, f.stock(t, "p1"))
}

func TestCreateOrder_NotifierFailureIgnored(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 5)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
	f.notifier.fail = errors.New("broker down")

	d, err := f.create(t, "")
	require.NoError(t, err)
	assert.NotEmpty(t, d.Order.ID)
	assert.Equal(t, 1, f.orderCount(t))
}

func TestGetOrder_Access(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 5)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
	d, err := f.create(t, "")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.svc.GetOrder(ctx, d.Order.ID, other)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.GetOrder(ctx, d.Order.ID, admin)
	assert.NoError(t, err)

	_, err = f.svc.GetOrder(ctx, "missing", buyer)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelOrder_RestoresStock(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 10)
	f.product("p2", "40", 3)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 2})
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p2", Quantity: 3})
	d, err := f.create(t, "")
	require.NoError(t, err)
	require.Equal(t, 8, f.stock(t, "p1"))
	require.Equal(t, 0, f.stock(t, "p2"))
	ctx := context.Background()

	_, err = f.svc.CancelOrder(ctx, d.Order.ID, other)
	assert.ErrorIs(t, err, ErrForbidden)

	o, err := f.svc.CancelOrder(ctx, d.Order.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, 10, f.stock(t, "p1"))
	assert.Equal(t, 3, f.stock(t, "p2"))

	_, err = f.svc.CancelOrder(ctx, d.Order.ID, buyer)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 10, f.stock(t, "p1"))

	_, err = f.svc.CancelOrder(ctx, "missing", buyer)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancelOrder_KeepsCouponUsage(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 10)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
	f.mem.PutCoupon(Coupon{ID: "c1", Code: "KEEP", DiscountType: DiscountFixed, Value: money("5"), IsActive: true})
	d, err := f.create(t, "KEEP")
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(context.Background(), d.Order.ID, buyer)
	require.NoError(t, err)
	c, _ := f.mem.CouponByCode(context.Background(), "KEEP")
	assert.Equal(t, 1, c.UsedCount)
}

func TestCancelOrder_LostRaceTakesStockBack(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 10)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 2})
	d, err := f.create(t, "")
	require.NoError(t, err)

	f.hooks.beforeSwapOrd = func() {
		shipped := d.Order
		shipped.Status = StatusShipped
		_ = f.mem.InsertOrder(context.Background(), shipped)
	}
	_, err = f.svc.CancelOrder(context.Background(), d.Order.ID, buyer)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 8, f.stock(t, "p1"))
}

func TestCancelOrder_FinishesAfterCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.hooks.honourCtx = true
	f.product("p1", "100", 10)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 2})
	d, err := f.create(t, "")
	require.NoError(t, err)
	require.Equal(t, 8, f.stock(t, "p1"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.hooks.beforeSwapOrd = cancel

	o, err := f.svc.CancelOrder(ctx, d.Order.ID, buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, 10, f.stock(t, "p1"))

	// a client retry must not release the lines a second time
	_, err = f.svc.CancelOrder(context.Background(), d.Order.ID, buyer)
	assert.ErrorIs(t, err, ErrNotCancellable)
	assert.Equal(t, 10, f.stock(t, "p1"))
}

func TestUpdateOrderStatus(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 10)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 2})
	d, err := f.create(t, "")
	require.NoError(t, err)
	ctx := context.Background()
	id := d.Order.ID

	_, err = f.svc.UpdateOrderStatus(ctx, id, UpdateStatusInput{Status: "confirmed"}, buyer)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = f.svc.UpdateOrderStatus(ctx, id, UpdateStatusInput{Status: "lost"}, admin)
	assert.ErrorIs(t, err, ErrInvalidStatus)

	_, err = f.svc.UpdateOrderStatus(ctx, id, UpdateStatusInput{Status: "delivered"}, admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	o, err := f.svc.UpdateOrderStatus(ctx, id, UpdateStatusInput{Status: "confirmed", PaymentStatus: "paid"}, admin)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, o.Status)
	assert.Equal(t, PaymentPaid, o.PaymentStatus)

	o, err = f.svc.UpdateOrderStatus(ctx, id, UpdateStatusInput{Status: "shipped"}, admin)
	require.NoError(t, err)
	require.NotNil(t, o.ShippedAt)
	assert.Nil(t, o.DeliveredAt)

	_, err = f.svc.UpdateOrderStatus(ctx, id, UpdateStatusInput{Status: "pending"}, admin)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.UpdateOrderStatus(ctx, id, UpdateStatusInput{Status: "cancelled"}, admin)
	assert.ErrorIs(t, err, ErrNotCancellable)

	o, err = f.svc.UpdateOrderStatus(ctx, id, UpdateStatusInput{Status: "delivered"}, admin)
	require.NoError(t, err)
	require.NotNil(t, o.DeliveredAt)

	stored, err := f.svc.GetOrder(ctx, id, buyer)
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, stored.Order.Status)
	assert.Equal(t, 8, f.stock(t, "p1"))
}

func TestUpdateOrderStatus_CancelReleasesStock(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 10)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 4})
	d, err := f.create(t, "")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = f.svc.UpdateOrderStatus(ctx, d.Order.ID, UpdateStatusInput{Status: "confirmed"}, admin)
	require.NoError(t, err)
	o, err := f.svc.UpdateOrderStatus(ctx, d.Order.ID, UpdateStatusInput{Status: "cancelled", PaymentStatus: "refunded"}, admin)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, o.Status)
	assert.Equal(t, PaymentRefunded, o.PaymentStatus)
	assert.Equal(t, 10, f.stock(t, "p1"))
}

func TestUpdateOrderStatus_PaymentOnly(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 10)
	f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
	d, err := f.create(t, "")
	require.NoError(t, err)

	o, err := f.svc.UpdateOrderStatus(context.Background(), d.Order.ID, UpdateStatusInput{PaymentStatus: "failed"}, admin)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentFailed, o.PaymentStatus)

	_, err = f.svc.UpdateOrderStatus(context.Background(), d.Order.ID, UpdateStatusInput{}, admin)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestListOrders(t *testing.T) {
	f := newFixture(t)
	f.product("p1", "100", 10)
	var ids []string
	for i := 0; i < 3; i++ {
		f.mem.AddToCart(buyer.ID, CartLine{ProductID: "p1", Quantity: 1})
		d, err := f.create(t, "")
		require.NoError(t, err)
		ids = append(ids, d.Order.ID)
	}
	ctx := context.Background()

	page, err := f.svc.ListOrders(ctx, ListOrdersFilter{UserID: buyer.ID, PerPage: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 3, page.Total)
	assert.Equal(t, 2, page.Pages)
	require.Len(t, page.Orders, 2)
	assert.Equal(t, ids[2], page.Orders[0].Order.ID, "newest first")
	assert.Len(t, page.Orders[0].Items, 1)

	page, err = f.svc.ListOrders(ctx, ListOrdersFilter{UserID: buyer.ID, Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, ids[0], page.Orders[0].Order.ID)

	page, err = f.svc.ListOrders(ctx, ListOrdersFilter{UserID: other.ID})
	require.NoError(t, err)
	assert.Empty(t, page.Orders)
	assert.Equal(t, defaultPerPage, page.PerPage)

	page, err = f.svc.ListOrders(ctx, ListOrdersFilter{PerPage: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPerPage, page.PerPage)

	_, err = f.svc.ListOrders(ctx, ListOrdersFilter{Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}
