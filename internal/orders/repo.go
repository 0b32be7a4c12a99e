package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repo implements the store ports on Postgres. Every method issues exactly one
// statement and none of them opens a transaction, matching what the hosted
// REST store can do.
type Repo struct{ DB *pgxpool.Pool }

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrStoreNotFound
	}
	return err
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse amount %q: %w", s, err)
	}
	return d, nil
}

func parseOptDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := parseDecimal(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *Repo) GetProduct(ctx context.Context, id string) (Product, error) {
	var (
		p     Product
		sku   *string
		price string
		attrs []byte
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id::text, sku, name, price::text, stock_quantity, is_active, specifications
		FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &sku, &p.Name, &price, &p.StockQuantity, &p.IsActive, &attrs)
	if err != nil {
		return Product{}, notFound(err)
	}
	if sku != nil {
		p.SKU = *sku
	}
	if p.Price, err = parseDecimal(price); err != nil {
		return Product{}, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &p.Attributes); err != nil {
			return Product{}, fmt.Errorf("decode specifications: %w", err)
		}
	}
	return p, nil
}

func (r *Repo) SwapStock(ctx context.Context, id string, expected, next int) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET stock_quantity = $3, updated_at = now()
		WHERE id = $1 AND stock_quantity = $2`, id, expected, next)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) CartLines(ctx context.Context, userID string) ([]CartLine, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT product_id::text, quantity FROM cart_items
		WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CartLine
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *Repo) ClearCart(ctx context.Context, userID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

func (r *Repo) CouponByCode(ctx context.Context, code string) (Coupon, error) {
	var (
		c                Coupon
		value            string
		minimum, maxDisc *string
		kind             string
	)
	err := r.DB.QueryRow(ctx, `
		SELECT id::text, code, type, value::text, minimum_amount::text, maximum_discount::text,
		       usage_limit, used_count, starts_at, expires_at, is_active
		FROM coupons WHERE upper(code) = $1`, NormalizeCouponCode(code),
	).Scan(&c.ID, &c.Code, &kind, &value, &minimum, &maxDisc,
		&c.UsageLimit, &c.UsedCount, &c.ActiveFrom, &c.ActiveUntil, &c.IsActive)
	if err != nil {
		return Coupon{}, notFound(err)
	}
	c.DiscountType = DiscountType(strings.ToLower(kind))
	if c.Value, err = parseDecimal(value); err != nil {
		return Coupon{}, err
	}
	if c.MinimumAmount, err = parseOptDecimal(minimum); err != nil {
		return Coupon{}, err
	}
	if c.MaximumDiscount, err = parseOptDecimal(maxDisc); err != nil {
		return Coupon{}, err
	}
	return c, nil
}

func (r *Repo) ClaimCouponUsage(ctx context.Context, id string, expected int) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE coupons SET used_count = used_count + 1, updated_at = now()
		WHERE id = $1 AND used_count = $2
		  AND (usage_limit IS NULL OR used_count < usage_limit)`, id, expected)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}

func (r *Repo) InsertOrder(ctx context.Context, o Order) error {
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return err
	}
	var billing []byte
	if o.BillingAddress != nil {
		if billing, err = json.Marshal(o.BillingAddress); err != nil {
			return err
		}
	}
	_, err = r.DB.Exec(ctx, `
		INSERT INTO orders(id, user_id, order_number, status, payment_status,
		                   subtotal, discount_amount, shipping_amount, tax_amount, total_amount,
		                   currency, coupon_code, shipping_address, billing_address, notes,
		                   created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),$13,$14,NULLIF($15,''),$16,$17)`,
		o.ID, o.UserID, o.OrderNumber, string(o.Status), string(o.PaymentStatus),
		o.Subtotal.String(), o.DiscountAmount.String(), o.ShippingAmount.String(),
		o.TaxAmount.String(), o.TotalAmount.String(),
		o.Currency, o.CouponCode, shipping, billing, o.Notes,
		o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (r *Repo) InsertOrderLines(ctx context.Context, lines []OrderLine) error {
	if len(lines) == 0 {
		return nil
	}
	// One multi-row INSERT keeps this a single statement.
	var (
		sb   strings.Builder
		args = make([]any, 0, len(lines)*8)
	)
	sb.WriteString(`INSERT INTO order_items(id, order_id, product_id, product_name, product_sku, unit_price, quantity, total_price) VALUES `)
	for i, l := range lines {
		if i > 0 {
			sb.WriteString(",")
		}
		n := i * 8
		fmt.Fprintf(&sb, "($%d,$%d,$%d,$%d,NULLIF($%d,''),$%d,$%d,$%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8)
		args = append(args, l.ID, l.OrderID, l.ProductID, l.ProductName, l.ProductSKU,
			l.UnitPrice.String(), l.Quantity, l.TotalPrice.String())
	}
	_, err := r.DB.Exec(ctx, sb.String(), args...)
	return err
}

// DeleteOrder removes the order's lines and the order in one statement.
func (r *Repo) DeleteOrder(ctx context.Context, id string) error {
	_, err := r.DB.Exec(ctx, `
		WITH gone AS (DELETE FROM order_items WHERE order_id = $1)
		DELETE FROM orders WHERE id = $1`, id)
	return err
}

const orderColumns = `id::text, user_id::text, order_number, status, payment_status,
	subtotal::text, discount_amount::text, shipping_amount::text, tax_amount::text, total_amount::text,
	currency, coalesce(coupon_code, ''), shipping_address, billing_address, coalesce(notes, ''),
	shipped_at, delivered_at, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o                                Order
		status, payment                  string
		subtotal, disc, ship, tax, total string
		shipping, billing                []byte
		shippedAt, deliveredAt           *time.Time
	)
	if err := row.Scan(&o.ID, &o.UserID, &o.OrderNumber, &status, &payment,
		&subtotal, &disc, &ship, &tax, &total,
		&o.Currency, &o.CouponCode, &shipping, &billing, &o.Notes,
		&shippedAt, &deliveredAt, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.PaymentStatus = PaymentStatus(payment)
	o.ShippedAt, o.DeliveredAt = shippedAt, deliveredAt

	var err error
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&o.Subtotal, subtotal}, {&o.DiscountAmount, disc}, {&o.ShippingAmount, ship}, {&o.TaxAmount, tax}, {&o.TotalAmount, total}} {
		if *f.dst, err = parseDecimal(f.src); err != nil {
			return Order{}, err
		}
	}
	if len(shipping) > 0 {
		if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
			return Order{}, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	if len(billing) > 0 {
		o.BillingAddress = &Address{}
		if err := json.Unmarshal(billing, o.BillingAddress); err != nil {
			return Order{}, fmt.Errorf("decode billing address: %w", err)
		}
	}
	return o, nil
}

func (r *Repo) GetOrder(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return Order{}, notFound(err)
	}
	return o, nil
}

func (r *Repo) OrderLines(ctx context.Context, orderID string) ([]OrderLine, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id::text, order_id::text, product_id::text, product_name, coalesce(product_sku, ''),
		       unit_price::text, quantity, total_price::text
		FROM order_items WHERE order_id = $1 ORDER BY product_name`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderLine
	for rows.Next() {
		var (
			l           OrderLine
			unit, total string
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.ProductSKU,
			&unit, &l.Quantity, &total); err != nil {
			return nil, err
		}
		if l.UnitPrice, err = parseDecimal(unit); err != nil {
			return nil, err
		}
		if l.TotalPrice, err = parseDecimal(total); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListOrders returns one page plus the total match count, newest first.
func (r *Repo) ListOrders(ctx context.Context, f ListOrdersFilter) ([]Order, int, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT `+orderColumns+`, count(*) OVER ()
		FROM orders
		WHERE ($1 = '' OR user_id::text = $1) AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4`,
		f.UserID, string(f.Status), f.PerPage, (f.Page-1)*f.PerPage)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		out   []Order
		total int
	)
	for rows.Next() {
		o, err := scanOrder(countingRow{rows: rows, total: &total})
		if err != nil {
			return nil, 0, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(out) == 0 && f.Page > 1 {
		// The window count is only present on returned rows.
		if err := r.DB.QueryRow(ctx, `
			SELECT count(*) FROM orders
			WHERE ($1 = '' OR user_id::text = $1) AND ($2 = '' OR status = $2)`,
			f.UserID, string(f.Status)).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return out, total, nil
}

// countingRow appends the trailing count(*) OVER () column to a scanOrder call.
type countingRow struct {
	rows  pgx.Rows
	total *int
}

func (c countingRow) Scan(dest ...any) error {
	return c.rows.Scan(append(dest, c.total)...)
}

func (r *Repo) SwapOrderStatus(ctx context.Context, o Order, from Status) (bool, error) {
	ct, err := r.DB.Exec(ctx, `
		UPDATE orders
		SET status = $3, payment_status = $4, shipped_at = $5, delivered_at = $6, updated_at = $7
		WHERE id = $1 AND status = $2`,
		o.ID, string(from), string(o.Status), string(o.PaymentStatus), o.ShippedAt, o.DeliveredAt, o.UpdatedAt)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() == 1, nil
}
