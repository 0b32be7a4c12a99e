package orders

import (
	"context"
	"time"
)

// The hosted store offers single-row reads and writes only; every method below
// is one round trip and none of them spans a transaction.

type Catalog interface {
	GetProduct(ctx context.Context, id string) (Product, error)
	// SwapStock sets stock_quantity to next only if it still equals expected.
	SwapStock(ctx context.Context, id string, expected, next int) (bool, error)
}

type Cart interface {
	CartLines(ctx context.Context, userID string) ([]CartLine, error)
	ClearCart(ctx context.Context, userID string) error
}

type Coupons interface {
	CouponByCode(ctx context.Context, code string) (Coupon, error)
	// ClaimCouponUsage increments used_count by one if it still equals
	// expected and stays within usage_limit.
	ClaimCouponUsage(ctx context.Context, id string, expected int) (bool, error)
}

type OrderStore interface {
	InsertOrder(ctx context.Context, o Order) error
	InsertOrderLines(ctx context.Context, lines []OrderLine) error
	// DeleteOrder removes the order and its lines.
	DeleteOrder(ctx context.Context, id string) error
	GetOrder(ctx context.Context, id string) (Order, error)
	OrderLines(ctx context.Context, orderID string) ([]OrderLine, error)
	ListOrders(ctx context.Context, f ListOrdersFilter) ([]Order, int, error)
	// SwapOrderStatus persists o's status fields if the stored status is still from.
	SwapOrderStatus(ctx context.Context, o Order, from Status) (bool, error)
}

type Journal interface {
	RecordMovement(ctx context.Context, m StockMovement) error
}

type JournalReader interface {
	Movements(ctx context.Context, productID string, limit int) ([]StockMovement, error)
}

type Notifier interface {
	NotifyOrderCreated(ctx context.Context, d OrderDetail) error
}

type Clock func() time.Time
