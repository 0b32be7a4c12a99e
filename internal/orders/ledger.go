package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultLedgerRetries = 5

// Ledger applies signed stock deltas against the catalog.
//
// Each read-then-write is guarded by SwapStock: if another request changed
// the stock in between, the write is rejected and the ledger re-reads and
// tries again, up to MaxRetries times.
type Ledger struct {
	Catalog    Catalog
	Journal    Journal
	Log        *zap.Logger
	MaxRetries int
	Now        Clock
}

func (l *Ledger) logger() *zap.Logger {
	if l.Log == nil {
		return zap.NewNop()
	}
	return l.Log
}

func (l *Ledger) retries() int {
	if l.MaxRetries <= 0 {
		return defaultLedgerRetries
	}
	return l.MaxRetries
}

// Reserve decrements stock for productID by qty.
func (l *Ledger) Reserve(ctx context.Context, productID string, qty int, orderID string) error {
	if qty <= 0 {
		return ErrInvalidInput
	}
	after, err := l.apply(ctx, productID, -qty)
	if err != nil {
		return err
	}
	l.record(ctx, productID, orderID, -qty, MovementReserve, after)
	return nil
}

// Release increments stock for productID by qty. A failure here leaves the
// ledger inconsistent, so it is logged for manual reconciliation.
func (l *Ledger) Release(ctx context.Context, productID string, qty int, orderID string, reason MovementReason) error {
	if qty <= 0 {
		return nil
	}
	after, err := l.apply(ctx, productID, qty)
	if err != nil {
		l.logger().Error("stock release failed, manual reconciliation required",
			zap.String("product_id", productID),
			zap.String("order_id", orderID),
			zap.Int("quantity", qty),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
		return err
	}
	l.record(ctx, productID, orderID, qty, reason, after)
	return nil
}

func (l *Ledger) apply(ctx context.Context, productID string, delta int) (int, error) {
	for attempt := 0; attempt < l.retries(); attempt++ {
		p, err := l.Catalog.GetProduct(ctx, productID)
		if errors.Is(err, ErrStoreNotFound) {
			return 0, ErrProductUnavailable
		}
		if err != nil {
			return 0, fmt.Errorf("%w: read stock %s: %w", ErrPersistence, productID, err)
		}
		next := p.StockQuantity + delta
		if next < 0 {
			return 0, ErrInsufficientStock
		}
		ok, err := l.Catalog.SwapStock(ctx, productID, p.StockQuantity, next)
		if err != nil {
			return 0, fmt.Errorf("%w: write stock %s: %w", ErrPersistence, productID, err)
		}
		if ok {
			return next, nil
		}
		l.logger().Debug("stock changed concurrently, retrying",
			zap.String("product_id", productID), zap.Int("attempt", attempt+1))
	}
	return 0, fmt.Errorf("%w: stock for %s kept changing", ErrPersistence, productID)
}

func (l *Ledger) record(ctx context.Context, productID, orderID string, delta int, reason MovementReason, after int) {
	if l.Journal == nil {
		return
	}
	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	m := StockMovement{
		ID:         uuid.NewString(),
		ProductID:  productID,
		OrderID:    orderID,
		Delta:      delta,
		Reason:     reason,
		StockAfter: after,
		CreatedAt:  now().UTC(),
	}
	if err := l.Journal.RecordMovement(ctx, m); err != nil {
		l.logger().Warn("stock journal write failed",
			zap.String("product_id", productID), zap.String("order_id", orderID), zap.Error(err))
	}
}
