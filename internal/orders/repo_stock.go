package orders

import (
	"context"
	"fmt"
)

// RecordMovement appends one row to the stock_movements audit table.
func (r *Repo) RecordMovement(ctx context.Context, m StockMovement) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO stock_movements(id, product_id, order_id, delta, reason, stock_after, created_at)
		VALUES ($1, $2, NULLIF($3, '')::uuid, $4, $5, $6, $7)`,
		m.ID, m.ProductID, m.OrderID, m.Delta, string(m.Reason), m.StockAfter, m.CreatedAt)
	return err
}

// Movements lists the journal for one product, newest first.
func (r *Repo) Movements(ctx context.Context, productID string, limit int) ([]StockMovement, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.DB.Query(ctx, `
		SELECT id::text, product_id::text, coalesce(order_id::text, ''), delta, reason, stock_after, created_at
		FROM stock_movements WHERE product_id = $1
		ORDER BY created_at DESC LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StockMovement
	for rows.Next() {
		var (
			m      StockMovement
			reason string
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &m.OrderID, &m.Delta, &reason, &m.StockAfter, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.Reason = MovementReason(reason)
		out = append(out, m)
	}
	return out, rows.Err()
}
