package orders

import (
	"context"
	"sort"
	"sync"
)

// MemStore keeps every table in process memory. It backs STORE_DRIVER=memory
// and the tests; each method behaves like a single remote call.
type MemStore struct {
	mu        sync.Mutex
	products  map[string]Product
	carts     map[string][]CartLine
	coupons   map[string]Coupon // by normalized code
	orders    map[string]Order
	lines     map[string][]OrderLine
	movements []StockMovement
}

func NewMemStore() *MemStore {
	return &MemStore{
		products: map[string]Product{},
		carts:    map[string][]CartLine{},
		coupons:  map[string]Coupon{},
		orders:   map[string]Order{},
		lines:    map[string][]OrderLine{},
	}
}

func (m *MemStore) PutProduct(p Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *MemStore) PutCoupon(c Coupon) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.Code = NormalizeCouponCode(c.Code)
	m.coupons[c.Code] = c
}

// AddToCart appends a line, merging quantities for the same product.
func (m *MemStore) AddToCart(userID string, line CartLine) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, l := range m.carts[userID] {
		if l.ProductID == line.ProductID {
			m.carts[userID][i].Quantity += line.Quantity
			return
		}
	}
	m.carts[userID] = append(m.carts[userID], line)
}

// Movements lists the journal for productID, newest first.
func (m *MemStore) Movements(_ context.Context, productID string, limit int) ([]StockMovement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []StockMovement
	for i := len(m.movements) - 1; i >= 0; i-- {
		if m.movements[i].ProductID != productID {
			continue
		}
		out = append(out, m.movements[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemStore) GetProduct(_ context.Context, id string) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrStoreNotFound
	}
	return p, nil
}

func (m *MemStore) SwapStock(_ context.Context, id string, expected, next int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return false, ErrStoreNotFound
	}
	if p.StockQuantity != expected {
		return false, nil
	}
	p.StockQuantity = next
	m.products[id] = p
	return true, nil
}

func (m *MemStore) CartLines(_ context.Context, userID string) ([]CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CartLine(nil), m.carts[userID]...), nil
}

func (m *MemStore) ClearCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.carts, userID)
	return nil
}

func (m *MemStore) CouponByCode(_ context.Context, code string) (Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[NormalizeCouponCode(code)]
	if !ok {
		return Coupon{}, ErrStoreNotFound
	}
	return c, nil
}

func (m *MemStore) ClaimCouponUsage(_ context.Context, id string, expected int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, c := range m.coupons {
		if c.ID != id {
			continue
		}
		if c.UsedCount != expected || (c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit) {
			return false, nil
		}
		c.UsedCount++
		m.coupons[code] = c
		return true, nil
	}
	return false, ErrStoreNotFound
}

func (m *MemStore) InsertOrder(_ context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
	return nil
}

func (m *MemStore) InsertOrderLines(_ context.Context, lines []OrderLine) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lines {
		m.lines[l.OrderID] = append(m.lines[l.OrderID], l)
	}
	return nil
}

func (m *MemStore) DeleteOrder(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	delete(m.lines, id)
	return nil
}

func (m *MemStore) GetOrder(_ context.Context, id string) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrStoreNotFound
	}
	return o, nil
}

func (m *MemStore) OrderLines(_ context.Context, orderID string) ([]OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OrderLine(nil), m.lines[orderID]...), nil
}

func (m *MemStore) ListOrders(_ context.Context, f ListOrdersFilter) ([]Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []Order
	for _, o := range m.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		all = append(all, o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	start := (f.Page - 1) * f.PerPage
	if start >= len(all) {
		return nil, len(all), nil
	}
	end := start + f.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func (m *MemStore) SwapOrderStatus(_ context.Context, o Order, from Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[o.ID]
	if !ok {
		return false, ErrStoreNotFound
	}
	if cur.Status != from {
		return false, nil
	}
	cur.Status = o.Status
	cur.PaymentStatus = o.PaymentStatus
	cur.ShippedAt = o.ShippedAt
	cur.DeliveredAt = o.DeliveredAt
	cur.UpdatedAt = o.UpdatedAt
	m.orders[o.ID] = cur
	return true, nil
}

func (m *MemStore) RecordMovement(_ context.Context, mv StockMovement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movements = append(m.movements, mv)
	return nil
}
