package orders

import (
	"encoding/json"
	"time"
)

const EventOrderCreated = "OrderCreated"

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemPrice struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Qty         int    `json:"qty"`
	UnitPrice   string `json:"unit_price"`
}

type OrderCreatedPayload struct {
	OrderID     string      `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	UserID      string      `json:"user_id"`
	Items       []ItemPrice `json:"items"`
	Total       string      `json:"total"`
	Currency    string      `json:"currency"`
	ShipTo      Address     `json:"ship_to"`
}

func NewOrderCreatedPayload(d OrderDetail) OrderCreatedPayload {
	items := make([]ItemPrice, 0, len(d.Items))
	for _, l := range d.Items {
		items = append(items, ItemPrice{
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			Qty:         l.Quantity,
			UnitPrice:   l.UnitPrice.StringFixed(moneyPlaces),
		})
	}
	return OrderCreatedPayload{
		OrderID:     d.Order.ID,
		OrderNumber: d.Order.OrderNumber,
		UserID:      d.Order.UserID,
		Items:       items,
		Total:       d.Order.TotalAmount.StringFixed(moneyPlaces),
		Currency:    d.Order.Currency,
		ShipTo:      d.Order.ShippingAddress,
	}
}
