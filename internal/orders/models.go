package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Product is the read-only catalog view. Only StockQuantity is ever written.
type Product struct {
	ID            string
	SKU           string
	Name          string
	Price         decimal.Decimal
	StockQuantity int
	IsActive      bool
	Attributes    []Attribute // free-form specifications, kept in source order
}

type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	ID              string
	Code            string
	DiscountType    DiscountType
	Value           decimal.Decimal
	MinimumAmount   *decimal.Decimal
	MaximumDiscount *decimal.Decimal
	UsageLimit      *int
	UsedCount       int
	ActiveFrom      *time.Time
	ActiveUntil     *time.Time
	IsActive        bool
}

type Address struct {
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Company      string `json:"company,omitempty"`
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Country      string `json:"country,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

type Order struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	OrderNumber     string          `json:"order_number"`
	Status          Status          `json:"status"`
	PaymentStatus   PaymentStatus   `json:"payment_status"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	DiscountAmount  decimal.Decimal `json:"discount_amount"`
	ShippingAmount  decimal.Decimal `json:"shipping_amount"`
	TaxAmount       decimal.Decimal `json:"tax_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	CouponCode      string          `json:"coupon_code,omitempty"`
	ShippingAddress Address         `json:"shipping_address"`
	BillingAddress  *Address        `json:"billing_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	ShippedAt       *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time      `json:"delivered_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderLine is a snapshot taken at order time; later catalog edits don't touch it.
type OrderLine struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"order_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductSKU  string          `json:"product_sku,omitempty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"total_price"`
}

type OrderDetail struct {
	Order Order       `json:"order"`
	Items []OrderLine `json:"items"`
}

type MovementReason string

const (
	MovementReserve    MovementReason = "reserve"
	MovementRelease    MovementReason = "release"
	MovementCompensate MovementReason = "compensate"
)

type StockMovement struct {
	ID         string
	ProductID  string
	OrderID    string
	Delta      int
	Reason     MovementReason
	StockAfter int
	CreatedAt  time.Time
}

type Principal struct {
	ID      string
	IsAdmin bool
}

type ListOrdersFilter struct {
	UserID  string
	Status  Status
	Page    int
	PerPage int
}

type OrderPage struct {
	Orders  []OrderDetail `json:"data"`
	Page    int           `json:"page"`
	PerPage int           `json:"per_page"`
	Total   int           `json:"total"`
	Pages   int           `json:"pages"`
}
