package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateCoupon checks c against the order subtotal at now and returns the
// discount it grants, capped by MaximumDiscount.
func ValidateCoupon(c Coupon, subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !c.IsActive {
		return decimal.Zero, ErrCouponNotActive
	}
	if c.ActiveFrom != nil && now.Before(*c.ActiveFrom) {
		return decimal.Zero, ErrCouponNotYetStarted
	}
	if c.ActiveUntil != nil && now.After(*c.ActiveUntil) {
		return decimal.Zero, ErrCouponExpired
	}
	if c.MinimumAmount != nil && subtotal.LessThan(*c.MinimumAmount) {
		return decimal.Zero, ErrCouponBelowMinimum
	}
	if c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit {
		return decimal.Zero, ErrCouponUsageExceeded
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case DiscountPercentage:
		discount = subtotal.Mul(c.Value).Div(hundred).Round(moneyPlaces)
	case DiscountFixed:
		discount = c.Value
	default:
		return decimal.Zero, ErrCouponNotActive
	}
	if c.MaximumDiscount != nil && discount.GreaterThan(*c.MaximumDiscount) {
		discount = *c.MaximumDiscount
	}
	return discount, nil
}
