package orders

import "github.com/shopspring/decimal"

// Amounts are kept to two decimal places (minor currency units).
const moneyPlaces = 2

type PricedLine struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Totals struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

type Calculator struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	TaxRate               decimal.Decimal
}

func DefaultCalculator() Calculator {
	return Calculator{
		FreeShippingThreshold: decimal.NewFromInt(8300),
		FlatShippingFee:       decimal.NewFromInt(830),
		TaxRate:               decimal.RequireFromString("0.08"),
	}
}

// Compute prices lines with the given discount. It does not clamp the
// discount to the subtotal; callers do that and reject a negative total.
func (c Calculator) Compute(lines []PricedLine, discount decimal.Decimal) Totals {
	subtotal := decimal.Zero
	for _, l := range lines {
		subtotal = subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	shipping := c.FlatShippingFee
	if subtotal.GreaterThanOrEqual(c.FreeShippingThreshold) {
		shipping = decimal.Zero
	}

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := taxable.Mul(c.TaxRate).Round(moneyPlaces)

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax).Sub(discount),
	}
}
