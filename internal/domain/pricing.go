package domain

import "github.com/shopspring/decimal"

// TaxRate is the flat rate applied to every order subtotal.
var TaxRate = decimal.RequireFromString("0.10")

type Pricing struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Shipping decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// LineSubtotal returns price * quantity rounded to cents.
func LineSubtotal(price decimal.Decimal, quantity int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// PriceItems computes order totals from the item snapshots. Shipping and
// discount are always zero.
func PriceItems(items []OrderItem) Pricing {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Subtotal)
	}
	p := Pricing{
		Subtotal: subtotal,
		Tax:      subtotal.Mul(TaxRate).Round(2),
		Shipping: decimal.Zero,
		Discount: decimal.Zero,
	}
	p.Total = p.Subtotal.Add(p.Tax).Add(p.Shipping).Sub(p.Discount)
	return p
}

func (o *Order) ApplyPricing(p Pricing) {
	o.Subtotal = p.Subtotal
	o.Tax = p.Tax
	o.Shipping = p.Shipping
	o.Discount = p.Discount
	o.Total = p.Total
}
