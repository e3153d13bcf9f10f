package cart

import "github.com/shopspring/decimal"

// Prices are the four derived money fields of a cart or order.
type Prices struct {
	Items    decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Pricing holds the shipping and tax policy.
type Pricing struct {
	// FreeShippingOver is the items price above which shipping is free.
	FreeShippingOver decimal.Decimal
	ShippingFee      decimal.Decimal
	TaxRate          decimal.Decimal
}

// DefaultPricing is free shipping over 100, a flat fee of 10 and 15% tax.
var DefaultPricing = Pricing{
	FreeShippingOver: decimal.NewFromInt(100),
	ShippingFee:      decimal.NewFromInt(10),
	TaxRate:          decimal.RequireFromString("0.15"),
}

// CalcPrices derives cart prices from items. Every component is rounded to
// two decimals on its own before the total is summed and rounded again. The
// flat fee applies to an empty cart too.
func CalcPrices(items []Item, p Pricing) Prices {
	sum := decimal.Zero
	for _, it := range items {
		line := it.Price.Mul(decimal.NewFromInt(int64(it.Qty))).Round(2)
		sum = sum.Add(line)
	}
	itemsPrice := sum.Round(2)

	shipping := p.ShippingFee.Round(2)
	if itemsPrice.GreaterThan(p.FreeShippingOver) {
		shipping = decimal.Zero
	}
	tax := itemsPrice.Mul(p.TaxRate).Round(2)

	return Prices{
		Items:    itemsPrice,
		Shipping: shipping,
		Tax:      tax,
		Total:    itemsPrice.Add(shipping).Add(tax).Round(2),
	}
}
