package models

import "github.com/shopspring/decimal"

type CartItem struct {
	ID       string          `json:"id"`
	Category string          `json:"category"`
	Price    decimal.Decimal `json:"price"`
	Qty      int             `json:"quantity"`
}

// LineTotal is price × quantity.
func (it CartItem) LineTotal() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Qty)))
}

// CartContext is the cart snapshot a resolution runs against. Subtotal is
// trusted as given; it is only derived from Items on request.
type CartContext struct {
	Items        []CartItem      `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	ShippingCost decimal.Decimal `json:"shippingCost"`
}

func (c CartContext) ComputedSubtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// WithComputedSubtotal returns a copy whose Subtotal is recomputed from Items.
func (c CartContext) WithComputedSubtotal() CartContext {
	c.Subtotal = c.ComputedSubtotal()
	return c
}

// OrderValue is the most a resolution may discount: subtotal plus shipping.
func (c CartContext) OrderValue() decimal.Decimal {
	v := c.Subtotal.Add(c.ShippingCost)
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
