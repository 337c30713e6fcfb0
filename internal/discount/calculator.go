package discount

import (
	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/storefront-discount-service/internal/models"
)

var hundred = decimal.NewFromInt(100)

// CalculateAmount returns the monetary effect of a discount that already
// passed Validate. Unknown types compute to zero so a corrupt record stays
// inert. The result is rounded to cents and capped by MaxDiscountUSD.
func CalculateAmount(d models.Discount, cart models.CartContext) decimal.Decimal {
	var amount decimal.Decimal

	switch d.Type {
	case models.TypePercentage:
		base := cart.Subtotal
		if d.Target.Scope() != models.ScopeSiteWide {
			base = EligibleSubtotal(d.Target, cart.Items)
		}
		amount = base.Mul(d.Value).Div(hundred)
	case models.TypeFixed:
		amount = d.Value
	case models.TypeFreeShipping:
		amount = cart.ShippingCost
	default:
		return decimal.Zero
	}

	if !amount.IsPositive() {
		return decimal.Zero
	}
	amount = amount.Round(2)

	if d.MaxDiscountUSD.Valid {
		limit := decimal.Max(d.MaxDiscountUSD.Decimal, decimal.Zero)
		amount = decimal.Min(amount, limit)
	}
	return amount
}

// EligibleSubtotal sums price × quantity over the items inside target.
func EligibleSubtotal(target models.Target, items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		if target.Matches(it) {
			total = total.Add(it.LineTotal())
		}
	}
	return total
}

// estimatedValue is the ordering heuristic only: percentage of the whole
// subtotal for percentage discounts, the face value for everything else.
func estimatedValue(d models.Discount, cart models.CartContext) decimal.Decimal {
	if d.Type == models.TypePercentage {
		return cart.Subtotal.Mul(d.Value).Div(hundred)
	}
	return d.Value
}
