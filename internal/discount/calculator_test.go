package discount

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/storefront-discount-service/internal/models"
)

func TestCalculateAmount(t *testing.T) {
	cart := cartOf(
		item("sku-1", "electronics", "50", 1),
		item("sku-2", "clothing", "15", 2),
	)
	cart.ShippingCost = dec("7.99")

	tests := []struct {
		name     string
		discount models.Discount
		cart     models.CartContext
		want     string
	}{
		{name: "percentage site-wide", discount: siteWide("P", models.TypePercentage, "10"), cart: cart, want: "8"},
		{
			name: "percentage category uses matching lines only",
			discount: func() models.Discount {
				d := siteWide("P", models.TypePercentage, "15")
				d.Target = models.InCategory("electronics")
				return d
			}(),
			cart: cart,
			want: "7.5",
		},
		{
			name: "percentage item multiplies quantity",
			discount: func() models.Discount {
				d := siteWide("P", models.TypePercentage, "50")
				d.Target = models.ForProduct("sku-2")
				return d
			}(),
			cart: cart,
			want: "15",
		},
		{name: "fixed ignores composition", discount: siteWide("F", models.TypeFixed, "12.5"), cart: cart, want: "12.5"},
		{name: "free shipping", discount: siteWide("S", models.TypeFreeShipping, "0"), cart: cart, want: "7.99"},
		{name: "free shipping without cost", discount: siteWide("S", models.TypeFreeShipping, "0"), cart: cartOf(item("a", "x", "1", 1)), want: "0"},
		{
			name: "cap clamps",
			discount: func() models.Discount {
				d := siteWide("P", models.TypePercentage, "50")
				d.MaxDiscountUSD = decimal.NewNullDecimal(dec("20"))
				return d
			}(),
			cart: cart,
			want: "20",
		},
		{
			name: "cap above amount is ignored",
			discount: func() models.Discount {
				d := siteWide("P", models.TypePercentage, "10")
				d.MaxDiscountUSD = decimal.NewNullDecimal(dec("50"))
				return d
			}(),
			cart: cart,
			want: "8",
		},
		{name: "unknown type is inert", discount: siteWide("X", models.DiscountType("bogo"), "30"), cart: cart, want: "0"},
		{name: "negative value is inert", discount: siteWide("N", models.TypeFixed, "-5"), cart: cart, want: "0"},
		{name: "zero percentage", discount: siteWide("Z", models.TypePercentage, "0"), cart: cart, want: "0"},
		{name: "rounds to cents", discount: siteWide("R", models.TypePercentage, "15"), cart: cartOf(item("a", "x", "33.33", 1)), want: "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CalculateAmount(tt.discount, tt.cart)
			if !got.Equal(dec(tt.want)) {
				t.Fatalf("amount mismatch: want %s, got %s", tt.want, got)
			}
		})
	}
}

func TestCalculateAmountScopeFiltering(t *testing.T) {
	cart := cartOf(
		item("tv", "electronics", "50", 1),
		item("shirt", "clothing", "30", 1),
	)
	d := siteWide("ELEC15", models.TypePercentage, "15")
	d.Target = models.InCategory("electronics")

	got := CalculateAmount(d, cart)
	if !got.Equal(dec("7.5")) {
		t.Fatalf("expected 15%% of electronics only (7.5), got %s", got)
	}
	if got.Equal(dec("12")) {
		t.Fatalf("category discount leaked onto clothing")
	}
}
