package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		name                string
		scope, cat, product string
		wantScope           Scope
		wantErr             error
	}{
		{name: "empty defaults to site-wide", wantScope: ScopeSiteWide},
		{name: "site-wide ignores keys", scope: "site-wide", cat: "x", product: "y", wantScope: ScopeSiteWide},
		{name: "category", scope: "Category", cat: "electronics", wantScope: ScopeCategory},
		{name: "category without key", scope: "category", wantErr: ErrMissingCategory},
		{name: "item", scope: "item", product: "42", wantScope: ScopeItem},
		{name: "item without key", scope: "item", product: "  ", wantErr: ErrMissingProduct},
		{name: "unknown", scope: "brand", wantErr: ErrUnknownScope},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTarget(tt.scope, tt.cat, tt.product)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Scope() != tt.wantScope {
				t.Fatalf("scope mismatch: want %s, got %s", tt.wantScope, got.Scope())
			}
			if tt.wantScope == ScopeSiteWide && (got.Category() != "" || got.ProductID() != "") {
				t.Fatalf("site-wide target carries keys: %+v", got)
			}
		})
	}
}

func TestTargetMatches(t *testing.T) {
	tv := CartItem{ID: "tv-1", Category: "electronics"}
	if !SiteWide().Matches(tv) {
		t.Fatalf("site-wide must match everything")
	}
	if !InCategory("electronics").Matches(tv) || InCategory("clothing").Matches(tv) {
		t.Fatalf("category matching broken")
	}
	if !ForProduct("tv-1").Matches(tv) || ForProduct("tv-2").Matches(tv) {
		t.Fatalf("product matching broken")
	}
	if InCategory("").Scope() != ScopeSiteWide {
		t.Fatalf("empty category must not build a category target")
	}
}

func TestTargetJSONRejectsIncompleteScope(t *testing.T) {
	var target Target
	if err := json.Unmarshal([]byte(`{"scope":"category"}`), &target); !errors.Is(err, ErrMissingCategory) {
		t.Fatalf("expected ErrMissingCategory, got %v", err)
	}
	if err := json.Unmarshal([]byte(`{"scope":"item","productId":"p-9"}`), &target); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if target.ProductID() != "p-9" {
		t.Fatalf("product id not decoded: %+v", target)
	}
	raw, err := json.Marshal(target)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(raw) != `{"scope":"item","productId":"p-9"}` {
		t.Fatalf("unexpected encoding %s", raw)
	}
}

func TestDiscountCheck(t *testing.T) {
	valid := func() Discount {
		return Discount{Code: "save10", Type: TypePercentage, Value: decimal.NewFromInt(10), IsActive: true}
	}
	limit := -1
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	until := from.Add(-time.Hour)

	tests := []struct {
		name   string
		mutate func(*Discount)
		ok     bool
	}{
		{name: "valid", mutate: func(*Discount) {}, ok: true},
		{name: "blank code", mutate: func(d *Discount) { d.Code = "  " }},
		{name: "unknown type", mutate: func(d *Discount) { d.Type = "bogo" }},
		{name: "negative value", mutate: func(d *Discount) { d.Value = decimal.NewFromInt(-1) }},
		{name: "percentage over 100", mutate: func(d *Discount) { d.Value = decimal.NewFromInt(101) }},
		{name: "fixed over 100", mutate: func(d *Discount) { d.Type = TypeFixed; d.Value = decimal.NewFromInt(150) }, ok: true},
		{name: "negative minimum", mutate: func(d *Discount) { d.MinPurchaseUSD = decimal.NewFromInt(-5) }},
		{name: "negative cap", mutate: func(d *Discount) { d.MaxDiscountUSD = decimal.NewNullDecimal(decimal.NewFromInt(-5)) }},
		{name: "negative usage limit", mutate: func(d *Discount) { d.UsageLimit = &limit }},
		{name: "inverted window", mutate: func(d *Discount) { d.ValidFrom = &from; d.ValidUntil = &until }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid()
			tt.mutate(&d)
			err := d.Check()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestCartHelpers(t *testing.T) {
	cart := CartContext{
		Items: []CartItem{
			{ID: "a", Price: decimal.RequireFromString("19.99"), Qty: 2},
			{ID: "b", Price: decimal.RequireFromString("5"), Qty: 1},
		},
		Subtotal:     decimal.NewFromInt(1),
		ShippingCost: decimal.RequireFromString("4.5"),
	}
	if !cart.Subtotal.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("subtotal must be trusted as given")
	}
	recomputed := cart.WithComputedSubtotal()
	if !recomputed.Subtotal.Equal(decimal.RequireFromString("44.98")) {
		t.Fatalf("unexpected computed subtotal %s", recomputed.Subtotal)
	}
	if !recomputed.OrderValue().Equal(decimal.RequireFromString("49.48")) {
		t.Fatalf("unexpected order value %s", recomputed.OrderValue())
	}

	res := ResolutionResult{
		TotalDiscount: decimal.NewFromInt(10),
		AppliedDiscounts: []AppliedDiscount{
			{Discount: Discount{Code: " spring "}, AppliedAmount: decimal.NewFromInt(10)},
		},
	}
	if codes := res.AppliedCodes(); len(codes) != 1 || codes[0] != "SPRING" {
		t.Fatalf("unexpected applied codes %v", codes)
	}
	if !res.Total(recomputed).Equal(decimal.RequireFromString("39.48")) {
		t.Fatalf("unexpected net total %s", res.Total(recomputed))
	}
}
