// Package discount decides which discount codes apply to a cart and how much
// each one takes off. Everything here is a pure function of its arguments;
// callers own persistence and redemption counting.
package discount

import (
	"fmt"
	"time"

	"github.com/Cheertaboi/storefront-discount-service/internal/models"
)

const (
	ReasonInactive         = "Discount is not active"
	ReasonNotYetValid      = "Discount is not yet valid"
	ReasonExpired          = "Discount has expired"
	ReasonUsageLimit       = "Discount usage limit reached"
	ReasonProductNotInCart = "Discount only applies to specific product not in cart"
	ReasonNonStackable     = "Cannot stack with non-stackable discount already applied"
	ReasonNotCombinable    = "Discount cannot be combined with the selected discounts"
	ReasonDuplicate        = "Discount code already applied"
	ReasonNotFound         = "Discount code not found"
)

func minimumPurchaseReason(d models.Discount) string {
	return fmt.Sprintf("Minimum purchase of $%s required", d.MinPurchaseUSD.String())
}

func categoryReason(d models.Discount) string {
	return fmt.Sprintf("Discount only applies to %s items", d.Target.Category())
}

// Validate checks whether d can be applied to cart at instant now. Checks run
// in a fixed order and the first failure wins.
func Validate(d models.Discount, cart models.CartContext, now time.Time) models.ValidationResult {
	if !d.IsActive {
		return models.Reject(ReasonInactive)
	}
	if d.ValidFrom != nil && now.Before(*d.ValidFrom) {
		return models.Reject(ReasonNotYetValid)
	}
	if d.ValidUntil != nil && now.After(*d.ValidUntil) {
		return models.Reject(ReasonExpired)
	}
	if d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit {
		return models.Reject(ReasonUsageLimit)
	}
	if cart.Subtotal.LessThan(d.MinPurchaseUSD) {
		return models.Reject(minimumPurchaseReason(d))
	}

	switch d.Target.Scope() {
	case models.ScopeCategory:
		if !anyItemMatches(d.Target, cart.Items) {
			return models.Reject(categoryReason(d))
		}
	case models.ScopeItem:
		if !anyItemMatches(d.Target, cart.Items) {
			return models.Reject(ReasonProductNotInCart)
		}
	}
	return models.Accept()
}

func anyItemMatches(target models.Target, items []models.CartItem) bool {
	for _, it := range items {
		if target.Matches(it) {
			return true
		}
	}
	return false
}
