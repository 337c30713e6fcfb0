package models

import "github.com/shopspring/decimal"

// ValidationResult carries an empty Reason iff Valid.
type ValidationResult struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

func Accept() ValidationResult {
	return ValidationResult{Valid: true}
}

func Reject(reason string) ValidationResult {
	return ValidationResult{Reason: reason}
}

type AppliedDiscount struct {
	Discount
	AppliedAmount decimal.Decimal `json:"appliedAmount"`
}

// RejectedCode explains why a candidate discount was not applied.
type RejectedCode struct {
	Code   string `json:"code"`
	Reason string `json:"reason"`
}

type ResolutionResult struct {
	TotalDiscount    decimal.Decimal   `json:"totalDiscount"`
	AppliedDiscounts []AppliedDiscount `json:"appliedDiscounts"`
	Errors           []RejectedCode    `json:"errors"`
}

// AppliedCodes lists the normalized codes of the applied discounts, in order.
func (r ResolutionResult) AppliedCodes() []string {
	codes := make([]string, 0, len(r.AppliedDiscounts))
	for _, a := range r.AppliedDiscounts {
		codes = append(codes, a.Key())
	}
	return codes
}

// Total is the net payable amount for the cart after the resolved discount.
func (r ResolutionResult) Total(cart CartContext) decimal.Decimal {
	net := cart.OrderValue().Sub(r.TotalDiscount)
	if net.IsNegative() {
		return decimal.Zero
	}
	return net
}
