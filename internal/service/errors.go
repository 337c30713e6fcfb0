package service

import "errors"

var (
	// ErrRepositoryMissing indicates the discount repository dependency is absent.
	ErrRepositoryMissing = errors.New("discount service: repository is not configured")
	// ErrRedemptionUnavailable indicates no usage store is wired, so orders cannot redeem codes.
	ErrRedemptionUnavailable = errors.New("discount service: redemption store is not configured")
	// ErrInvalidDiscount signals a discount record that fails validation on create.
	ErrInvalidDiscount = errors.New("discount service: invalid discount")
	// ErrDiscountExists is returned when creating a code that is already taken.
	ErrDiscountExists = errors.New("discount service: discount code already exists")
	// ErrInvalidOrder signals a redemption request without an order id.
	ErrInvalidOrder = errors.New("discount service: order id is required")
	// ErrUsageLimitReached means a code ran out of redemptions between quote and checkout.
	ErrUsageLimitReached = errors.New("discount service: discount usage limit reached")
)
