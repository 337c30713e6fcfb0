package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	TypePercentage   DiscountType = "percentage"
	TypeFixed        DiscountType = "fixed"
	TypeFreeShipping DiscountType = "free_shipping"
)

// Known reports whether t is one of the supported discount types.
func (t DiscountType) Known() bool {
	switch t {
	case TypePercentage, TypeFixed, TypeFreeShipping:
		return true
	}
	return false
}

type Scope string

const (
	ScopeSiteWide Scope = "site-wide"
	ScopeCategory Scope = "category"
	ScopeItem     Scope = "item"
)

var (
	ErrUnknownScope    = errors.New("discount: unknown scope")
	ErrMissingCategory = errors.New("discount: category scope requires a category")
	ErrMissingProduct  = errors.New("discount: item scope requires a product id")
	ErrMalformed       = errors.New("discount: malformed record")
)

// Target is the part of the cart a discount may affect. The zero value is a
// site-wide target; category and item targets always carry their key.
type Target struct {
	scope     Scope
	category  string
	productID string
}

func SiteWide() Target {
	return Target{scope: ScopeSiteWide}
}

// InCategory returns a category target. An empty category yields the zero
// Target; use ParseTarget when the input is untrusted.
func InCategory(category string) Target {
	category = strings.TrimSpace(category)
	if category == "" {
		return Target{}
	}
	return Target{scope: ScopeCategory, category: category}
}

func ForProduct(productID string) Target {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Target{}
	}
	return Target{scope: ScopeItem, productID: productID}
}

// ParseTarget builds a Target from loosely typed record fields.
func ParseTarget(scope, category, productID string) (Target, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(scope))) {
	case "", ScopeSiteWide:
		return SiteWide(), nil
	case ScopeCategory:
		if strings.TrimSpace(category) == "" {
			return Target{}, ErrMissingCategory
		}
		return InCategory(category), nil
	case ScopeItem:
		if strings.TrimSpace(productID) == "" {
			return Target{}, ErrMissingProduct
		}
		return ForProduct(productID), nil
	default:
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownScope, scope)
	}
}

func (t Target) Scope() Scope {
	if t.scope == "" {
		return ScopeSiteWide
	}
	return t.scope
}

func (t Target) Category() string  { return t.category }
func (t Target) ProductID() string { return t.productID }

// Matches reports whether the cart item falls inside the target.
func (t Target) Matches(item CartItem) bool {
	switch t.Scope() {
	case ScopeCategory:
		return item.Category == t.category
	case ScopeItem:
		return item.ID == t.productID
	default:
		return true
	}
}

type targetJSON struct {
	Scope     Scope  `json:"scope"`
	Category  string `json:"category,omitempty"`
	ProductID string `json:"productId,omitempty"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal(targetJSON{Scope: t.Scope(), Category: t.category, ProductID: t.productID})
}

func (t *Target) UnmarshalJSON(data []byte) error {
	var raw targetJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseTarget(string(raw.Scope), raw.Category, raw.ProductID)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Discount is a single discount record as supplied by the discount store.
type Discount struct {
	ID             int                 `json:"id,omitempty"`
	Code           string              `json:"code"`
	Type           DiscountType        `json:"type"`
	Value          decimal.Decimal     `json:"value"`
	Target         Target              `json:"target"`
	MinPurchaseUSD decimal.Decimal     `json:"minPurchaseUSD"`
	MaxDiscountUSD decimal.NullDecimal `json:"maxDiscountUSD"`
	UsageLimit     *int                `json:"usageLimit,omitempty"`
	UsageCount     int                 `json:"usageCount"`
	IsActive       bool                `json:"isActive"`
	ValidFrom      *time.Time          `json:"validFrom,omitempty"`
	ValidUntil     *time.Time          `json:"validUntil,omitempty"`
	Stackable      bool                `json:"stackable"`
	Description    string              `json:"description,omitempty"`
	CreatedAt      time.Time           `json:"createdAt,omitempty"`
	UpdatedAt      time.Time           `json:"updatedAt,omitempty"`
}

// NormalizeCode trims and upper-cases a discount code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Key returns the normalized code identifying the discount.
func (d Discount) Key() string {
	return NormalizeCode(d.Code)
}

var hundred = decimal.NewFromInt(100)

// Check reports records that a store should never hold. The resolver does
// not call it; it treats such records as inert instead.
func (d Discount) Check() error {
	if d.Key() == "" {
		return fmt.Errorf("%w: code is required", ErrMalformed)
	}
	if !d.Type.Known() {
		return fmt.Errorf("%w: unknown type %q", ErrMalformed, d.Type)
	}
	if d.Value.IsNegative() {
		return fmt.Errorf("%w: value cannot be negative", ErrMalformed)
	}
	if d.Type == TypePercentage && d.Value.GreaterThan(hundred) {
		return fmt.Errorf("%w: percentage value must be between 0 and 100", ErrMalformed)
	}
	if d.MinPurchaseUSD.IsNegative() {
		return fmt.Errorf("%w: minimum purchase cannot be negative", ErrMalformed)
	}
	if d.MaxDiscountUSD.Valid && d.MaxDiscountUSD.Decimal.IsNegative() {
		return fmt.Errorf("%w: maximum discount cannot be negative", ErrMalformed)
	}
	if d.UsageLimit != nil && *d.UsageLimit < 0 {
		return fmt.Errorf("%w: usage limit cannot be negative", ErrMalformed)
	}
	if d.UsageCount < 0 {
		return fmt.Errorf("%w: usage count cannot be negative", ErrMalformed)
	}
	if d.ValidFrom != nil && d.ValidUntil != nil && d.ValidUntil.Before(*d.ValidFrom) {
		return fmt.Errorf("%w: validUntil precedes validFrom", ErrMalformed)
	}
	return nil
}
