// Package catalogfile reads discount catalogs and cart snapshots from YAML
// files, for offline quoting without a database.
package catalogfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Cheertaboi/storefront-discount-service/internal/models"
)

var (
	ErrDuplicateCode = errors.New("catalogfile: duplicate discount code")
	ErrReadOnly      = errors.New("catalogfile: catalog is read-only")
)

// amount accepts both YAML numbers and quoted strings and keeps the exact
// decimal text, so 19.99 never passes through a float.
type amount struct {
	decimal.Decimal
}

func (a *amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	d, err := decimal.NewFromString(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid amount %q", node.Line, node.Value)
	}
	a.Decimal = d
	return nil
}

type discountEntry struct {
	Code           string  `yaml:"code"`
	Type           string  `yaml:"type"`
	Value          amount  `yaml:"value"`
	Scope          string  `yaml:"scope"`
	Category       string  `yaml:"category"`
	ProductID      string  `yaml:"productId"`
	MinPurchaseUSD amount  `yaml:"minPurchaseUSD"`
	MaxDiscountUSD *amount `yaml:"maxDiscountUSD"`
	UsageLimit     *int    `yaml:"usageLimit"`
	UsageCount     int     `yaml:"usageCount"`
	Active         *bool   `yaml:"active"`
	ValidFrom      string  `yaml:"validFrom"`
	ValidUntil     string  `yaml:"validUntil"`
	Stackable      bool    `yaml:"stackable"`
	Description    string  `yaml:"description"`
}

type catalogDoc struct {
	Discounts []discountEntry `yaml:"discounts"`
}

func parseInstant(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%s %q: use RFC3339", field, raw)
	}
	t = t.UTC()
	return &t, nil
}

func (e discountEntry) toDiscount(id int) (models.Discount, error) {
	target, err := models.ParseTarget(e.Scope, e.Category, e.ProductID)
	if err != nil {
		return models.Discount{}, err
	}
	validFrom, err := parseInstant("validFrom", e.ValidFrom)
	if err != nil {
		return models.Discount{}, err
	}
	validUntil, err := parseInstant("validUntil", e.ValidUntil)
	if err != nil {
		return models.Discount{}, err
	}

	d := models.Discount{
		ID:             id,
		Code:           models.NormalizeCode(e.Code),
		Type:           models.DiscountType(strings.ToLower(strings.TrimSpace(e.Type))),
		Value:          e.Value.Decimal,
		Target:         target,
		MinPurchaseUSD: e.MinPurchaseUSD.Decimal,
		UsageLimit:     e.UsageLimit,
		UsageCount:     e.UsageCount,
		IsActive:       true,
		ValidFrom:      validFrom,
		ValidUntil:     validUntil,
		Stackable:      e.Stackable,
		Description:    e.Description,
	}
	if e.Active != nil {
		d.IsActive = *e.Active
	}
	if e.MaxDiscountUSD != nil {
		d.MaxDiscountUSD = decimal.NewNullDecimal(e.MaxDiscountUSD.Decimal)
	}
	if err := d.Check(); err != nil {
		return models.Discount{}, err
	}
	return d, nil
}

// Catalog is an in-memory, read-only discount store keyed by normalized code.
type Catalog struct {
	byCode map[string]models.Discount
}

// ParseCatalog decodes a catalog document. Every entry must pass
// Discount.Check; codes must be unique after normalization.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalogfile: decode catalog: %w", err)
	}

	c := &Catalog{byCode: make(map[string]models.Discount, len(doc.Discounts))}
	for i, e := range doc.Discounts {
		d, err := e.toDiscount(i + 1)
		if err != nil {
			return nil, fmt.Errorf("catalogfile: discount #%d (%s): %w", i+1, e.Code, err)
		}
		if _, dup := c.byCode[d.Code]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateCode, d.Code)
		}
		c.byCode[d.Code] = d
	}
	return c, nil
}

func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCatalog(data)
}

func (c *Catalog) Len() int { return len(c.byCode) }

func (c *Catalog) GetByCodes(_ context.Context, codes []string) ([]models.Discount, error) {
	var out []models.Discount
	for _, code := range codes {
		if d, ok := c.byCode[models.NormalizeCode(code)]; ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func (c *Catalog) List(_ context.Context, activeOnly bool) ([]models.Discount, error) {
	out := make([]models.Discount, 0, len(c.byCode))
	for _, d := range c.byCode {
		if activeOnly && !d.IsActive {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (c *Catalog) Create(context.Context, models.Discount) (models.Discount, error) {
	return models.Discount{}, ErrReadOnly
}
