package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Cheertaboi/storefront-discount-service/internal/models"
	"github.com/Cheertaboi/storefront-discount-service/internal/service"
)

// --- Request / Response DTOs ---

type CartItemRequest struct {
	ID       string  `json:"id"`
	Category string  `json:"category"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

type CartRequest struct {
	Items        []CartItemRequest `json:"items"`
	Subtotal     *float64          `json:"subtotal,omitempty"` // recomputed from items when absent
	ShippingCost float64           `json:"shippingCost"`
}

type ResolveRequest struct {
	Codes []string    `json:"codes"`
	Cart  CartRequest `json:"cart"`
}

type ApplicableRequest struct {
	Cart CartRequest `json:"cart"`
}

type CreateDiscountRequest struct {
	Code           string   `json:"code"`
	Type           string   `json:"type"`
	Value          float64  `json:"value"`
	Scope          string   `json:"scope"`
	Category       string   `json:"category,omitempty"`
	ProductID      string   `json:"productId,omitempty"`
	MinPurchaseUSD float64  `json:"minPurchaseUSD"`
	MaxDiscountUSD *float64 `json:"maxDiscountUSD,omitempty"`
	UsageLimit     *int     `json:"usageLimit,omitempty"`
	IsActive       *bool    `json:"isActive,omitempty"`
	ValidFrom      string   `json:"validFrom,omitempty"`  // RFC3339
	ValidUntil     string   `json:"validUntil,omitempty"` // RFC3339
	Stackable      bool     `json:"stackable"`
	Description    string   `json:"description,omitempty"`
}

type DiscountResponse struct {
	ID             int        `json:"id"`
	Code           string     `json:"code"`
	Type           string     `json:"type"`
	Value          float64    `json:"value"`
	Scope          string     `json:"scope"`
	Category       string     `json:"category,omitempty"`
	ProductID      string     `json:"productId,omitempty"`
	MinPurchaseUSD float64    `json:"minPurchaseUSD"`
	MaxDiscountUSD *float64   `json:"maxDiscountUSD,omitempty"`
	UsageLimit     *int       `json:"usageLimit,omitempty"`
	UsageCount     int        `json:"usageCount"`
	IsActive       bool       `json:"isActive"`
	ValidFrom      *time.Time `json:"validFrom,omitempty"`
	ValidUntil     *time.Time `json:"validUntil,omitempty"`
	Stackable      bool       `json:"stackable"`
	Description    string     `json:"description,omitempty"`
}

type AppliedDiscountResponse struct {
	Code          string  `json:"code"`
	Type          string  `json:"type"`
	Scope         string  `json:"scope"`
	Stackable     bool    `json:"stackable"`
	Description   string  `json:"description,omitempty"`
	AppliedAmount float64 `json:"appliedAmount"`
}

type ResolutionResponse struct {
	TotalDiscount    float64                   `json:"totalDiscount"`
	AppliedDiscounts []AppliedDiscountResponse `json:"appliedDiscounts"`
	Errors           []models.RejectedCode     `json:"errors"`
	Total            float64                   `json:"total"`
}

type ApplicableResponse struct {
	ApplicableDiscounts []AppliedDiscountResponse `json:"applicableDiscounts"`
}

type RedeemResponse struct {
	OrderID    string             `json:"orderId"`
	Redeemed   []string           `json:"redeemed"`
	Resolution ResolutionResponse `json:"resolution"`
}

type OrderDiscountsResponse struct {
	OrderID string   `json:"orderId"`
	Codes   []string `json:"codes"`
}

type DiscountListResponse struct {
	Discounts []DiscountResponse `json:"discounts"`
}

// --- Conversions ---

var errInvalidCart = errors.New("invalid cart")

func (c CartRequest) toCart() (models.CartContext, error) {
	if c.ShippingCost < 0 {
		return models.CartContext{}, fmt.Errorf("%w: shippingCost must not be negative", errInvalidCart)
	}
	cart := models.CartContext{
		Items:        make([]models.CartItem, 0, len(c.Items)),
		ShippingCost: decimal.NewFromFloat(c.ShippingCost),
	}
	for i, it := range c.Items {
		if it.Price < 0 || it.Quantity < 1 {
			return models.CartContext{}, fmt.Errorf("%w: item %d needs price >= 0 and quantity >= 1", errInvalidCart, i)
		}
		cart.Items = append(cart.Items, models.CartItem{
			ID:       it.ID,
			Category: it.Category,
			Price:    decimal.NewFromFloat(it.Price),
			Qty:      it.Quantity,
		})
	}
	if c.Subtotal == nil {
		return cart.WithComputedSubtotal(), nil
	}
	if *c.Subtotal < 0 {
		return models.CartContext{}, fmt.Errorf("%w: subtotal must not be negative", errInvalidCart)
	}
	cart.Subtotal = decimal.NewFromFloat(*c.Subtotal)
	return cart, nil
}

// parseCartQuery reads a cart from query params:
// items=id|category|price|qty,id|category|price|qty&shippingCost=4.99&subtotal=...
func parseCartQuery(q map[string][]string) (CartRequest, error) {
	get := func(key string) string {
		if v := q[key]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	var req CartRequest
	if raw := get("items"); raw != "" {
		for _, p := range strings.Split(raw, ",") {
			fields := strings.Split(p, "|")
			if len(fields) < 4 {
				return CartRequest{}, fmt.Errorf("%w: item %q must be id|category|price|qty", errInvalidCart, p)
			}
			price, err := strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return CartRequest{}, fmt.Errorf("%w: price %q", errInvalidCart, fields[2])
			}
			qty, err := strconv.Atoi(fields[3])
			if err != nil {
				return CartRequest{}, fmt.Errorf("%w: quantity %q", errInvalidCart, fields[3])
			}
			req.Items = append(req.Items, CartItemRequest{ID: fields[0], Category: fields[1], Price: price, Quantity: qty})
		}
	}
	if raw := get("shippingCost"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return CartRequest{}, fmt.Errorf("%w: shippingCost %q", errInvalidCart, raw)
		}
		req.ShippingCost = f
	}
	if raw := get("subtotal"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return CartRequest{}, fmt.Errorf("%w: subtotal %q", errInvalidCart, raw)
		}
		req.Subtotal = &f
	}
	return req, nil
}

func (req CreateDiscountRequest) toDiscount() (models.Discount, error) {
	target, err := models.ParseTarget(req.Scope, req.Category, req.ProductID)
	if err != nil {
		return models.Discount{}, err
	}
	validFrom, err := parseTimeOrEmpty(req.ValidFrom)
	if err != nil {
		return models.Discount{}, errors.New("invalid validFrom; use RFC3339")
	}
	validUntil, err := parseTimeOrEmpty(req.ValidUntil)
	if err != nil {
		return models.Discount{}, errors.New("invalid validUntil; use RFC3339")
	}

	d := models.Discount{
		Code:           req.Code,
		Type:           models.DiscountType(strings.ToLower(strings.TrimSpace(req.Type))),
		Value:          decimal.NewFromFloat(req.Value),
		Target:         target,
		MinPurchaseUSD: decimal.NewFromFloat(req.MinPurchaseUSD),
		UsageLimit:     req.UsageLimit,
		IsActive:       true,
		ValidFrom:      validFrom,
		ValidUntil:     validUntil,
		Stackable:      req.Stackable,
		Description:    req.Description,
	}
	if req.IsActive != nil {
		d.IsActive = *req.IsActive
	}
	if req.MaxDiscountUSD != nil {
		d.MaxDiscountUSD = decimal.NewNullDecimal(decimal.NewFromFloat(*req.MaxDiscountUSD))
	}
	return d, nil
}

func toDiscountResponse(d models.Discount) DiscountResponse {
	resp := DiscountResponse{
		ID:             d.ID,
		Code:           d.Code,
		Type:           string(d.Type),
		Value:          d.Value.InexactFloat64(),
		Scope:          string(d.Target.Scope()),
		Category:       d.Target.Category(),
		ProductID:      d.Target.ProductID(),
		MinPurchaseUSD: d.MinPurchaseUSD.InexactFloat64(),
		UsageLimit:     d.UsageLimit,
		UsageCount:     d.UsageCount,
		IsActive:       d.IsActive,
		ValidFrom:      d.ValidFrom,
		ValidUntil:     d.ValidUntil,
		Stackable:      d.Stackable,
		Description:    d.Description,
	}
	if d.MaxDiscountUSD.Valid {
		v := d.MaxDiscountUSD.Decimal.InexactFloat64()
		resp.MaxDiscountUSD = &v
	}
	return resp
}

func toAppliedResponses(applied []models.AppliedDiscount) []AppliedDiscountResponse {
	out := make([]AppliedDiscountResponse, 0, len(applied))
	for _, a := range applied {
		out = append(out, AppliedDiscountResponse{
			Code:          a.Key(),
			Type:          string(a.Type),
			Scope:         string(a.Target.Scope()),
			Stackable:     a.Stackable,
			Description:   a.Description,
			AppliedAmount: a.AppliedAmount.InexactFloat64(),
		})
	}
	return out
}

func toResolutionResponse(res models.ResolutionResult, cart models.CartContext) ResolutionResponse {
	errs := res.Errors
	if errs == nil {
		errs = []models.RejectedCode{}
	}
	return ResolutionResponse{
		TotalDiscount:    res.TotalDiscount.InexactFloat64(),
		AppliedDiscounts: toAppliedResponses(res.AppliedDiscounts),
		Errors:           errs,
		Total:            res.Total(cart).InexactFloat64(),
	}
}

func toRedeemResponse(r service.Redemption, cart models.CartContext) RedeemResponse {
	return RedeemResponse{
		OrderID:    r.OrderID,
		Redeemed:   r.Redeemed,
		Resolution: toResolutionResponse(r.Resolution, cart),
	}
}
