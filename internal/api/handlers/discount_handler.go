package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Cheertaboi/storefront-discount-service/internal/models"
	"github.com/Cheertaboi/storefront-discount-service/internal/observability"
	"github.com/Cheertaboi/storefront-discount-service/internal/service"
)

// DiscountService is the part of service.DiscountService the handlers use.
type DiscountService interface {
	Quote(ctx context.Context, codes []string, cart models.CartContext) (models.ResolutionResult, error)
	Applicable(ctx context.Context, cart models.CartContext) ([]models.AppliedDiscount, error)
	Redeem(ctx context.Context, orderID string, codes []string, cart models.CartContext) (service.Redemption, error)
	CreateDiscount(ctx context.Context, d models.Discount) (models.Discount, error)
	ListDiscounts(ctx context.Context, activeOnly bool) ([]models.Discount, error)
	OrderDiscounts(ctx context.Context, orderID string) ([]string, error)
}

type DiscountHandler struct {
	service DiscountService
}

func NewDiscountHandler(svc DiscountService) *DiscountHandler {
	return &DiscountHandler{service: svc}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func parseTimeOrEmpty(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	t = t.UTC()
	return &t, nil
}

// writeServiceError maps service failures onto HTTP statuses. Anything not
// recognised is logged and reported as internal_error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidDiscount), errors.Is(err, service.ErrInvalidOrder):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDiscountExists), errors.Is(err, service.ErrUsageLimitReached):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRedemptionUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout")
	default:
		observability.FromContext(r.Context()).Error("discount request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error")
	}
}

// --- Handlers ---

// Resolve handles POST /discounts/resolve
func (h *DiscountHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	cart, err := req.Cart.toCart()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.service.Quote(r.Context(), req.Codes, cart)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toResolutionResponse(res, cart))
}

// Applicable handles GET and POST /discounts/applicable. A POST carries the
// cart as a JSON body, a GET in query params.
func (h *DiscountHandler) Applicable(w http.ResponseWriter, r *http.Request) {
	var cartReq CartRequest
	if r.Method == http.MethodPost {
		var req ApplicableRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_body")
			return
		}
		cartReq = req.Cart
	} else {
		parsed, err := parseCartQuery(r.URL.Query())
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cartReq = parsed
	}

	cart, err := cartReq.toCart()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	applicable, err := h.service.Applicable(r.Context(), cart)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ApplicableResponse{ApplicableDiscounts: toAppliedResponses(applicable)})
}

// Redeem handles POST /orders/{orderID}/discounts
func (h *DiscountHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	cart, err := req.Cart.toCart()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.service.Redeem(r.Context(), orderID, req.Codes, cart)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRedeemResponse(out, cart))
}

// OrderDiscounts handles GET /orders/{orderID}/discounts
func (h *DiscountHandler) OrderDiscounts(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))

	codes, err := h.service.OrderDiscounts(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OrderDiscountsResponse{OrderID: orderID, Codes: codes})
}

// ListDiscounts handles GET /admin/discounts?active=true
func (h *DiscountHandler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	activeOnly := false
	if raw := r.URL.Query().Get("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "active must be a boolean")
			return
		}
		activeOnly = v
	}

	list, err := h.service.ListDiscounts(r.Context(), activeOnly)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := DiscountListResponse{Discounts: make([]DiscountResponse, 0, len(list))}
	for _, d := range list {
		resp.Discounts = append(resp.Discounts, toDiscountResponse(d))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateDiscount handles POST /admin/discounts
func (h *DiscountHandler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	var req CreateDiscountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body")
		return
	}
	if strings.TrimSpace(req.Code) == "" || strings.TrimSpace(req.Type) == "" {
		writeError(w, http.StatusBadRequest, "code and type required")
		return
	}

	d, err := req.toDiscount()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.service.CreateDiscount(r.Context(), d)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDiscountResponse(created))
}
