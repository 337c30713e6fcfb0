package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Cheertaboi/storefront-discount-service/internal/api/handlers"
	"github.com/Cheertaboi/storefront-discount-service/internal/api/middleware"
)

// NewRouter builds the HTTP router for the discount service
func NewRouter(svc handlers.DiscountService, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	discountHandler := handlers.NewDiscountHandler(svc)

	// Storefront endpoints
	r.Route("/discounts", func(r chi.Router) {
		r.Post("/resolve", discountHandler.Resolve)
		r.Get("/applicable", discountHandler.Applicable)
		r.Post("/applicable", discountHandler.Applicable)
	})
	r.Post("/orders/{orderID}/discounts", discountHandler.Redeem)
	r.Get("/orders/{orderID}/discounts", discountHandler.OrderDiscounts)

	// Admin endpoints
	r.Route("/admin", func(r chi.Router) {
		r.Get("/discounts", discountHandler.ListDiscounts)
		r.Post("/discounts", discountHandler.CreateDiscount)
	})

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}
