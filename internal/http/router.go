package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	SecureCookies      bool
}

type Handlers struct {
	Cart     *CartHandler
	Promo    *PromoHandler
	Checkout *CheckoutHandler
	Quote    *QuoteHandler
}

// NewRouter mounts the storefront API. All /api/v1 routes are bound to the caller's session.
func NewRouter(cfg RouterConfig, h Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(SessionMiddleware(cfg.SecureCookies))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.Cart.GetCart)
			r.Delete("/", h.Cart.ClearCart)
			r.Post("/items", h.Cart.AddItem)
			r.Put("/items/{id}", h.Cart.UpdateQuantity)
			r.Delete("/items/{id}", h.Cart.RemoveItem)
		})

		r.Route("/promo", func(r chi.Router) {
			r.Put("/", h.Promo.ApplyPromo)
			r.Delete("/", h.Promo.ClearPromo)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", h.Checkout.Submit)
			r.Get("/", h.Checkout.Status)
			r.Get("/return", h.Checkout.Return)
		})

		r.Get("/quote/{productUid}", h.Quote.GetQuote)
	})

	return otelhttp.NewHandler(r, "storefront")
}
