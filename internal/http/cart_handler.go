package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/logging"
	"github.com/v1centp/timetobonk-client/internal/pricing"
	"github.com/v1centp/timetobonk-client/internal/service"
	"go.uber.org/zap"
)

// SessionStore resolves the engine components of a storefront session.
type SessionStore interface {
	Get(ctx context.Context, id string) *service.Session
}

type CartHandler struct {
	sessions SessionStore
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCartHandler(sessions SessionStore, timeout time.Duration, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		sessions: sessions,
		timeout:  timeout,
		logger:   logger,
	}
}

type AddItemRequestDTO struct {
	Product  pricing.Record `json:"product"`
	Quantity *float64       `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity float64 `json:"quantity"`
}

type CartResponseDTO struct {
	domain.CartView
	FormattedSubtotal string `json:"formattedSubtotal"`
}

func newCartResponse(view domain.CartView) CartResponseDTO {
	if view.Items == nil {
		view.Items = []domain.CartItem{}
	}
	return CartResponseDTO{
		CartView:          view,
		FormattedSubtotal: formatAmount(view.Subtotal, view.Currency),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r.Context(), getSessionID(r.Context()))
	respondJSON(w, http.StatusOK, newCartResponse(sess.Cart.Cart()))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if len(req.Product) == 0 {
		respondError(w, http.StatusBadRequest, "invalid_product", "product is required")
		return
	}
	quantity := 1.0
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	sess := h.sessions.Get(ctx, getSessionID(ctx))
	if err := sess.Cart.AddItem(ctx, req.Product, quantity); err != nil {
		h.handleCartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, newCartResponse(sess.Cart.Cart()))
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess := h.sessions.Get(ctx, getSessionID(ctx))
	if err := sess.Cart.UpdateQuantity(ctx, id, req.Quantity); err != nil {
		h.handleCartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(sess.Cart.Cart()))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "invalid_item_id", "item id is required")
		return
	}

	sess := h.sessions.Get(ctx, getSessionID(ctx))
	if err := sess.Cart.RemoveItem(ctx, id); err != nil {
		h.handleCartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(sess.Cart.Cart()))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := h.sessions.Get(ctx, getSessionID(ctx))
	if err := sess.Cart.ClearCart(ctx); err != nil {
		h.handleCartError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, newCartResponse(sess.Cart.Cart()))
}

func (h *CartHandler) handleCartError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrCurrencyMismatch):
		respondErrorDetails(w, http.StatusConflict, "currency_mismatch",
			"all items in the cart must share one currency", err.Error())
	case errors.Is(err, service.ErrCartClosed):
		respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart is reloading, try again")
	default:
		logging.WithTrace(r.Context(), h.logger).Error("cart operation failed",
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// formatAmount renders amount in currency, rounding for display only.
func formatAmount(amount decimal.Decimal, currency string) string {
	return pricing.Format(amount.Round(2), currency)
}
