package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/v1centp/timetobonk-client/internal/checkout"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/logging"
	"go.uber.org/zap"
)

type CheckoutHandler struct {
	sessions SessionStore
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCheckoutHandler(sessions SessionStore, timeout time.Duration, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		sessions: sessions,
		timeout:  timeout,
		logger:   logger,
	}
}

type CheckoutRequestDTO struct {
	Shipping *domain.ShippingAddress `json:"shipping"`
}

type ReturnResponseDTO struct {
	checkout.ReturnResult
	Cart CartResponseDTO `json:"cart"`
}

// Submit starts a checkout with the session's active promo. The submission outlives a client
// disconnect so the checkout state never stays SUBMITTING.
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
	defer cancel()

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess := h.sessions.Get(ctx, getSessionID(ctx))
	outcome := sess.Checkout.Submit(ctx, checkout.Input{
		Promo:    sess.Promo.Active(),
		Shipping: req.Shipping,
	})
	if outcome.Err == nil {
		respondJSON(w, http.StatusOK, outcome)
		return
	}

	status, code := http.StatusBadGateway, "checkout_failed"
	switch {
	case errors.Is(outcome.Err, checkout.ErrEmptyCart):
		status, code = http.StatusUnprocessableEntity, "empty_cart"
	case errors.Is(outcome.Err, checkout.ErrShippingIncomplete):
		status, code = http.StatusUnprocessableEntity, "shipping_incomplete"
	case errors.Is(outcome.Err, checkout.ErrCheckoutInProgress):
		status, code = http.StatusConflict, "checkout_in_progress"
	default:
		logging.WithTrace(r.Context(), h.logger).Warn("checkout submission failed",
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(outcome.Err))
	}
	respondErrorDetails(w, status, code, outcome.Message, outcome.State.String())
}

func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r.Context(), getSessionID(r.Context()))
	respondJSON(w, http.StatusOK, sess.Checkout.Status())
}

// Return handles the shopper landing back on the storefront after the hosted payment page.
func (h *CheckoutHandler) Return(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sess := h.sessions.Get(ctx, getSessionID(ctx))
	result, err := sess.Checkout.HandleReturn(ctx, r.URL.Query())
	if err != nil {
		logging.WithTrace(r.Context(), h.logger).Error("failed to handle checkout return",
			zap.String("request_id", getRequestID(r.Context())),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "unable to clear the cart")
		return
	}

	respondJSON(w, http.StatusOK, ReturnResponseDTO{
		ReturnResult: result,
		Cart:         newCartResponse(sess.Cart.Cart()),
	})
}
