package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/v1centp/timetobonk-client/internal/domain"
)

type PromoHandler struct {
	sessions SessionStore
	timeout  time.Duration
}

func NewPromoHandler(sessions SessionStore, timeout time.Duration) *PromoHandler {
	return &PromoHandler{
		sessions: sessions,
		timeout:  timeout,
	}
}

type PromoRequestDTO struct {
	Code string `json:"code"`
}

type PromoResponseDTO struct {
	Code     string                `json:"code"`
	Valid    bool                  `json:"valid"`
	Discount *domain.PromoDiscount `json:"discount,omitempty"`
	Message  string                `json:"message,omitempty"`
}

// ApplyPromo replaces the session's promo code and validates it. An invalid code is reported
// in the body, not as an HTTP error.
func (h *PromoHandler) ApplyPromo(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PromoRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess := h.sessions.Get(ctx, getSessionID(ctx))
	sess.Promo.SetCode(req.Code)
	if sess.Promo.Code() == "" {
		respondError(w, http.StatusBadRequest, "invalid_code", "promo code is required")
		return
	}

	verdict := sess.Promo.Apply(ctx)
	resp := PromoResponseDTO{
		Code:     sess.Promo.Code(),
		Valid:    verdict.Valid,
		Discount: verdict.Discount,
	}
	if !verdict.Valid {
		resp.Message = "Invalid promo code."
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *PromoHandler) ClearPromo(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.Get(r.Context(), getSessionID(r.Context()))
	sess.Promo.SetCode("")
	respondJSON(w, http.StatusOK, PromoResponseDTO{})
}
