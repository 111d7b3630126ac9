package promos

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/gateway"
	"go.uber.org/zap"
)

type Lookup interface {
	Lookup(ctx context.Context, code string) (*domain.PromoDiscount, error)
}

type Handler struct {
	promos  Lookup
	timeout time.Duration
	logger  *zap.Logger
}

func NewHandler(promos Lookup, timeout time.Duration, logger *zap.Logger) *Handler {
	return &Handler{
		promos:  promos,
		timeout: timeout,
		logger:  logger,
	}
}

// Validate answers POST /api/promo/validate. Unknown codes are reported as invalid with 200.
func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req gateway.PromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}

	discount, err := h.promos.Lookup(ctx, req.Code)
	if err != nil {
		h.logger.Error("promo lookup failed", zap.String("code", req.Code), zap.Error(err))
		respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Unable to validate the promo code."})
		return
	}

	respondJSON(w, http.StatusOK, gateway.PromoResponse{
		Valid:    discount != nil,
		Discount: discount,
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
