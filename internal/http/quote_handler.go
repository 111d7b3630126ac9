package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/v1centp/timetobonk-client/internal/catalog"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/logging"
	"github.com/v1centp/timetobonk-client/internal/pricing"
	"go.uber.org/zap"
)

// ProductSource loads catalog product records.
type ProductSource interface {
	Product(ctx context.Context, id string) (pricing.Record, error)
}

type QuoteHandler struct {
	sessions   SessionStore
	products   ProductSource
	normalizer *pricing.Normalizer
	timeout    time.Duration
	logger     *zap.Logger
}

func NewQuoteHandler(sessions SessionStore, products ProductSource, normalizer *pricing.Normalizer, timeout time.Duration, logger *zap.Logger) *QuoteHandler {
	return &QuoteHandler{
		sessions:   sessions,
		products:   products,
		normalizer: normalizer,
		timeout:    timeout,
		logger:     logger,
	}
}

type QuoteResponseDTO struct {
	Quote            *domain.PriceQuote `json:"quote"`
	Formatted        string             `json:"formatted,omitempty"`
	FormattedTotal   string             `json:"formattedTotal,omitempty"`
	DisplayPrice     *pricing.Price     `json:"displayPrice,omitempty"`
	DisplayFrom      bool               `json:"displayFrom,omitempty"`
	DisplayFormatted string             `json:"displayFormatted,omitempty"`
	Stale            bool               `json:"stale"`
}

// GetQuote refreshes the session's price view of a product. When the catalog cannot answer
// the last known quote is served and marked stale.
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productUID := chi.URLParam(r, "productUid")
	if productUID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_uid", "product uid is required")
		return
	}

	qty := 1
	if raw := r.URL.Query().Get("qty"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_quantity", "qty must be an integer")
			return
		}
		qty = n
	}
	currency := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("currency")))
	if currency == "" {
		currency = h.normalizer.DefaultCurrency()
	}

	var resp QuoteResponseDTO
	var product pricing.Record
	if productID := r.URL.Query().Get("productId"); productID != "" && h.products != nil {
		p, err := h.products.Product(ctx, productID)
		switch {
		case err == nil:
			product = p
			if display, from, ok := h.normalizer.ListingPrice(p, nil); ok {
				resp.DisplayPrice = &display
				resp.DisplayFrom = from
				resp.DisplayFormatted = formatAmount(display.Amount, display.Currency)
			}
		case errors.Is(err, catalog.ErrProductNotFound):
			respondError(w, http.StatusNotFound, "product_not_found", "product not found")
			return
		default:
			logging.WithTrace(r.Context(), h.logger).Warn("failed to load product", zap.String("product_id", productID), zap.Error(err))
		}
	}

	sess := h.sessions.Get(ctx, getSessionID(ctx))
	quote, err := sess.Quote(productUID, currency, product).Refresh(ctx, qty)
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrSuperseded), errors.Is(err, catalog.ErrViewClosed):
		respondError(w, http.StatusConflict, "quote_superseded", "a newer price request replaced this one")
		return
	default:
		resp.Stale = true
		logging.WithTrace(r.Context(), h.logger).Warn("price lookup failed",
			zap.String("request_id", getRequestID(r.Context())),
			zap.String("product_uid", productUID),
			zap.Error(err))
	}

	if quote.Currency == "" {
		if resp.Stale {
			respondError(w, http.StatusBadGateway, "price_unavailable", "price is unavailable")
			return
		}
		respondJSON(w, http.StatusOK, resp)
		return
	}

	resp.Quote = &quote
	resp.Formatted = formatAmount(quote.Amount, quote.Currency)
	if quote.Total != nil {
		resp.FormattedTotal = formatAmount(*quote.Total, quote.Currency)
	}
	respondJSON(w, http.StatusOK, resp)
}
