package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/pricing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	sessionsPath    = "/v1/checkout/sessions"
	maxResponseBody = 1 << 20
)

// User-visible messages.
const (
	msgNotConfigured  = "The payment gateway is not configured."
	msgNoItems        = "No items to process."
	msgInvalidAmount  = "Invalid amount for an item."
	msgNoValidItems   = "Unable to build the items for payment."
	msgCreateFailed   = "Unable to create the payment session."
	msgUnreachable    = "Unable to reach the payment gateway."
	msgPromoFailed    = "Unable to validate the promo code."
	msgShippingNeeded = "Shipping details are required for a free order: "
)

var hundred = decimal.NewFromInt(100)

type PromoLookup interface {
	Lookup(ctx context.Context, code string) (*domain.PromoDiscount, error)
}

type Config struct {
	GatewayURL string
	SecretKey  string
	Timeout    time.Duration
}

// Handler serves payment-session creation on behalf of the storefront.
type Handler struct {
	cfg        Config
	promos     PromoLookup
	httpClient *http.Client
	logger     *zap.Logger
}

func NewHandler(cfg Config, promos PromoLookup, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:    cfg,
		promos: promos,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

// ItemDTO accepts the amount as unitAmount or price, in major units.
type ItemDTO struct {
	ProductUID string `json:"productUid"`
	Title      string `json:"title"`
	Image      string `json:"image"`
	Quantity   any    `json:"quantity"`
	UnitAmount any    `json:"unitAmount"`
	Price      any    `json:"price"`
	Currency   string `json:"currency"`
}

type CreateSessionRequestDTO struct {
	Items      []ItemDTO               `json:"items"`
	Currency   string                  `json:"currency"`
	PromoCode  string                  `json:"promoCode"`
	Shipping   *domain.ShippingAddress `json:"shipping"`
	SuccessURL string                  `json:"successUrl"`
	CancelURL  string                  `json:"cancelUrl"`
}

type CreateSessionResponseDTO struct {
	ID   string `json:"id,omitempty"`
	URL  string `json:"url"`
	Free bool   `json:"free,omitempty"`
}

type lineItem struct {
	title    string
	image    string
	amount   int64 // minor units
	currency string
	quantity int
}

func (h *Handler) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.cfg.Timeout)
	defer cancel()

	if h.cfg.SecretKey == "" {
		h.logger.Error("payment gateway secret key is not set")
		respondError(w, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	var req CreateSessionRequestDTO
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Items) == 0 {
		respondError(w, http.StatusBadRequest, msgNoItems)
		return
	}

	items, err := sanitizeItems(req.Items, req.Currency)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var discount *domain.PromoDiscount
	if req.PromoCode != "" && h.promos != nil {
		discount, err = h.promos.Lookup(ctx, req.PromoCode)
		if err != nil {
			h.logger.Error("promo lookup failed", zap.String("code", req.PromoCode), zap.Error(err))
			respondError(w, http.StatusInternalServerError, msgPromoFailed)
			return
		}
	}

	origin := strings.TrimRight(r.Header.Get("Origin"), "/")
	successURL := req.SuccessURL
	if successURL == "" {
		successURL = origin + "/checkout?success=true"
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = origin + "/checkout?canceled=true"
	}

	if discount != nil && discount.IsFree() {
		if missing := req.Shipping.Missing(); len(missing) > 0 {
			respondError(w, http.StatusBadRequest, msgShippingNeeded+strings.Join(missing, ", ")+".")
			return
		}
		orderID := "free_" + uuid.NewString()
		h.logger.Info("free order confirmed",
			zap.String("order_id", orderID),
			zap.String("promo_code", discount.Code),
			zap.Int("items", len(items)),
			zap.String("email", req.Shipping.Email))
		respondJSON(w, http.StatusOK, CreateSessionResponseDTO{ID: orderID, URL: successURL, Free: true})
		return
	}

	form := buildSessionForm(items, discount, req.Shipping, successURL, cancelURL)
	resp, status, err := h.createGatewaySession(ctx, form)
	if err != nil {
		h.logger.Warn("payment gateway session failed", zap.Int("status", status), zap.Error(err))
		var gwErr *gatewayError
		if errors.As(err, &gwErr) {
			respondError(w, gwErr.status, gwErr.message)
			return
		}
		respondError(w, http.StatusInternalServerError, msgUnreachable)
		return
	}

	h.logger.Info("payment session created", zap.String("session_id", resp.ID), zap.Int("items", len(items)))
	respondJSON(w, http.StatusOK, CreateSessionResponseDTO{ID: resp.ID, URL: resp.URL})
}

// sanitizeItems skips untitled items and rejects any titled item without a positive amount.
func sanitizeItems(in []ItemDTO, fallbackCurrency string) ([]lineItem, error) {
	fallbackCurrency = strings.ToLower(strings.TrimSpace(fallbackCurrency))
	if fallbackCurrency == "" {
		fallbackCurrency = "eur"
	}

	items := make([]lineItem, 0, len(in))
	for _, item := range in {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}

		raw := item.UnitAmount
		if raw == nil {
			raw = item.Price
		}
		amount, ok := pricing.ParseAmount(raw)
		minor := amount.Mul(hundred).Round(0)
		if !ok || !minor.IsPositive() {
			return nil, errors.New(msgInvalidAmount)
		}

		currency := strings.ToLower(strings.TrimSpace(item.Currency))
		if currency == "" {
			currency = fallbackCurrency
		}

		quantity := domain.MinQuantity
		if q, ok := pricing.ParseAmount(item.Quantity); ok {
			quantity = domain.ClampQuantity(q.InexactFloat64())
		}

		items = append(items, lineItem{
			title:    title,
			image:    item.Image,
			amount:   minor.IntPart(),
			currency: currency,
			quantity: quantity,
		})
	}

	if len(items) == 0 {
		return nil, errors.New(msgNoValidItems)
	}
	return items, nil
}

// discounted applies a percentage discount to a minor-unit amount. The result stays chargeable.
func discounted(amount int64, percent int) int64 {
	if percent <= 0 {
		return amount
	}
	d := decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(int64(100 - percent))).
		Div(hundred).
		Round(0).
		IntPart()
	if d < 1 {
		return 1
	}
	return d
}

func buildSessionForm(items []lineItem, discount *domain.PromoDiscount, shipping *domain.ShippingAddress, successURL, cancelURL string) url.Values {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", successURL)
	form.Set("cancel_url", cancelURL)

	for i, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		amount := item.amount
		if discount != nil {
			amount = discounted(amount, discount.Value)
		}
		form.Set(prefix+"[price_data][currency]", item.currency)
		form.Set(prefix+"[price_data][product_data][name]", item.title)
		if strings.HasPrefix(item.image, "https://") || strings.HasPrefix(item.image, "http://") {
			form.Set(prefix+"[price_data][product_data][images][0]", item.image)
		}
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(amount, 10))
		form.Set(prefix+"[quantity]", strconv.Itoa(item.quantity))
	}

	if discount != nil && discount.Value > 0 {
		form.Set("metadata[promo_code]", discount.Code)
		form.Set("metadata[promo_percent]", strconv.Itoa(discount.Value))
	}
	if shipping != nil && strings.TrimSpace(shipping.Email) != "" {
		form.Set("customer_email", strings.TrimSpace(shipping.Email))
	}
	return form
}

type gatewaySession struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type gatewayError struct {
	status  int
	message string
}

func (e *gatewayError) Error() string {
	return fmt.Sprintf("payment gateway returned %d: %s", e.status, e.message)
}

func (h *Handler) createGatewaySession(ctx context.Context, form url.Values) (*gatewaySession, int, error) {
	endpoint := strings.TrimRight(h.cfg.GatewayURL, "/") + sessionsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	var session gatewaySession
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&session)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := msgCreateFailed
		if decodeErr == nil && session.Error != nil && session.Error.Message != "" {
			message = session.Error.Message
		}
		return nil, resp.StatusCode, &gatewayError{status: resp.StatusCode, message: message}
	}
	if decodeErr != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode gateway response: %w", decodeErr)
	}
	return &session, resp.StatusCode, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
