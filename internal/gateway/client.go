package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	createSessionPath = "/api/payments/create-checkout-session"
	validatePromoPath = "/api/promo/validate"

	maxResponseBody = 1 << 20 // 1MB
)

// Client calls the payment-session and promo endpoints of the payments API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   *gobreaker.CircuitBreaker[*SessionResponse]
	promos     *gobreaker.CircuitBreaker[*PromoResponse]
	logger     *zap.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		sessions: newBreaker[*SessionResponse]("payments-create-session", logger),
		promos:   newBreaker[*PromoResponse]("payments-validate-promo", logger),
		logger:   logger,
	}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req SessionRequest) (*SessionResponse, error) {
	resp, err := c.sessions.Execute(func() (*SessionResponse, error) {
		var out SessionResponse
		if err := c.postJSON(ctx, createSessionPath, req, &out, "Unable to create the payment session."); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return resp, nil
}

func (c *Client) ValidatePromo(ctx context.Context, code string) (*PromoResponse, error) {
	resp, err := c.promos.Execute(func() (*PromoResponse, error) {
		var out PromoResponse
		if err := c.postJSON(ctx, validatePromoPath, PromoRequest{Code: code}, &out, "Unable to validate the promo code."); err != nil {
			return nil, err
		}
		return &out, nil
	})
	if err != nil {
		return nil, breakerError(err)
	}
	return resp, nil
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any, generic string) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseError(resp.StatusCode, data, generic)
		c.logger.Warn("upstream request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return apiErr
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
