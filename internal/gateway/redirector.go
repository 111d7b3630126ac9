package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrGatewayNotConfigured = errors.New("payment gateway key is not configured")

// HostedRedirector resolves the hosted checkout page of a payment session from its id.
type HostedRedirector struct {
	baseURL    string
	key        string
	httpClient *http.Client
}

func NewHostedRedirector(baseURL, key string, timeout time.Duration) *HostedRedirector {
	return &HostedRedirector{
		baseURL: strings.TrimRight(baseURL, "/"),
		key:     key,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (h *HostedRedirector) RedirectToCheckout(ctx context.Context, sessionID string) (string, error) {
	if h.key == "" {
		return "", ErrGatewayNotConfigured
	}
	if strings.TrimSpace(sessionID) == "" {
		return "", errors.New("missing payment session id")
	}

	endpoint := h.baseURL + "/v1/checkout/sessions/" + url.PathEscape(sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+h.key)

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch checkout session: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return "", fmt.Errorf("read checkout session: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", parseError(resp.StatusCode, data, "Redirect to the payment page failed.")
	}

	var session struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(data, &session); err != nil {
		return "", fmt.Errorf("decode checkout session: %w", err)
	}
	if session.URL == "" {
		return "", &APIError{Status: resp.StatusCode, Message: "Redirect to the payment page failed."}
	}
	return session.URL, nil
}
