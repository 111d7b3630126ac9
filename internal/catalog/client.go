package catalog

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

	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/pricing"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrNoPrice         = errors.New("no price for this configuration")
)

// Client reads products and configuration prices from the Catalog API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	normalizer *pricing.Normalizer
}

func NewClient(baseURL string, timeout time.Duration, normalizer *pricing.Normalizer) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		normalizer: normalizer,
	}
}

// Product fetches a product record as-is.
func (c *Client) Product(ctx context.Context, id string) (pricing.Record, error) {
	var rec pricing.Record
	status, err := c.get(ctx, "/api/catalog/product/"+url.PathEscape(id), nil, &rec)
	if status == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Price asks the catalog for the unit price of productUID at the given quantity.
func (c *Client) Price(ctx context.Context, productUID string, qty int, currency string) (domain.PriceQuote, error) {
	params := url.Values{}
	params.Set("qty", strconv.Itoa(qty))
	if currency != "" {
		params.Set("currency", currency)
	}

	var payload pricing.Record
	if _, err := c.get(ctx, "/api/catalog/product/"+url.PathEscape(productUID)+"/price", params, &payload); err != nil {
		return domain.PriceQuote{}, err
	}

	quote, ok := c.normalizer.Quote(pricing.Record{
		"amount":     payload["unitAmount"],
		"unitAmount": payload["unitAmount"],
		"total":      payload["total"],
		"quantity":   payload["quantity"],
		"currency":   payload["currency"],
	}, currency)
	if !ok {
		return domain.PriceQuote{}, ErrNoPrice
	}
	return quote, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) (int, error) {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, fmt.Errorf("get %s: status %d", path, resp.StatusCode)
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, 4<<20))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
	}
	return resp.StatusCode, nil
}
