package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/pricing"
)

type call struct {
	ctx     context.Context
	qty     int
	release chan struct{}
}

// mockSource answers each call only when its release channel is closed.
type mockSource struct {
	mu    sync.Mutex
	calls []*call
	err   error
	seen  chan *call
}

func newMockSource() *mockSource {
	return &mockSource{seen: make(chan *call, 10)}
}

func (m *mockSource) Price(ctx context.Context, _ string, qty int, currency string) (domain.PriceQuote, error) {
	c := &call{ctx: ctx, qty: qty, release: make(chan struct{})}
	m.mu.Lock()
	m.calls = append(m.calls, c)
	err := m.err
	m.mu.Unlock()
	m.seen <- c

	select {
	case <-c.release:
	case <-ctx.Done():
		<-c.release
	}
	if err != nil {
		return domain.PriceQuote{}, err
	}
	return domain.PriceQuote{Amount: decimal.NewFromInt(int64(10 * qty)), Currency: currency}, nil
}

func normalizer() *pricing.Normalizer {
	return pricing.NewNormalizer("chf", nil)
}

func TestLatestQuote_StaleResponseDiscarded(t *testing.T) {
	src := newMockSource()
	view := NewLatestQuote(src, normalizer(), nil, "uid-1", "CHF")
	defer view.Close()

	type result struct {
		quote domain.PriceQuote
		err   error
	}
	first := make(chan result)
	go func() {
		q, err := view.Refresh(context.Background(), 1)
		first <- result{q, err}
	}()
	c1 := <-src.seen

	second := make(chan result)
	go func() {
		q, err := view.Refresh(context.Background(), 2)
		second <- result{q, err}
	}()
	c2 := <-src.seen

	select {
	case <-c1.ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("superseded fetch was not cancelled")
	}

	close(c2.release)
	r2 := <-second
	require.NoError(t, r2.err)
	assert.True(t, r2.quote.Amount.Equal(decimal.NewFromInt(20)))

	// the old answer arrives late and must not win
	close(c1.release)
	r1 := <-first
	assert.ErrorIs(t, r1.err, ErrSuperseded)

	current, ok := view.Current()
	require.True(t, ok)
	assert.True(t, current.Amount.Equal(decimal.NewFromInt(20)))
}

func TestLatestQuote_CloseDiscardsInflight(t *testing.T) {
	src := newMockSource()
	view := NewLatestQuote(src, normalizer(), nil, "uid-1", "CHF")

	done := make(chan error)
	go func() {
		_, err := view.Refresh(context.Background(), 1)
		done <- err
	}()
	c := <-src.seen

	view.Close()
	<-c.ctx.Done()
	close(c.release)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	_, ok := view.Current()
	assert.False(t, ok)

	_, err := view.Refresh(context.Background(), 1)
	assert.ErrorIs(t, err, ErrViewClosed)
}

func TestLatestQuote_ErrorFallsBackToListing(t *testing.T) {
	src := newMockSource()
	src.err = errors.New("catalog down")
	product := pricing.Record{"price": map[string]any{"amount": 49.9, "currency": "CHF"}}
	view := NewLatestQuote(src, normalizer(), product, "uid-1", "CHF")
	defer view.Close()

	go func() { close((<-src.seen).release) }()
	quote, err := view.Refresh(context.Background(), 2)

	assert.Error(t, err)
	assert.True(t, quote.Amount.Equal(decimal.RequireFromString("49.9")))
	assert.Equal(t, "CHF", quote.Currency)
}

func TestLatestQuote_ErrorWithoutFallback(t *testing.T) {
	src := newMockSource()
	src.err = errors.New("catalog down")
	view := NewLatestQuote(src, normalizer(), nil, "uid-1", "CHF")
	defer view.Close()

	go func() { close((<-src.seen).release) }()
	_, err := view.Refresh(context.Background(), 1)
	assert.EqualError(t, err, "catalog down")
}

func TestLatestQuote_OverrideSkipsCatalog(t *testing.T) {
	src := newMockSource()
	product := pricing.Record{"price": map[string]any{"amount": "15.00", "currency": "CHF", "isOverride": true}}
	view := NewLatestQuote(src, normalizer(), product, "uid-1", "CHF")
	defer view.Close()

	quote, err := view.Refresh(context.Background(), 3)
	require.NoError(t, err)
	assert.True(t, quote.Amount.Equal(decimal.NewFromInt(15)))
	require.NotNil(t, quote.Total)
	assert.True(t, quote.Total.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, 3, *quote.Quantity)
	assert.Empty(t, src.calls)
}

func TestLatestQuote_ClampsQuantity(t *testing.T) {
	src := newMockSource()
	view := NewLatestQuote(src, normalizer(), nil, "uid-1", "CHF")
	defer view.Close()

	go func() { close((<-src.seen).release) }()
	_, err := view.Refresh(context.Background(), 500)
	require.NoError(t, err)
	assert.Equal(t, 99, src.calls[0].qty)
}
