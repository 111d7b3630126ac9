package catalog

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/pricing"
)

var (
	// ErrSuperseded is returned to a refresh whose answer was overtaken by a newer one.
	ErrSuperseded = errors.New("price request superseded")
	ErrViewClosed = errors.New("price view closed")
)

type PriceSource interface {
	Price(ctx context.Context, productUID string, qty int, currency string) (domain.PriceQuote, error)
}

// LatestQuote tracks the price of one product view. Only the newest refresh may update it.
type LatestQuote struct {
	source     PriceSource
	productUID string
	currency   string
	listing    *domain.PriceQuote
	override   *domain.PriceQuote

	life   context.Context
	finish context.CancelFunc

	mu       sync.Mutex
	gen      uint64
	inflight context.CancelFunc
	current  *domain.PriceQuote
}

// NewLatestQuote starts a view. product may be nil; when it carries a price it is the fallback
// quote, and a price flagged isOverride is used without asking the catalog.
func NewLatestQuote(source PriceSource, normalizer *pricing.Normalizer, product pricing.Record, productUID, currency string) *LatestQuote {
	life, finish := context.WithCancel(context.Background())
	l := &LatestQuote{
		source:     source,
		productUID: productUID,
		currency:   currency,
		life:       life,
		finish:     finish,
	}

	if product != nil {
		if q, ok := normalizer.Quote(product["price"], currency); ok {
			l.listing = &q
			l.current = &q
		}
		if priceObj, ok := product["price"].(map[string]any); ok {
			if isOverride, _ := priceObj["isOverride"].(bool); isOverride && l.listing != nil {
				l.override = l.listing
			}
		}
	}
	return l
}

// Current returns the last applied quote.
func (l *LatestQuote) Current() (domain.PriceQuote, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return domain.PriceQuote{}, false
	}
	return *l.current, true
}

// Refresh fetches the price for qty, cancelling any fetch still in flight. On failure the
// previous quote (or the listing price) is kept and returned alongside the error.
func (l *LatestQuote) Refresh(ctx context.Context, qty int) (domain.PriceQuote, error) {
	qty = domain.ClampQuantity(float64(qty))

	if l.override != nil {
		return l.applyOverride(qty)
	}

	l.mu.Lock()
	if l.life.Err() != nil {
		l.mu.Unlock()
		return domain.PriceQuote{}, ErrViewClosed
	}
	if l.inflight != nil {
		l.inflight()
	}
	l.gen++
	gen := l.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(l.life, cancel)
	l.inflight = cancel
	l.mu.Unlock()

	quote, err := l.source.Price(fetchCtx, l.productUID, qty, l.currency)
	stop()
	cancel()

	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen || l.life.Err() != nil {
		return domain.PriceQuote{}, ErrSuperseded
	}
	l.inflight = nil

	if err != nil {
		if l.current == nil {
			return domain.PriceQuote{}, err
		}
		return *l.current, err
	}
	l.current = &quote
	return quote, nil
}

func (l *LatestQuote) applyOverride(qty int) (domain.PriceQuote, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.life.Err() != nil {
		return domain.PriceQuote{}, ErrViewClosed
	}
	total := l.override.Amount.Mul(decimal.NewFromInt(int64(qty)))
	q := domain.PriceQuote{
		Amount:   l.override.Amount,
		Currency: l.override.Currency,
		Quantity: &qty,
		Total:    &total,
	}
	l.current = &q
	return q, nil
}

// Close ends the view; fetches in flight are cancelled and their answers discarded.
func (l *LatestQuote) Close() {
	l.finish()
}
