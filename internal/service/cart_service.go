package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/pricing"
	"go.uber.org/zap"
)

var (
	ErrCurrencyMismatch = errors.New("item currency differs from cart currency")
	ErrCartClosed       = errors.New("cart is closed")
)

// Persister saves and rehydrates one session's cart.
type Persister interface {
	Save(ctx context.Context, items []domain.CartItem) error
	Load(ctx context.Context) []domain.CartItem
}

// CartService owns the cart of one session. All mutations go through its methods.
type CartService struct {
	mu         sync.RWMutex
	items      []domain.CartItem
	closed     bool
	persister  Persister
	normalizer *pricing.Normalizer
	logger     *zap.Logger

	subMu       sync.Mutex
	subscribers map[int]func(domain.CartView)
	nextSub     int
}

// NewCartService rehydrates the cart from the persister.
func NewCartService(ctx context.Context, persister Persister, normalizer *pricing.Normalizer, logger *zap.Logger) *CartService {
	return &CartService{
		items:       persister.Load(ctx),
		persister:   persister,
		normalizer:  normalizer,
		logger:      logger,
		subscribers: make(map[int]func(domain.CartView)),
	}
}

// Cart returns the derived view of the current items.
func (s *CartService) Cart() domain.CartView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Derive(s.items, s.normalizer.DefaultCurrency())
}

// Subscribe registers fn to receive the cart view after every mutation.
func (s *CartService) Subscribe(fn func(domain.CartView)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSub
	s.nextSub++
	s.subscribers[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
	}
}

// Close drops all subscribers and rejects further mutations.
func (s *CartService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.subMu.Lock()
	s.subscribers = make(map[int]func(domain.CartView))
	s.subMu.Unlock()
}

// AddItem normalizes product into a cart line. A product without identity is ignored.
// Adding an existing line increases its quantity up to MaxQuantity.
func (s *CartService) AddItem(ctx context.Context, product pricing.Record, quantity float64) error {
	item, ok := s.normalize(product)
	if !ok {
		s.logger.Debug("ignoring product without identity")
		return nil
	}
	qty := domain.ClampQuantity(quantity)

	return s.mutate(ctx, func(items []domain.CartItem) ([]domain.CartItem, error) {
		if len(items) > 0 && items[0].Currency != item.Currency {
			return nil, fmt.Errorf("%w: cart is %s, item is %s", ErrCurrencyMismatch, items[0].Currency, item.Currency)
		}
		for i := range items {
			if items[i].ID == item.ID {
				items[i].Quantity = min(domain.MaxQuantity, items[i].Quantity+qty)
				return items, nil
			}
		}
		item.Quantity = qty
		return append(items, item), nil
	})
}

// RemoveItem deletes a line. Unknown ids are a no-op.
func (s *CartService) RemoveItem(ctx context.Context, id string) error {
	return s.mutate(ctx, func(items []domain.CartItem) ([]domain.CartItem, error) {
		out := items[:0]
		for _, item := range items {
			if item.ID != id {
				out = append(out, item)
			}
		}
		return out, nil
	})
}

// UpdateQuantity replaces a line's quantity, clamped to [1,99]. Unknown ids are a no-op.
func (s *CartService) UpdateQuantity(ctx context.Context, id string, quantity float64) error {
	qty := domain.ClampQuantity(quantity)
	return s.mutate(ctx, func(items []domain.CartItem) ([]domain.CartItem, error) {
		for i := range items {
			if items[i].ID == id {
				items[i].Quantity = qty
			}
		}
		return items, nil
	})
}

func (s *CartService) ClearCart(ctx context.Context) error {
	return s.mutate(ctx, func([]domain.CartItem) ([]domain.CartItem, error) {
		return []domain.CartItem{}, nil
	})
}

// mutate applies fn to a copy of the items, persists the result and notifies subscribers.
// When fn fails the cart is left untouched.
func (s *CartService) mutate(ctx context.Context, fn func([]domain.CartItem) ([]domain.CartItem, error)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrCartClosed
	}

	working := make([]domain.CartItem, len(s.items))
	copy(working, s.items)

	next, err := fn(working)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.items = next

	if err := s.persister.Save(ctx, s.items); err != nil {
		s.logger.Error("failed to persist cart", zap.Error(err))
	}
	view := domain.Derive(s.items, s.normalizer.DefaultCurrency())
	s.mu.Unlock()

	s.notify(view)
	return nil
}

func (s *CartService) notify(view domain.CartView) {
	s.subMu.Lock()
	fns := make([]func(domain.CartView), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(view)
	}
}

func (s *CartService) normalize(product pricing.Record) (domain.CartItem, bool) {
	if product == nil {
		return domain.CartItem{}, false
	}

	productID := pricing.String(product, "productId", "id", "slug", "handle", "sku")
	if productID == "" {
		return domain.CartItem{}, false
	}
	// A composite id passed as "id" is split back into its parts.
	if pricing.String(product, "productId") == "" {
		if p, _, found := strings.Cut(productID, ":"); found {
			productID = p
		}
	}

	variantID := pricing.String(product, "variantId", "variant.id", "variant.productUid", "variant.sku", "productUid")
	if variantID == "" {
		variantID = productID
	}

	title := pricing.String(product, "title", "name")
	if title == "" {
		title = "Product " + productID
	}

	price, _ := s.normalizer.Extract(product)
	amount := price.Amount
	if amount.IsNegative() {
		amount = decimal.Zero
	}

	item := domain.CartItem{
		ID:           domain.CompositeKey(productID, variantID),
		ProductID:    productID,
		VariantID:    variantID,
		Title:        title,
		ProductTitle: pricing.String(product, "productTitle"),
		VariantTitle: pricing.String(product, "variantTitle", "variant.title", "variant.name"),
		VariantSKU:   pricing.String(product, "variantSku", "variant.sku"),
		ProductUID:   pricing.String(product, "productUid", "variant.productUid"),
		Image:        pricing.String(product, "image", "previewUrl", "externalPreviewUrl", "externalThumbnailUrl", "thumbnailUrl"),
		Price:        amount,
		Currency:     price.Currency,
	}
	if original := pricing.String(product, "imageOriginal"); original != "" {
		item.ImageOriginal = &original
	}
	return item, true
}
