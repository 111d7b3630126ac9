package service

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/v1centp/timetobonk-client/internal/catalog"
	"github.com/v1centp/timetobonk-client/internal/checkout"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/events"
	"github.com/v1centp/timetobonk-client/internal/persistence"
	"github.com/v1centp/timetobonk-client/internal/pricing"
	"github.com/v1centp/timetobonk-client/internal/promo"
	"github.com/v1centp/timetobonk-client/internal/storage"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// CleanupInterval is how often idle sessions are evicted
	CleanupInterval = time.Minute
	DefaultIdleTTL  = 30 * time.Minute
)

// Session bundles the per-session engine components.
type Session struct {
	ID       string
	Cart     *CartService
	Promo    *promo.Field
	Checkout *checkout.Orchestrator

	prices     catalog.PriceSource
	normalizer *pricing.Normalizer

	mu       sync.Mutex
	lastSeen time.Time
	quotes   map[string]*catalog.LatestQuote
}

// Quote returns the price view of productUID, starting it on first use. A later refresh on the
// same view supersedes any earlier one still in flight.
func (s *Session) Quote(productUID, currency string, product pricing.Record) *catalog.LatestQuote {
	key := productUID + "|" + strings.ToUpper(currency)

	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.quotes[key]; ok {
		return q
	}
	q := catalog.NewLatestQuote(s.prices, s.normalizer, product, productUID, currency)
	s.quotes[key] = q
	return q
}

func (s *Session) close() {
	s.Cart.Close()

	s.mu.Lock()
	defer s.mu.Unlock()
	for key, q := range s.quotes {
		q.Close()
		delete(s.quotes, key)
	}
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

type Dependencies struct {
	Slot       storage.Slot
	Prices     catalog.PriceSource
	Normalizer *pricing.Normalizer
	Validator  promo.Validator
	Payments   checkout.SessionCreator
	Redirector checkout.Redirector
	Publisher  events.Publisher
	Checkout   checkout.Config
}

// Sessions keeps live sessions in memory. An evicted session is rebuilt from its slot on next access.
type Sessions struct {
	deps    Dependencies
	idleTTL time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	sfg      singleflight.Group // one rehydration per session id

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewSessions(deps Dependencies, idleTTL time.Duration, logger *zap.Logger) *Sessions {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	s := &Sessions{
		deps:        deps,
		idleTTL:     idleTTL,
		logger:      logger,
		now:         time.Now,
		sessions:    make(map[string]*Session),
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

// Get returns the live session for id, rehydrating it from storage on first access.
func (s *Sessions) Get(ctx context.Context, id string) *Session {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.touch(s.now())
		return sess
	}

	v, _, _ := s.sfg.Do(id, func() (interface{}, error) {
		s.mu.RLock()
		existing, ok := s.sessions[id]
		s.mu.RUnlock()
		if ok {
			return existing, nil
		}

		created := s.build(context.WithoutCancel(ctx), id)

		s.mu.Lock()
		s.sessions[id] = created
		s.mu.Unlock()
		return created, nil
	})

	sess = v.(*Session)
	sess.touch(s.now())
	return sess
}

func (s *Sessions) build(ctx context.Context, id string) *Session {
	logger := s.logger.With(zap.String("session_id", id))
	adapter := persistence.NewAdapter(s.deps.Slot, id, s.deps.Normalizer.DefaultCurrency(), logger)
	cart := NewCartService(ctx, adapter, s.deps.Normalizer, logger)

	logger.Debug("session loaded", zap.Int("items", len(cart.Cart().Items)))

	orchestrator := checkout.NewOrchestrator(id, cart, s.deps.Payments, s.deps.Redirector, s.deps.Publisher, s.deps.Checkout, logger)
	orchestrator.Restore(ctx, adapter)

	return &Session{
		ID:       id,
		Cart:     cart,
		Promo:    promo.NewField(s.deps.Validator),
		Checkout: orchestrator,

		prices:     s.deps.Prices,
		normalizer: s.deps.Normalizer,
		quotes:     make(map[string]*catalog.LatestQuote),
	}
}

// ConfirmPayment applies a settled payment as if the shopper had returned with the success marker.
func (s *Sessions) ConfirmPayment(ctx context.Context, c events.Confirmation) error {
	if c.Status != events.StatusPaid {
		return nil
	}
	sess := s.Get(ctx, c.SessionID)
	result, err := sess.Checkout.HandleReturn(ctx, url.Values{"success": {"true"}})
	if err != nil {
		return err
	}
	if result.Cleared {
		s.logger.Info("cart cleared by payment confirmation",
			zap.String("session_id", c.SessionID),
			zap.String("payment_session_id", c.PaymentSessionID))
	}
	return nil
}

func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// cleanupLoop periodically evicts idle sessions
func (s *Sessions) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.evictIdle()
		case <-s.stopCleanup:
			return
		}
	}
}

func (s *Sessions) evictIdle() {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		if sess.idleSince(now) < s.idleTTL {
			continue
		}
		// a checkout in flight keeps its session alive
		if sess.Checkout.Status().State == domain.CheckoutStateSubmitting {
			continue
		}
		sess.close()
		delete(s.sessions, id)
		s.logger.Debug("session evicted", zap.String("session_id", id))
	}
}

// Close stops the background cleanup, waits for it to finish and closes live sessions
func (s *Sessions) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.close()
		delete(s.sessions, id)
	}
	return nil
}
