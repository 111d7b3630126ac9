package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/events"
	"github.com/v1centp/timetobonk-client/internal/gateway"
	"go.uber.org/zap"
)

// Cart is the part of the cart store the orchestrator reads and clears.
type Cart interface {
	Cart() domain.CartView
	ClearCart(ctx context.Context) error
}

// AttemptStore keeps the latest checkout attempt across session reloads.
type AttemptStore interface {
	LoadAttempt(ctx context.Context) (domain.CheckoutAttempt, bool)
	SaveAttempt(ctx context.Context, attempt domain.CheckoutAttempt) error
}

type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req gateway.SessionRequest) (*gateway.SessionResponse, error)
}

// Redirector resolves a payment session id to its hosted checkout page.
type Redirector interface {
	RedirectToCheckout(ctx context.Context, sessionID string) (string, error)
}

type Config struct {
	StorefrontOrigin string
	CheckoutPath     string
}

type Input struct {
	Promo    *domain.PromoDiscount
	Shipping *domain.ShippingAddress
}

// Outcome is the result of one submission. Message is set whenever Err is.
type Outcome struct {
	State       domain.CheckoutState `json:"state"`
	RedirectURL string               `json:"redirectUrl,omitempty"`
	SessionID   string               `json:"sessionId,omitempty"`
	Message     string               `json:"error,omitempty"`
	Err         error                `json:"-"`
}

type Status struct {
	State     domain.CheckoutState `json:"state"`
	LastError string               `json:"lastError,omitempty"`
	AttemptID string               `json:"attemptId,omitempty"`
}

type ReturnResult struct {
	Success  bool `json:"success"`
	Canceled bool `json:"canceled"`
	Cleared  bool `json:"cleared"`
}

// Orchestrator drives the checkout of one storefront session.
type Orchestrator struct {
	sessionID  string
	cart       Cart
	sessions   SessionCreator
	redirector Redirector
	publisher  events.Publisher
	attempts   AttemptStore
	cfg        Config
	logger     *zap.Logger

	mu             sync.Mutex
	state          domain.CheckoutState
	lastError      string
	attemptID      string
	returnHandled  bool
	publishTimeout time.Duration
}

func NewOrchestrator(
	sessionID string,
	cart Cart,
	sessions SessionCreator,
	redirector Redirector,
	publisher events.Publisher,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Orchestrator{
		sessionID:      sessionID,
		cart:           cart,
		sessions:       sessions,
		redirector:     redirector,
		publisher:      publisher,
		cfg:            cfg,
		logger:         logger.With(zap.String("session_id", sessionID)),
		state:          domain.CheckoutStateIdle,
		publishTimeout: 5 * time.Second,
	}
}

// Restore loads the last attempt from store and saves every later attempt to it.
func (o *Orchestrator) Restore(ctx context.Context, store AttemptStore) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.attempts = store
	if attempt, ok := store.LoadAttempt(ctx); ok {
		o.attemptID = attempt.ID
		o.returnHandled = attempt.ReturnHandled
	}
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Status{State: o.state, LastError: o.lastError, AttemptID: o.attemptID}
}

// Submit validates the cart and input, creates a payment session and resolves where to send the shopper.
// Validation failures make no network call.
func (o *Orchestrator) Submit(ctx context.Context, in Input) Outcome {
	o.mu.Lock()
	if o.state == domain.CheckoutStateSubmitting {
		o.mu.Unlock()
		return Outcome{State: domain.CheckoutStateSubmitting, Err: ErrCheckoutInProgress, Message: "A checkout is already in progress."}
	}
	if o.state.IsTerminal() {
		o.state = domain.CheckoutStateIdle
	}

	view := o.cart.Cart()
	if view.IsEmpty() {
		o.lastError = msgEmptyCart
		o.mu.Unlock()
		return Outcome{State: domain.CheckoutStateIdle, Err: ErrEmptyCart, Message: msgEmptyCart}
	}

	if in.Promo != nil && in.Promo.IsFree() {
		if missing := in.Shipping.Missing(); len(missing) > 0 {
			msg := msgShipping + strings.Join(missing, ", ") + "."
			o.failLocked(msg)
			o.mu.Unlock()
			return Outcome{
				State:   domain.CheckoutStateFailed,
				Err:     fmt.Errorf("%w: missing %s", ErrShippingIncomplete, strings.Join(missing, ", ")),
				Message: msg,
			}
		}
	}

	if err := o.transitionLocked(domain.CheckoutStateSubmitting); err != nil {
		o.mu.Unlock()
		return Outcome{State: o.state, Err: err, Message: msgCreateFailed}
	}
	o.attemptID = uuid.NewString()
	o.lastError = ""
	o.returnHandled = false
	o.saveAttemptLocked(ctx)
	attemptID := o.attemptID
	o.mu.Unlock()

	logger := o.logger.With(zap.String("attempt_id", attemptID))
	logger.Info("submitting checkout",
		zap.Int("items", len(view.Items)),
		zap.String("subtotal", view.Subtotal.String()),
		zap.String("currency", view.Currency))

	outcome := o.submit(ctx, view, in)
	if outcome.Err != nil {
		logger.Warn("checkout failed", zap.Error(outcome.Err))
	} else {
		logger.Info("checkout resolved", zap.String("state", outcome.State.String()))
	}

	o.mu.Lock()
	if outcome.Err != nil {
		o.failLocked(outcome.Message)
	} else if err := o.transitionLocked(outcome.State); err != nil {
		logger.Error("unexpected checkout transition", zap.Error(err))
	}
	o.mu.Unlock()

	o.publish(ctx, attemptID, view, in, outcome)
	return outcome
}

func (o *Orchestrator) submit(ctx context.Context, view domain.CartView, in Input) Outcome {
	resp, err := o.sessions.CreateCheckoutSession(ctx, o.buildRequest(view, in))
	if err != nil {
		return failed(err, gateway.UserMessage(err, msgCreateFailed))
	}

	if resp.URL != "" {
		state := domain.CheckoutStateRedirected
		if resp.Free {
			state = domain.CheckoutStateFreeConfirmed
		}
		return Outcome{State: state, RedirectURL: resp.URL, SessionID: resp.ID}
	}

	if resp.ID == "" {
		return failed(ErrNoRedirectTarget, msgCreateFailed)
	}

	target, err := o.redirector.RedirectToCheckout(ctx, resp.ID)
	if err != nil {
		return failed(fmt.Errorf("redirect to checkout: %w", err), gateway.UserMessage(err, msgRedirectFailed))
	}
	return Outcome{State: domain.CheckoutStateRedirected, RedirectURL: target, SessionID: resp.ID}
}

func failed(err error, msg string) Outcome {
	return Outcome{State: domain.CheckoutStateFailed, Err: err, Message: msg}
}

func (o *Orchestrator) buildRequest(view domain.CartView, in Input) gateway.SessionRequest {
	req := gateway.SessionRequest{
		Items:      make([]gateway.SessionItem, 0, len(view.Items)),
		Currency:   view.Currency,
		Shipping:   in.Shipping,
		SuccessURL: o.callbackURL("success"),
		CancelURL:  o.callbackURL("canceled"),
	}
	for _, item := range view.Items {
		req.Items = append(req.Items, gateway.SessionItem{
			ProductUID: item.ProductUID,
			Title:      item.Title,
			Image:      item.Image,
			Quantity:   item.Quantity,
			UnitAmount: json.Number(item.Price.String()),
			Currency:   item.Currency,
		})
	}
	if in.Promo != nil {
		req.PromoCode = in.Promo.Code
	}
	return req
}

func (o *Orchestrator) callbackURL(marker string) string {
	q := url.Values{}
	q.Set(marker, "true")
	return strings.TrimRight(o.cfg.StorefrontOrigin, "/") + o.cfg.CheckoutPath + "?" + q.Encode()
}

// HandleReturn processes the shopper coming back from the hosted checkout. A success marker
// clears the cart once per checkout attempt; later calls only report.
func (o *Orchestrator) HandleReturn(ctx context.Context, query url.Values) (ReturnResult, error) {
	result := ReturnResult{
		Success:  query.Get("success") != "",
		Canceled: query.Get("canceled") != "",
	}
	if !result.Success {
		if result.Canceled {
			o.logger.Info("checkout canceled by shopper")
			o.mu.Lock()
			if o.state.IsTerminal() {
				o.state = domain.CheckoutStateIdle
			}
			o.mu.Unlock()
		}
		return result, nil
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.returnHandled {
		return result, nil
	}
	if err := o.cart.ClearCart(ctx); err != nil {
		return result, fmt.Errorf("clear cart after payment: %w", err)
	}
	o.returnHandled = true
	o.saveAttemptLocked(ctx)
	result.Cleared = true
	if o.state.IsTerminal() {
		o.state = domain.CheckoutStateIdle
	}
	o.logger.Info("cart cleared after confirmed payment", zap.String("attempt_id", o.attemptID))
	return result, nil
}

func (o *Orchestrator) saveAttemptLocked(ctx context.Context) {
	if o.attempts == nil || o.attemptID == "" {
		return
	}
	attempt := domain.CheckoutAttempt{ID: o.attemptID, ReturnHandled: o.returnHandled}
	if err := o.attempts.SaveAttempt(ctx, attempt); err != nil {
		o.logger.Warn("checkout attempt not saved", zap.String("attempt_id", o.attemptID), zap.Error(err))
	}
}

// failLocked records msg and returns the machine to idle through FAILED.
func (o *Orchestrator) failLocked(msg string) {
	if err := o.transitionLocked(domain.CheckoutStateFailed); err != nil {
		o.logger.Error("unexpected checkout transition", zap.Error(err))
	}
	o.lastError = msg
	o.state = domain.CheckoutStateIdle
}

func (o *Orchestrator) transitionLocked(to domain.CheckoutState) error {
	if !domain.CanTransitionTo(o.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.state, to)
	}
	o.state = to
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, attemptID string, view domain.CartView, in Input, outcome Outcome) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.publishTimeout)
	defer cancel()

	event := events.Outcome{
		AttemptID:        attemptID,
		SessionID:        o.sessionID,
		State:            outcome.State,
		PaymentSessionID: outcome.SessionID,
		Subtotal:         view.Subtotal.String(),
		Currency:         view.Currency,
		ItemCount:        view.TotalQuantity,
		Error:            outcome.Message,
		OccurredAt:       time.Now().UTC(),
	}
	if in.Promo != nil {
		event.PromoCode = in.Promo.Code
	}
	if err := o.publisher.Publish(ctx, event); err != nil && !errors.Is(err, context.Canceled) {
		o.logger.Warn("failed to publish checkout outcome", zap.Error(err))
	}
}
