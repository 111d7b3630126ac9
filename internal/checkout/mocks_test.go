package checkout

import (
	"context"
	"sync"

	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/events"
	"github.com/v1centp/timetobonk-client/internal/gateway"
)

type MockCart struct {
	mu       sync.Mutex
	View     domain.CartView
	Clears   int
	ClearErr error
}

func (m *MockCart) Cart() domain.CartView {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.View
}

func (m *MockCart) ClearCart(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearErr != nil {
		return m.ClearErr
	}
	m.Clears++
	m.View = domain.Derive(nil, m.View.Currency)
	return nil
}

type MockSessions struct {
	Requests []gateway.SessionRequest
	Resp     *gateway.SessionResponse
	Err      error
	// Block, when set, is waited on before answering.
	Block chan struct{}
	// Entered is signalled when a request arrives.
	Entered chan struct{}
}

func (m *MockSessions) CreateCheckoutSession(_ context.Context, req gateway.SessionRequest) (*gateway.SessionResponse, error) {
	m.Requests = append(m.Requests, req)
	if m.Entered != nil {
		m.Entered <- struct{}{}
	}
	if m.Block != nil {
		<-m.Block
	}
	return m.Resp, m.Err
}

type MockRedirector struct {
	IDs []string
	URL string
	Err error
}

func (m *MockRedirector) RedirectToCheckout(_ context.Context, sessionID string) (string, error) {
	m.IDs = append(m.IDs, sessionID)
	return m.URL, m.Err
}

type MockPublisher struct {
	mu       sync.Mutex
	Outcomes []events.Outcome
	Err      error
}

func (m *MockPublisher) Publish(_ context.Context, outcome events.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes = append(m.Outcomes, outcome)
	return m.Err
}

type MockAttempts struct {
	mu     sync.Mutex
	Stored *domain.CheckoutAttempt
	Saves  []domain.CheckoutAttempt
	Err    error
}

func (m *MockAttempts) LoadAttempt(context.Context) (domain.CheckoutAttempt, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Stored == nil {
		return domain.CheckoutAttempt{}, false
	}
	return *m.Stored, true
}

func (m *MockAttempts) SaveAttempt(_ context.Context, attempt domain.CheckoutAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saves = append(m.Saves, attempt)
	if m.Err != nil {
		return m.Err
	}
	m.Stored = &attempt
	return nil
}
