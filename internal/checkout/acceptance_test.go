package checkout_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/cucumber/godog"
	"github.com/shopspring/decimal"
	"github.com/v1centp/timetobonk-client/internal/checkout"
	"github.com/v1centp/timetobonk-client/internal/domain"
	"github.com/v1centp/timetobonk-client/internal/events"
	"github.com/v1centp/timetobonk-client/internal/gateway"
	"github.com/v1centp/timetobonk-client/internal/persistence"
	"github.com/v1centp/timetobonk-client/internal/pricing"
	"github.com/v1centp/timetobonk-client/internal/service"
	"github.com/v1centp/timetobonk-client/internal/storage"
	"go.uber.org/zap"
)

type recordingPayments struct {
	mu    sync.Mutex
	calls int
	resp  *gateway.SessionResponse
}

func (p *recordingPayments) CreateCheckoutSession(context.Context, gateway.SessionRequest) (*gateway.SessionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.resp, nil
}

type recordingRedirector struct {
	requested []string
	reject    bool
}

func (r *recordingRedirector) RedirectToCheckout(_ context.Context, sessionID string) (string, error) {
	r.requested = append(r.requested, sessionID)
	if r.reject {
		return "", errors.New("redirect rejected")
	}
	return "https://checkout.example.com/pay/" + sessionID, nil
}

// countingCart counts ClearCart calls on the real cart store.
type countingCart struct {
	*service.CartService
	clears int
}

func (c *countingCart) ClearCart(ctx context.Context) error {
	c.clears++
	return c.CartService.ClearCart(ctx)
}

type checkoutFeature struct {
	cart       *countingCart
	payments   *recordingPayments
	redirector *recordingRedirector
	orch       *checkout.Orchestrator
	promo      *domain.PromoDiscount
	shipping   *domain.ShippingAddress
	outcome    checkout.Outcome
}

func (f *checkoutFeature) anEmptyCartIn(currency string) error {
	normalizer := pricing.NewNormalizer(currency, nil)
	adapter := persistence.NewAdapter(storage.NewMemorySlot(), "feature", currency, zap.NewNop())
	f.cart = &countingCart{CartService: service.NewCartService(context.Background(), adapter, normalizer, zap.NewNop())}
	f.payments = &recordingPayments{resp: &gateway.SessionResponse{URL: "https://checkout.example.com/pay/default"}}
	f.redirector = &recordingRedirector{}
	f.orch = checkout.NewOrchestrator("feature", f.cart, f.payments, f.redirector, events.NopPublisher{},
		checkout.Config{StorefrontOrigin: "https://shop.example.com", CheckoutPath: "/checkout"}, zap.NewNop())
	f.promo = nil
	f.shipping = nil
	f.outcome = checkout.Outcome{}
	return nil
}

func productID(title string) string {
	return strings.ToLower(strings.ReplaceAll(title, " ", "-"))
}

func (f *checkoutFeature) iAddPricedWithQuantity(title, price string, quantity int) error {
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return err
	}
	return f.cart.AddItem(context.Background(), pricing.Record{
		"id":    productID(title),
		"title": title,
		"price": amount,
	}, float64(quantity))
}

func (f *checkoutFeature) iSetTheQuantityOfTo(title, requested string) error {
	q, err := strconv.ParseFloat(requested, 64)
	if err != nil {
		return err
	}
	id := domain.CompositeKey(productID(title), productID(title))
	return f.cart.UpdateQuantity(context.Background(), id, q)
}

func (f *checkoutFeature) theQuantityOfIs(title string, want int) error {
	id := domain.CompositeKey(productID(title), productID(title))
	for _, item := range f.cart.Cart().Items {
		if item.ID == id {
			if item.Quantity != want {
				return fmt.Errorf("expected quantity %d, got %d", want, item.Quantity)
			}
			return nil
		}
	}
	return fmt.Errorf("no line for %q", title)
}

func (f *checkoutFeature) theCartHasItemsInTotal(want int) error {
	if got := f.cart.Cart().TotalQuantity; got != want {
		return fmt.Errorf("expected %d items in total, got %d", want, got)
	}
	return nil
}

func (f *checkoutFeature) theCartHasLines(want int) error {
	if got := len(f.cart.Cart().Items); got != want {
		return fmt.Errorf("expected %d lines, got %d", want, got)
	}
	return nil
}

func (f *checkoutFeature) theSubtotalIs(want string) error {
	expected := decimal.RequireFromString(want)
	if got := f.cart.Cart().Subtotal; !got.Equal(expected) {
		return fmt.Errorf("expected subtotal %s, got %s", expected, got)
	}
	return nil
}

func (f *checkoutFeature) theCartCurrencyIs(want string) error {
	if got := f.cart.Cart().Currency; got != want {
		return fmt.Errorf("expected currency %q, got %q", want, got)
	}
	return nil
}

func (f *checkoutFeature) thePromoGrantsPercent(code string, value int) error {
	f.promo = &domain.PromoDiscount{Code: code, Value: value}
	return nil
}

func (f *checkoutFeature) shippingDetailsWithoutAName() error {
	f.shipping = &domain.ShippingAddress{
		Email:      "rider@example.com",
		Address:    "Route du Col 1",
		City:       "Martigny",
		PostalCode: "1920",
		Country:    "CH",
	}
	return nil
}

func (f *checkoutFeature) thePaymentServiceAnswersWithSessionIDOnly(id string) error {
	f.payments.resp = &gateway.SessionResponse{ID: id}
	return nil
}

func (f *checkoutFeature) thePaymentServiceAnswersWithURL(u string) error {
	f.payments.resp = &gateway.SessionResponse{URL: u}
	return nil
}

func (f *checkoutFeature) theRedirectIsRejected() error {
	f.redirector.reject = true
	return nil
}

func (f *checkoutFeature) iSubmitTheCheckout() error {
	f.outcome = f.orch.Submit(context.Background(), checkout.Input{Promo: f.promo, Shipping: f.shipping})
	return nil
}

func (f *checkoutFeature) theShopperReturnsWith(query string) error {
	values, err := url.ParseQuery(query)
	if err != nil {
		return err
	}
	_, err = f.orch.HandleReturn(context.Background(), values)
	return err
}

func (f *checkoutFeature) noPaymentSessionWasRequested() error {
	if f.payments.calls != 0 {
		return fmt.Errorf("expected no payment session request, got %d", f.payments.calls)
	}
	return nil
}

func (f *checkoutFeature) theCheckoutStateIs(want string) error {
	if got := f.orch.Status().State; string(got) != want {
		return fmt.Errorf("expected state %s, got %s", want, got)
	}
	return nil
}

func (f *checkoutFeature) theCheckoutErrorIs(want string) error {
	if got := f.orch.Status().LastError; got != want {
		return fmt.Errorf("expected error %q, got %q", want, got)
	}
	return nil
}

func (f *checkoutFeature) theCheckoutErrorMentions(part string) error {
	if got := f.orch.Status().LastError; !strings.Contains(got, part) {
		return fmt.Errorf("expected error mentioning %q, got %q", part, got)
	}
	return nil
}

func (f *checkoutFeature) theRedirectWasRequestedFor(id string) error {
	if len(f.redirector.requested) != 1 || f.redirector.requested[0] != id {
		return fmt.Errorf("expected one redirect for %q, got %v", id, f.redirector.requested)
	}
	return nil
}

func (f *checkoutFeature) theShopperIsSentTo(want string) error {
	if f.outcome.RedirectURL != want {
		return fmt.Errorf("expected redirect to %q, got %q", want, f.outcome.RedirectURL)
	}
	return nil
}

func (f *checkoutFeature) theCartWasClearedTimes(want int) error {
	if f.cart.clears != want {
		return fmt.Errorf("expected %d clears, got %d", want, f.cart.clears)
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	f := &checkoutFeature{}

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if f.cart != nil {
			f.cart.Close()
		}
		return ctx, nil
	})

	// Given steps
	ctx.Step(`^an empty cart in "([^"]*)"$`, f.anEmptyCartIn)
	ctx.Step(`^I add "([^"]*)" priced ([0-9.]+) with quantity (\d+)$`, f.iAddPricedWithQuantity)
	ctx.Step(`^the promo "([^"]*)" grants (\d+) percent$`, f.thePromoGrantsPercent)
	ctx.Step(`^shipping details without a name$`, f.shippingDetailsWithoutAName)
	ctx.Step(`^the payment service answers with session id "([^"]*)" only$`, f.thePaymentServiceAnswersWithSessionIDOnly)
	ctx.Step(`^the payment service answers with url "([^"]*)"$`, f.thePaymentServiceAnswersWithURL)
	ctx.Step(`^the redirect is rejected$`, f.theRedirectIsRejected)

	// When steps
	ctx.Step(`^I set the quantity of "([^"]*)" to "([^"]*)"$`, f.iSetTheQuantityOfTo)
	ctx.Step(`^I submit the checkout$`, f.iSubmitTheCheckout)
	ctx.Step(`^the shopper returns with "([^"]*)"$`, f.theShopperReturnsWith)

	// Then steps
	ctx.Step(`^the cart has (\d+) items in total$`, f.theCartHasItemsInTotal)
	ctx.Step(`^the cart has (\d+) lines?$`, f.theCartHasLines)
	ctx.Step(`^the subtotal is ([0-9.]+)$`, f.theSubtotalIs)
	ctx.Step(`^the cart currency is "([^"]*)"$`, f.theCartCurrencyIs)
	ctx.Step(`^the quantity of "([^"]*)" is (\d+)$`, f.theQuantityOfIs)
	ctx.Step(`^no payment session was requested$`, f.noPaymentSessionWasRequested)
	ctx.Step(`^the checkout state is "([^"]*)"$`, f.theCheckoutStateIs)
	ctx.Step(`^the checkout error is "([^"]*)"$`, f.theCheckoutErrorIs)
	ctx.Step(`^the checkout error mentions "([^"]*)"$`, f.theCheckoutErrorMentions)
	ctx.Step(`^the redirect was requested for "([^"]*)"$`, f.theRedirectWasRequestedFor)
	ctx.Step(`^the shopper is sent to "([^"]*)"$`, f.theShopperIsSentTo)
	ctx.Step(`^the cart was cleared (\d+) times?$`, f.theCartWasClearedTimes)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
