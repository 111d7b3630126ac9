package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/v1centp/timetobonk-client/internal/domain"
)

type Price struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Normalizer turns heterogeneous catalog records into prices. It holds no mutable state.
type Normalizer struct {
	defaultCurrency string
	policy          Policy
}

func NewNormalizer(defaultCurrency string, policy Policy) *Normalizer {
	if policy == nil {
		policy = Passthrough
	}
	return &Normalizer{
		defaultCurrency: strings.ToLower(strings.TrimSpace(defaultCurrency)),
		policy:          policy,
	}
}

func (n *Normalizer) DefaultCurrency() string {
	return n.defaultCurrency
}

// InferCurrency returns the first currency found in records, in order, else the default.
// The result is trimmed but keeps its original case.
func (n *Normalizer) InferCurrency(records ...Record) string {
	for _, rec := range records {
		if c, ok := FirstCurrency(rec, CurrencyRules); ok {
			return c
		}
	}
	return n.defaultCurrency
}

// Extract reads a cart-style price. The currency is lower-cased for cart storage.
func (n *Normalizer) Extract(rec Record) (Price, bool) {
	currency := strings.ToLower(n.InferCurrency(rec))
	amount, ok := FirstAmount(rec, CartPriceRules)
	if !ok {
		return Price{Amount: decimal.Zero, Currency: currency}, false
	}
	return Price{Amount: amount, Currency: currency}, true
}

// RawPrice reads the supplier cost, preferring the variant's fields over the product's.
func (n *Normalizer) RawPrice(product, variant Record) (Price, bool) {
	currency := n.InferCurrency(variant, product)
	if amount, ok := FirstAmount(variant, VariantCostRules); ok {
		return Price{Amount: amount, Currency: currency}, true
	}
	if amount, ok := FirstAmount(product, ProductCostRules); ok {
		return Price{Amount: amount, Currency: currency}, true
	}
	return Price{}, false
}

// DisplayPrice applies the configured display policy to the supplier cost.
func (n *Normalizer) DisplayPrice(product, variant Record) (Price, bool) {
	raw, ok := n.RawPrice(product, variant)
	if !ok {
		return Price{}, false
	}
	return Price{Amount: n.policy(raw.Amount), Currency: raw.Currency}, true
}

// ListingPrice is the price shown on catalog cards. A product carrying its own price object
// is trusted as already rounded; otherwise the display policy is applied to the raw cost.
// from reports a "starting at" price.
func (n *Normalizer) ListingPrice(product, variant Record) (price Price, from bool, ok bool) {
	if product != nil {
		if priceValue, present := product["price"]; present && priceValue != nil {
			var amount decimal.Decimal
			found := false
			if priceObj, isObj := priceValue.(map[string]any); isObj {
				amount, found = FirstAmount(priceObj, ListingPriceRules)
				if !found {
					amount, found = ParseAmount(priceObj)
				}
				if found {
					from, _ = priceObj["from"].(bool)
					return Price{Amount: amount, Currency: n.InferCurrency(priceObj, product)}, from, true
				}
			} else if amount, found = ParseAmount(priceValue); found {
				return Price{Amount: amount, Currency: n.InferCurrency(product)}, false, true
			}
		}
	}

	withoutPrice := make(Record, len(product))
	for k, v := range product {
		if k != "price" {
			withoutPrice[k] = v
		}
	}
	price, ok = n.DisplayPrice(withoutPrice, variant)
	return price, false, ok
}

// Quote normalizes a price-lookup payload (or a bare amount) into a PriceQuote.
func (n *Normalizer) Quote(source any, fallbackCurrency string) (domain.PriceQuote, bool) {
	if fallbackCurrency == "" {
		fallbackCurrency = n.defaultCurrency
	}

	rec, isRecord := source.(map[string]any)
	if !isRecord {
		amount, ok := ParseAmount(source)
		if !ok {
			return domain.PriceQuote{}, false
		}
		return domain.PriceQuote{Amount: amount, Currency: fallbackCurrency}, true
	}

	amount, ok := FirstAmount(rec, QuoteAmountRules)
	if !ok {
		return domain.PriceQuote{}, false
	}

	quote := domain.PriceQuote{Amount: amount, Currency: fallbackCurrency}
	if c, ok := FirstCurrency(rec, CurrencyRules); ok {
		quote.Currency = c
	}
	if q, ok := FirstAmount(rec, QuoteQuantityRules); ok && q.IsPositive() {
		qty := int(q.IntPart())
		if qty > 0 {
			quote.Quantity = &qty
		}
	}
	if total, ok := FirstAmount(rec, QuoteTotalRules); ok {
		quote.Total = &total
	}
	return quote, true
}
