package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	MinQuantity = 1
	MaxQuantity = 99
)

// CartItem is one cart line. ID is the composite product:variant key.
type CartItem struct {
	ID            string          `json:"id"`
	ProductID     string          `json:"productId"`
	VariantID     string          `json:"variantId"`
	Title         string          `json:"title"`
	ProductTitle  string          `json:"productTitle,omitempty"`
	VariantTitle  string          `json:"variantTitle,omitempty"`
	VariantSKU    string          `json:"variantSku,omitempty"`
	ProductUID    string          `json:"productUid,omitempty"`
	Image         string          `json:"image,omitempty"`
	ImageOriginal *string         `json:"imageOriginal"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	Quantity      int             `json:"quantity"`
}

// LineTotal is the unrounded unit price times quantity.
func (i CartItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CartView is the derived read model of a cart. It is recomputed from the items on every change.
type CartView struct {
	Items         []CartItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TotalQuantity int             `json:"totalQuantity"`
	Currency      string          `json:"currency"`
}

func (v CartView) IsEmpty() bool {
	return len(v.Items) == 0
}

// Derive computes totals from items. The currency is the first item's, or defaultCurrency for an empty cart.
func Derive(items []CartItem, defaultCurrency string) CartView {
	view := CartView{
		Items:    make([]CartItem, len(items)),
		Subtotal: decimal.Zero,
		Currency: defaultCurrency,
	}
	copy(view.Items, items)

	for _, item := range items {
		view.Subtotal = view.Subtotal.Add(item.LineTotal())
		view.TotalQuantity += item.Quantity
	}
	if len(items) > 0 && items[0].Currency != "" {
		view.Currency = items[0].Currency
	}
	return view
}

func CompositeKey(productID, variantID string) string {
	return productID + ":" + variantID
}

// ClampQuantity coerces any requested quantity into [MinQuantity, MaxQuantity].
// Non-finite and non-positive input becomes MinQuantity.
func ClampQuantity(q float64) int {
	if math.IsNaN(q) || math.IsInf(q, 0) || q < MinQuantity {
		return MinQuantity
	}
	q = math.Floor(q)
	if q > MaxQuantity {
		return MaxQuantity
	}
	return int(q)
}
