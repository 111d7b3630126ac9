package domain

import "github.com/shopspring/decimal"

// PriceQuote is an ephemeral price for one product view. It is never persisted.
type PriceQuote struct {
	Amount   decimal.Decimal  `json:"amount"`
	Currency string           `json:"currency"`
	Quantity *int             `json:"quantity,omitempty"`
	Total    *decimal.Decimal `json:"total,omitempty"`
}
