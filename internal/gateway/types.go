package gateway

import (
	"encoding/json"

	"github.com/v1centp/timetobonk-client/internal/domain"
)

// SessionItem is one line of a payment-session request. UnitAmount is in major units.
type SessionItem struct {
	ProductUID string      `json:"productUid,omitempty"`
	Title      string      `json:"title"`
	Image      string      `json:"image,omitempty"`
	Quantity   int         `json:"quantity"`
	UnitAmount json.Number `json:"unitAmount"`
	Currency   string      `json:"currency"`
}

type SessionRequest struct {
	Items      []SessionItem           `json:"items"`
	Currency   string                  `json:"currency"`
	PromoCode  string                  `json:"promoCode,omitempty"`
	Shipping   *domain.ShippingAddress `json:"shipping,omitempty"`
	SuccessURL string                  `json:"successUrl"`
	CancelURL  string                  `json:"cancelUrl"`
}

type SessionResponse struct {
	ID   string `json:"id,omitempty"`
	URL  string `json:"url,omitempty"`
	Free bool   `json:"free,omitempty"`
}

type PromoRequest struct {
	Code string `json:"code"`
}

type PromoResponse struct {
	Valid    bool                  `json:"valid"`
	Discount *domain.PromoDiscount `json:"discount,omitempty"`
}
