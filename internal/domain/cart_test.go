package domain

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestClampQuantity(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want int
	}{
		{"lower bound", 1, 1},
		{"inside range", 42, 42},
		{"upper bound", 99, 99},
		{"zero", 0, 1},
		{"negative", -3, 1},
		{"above max", 100, 99},
		{"fraction floors", 2.7, 2},
		{"NaN", math.NaN(), 1},
		{"infinity", math.Inf(1), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampQuantity(tt.in))
		})
	}
}

func TestClampQuantity_AllValidValuesKept(t *testing.T) {
	for q := MinQuantity; q <= MaxQuantity; q++ {
		assert.Equal(t, q, ClampQuantity(float64(q)))
	}
}

func TestDerive_TwoLines(t *testing.T) {
	items := []CartItem{
		{ID: "a:1", Price: decimal.RequireFromString("20.00"), Currency: "chf", Quantity: 2},
		{ID: "b:1", Price: decimal.RequireFromString("9.90"), Currency: "chf", Quantity: 1},
	}

	view := Derive(items, "eur")

	assert.Equal(t, 3, view.TotalQuantity)
	assert.True(t, view.Subtotal.Equal(decimal.RequireFromString("49.90")), "subtotal = %s", view.Subtotal)
	assert.Equal(t, "chf", view.Currency)
	assert.Len(t, view.Items, 2)
}

func TestDerive_EmptyCartUsesDefaultCurrency(t *testing.T) {
	view := Derive(nil, "eur")

	assert.True(t, view.IsEmpty())
	assert.Equal(t, 0, view.TotalQuantity)
	assert.True(t, view.Subtotal.IsZero())
	assert.Equal(t, "eur", view.Currency)
}

func TestDerive_DoesNotRoundDuringAccumulation(t *testing.T) {
	items := []CartItem{
		{ID: "a:1", Price: decimal.RequireFromString("0.333"), Currency: "eur", Quantity: 3},
	}

	view := Derive(items, "eur")

	assert.Equal(t, "0.999", view.Subtotal.String())
}

func TestDerive_CopiesItems(t *testing.T) {
	items := []CartItem{{ID: "a:1", Quantity: 1, Currency: "eur"}}
	view := Derive(items, "eur")
	view.Items[0].Quantity = 50

	assert.Equal(t, 1, items[0].Quantity)
}

func TestCanTransitionTo(t *testing.T) {
	assert.True(t, CanTransitionTo(CheckoutStateIdle, CheckoutStateSubmitting))
	assert.True(t, CanTransitionTo(CheckoutStateIdle, CheckoutStateFailed))
	assert.True(t, CanTransitionTo(CheckoutStateSubmitting, CheckoutStateRedirected))
	assert.True(t, CanTransitionTo(CheckoutStateSubmitting, CheckoutStateFreeConfirmed))
	assert.True(t, CanTransitionTo(CheckoutStateFailed, CheckoutStateIdle))
	assert.False(t, CanTransitionTo(CheckoutStateIdle, CheckoutStateRedirected))
	assert.False(t, CanTransitionTo(CheckoutStateRedirected, CheckoutStateSubmitting))
	assert.True(t, CheckoutStateFailed.IsTerminal())
	assert.False(t, CheckoutStateSubmitting.IsTerminal())
}

func TestShippingAddress_Missing(t *testing.T) {
	addr := &ShippingAddress{
		Name:       "  ",
		Email:      "rider@example.com",
		Address:    "Route 1",
		City:       "Lausanne",
		PostalCode: "1000",
		Country:    "CH",
	}
	assert.Equal(t, []string{"name"}, addr.Missing())

	var none *ShippingAddress
	assert.Len(t, none.Missing(), 6)
}
