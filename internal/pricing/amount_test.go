package pricing

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"float", 12.5, "12.5"},
		{"int", 42, "42"},
		{"json number", json.Number("19.90"), "19.9"},
		{"comma decimal", "12,50", "12.5"},
		{"dot decimal", "12.50", "12.5"},
		{"currency prefix", "CHF 29.90", "29.9"},
		{"currency suffix with comma", "29,90 €", "29.9"},
		{"negative", "-3", "-3"},
		{"trailing dot", "12.", "12"},
		{"nested amount", map[string]any{"amount": 7.5}, "7.5"},
		{"nested string value", map[string]any{"value": "8,25"}, "8.25"},
		{"nested twice", map[string]any{"amount": map[string]any{"value": 3}}, "3"},
		{"min fallback", map[string]any{"min": 10}, "10"},
		{"max fallback", map[string]any{"max": 11}, "11"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAmount(tt.in)
			require.True(t, ok)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestParseAmount_Unparseable(t *testing.T) {
	inputs := []any{
		nil,
		"",
		"abc",
		"-",
		"gratuit",
		math.NaN(),
		math.Inf(-1),
		true,
		map[string]any{"currency": "eur"},
		[]any{1, 2},
	}

	for _, in := range inputs {
		_, ok := ParseAmount(in)
		assert.False(t, ok, "input %#v", in)
	}
}

func TestParseAmount_TrailingCommaDecimal(t *testing.T) {
	cases := map[string]string{
		"12,50":  "12.50",
		"0,99":   "0.99",
		"1234,5": "1234.5",
	}

	for in, want := range cases {
		got, ok := ParseAmount(in)
		require.True(t, ok)
		assert.True(t, got.Equal(decimal.RequireFromString(want)), "%s parsed as %s", in, got)
	}
}

func TestFirstAmount_Priority(t *testing.T) {
	rec := Record{
		"defaultPrice": 30,
		"priceAmount":  "25,00",
		"price":        "n/a",
	}

	got, ok := FirstAmount(rec, CartPriceRules)
	require.True(t, ok)
	assert.True(t, got.Equal(decimal.NewFromInt(25)))
}

func TestFirstCurrency_NestedPriceObject(t *testing.T) {
	rec := Record{"price": map[string]any{"amount": 10, "currencyCode": " CHF "}}

	got, ok := FirstCurrency(rec, CurrencyRules)
	require.True(t, ok)
	assert.Equal(t, "CHF", got)
}

func TestString_Identity(t *testing.T) {
	rec := Record{"slug": "  ", "sku": "SKU-1", "variant": map[string]any{"id": 7.0}}

	assert.Equal(t, "SKU-1", String(rec, "id", "productId", "slug", "sku"))
	assert.Equal(t, "7", String(rec, "variant.id"))
	assert.Equal(t, "", String(rec, "handle"))
}
