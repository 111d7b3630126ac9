package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var displayLanguage = language.French

// French display symbols; other known currencies show their ISO code.
var displaySymbols = map[string]string{
	"EUR": "€",
	"USD": "$US",
	"GBP": "£GB",
}

// Format renders an amount the French way, "1 234,50 €" or "12,50 CHF". Unknown currency
// codes fall back to "12.50 code".
func Format(amount decimal.Decimal, code string) string {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return fmt.Sprintf("%s %s", amount.StringFixed(2), code)
	}

	symbol, ok := displaySymbols[unit.String()]
	if !ok {
		symbol = unit.String()
	}
	p := message.NewPrinter(displayLanguage)
	value := p.Sprint(number.Decimal(amount.Round(2).InexactFloat64(),
		number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	return value + " " + symbol
}
