package pricing

import (
	"encoding/json"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Record is an upstream product, variant or price object of unknown shape, as decoded from JSON.
type Record = map[string]any

var (
	nonNumeric    = regexp.MustCompile(`[^0-9,.\-]`)
	leadingNumber = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)
)

// ParseAmount extracts a finite amount from a number, a numeric string or a nested
// {amount}/{value}/{min}/{max} object. In strings the last comma is read as the decimal separator.
func ParseAmount(v any) (decimal.Decimal, bool) {
	switch val := v.(type) {
	case nil:
		return decimal.Zero, false
	case decimal.Decimal:
		return val, true
	case *decimal.Decimal:
		if val == nil {
			return decimal.Zero, false
		}
		return *val, true
	case float64:
		return fromFloat(val)
	case float32:
		return fromFloat(float64(val))
	case int:
		return decimal.NewFromInt(int64(val)), true
	case int32:
		return decimal.NewFromInt(int64(val)), true
	case int64:
		return decimal.NewFromInt(val), true
	case uint:
		return decimal.NewFromUint64(uint64(val)), true
	case uint32:
		return decimal.NewFromInt(int64(val)), true
	case uint64:
		return decimal.NewFromUint64(val), true
	case json.Number:
		d, err := decimal.NewFromString(val.String())
		return d, err == nil
	case string:
		return parseAmountString(val)
	case map[string]any:
		for _, key := range []string{"amount", "value", "min", "max"} {
			if nested, ok := val[key]; ok {
				if d, ok := ParseAmount(nested); ok {
					return d, true
				}
			}
		}
	}
	return decimal.Zero, false
}

func fromFloat(f float64) (decimal.Decimal, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

func parseAmountString(s string) (decimal.Decimal, bool) {
	sanitized := nonNumeric.ReplaceAllString(s, "")
	if i := strings.LastIndex(sanitized, ","); i >= 0 {
		sanitized = sanitized[:i] + "." + sanitized[i+1:]
	}
	match := leadingNumber.FindString(sanitized)
	match = strings.TrimSuffix(match, ".")
	if match == "" || match == "-" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(match)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// AmountRule extracts an amount from one known record shape.
type AmountRule func(Record) (decimal.Decimal, bool)

// CurrencyRule extracts a currency code from one known record shape.
type CurrencyRule func(Record) (string, bool)

// Field reads the amount at a nested path, e.g. Field("raw", "unitAmount").
func Field(path ...string) AmountRule {
	return func(rec Record) (decimal.Decimal, bool) {
		v, ok := lookup(rec, path)
		if !ok {
			return decimal.Zero, false
		}
		return ParseAmount(v)
	}
}

// CurrencyField reads a non-blank string at a nested path.
func CurrencyField(path ...string) CurrencyRule {
	return func(rec Record) (string, bool) {
		v, ok := lookup(rec, path)
		if !ok {
			return "", false
		}
		s, ok := v.(string)
		if !ok {
			return "", false
		}
		s = strings.TrimSpace(s)
		return s, s != ""
	}
}

// FirstAmount evaluates rules in order and returns the first match.
func FirstAmount(rec Record, rules []AmountRule) (decimal.Decimal, bool) {
	if rec == nil {
		return decimal.Zero, false
	}
	for _, rule := range rules {
		if d, ok := rule(rec); ok {
			return d, true
		}
	}
	return decimal.Zero, false
}

func FirstCurrency(rec Record, rules []CurrencyRule) (string, bool) {
	if rec == nil {
		return "", false
	}
	for _, rule := range rules {
		if c, ok := rule(rec); ok {
			return c, true
		}
	}
	return "", false
}

func lookup(rec Record, path []string) (any, bool) {
	var cur any = rec
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[key]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// String returns the first non-blank string at any of the given top-level keys.
func String(rec Record, keys ...string) string {
	for _, key := range keys {
		v, ok := lookup(rec, strings.Split(key, "."))
		if !ok {
			continue
		}
		switch s := v.(type) {
		case string:
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		case json.Number:
			return s.String()
		case float64:
			if !math.IsNaN(s) && !math.IsInf(s, 0) {
				return decimal.NewFromFloat(s).String()
			}
		case int:
			return decimal.NewFromInt(int64(s)).String()
		case int64:
			return decimal.NewFromInt(s).String()
		}
	}
	return ""
}
