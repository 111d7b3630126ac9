package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Policy derives the customer-facing price from a raw supplier cost.
// Implementations are pure, deterministic and monotonic.
type Policy func(raw decimal.Decimal) decimal.Decimal

const (
	PolicyPricePoint = "pricepoint"
	PolicyStep       = "step"
)

var hundred = decimal.NewFromInt(100)

// Passthrough shows the raw cost unchanged (negative costs become zero).
func Passthrough(raw decimal.Decimal) decimal.Decimal {
	return nonNegative(raw)
}

type PricePointConfig struct {
	MarginMinor  int64
	BracketMinor int64
	Endings      []int64
	Floor        decimal.Decimal
}

func DefaultPricePointConfig() PricePointConfig {
	return PricePointConfig{
		MarginMinor:  1500,
		BracketMinor: 1000,
		Endings:      []int64{490, 990},
	}
}

// PricePoint adds a margin in minor units and rounds up to the nearest canonical ending
// (e.g. x4.90 / x9.90) in the current or next bracket.
func PricePoint(cfg PricePointConfig) Policy {
	endings := append([]int64(nil), cfg.Endings...)
	sort.Slice(endings, func(i, j int) bool { return endings[i] < endings[j] })
	if len(endings) == 0 {
		endings = []int64{0}
	}
	bracket := cfg.BracketMinor
	if bracket <= 0 {
		bracket = 1000
	}

	return func(raw decimal.Decimal) decimal.Decimal {
		minor := nonNegative(raw).Mul(hundred).Round(0).IntPart()
		increased := minor + cfg.MarginMinor
		base := (increased / bracket) * bracket

		adjusted := base + bracket + endings[len(endings)-1]
		for _, b := range []int64{base, base + bracket} {
			found := false
			for _, e := range endings {
				if b+e >= increased {
					adjusted = b + e
					found = true
					break
				}
			}
			if found {
				break
			}
		}

		result := decimal.New(adjusted, -2)
		if result.LessThan(cfg.Floor) {
			return cfg.Floor
		}
		return result
	}
}

type StepConfig struct {
	Margin    decimal.Decimal
	Threshold decimal.Decimal
	Step      decimal.Decimal
}

func DefaultStepConfig() StepConfig {
	return StepConfig{
		Margin:    decimal.NewFromInt(15),
		Threshold: decimal.RequireFromString("4.90"),
		Step:      decimal.NewFromInt(5),
	}
}

// StepRounding adds a margin, clamps to the threshold and otherwise rounds up to the
// next threshold + k*step.
func StepRounding(cfg StepConfig) Policy {
	step := cfg.Step
	if !step.IsPositive() {
		step = decimal.NewFromInt(1)
	}

	return func(raw decimal.Decimal) decimal.Decimal {
		o := nonNegative(raw).Add(cfg.Margin)
		if o.LessThanOrEqual(cfg.Threshold) {
			return cfg.Threshold
		}
		steps := o.Sub(cfg.Threshold).Div(step).Ceil()
		return cfg.Threshold.Add(steps.Mul(step))
	}
}

// PolicyByName selects the display policy named by deployment configuration.
// An empty name selects Passthrough.
func PolicyByName(name string, pp PricePointConfig, st StepConfig) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case PolicyPricePoint:
		return PricePoint(pp), nil
	case PolicyStep:
		return StepRounding(st), nil
	case "", "none":
		return Passthrough, nil
	default:
		return nil, fmt.Errorf("unknown pricing policy %q", name)
	}
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
