package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestPricePoint(t *testing.T) {
	policy := PricePoint(DefaultPricePointConfig())

	tests := []struct {
		raw  string
		want string
	}{
		{"0", "19.90"},
		{"3.50", "19.90"},
		{"5", "24.90"},
		{"9.90", "24.90"},
		{"12", "29.90"},
		{"14.90", "29.90"},
		{"14.91", "34.90"},
		{"-4", "19.90"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got := policy(d(tt.raw))
			assert.True(t, got.Equal(d(tt.want)), "raw %s: got %s want %s", tt.raw, got, tt.want)
		})
	}
}

func TestPricePoint_Floor(t *testing.T) {
	cfg := DefaultPricePointConfig()
	cfg.Floor = d("24.90")
	policy := PricePoint(cfg)

	assert.True(t, policy(d("1")).Equal(d("24.90")))
}

func TestStepRounding(t *testing.T) {
	policy := StepRounding(DefaultStepConfig())

	// 12 + 15 = 27 > 4.9, so 4.9 + ceil(22.1 / 5) * 5
	assert.True(t, policy(d("12")).Equal(d("29.90")))
	assert.True(t, policy(d("0")).Equal(d("19.90")))
	assert.True(t, policy(d("4.90")).Equal(d("19.90")))
	assert.True(t, policy(d("4.91")).Equal(d("24.90")))
}

func TestStepRounding_ClampsToThreshold(t *testing.T) {
	policy := StepRounding(StepConfig{
		Margin:    d("1"),
		Threshold: d("4.90"),
		Step:      d("5"),
	})

	assert.True(t, policy(d("2")).Equal(d("4.90")))
	assert.True(t, policy(d("-10")).Equal(d("4.90")))
	assert.True(t, policy(d("3.90")).Equal(d("4.90")))
	assert.True(t, policy(d("3.91")).Equal(d("9.90")))
}

func TestPolicies_MonotonicAndAboveThreshold(t *testing.T) {
	step := DefaultStepConfig()
	policies := map[string]struct {
		policy    Policy
		threshold decimal.Decimal
	}{
		"pricepoint": {PricePoint(DefaultPricePointConfig()), decimal.Zero},
		"step":       {StepRounding(step), step.Threshold},
	}

	for name, p := range policies {
		t.Run(name, func(t *testing.T) {
			prev := decimal.Zero
			for cents := int64(0); cents <= 20000; cents += 7 {
				out := p.policy(decimal.New(cents, -2))
				require.True(t, out.GreaterThanOrEqual(p.threshold), "%s below threshold", out)
				require.True(t, out.GreaterThanOrEqual(prev), "not monotonic at %d: %s < %s", cents, out, prev)
				prev = out
			}
		})
	}
}

func TestStepRounding_OutputsReachableFromThreshold(t *testing.T) {
	cfg := DefaultStepConfig()
	policy := StepRounding(cfg)

	for cents := int64(0); cents <= 10000; cents += 13 {
		out := policy(decimal.New(cents, -2))
		k := out.Sub(cfg.Threshold).Div(cfg.Step)
		assert.True(t, k.Equal(k.Truncate(0)), "%s is not threshold + k*step", out)
	}
}

func TestPolicyByName(t *testing.T) {
	pp, err := PolicyByName("pricepoint", DefaultPricePointConfig(), DefaultStepConfig())
	require.NoError(t, err)
	assert.True(t, pp(d("12")).Equal(d("29.90")))

	st, err := PolicyByName("STEP", DefaultPricePointConfig(), DefaultStepConfig())
	require.NoError(t, err)
	assert.True(t, st(d("12")).Equal(d("29.90")))

	none, err := PolicyByName("", DefaultPricePointConfig(), DefaultStepConfig())
	require.NoError(t, err)
	assert.True(t, none(d("12.34")).Equal(d("12.34")))

	_, err = PolicyByName("percent", DefaultPricePointConfig(), DefaultStepConfig())
	assert.Error(t, err)
}
