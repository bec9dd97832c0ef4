package price

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/udisondev/shopkeeper/internal/model"
)

func testRules() Rules {
	return Rules{
		Bounds:           Bounds{Min: 1, Max: 1000},
		MaxChangePercent: 50,
		Currencies: map[string]Bounds{
			"gems": {Min: 5, Max: 50},
		},
		Worlds: map[string]Bounds{
			"creative": {Min: 0, Max: 0},
		},
	}
}

func TestLimiter_Evaluate(t *testing.T) {
	l := NewLimiter(testRules())

	tests := []struct {
		name     string
		price    float64
		currency string
		world    string
		want     Verdict
	}{
		{"within bounds", 10, "", "world", Allowed},
		{"at min", 1, "", "world", Allowed},
		{"at max", 1000, "", "world", Allowed},
		{"below min", 0.5, "", "world", TooLow},
		{"negative", -3, "", "world", TooLow},
		{"above max", 1000.01, "", "world", TooHigh},
		{"NaN", math.NaN(), "", "world", TooHigh},
		{"infinity", math.Inf(1), "", "world", TooHigh},
		{"currency override low", 4, "gems", "world", TooLow},
		{"currency override high", 51, "gems", "world", TooHigh},
		{"currency override ok", 20, "gems", "world", Allowed},
		{"world override beats currency", 100000, "gems", "creative", Allowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.Evaluate(tt.price, tt.currency, tt.world))
		})
	}
}

// Ниже минимума всегда TooLow, выше максимума всегда TooHigh.
func TestLimiter_Monotonic(t *testing.T) {
	l := NewLimiter(testRules())

	for p := -100.0; p < 1; p += 0.25 {
		assert.Equal(t, TooLow, l.Evaluate(p, "", "world"), "price %v", p)
	}
	for p := 1000.5; p < 5000; p += 37.5 {
		assert.Equal(t, TooHigh, l.Evaluate(p, "", "world"), "price %v", p)
	}
	for p := 1.0; p <= 1000; p += 9.5 {
		assert.Equal(t, Allowed, l.Evaluate(p, "", "world"), "price %v", p)
	}
}

func TestLimiter_EvaluateChange(t *testing.T) {
	l := NewLimiter(testRules())

	tests := []struct {
		name      string
		price     float64
		reference float64
		want      Verdict
	}{
		{"small increase", 12, 10, Allowed},
		{"exact limit", 15, 10, Allowed},
		{"too large increase", 15.5, 10, PercentageRejected},
		{"too large decrease", 4, 10, PercentageRejected},
		{"no reference", 500, 0, Allowed},
		{"absolute bound wins", 0.5, 0.6, TooLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.EvaluateChange(tt.price, tt.reference, "", "world"))
		})
	}
}

func TestLimiter_PercentageDisabled(t *testing.T) {
	rules := testRules()
	rules.MaxChangePercent = 0
	l := NewLimiter(rules)

	assert.Equal(t, Allowed, l.EvaluateChange(900, 1, "", "world"))
}

func TestLimiter_WholeNumberOnly(t *testing.T) {
	rules := testRules()
	rules.WholeNumberOnly = true
	l := NewLimiter(rules)

	assert.Equal(t, NotWholeNumber, l.Evaluate(12.5, "", "world"))
	assert.Equal(t, Allowed, l.Evaluate(12, "", "world"))
}

func TestVerdict_Err(t *testing.T) {
	assert.NoError(t, Allowed.Err())

	err := TooHigh.Err()
	assert.True(t, errors.Is(err, model.ErrPriceRejected))

	var rejected *RejectedError
	if assert.True(t, errors.As(err, &rejected)) {
		assert.Equal(t, TooHigh, rejected.Verdict)
	}
}

func TestDefaultRules(t *testing.T) {
	l := NewLimiter(DefaultRules())

	assert.Equal(t, TooLow, l.Evaluate(0, "", "world"))
	assert.Equal(t, Allowed, l.Evaluate(1e12, "", "world"))
}
