// Package price validates proposed shop prices against configured limits.
package price

import (
	"fmt"
	"math"

	"github.com/udisondev/shopkeeper/internal/model"
)

// Verdict is the result of a price check.
type Verdict int8

const (
	Allowed Verdict = iota
	TooLow
	TooHigh
	PercentageRejected
	NotWholeNumber
)

// String returns human-readable verdict name.
func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "Allowed"
	case TooLow:
		return "TooLow"
	case TooHigh:
		return "TooHigh"
	case PercentageRejected:
		return "PercentageRejected"
	case NotWholeNumber:
		return "NotWholeNumber"
	default:
		return "Unknown"
	}
}

// Err returns nil for Allowed and a *RejectedError otherwise.
func (v Verdict) Err() error {
	if v == Allowed {
		return nil
	}
	return &RejectedError{Verdict: v}
}

// RejectedError reports a price rejection with its reason.
// It matches model.ErrPriceRejected via errors.Is.
type RejectedError struct {
	Verdict Verdict
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("price rejected: %s", e.Verdict)
}

// Unwrap ties the rejection to the shared error taxonomy.
func (e *RejectedError) Unwrap() error {
	return model.ErrPriceRejected
}

// Bounds is an absolute min/max pair. Zero Max means no upper bound.
type Bounds struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

// Rules holds limiter configuration.
type Rules struct {
	Bounds `yaml:",inline"`

	// MaxChangePercent caps |new-ref|/ref*100 for price changes; 0 disables the check.
	MaxChangePercent float64 `yaml:"max_change_percent"`

	// WholeNumberOnly rejects prices with a fractional part.
	WholeNumberOnly bool `yaml:"whole_number_only"`

	// Per-currency and per-world overrides; world wins over currency.
	Currencies map[string]Bounds `yaml:"currencies"`
	Worlds     map[string]Bounds `yaml:"worlds"`
}

// DefaultRules returns permissive limits: price must be at least 0.01.
func DefaultRules() Rules {
	return Rules{Bounds: Bounds{Min: 0.01}}
}

// Limiter is a pure validator: no side effects, deterministic for given rules.
type Limiter struct {
	rules Rules
}

// NewLimiter creates a limiter for the given rules.
func NewLimiter(rules Rules) *Limiter {
	return &Limiter{rules: rules}
}

// Rules returns the active configuration.
func (l *Limiter) Rules() Rules {
	return l.rules
}

// Evaluate checks price against absolute bounds for currency and world.
func (l *Limiter) Evaluate(price float64, currency, world string) Verdict {
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return TooHigh
	}

	b := l.boundsFor(currency, world)
	if price < b.Min {
		return TooLow
	}
	if b.Max > 0 && price > b.Max {
		return TooHigh
	}
	if l.rules.WholeNumberOnly && price != math.Trunc(price) {
		return NotWholeNumber
	}
	return Allowed
}

// EvaluateChange checks price against absolute bounds and, when configured,
// the maximum percentage change relative to reference. A non-positive
// reference skips the percentage check.
func (l *Limiter) EvaluateChange(price, reference float64, currency, world string) Verdict {
	if v := l.Evaluate(price, currency, world); v != Allowed {
		return v
	}
	if l.rules.MaxChangePercent <= 0 || reference <= 0 {
		return Allowed
	}

	change := math.Abs(price-reference) / reference * 100
	if change > l.rules.MaxChangePercent {
		return PercentageRejected
	}
	return Allowed
}

func (l *Limiter) boundsFor(currency, world string) Bounds {
	if b, ok := l.rules.Worlds[world]; ok {
		return b
	}
	if b, ok := l.rules.Currencies[currency]; ok {
		return b
	}
	return l.rules.Bounds
}
