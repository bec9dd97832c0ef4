// Package economy defines the ledger collaborator used by trades and
// provides in-memory and PostgreSQL implementations.
package economy

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Typed ledger failures.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAccountMissing    = errors.New("account missing")
	ErrBackend           = errors.New("ledger backend error")
	ErrInvalidAmount     = errors.New("invalid amount")
)

// Ledger is the external account service. Calls may block on I/O.
// A nil error means the operation was applied.
type Ledger interface {
	Withdraw(ctx context.Context, actor uuid.UUID, amount float64, currency string) error
	Deposit(ctx context.Context, actor uuid.UUID, amount float64, currency string) error
	Balance(ctx context.Context, actor uuid.UUID, currency string) (float64, error)
}

// DefaultCurrency is used when a shop has no currency set.
const DefaultCurrency = "default"

// CurrencyOrDefault maps "" to DefaultCurrency.
func CurrencyOrDefault(currency string) string {
	if currency == "" {
		return DefaultCurrency
	}
	return currency
}
