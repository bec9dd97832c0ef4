package economy

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type accountKey struct {
	actor    uuid.UUID
	currency string
}

// MemoryLedger — in-memory ledger. Balances are kept as decimals.
// With AutoCreate=false, operations on unknown accounts fail with ErrAccountMissing.
type MemoryLedger struct {
	mu         sync.Mutex
	balances   map[accountKey]decimal.Decimal
	autoCreate bool

	// failNext injects failures for tests: op name → error.
	failNext map[string]error
}

// NewMemoryLedger creates an empty ledger.
func NewMemoryLedger(autoCreate bool) *MemoryLedger {
	return &MemoryLedger{
		balances:   make(map[accountKey]decimal.Decimal),
		autoCreate: autoCreate,
		failNext:   make(map[string]error),
	}
}

// SetBalance creates or overwrites an account balance.
func (l *MemoryLedger) SetBalance(actor uuid.UUID, currency string, amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[accountKey{actor, CurrencyOrDefault(currency)}] = decimal.NewFromFloat(amount)
}

// FailNext makes the next call of op ("withdraw", "deposit", "balance") return err.
func (l *MemoryLedger) FailNext(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failNext[op] = err
}

func (l *MemoryLedger) injected(op string) error {
	err, ok := l.failNext[op]
	if !ok {
		return nil
	}
	delete(l.failNext, op)
	return err
}

// Withdraw takes amount from actor's account.
func (l *MemoryLedger) Withdraw(_ context.Context, actor uuid.UUID, amount float64, currency string) error {
	if amount < 0 {
		return fmt.Errorf("withdraw %v: %w", amount, ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.injected("withdraw"); err != nil {
		return err
	}

	key := accountKey{actor, CurrencyOrDefault(currency)}
	bal, ok := l.balances[key]
	if !ok && !l.autoCreate {
		return fmt.Errorf("withdraw from %s: %w", actor, ErrAccountMissing)
	}

	amt := decimal.NewFromFloat(amount)
	if bal.LessThan(amt) {
		return fmt.Errorf("withdraw %s from %s (balance %s): %w", amt, actor, bal, ErrInsufficientFunds)
	}
	l.balances[key] = bal.Sub(amt)
	return nil
}

// Deposit adds amount to actor's account.
func (l *MemoryLedger) Deposit(_ context.Context, actor uuid.UUID, amount float64, currency string) error {
	if amount < 0 {
		return fmt.Errorf("deposit %v: %w", amount, ErrInvalidAmount)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.injected("deposit"); err != nil {
		return err
	}

	key := accountKey{actor, CurrencyOrDefault(currency)}
	bal, ok := l.balances[key]
	if !ok && !l.autoCreate {
		return fmt.Errorf("deposit to %s: %w", actor, ErrAccountMissing)
	}
	l.balances[key] = bal.Add(decimal.NewFromFloat(amount))
	return nil
}

// Balance returns actor's balance.
func (l *MemoryLedger) Balance(_ context.Context, actor uuid.UUID, currency string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.injected("balance"); err != nil {
		return 0, err
	}

	bal, ok := l.balances[accountKey{actor, CurrencyOrDefault(currency)}]
	if !ok && !l.autoCreate {
		return 0, fmt.Errorf("balance of %s: %w", actor, ErrAccountMissing)
	}
	return bal.InexactFloat64(), nil
}
