package economy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PgLedger implements Ledger on PostgreSQL.
// Every balance change is journaled in economy_journal within the same transaction.
type PgLedger struct {
	pool       *pgxpool.Pool
	autoCreate bool
}

// NewPgLedger creates a PostgreSQL-backed ledger.
func NewPgLedger(pool *pgxpool.Pool, autoCreate bool) *PgLedger {
	return &PgLedger{pool: pool, autoCreate: autoCreate}
}

// Withdraw takes amount from actor's account if the balance covers it.
func (l *PgLedger) Withdraw(ctx context.Context, actor uuid.UUID, amount float64, currency string) error {
	amt := decimal.NewFromFloat(amount)
	if amt.IsNegative() {
		return fmt.Errorf("withdraw %s: %w", amt, ErrInvalidAmount)
	}
	currency = CurrencyOrDefault(currency)

	return l.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE economy_accounts SET balance = balance - $3::numeric
			WHERE actor = $1 AND currency = $2 AND balance >= $3::numeric`,
			actor, currency, amt.String(),
		)
		if err != nil {
			return fmt.Errorf("withdraw from %s: %w: %w", actor, ErrBackend, err)
		}

		if tag.RowsAffected() == 0 {
			exists, err := l.accountExists(ctx, tx, actor, currency)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("withdraw from %s: %w", actor, ErrAccountMissing)
			}
			return fmt.Errorf("withdraw %s from %s: %w", amt, actor, ErrInsufficientFunds)
		}

		return l.journal(ctx, tx, actor, currency, amt.Neg())
	})
}

// Deposit adds amount to actor's account, creating it when autoCreate is set.
func (l *PgLedger) Deposit(ctx context.Context, actor uuid.UUID, amount float64, currency string) error {
	amt := decimal.NewFromFloat(amount)
	if amt.IsNegative() {
		return fmt.Errorf("deposit %s: %w", amt, ErrInvalidAmount)
	}
	currency = CurrencyOrDefault(currency)

	return l.inTx(ctx, func(tx pgx.Tx) error {
		var (
			query string
			args  = []any{actor, currency, amt.String()}
		)
		if l.autoCreate {
			query = `
				INSERT INTO economy_accounts (actor, currency, balance)
				VALUES ($1, $2, $3::numeric)
				ON CONFLICT (actor, currency) DO UPDATE SET
					balance = economy_accounts.balance + EXCLUDED.balance`
		} else {
			query = `
				UPDATE economy_accounts SET balance = balance + $3::numeric
				WHERE actor = $1 AND currency = $2`
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("deposit to %s: %w: %w", actor, ErrBackend, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("deposit to %s: %w", actor, ErrAccountMissing)
		}

		return l.journal(ctx, tx, actor, currency, amt)
	})
}

// Balance returns actor's balance.
func (l *PgLedger) Balance(ctx context.Context, actor uuid.UUID, currency string) (float64, error) {
	var raw string
	err := l.pool.QueryRow(ctx,
		`SELECT balance::text FROM economy_accounts WHERE actor = $1 AND currency = $2`,
		actor, CurrencyOrDefault(currency),
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if l.autoCreate {
				return 0, nil
			}
			return 0, fmt.Errorf("balance of %s: %w", actor, ErrAccountMissing)
		}
		return 0, fmt.Errorf("balance of %s: %w: %w", actor, ErrBackend, err)
	}

	bal, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse balance %q: %w", raw, err)
	}
	return bal.InexactFloat64(), nil
}

func (l *PgLedger) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w: %w", ErrBackend, err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w: %w", ErrBackend, err)
	}
	return nil
}

func (l *PgLedger) accountExists(ctx context.Context, tx pgx.Tx, actor uuid.UUID, currency string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM economy_accounts WHERE actor = $1 AND currency = $2)`,
		actor, currency,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check account %s: %w: %w", actor, ErrBackend, err)
	}
	return exists, nil
}

func (l *PgLedger) journal(ctx context.Context, tx pgx.Tx, actor uuid.UUID, currency string, delta decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO economy_journal (actor, currency, delta) VALUES ($1, $2, $3::numeric)`,
		actor, currency, delta.String(),
	)
	if err != nil {
		return fmt.Errorf("journal %s: %w: %w", actor, ErrBackend, err)
	}
	return nil
}
