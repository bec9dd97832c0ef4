package testutil

import (
	"context"
	"testing"
	"time"
)

// bind отменяет ctx при завершении теста.
func bind(tb testing.TB, ctx context.Context, cancel context.CancelFunc) context.Context {
	tb.Helper()
	tb.Cleanup(cancel)
	return ctx
}

// ContextWithTimeout returns a context that expires after d or when the test ends.
// Repository and ledger tests use it to bound database round-trips.
func ContextWithTimeout(tb testing.TB, d time.Duration) context.Context {
	tb.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	return bind(tb, ctx, cancel)
}

// ContextWithDeadline is ContextWithTimeout with an absolute deadline.
func ContextWithDeadline(tb testing.TB, deadline time.Time) context.Context {
	tb.Helper()
	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	return bind(tb, ctx, cancel)
}

// ContextWithCancel returns a cancellable context for stopping background
// loops (tracker sweep, autosave) mid-test. Cancelled on cleanup as well.
func ContextWithCancel(tb testing.TB) (context.Context, context.CancelFunc) {
	tb.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	return bind(tb, ctx, cancel), cancel
}
