package model

import "errors"

// Shop operation outcomes. Callers match them with errors.Is; every
// returned error wraps exactly one of these.
var (
	// ErrInvalidRequest — ошибка вызывающей стороны (amount, price, shop state). Не ретраится.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotLoaded — магазин или мир отсутствует в индексе.
	ErrNotLoaded = errors.New("shop not loaded")

	// ErrAlreadyExists — локация уже занята другим магазином.
	ErrAlreadyExists = errors.New("shop already exists at location")

	// ErrEconomyFailure — ledger отклонил операцию, состояние не изменено.
	ErrEconomyFailure = errors.New("economy failure")

	// ErrPartialFailureRecovered — деньги ушли, товар нет, компенсация прошла.
	ErrPartialFailureRecovered = errors.New("partial failure recovered")

	// ErrPartialFailureUnrecovered — деньги ушли, товар нет, компенсация НЕ прошла.
	// Требует вмешательства оператора.
	ErrPartialFailureUnrecovered = errors.New("partial failure unrecovered")

	// ErrPriceRejected — цена отклонена PriceLimiter.
	ErrPriceRejected = errors.New("price rejected")

	// ErrPermissionDenied — capability checker запретил действие.
	ErrPermissionDenied = errors.New("permission denied")
)
