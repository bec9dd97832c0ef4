package trade

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/udisondev/shopkeeper/internal/model"
)

// Side is the trade direction from the acting player's point of view.
type Side int8

const (
	SideBuy Side = iota
	SideSell
)

// String returns the metric label of the side.
func (s Side) String() string {
	if s == SideSell {
		return "sell"
	}
	return "buy"
}

// Receipt describes a committed trade.
type Receipt struct {
	Side     Side
	Actor    uuid.UUID
	Owner    uuid.UUID
	Shop     uuid.UUID // runtime ID
	Location model.Location
	Item     model.Item
	Amount   int32
	Price    float64
	Currency string
	Total    float64 // paid by buyer
	Tax      float64
	Net      float64 // received by seller
	Stock    int32   // stock (buy) or space (sell) left, -1 for unlimited
	At       time.Time
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, model.ErrPartialFailureUnrecovered):
		return outcomeUnrecovered
	case errors.Is(err, model.ErrPartialFailureRecovered):
		return outcomeRecovered
	case errors.Is(err, model.ErrEconomyFailure):
		return outcomeEconomy
	case errors.Is(err, model.ErrNotLoaded):
		return outcomeNotLoaded
	default:
		return outcomeInvalid
	}
}
