// Package interact tracks per-player pending shop actions and drives them
// forward from chat input.
package interact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/udisondev/shopkeeper/internal/model"
	"github.com/udisondev/shopkeeper/internal/notify"
)

// State is the tracker state of one player.
type State int8

const (
	Idle State = iota
	AwaitingCreateConfirm
	AwaitingPriceInput
	AwaitingTradeAmount
)

// String returns human-readable state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case AwaitingCreateConfirm:
		return "AwaitingCreateConfirm"
	case AwaitingPriceInput:
		return "AwaitingPriceInput"
	case AwaitingTradeAmount:
		return "AwaitingTradeAmount"
	default:
		return "Unknown"
	}
}

// StateOf maps a pending action to the input the tracker waits for.
func StateOf(action model.ShopAction) State {
	switch action {
	case model.ActionCreate:
		return AwaitingCreateConfirm
	case model.ActionSetPrice:
		return AwaitingPriceInput
	case model.ActionBuy, model.ActionSell:
		return AwaitingTradeAmount
	default:
		return Idle
	}
}

// Outcome reports whether a chat line was swallowed by the tracker.
type Outcome int8

const (
	Ignored Outcome = iota
	Consumed
)

// String returns human-readable outcome name.
func (o Outcome) String() string {
	if o == Consumed {
		return "Consumed"
	}
	return "Ignored"
}

// Dispatcher finalizes a parsed pending action.
// Implemented by the shop manager.
type Dispatcher interface {
	DispatchCreate(ctx context.Context, player uuid.UUID, info *model.Info, price float64) error
	DispatchSetPrice(ctx context.Context, player uuid.UUID, info *model.Info, price float64) error
	DispatchTrade(ctx context.Context, player uuid.UUID, info *model.Info, amount int32) error
}

// Config configures the tracker.
type Config struct {
	// Timeout — через сколько неподвижная Info истекает.
	Timeout time.Duration `yaml:"timeout"`
	// SweepInterval — период фоновой очистки в Run.
	SweepInterval time.Duration `yaml:"sweep_interval"`
	// CancelKeyword отменяет pending действие из чата.
	CancelKeyword string `yaml:"cancel_keyword"`
}

// DefaultConfig returns tracker defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:       60 * time.Second,
		SweepInterval: 10 * time.Second,
		CancelKeyword: "cancel",
	}
}

type entry struct {
	info    *model.Info
	touched time.Time
}

// Tracker owns the pending Info of every player.
//
// Entries expire lazily on access and in Sweep. The dispatcher is called
// without the tracker lock held.
type Tracker struct {
	cfg        Config
	sink       notify.Sink
	dispatcher Dispatcher
	now        func() time.Time

	mu      sync.Mutex
	entries map[uuid.UUID]*entry
}

// NewTracker creates a tracker. dispatcher may be set later with SetDispatcher.
func NewTracker(cfg Config, sink notify.Sink, dispatcher Dispatcher) *Tracker {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultConfig().SweepInterval
	}
	if cfg.CancelKeyword == "" {
		cfg.CancelKeyword = DefaultConfig().CancelKeyword
	}
	return &Tracker{
		cfg:        cfg,
		sink:       sink,
		dispatcher: dispatcher,
		now:        time.Now,
		entries:    make(map[uuid.UUID]*entry),
	}
}

// SetDispatcher sets the dispatcher. Must be called before the first chat line.
func (t *Tracker) SetDispatcher(d Dispatcher) {
	t.dispatcher = d
}

// Begin stores info as the player's pending action and returns the Info it replaced.
func (t *Tracker) Begin(player uuid.UUID, info *model.Info) *model.Info {
	now := t.now()
	if info.CreatedAt.IsZero() {
		info.CreatedAt = now
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	var prev *model.Info
	if e, ok := t.entries[player]; ok && !t.expired(e, now) {
		prev = e.info
	}
	t.entries[player] = &entry{info: info, touched: now}

	slog.Debug("pending action started",
		"player", player,
		"action", info.Action,
		"location", info.Location,
		"replaced", prev != nil)

	return prev
}

// Get returns the player's live pending Info.
func (t *Tracker) Get(player uuid.UUID) (*model.Info, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.liveLocked(player, t.now())
	if e == nil {
		return nil, false
	}
	return e.info, true
}

// State returns what input the player's pending action waits for.
func (t *Tracker) State(player uuid.UUID) State {
	info, ok := t.Get(player)
	if !ok {
		return Idle
	}
	return StateOf(info.Action)
}

// Cancel clears the player's pending Info. Returns false if none was pending.
func (t *Tracker) Cancel(player uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.liveLocked(player, t.now())
	delete(t.entries, player)
	return e != nil
}

// Clear removes info only if it is still the player's pending Info.
func (t *Tracker) Clear(player uuid.UUID, info *model.Info) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[player]
	if !ok || e.info != info {
		return false
	}
	delete(t.entries, player)
	return true
}

// ClearAt drops every pending Info targeting loc. Returns how many were dropped.
func (t *Tracker) ClearAt(loc model.Location) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for player, e := range t.entries {
		if e.info.Location == loc {
			delete(t.entries, player)
			n++
		}
	}
	return n
}

// Actions returns a snapshot of live pending actions.
func (t *Tracker) Actions() map[uuid.UUID]model.Info {
	now := t.now()

	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[uuid.UUID]model.Info, len(t.entries))
	for player, e := range t.entries {
		if t.expired(e, now) {
			continue
		}
		out[player] = *e.info
	}
	return out
}

// Len returns the number of stored entries, expired ones included.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// HandleChatLine feeds a chat line to the player's pending action.
//
// Without a pending action the line is Ignored. Otherwise it is Consumed:
// the cancel keyword drops the action, a parse failure re-prompts and keeps
// it, a parsed value is dispatched and the action is cleared.
func (t *Tracker) HandleChatLine(ctx context.Context, player uuid.UUID, text string) Outcome {
	now := t.now()
	text = strings.TrimSpace(text)

	t.mu.Lock()
	e := t.liveLocked(player, now)
	if e == nil {
		t.mu.Unlock()
		return Ignored
	}
	e.touched = now
	// Сохранённая Info видна Actions() под t.mu, диспетчер работает с копией.
	info := e.info
	req := *info
	t.mu.Unlock()

	if strings.EqualFold(text, t.cfg.CancelKeyword) {
		t.Clear(player, info)
		notify.Send(ctx, t.sink, player, notify.KeyActionCancelled, notify.Params{
			"action": req.Action.String(),
		})
		return Consumed
	}

	req.Message = text

	var err error
	switch StateOf(req.Action) {
	case AwaitingCreateConfirm, AwaitingPriceInput:
		price, perr := ParsePrice(text)
		if perr != nil {
			t.reprompt(ctx, player, &req, text, perr)
			return Consumed
		}
		if t.dispatcher == nil {
			err = errors.New("no dispatcher")
			break
		}
		if req.Action == model.ActionCreate {
			err = t.dispatcher.DispatchCreate(ctx, player, &req, price)
		} else {
			err = t.dispatcher.DispatchSetPrice(ctx, player, &req, price)
		}

	case AwaitingTradeAmount:
		amount, perr := ParseAmount(text)
		if perr != nil {
			t.reprompt(ctx, player, &req, text, perr)
			return Consumed
		}
		req.Quantity = amount
		if t.dispatcher == nil {
			err = errors.New("no dispatcher")
			break
		}
		err = t.dispatcher.DispatchTrade(ctx, player, &req, amount)

	default:
		err = fmt.Errorf("action %s: %w", req.Action, model.ErrInvalidRequest)
	}

	// Отклонённая цена — как ошибка ввода: Info остаётся, игрок вводит заново.
	if errors.Is(err, model.ErrPriceRejected) {
		t.touch(player, info)
		return Consumed
	}

	t.Clear(player, info)
	if err != nil {
		slog.Debug("pending action failed",
			"player", player,
			"action", req.Action,
			"error", err)
	}
	return Consumed
}

func (t *Tracker) reprompt(ctx context.Context, player uuid.UUID, info *model.Info, text string, err error) {
	slog.Debug("chat input rejected",
		"player", player,
		"action", info.Action,
		"input", text,
		"error", err)
	notify.Send(ctx, t.sink, player, notify.KeyParseFailed, notify.Params{
		"input":  text,
		"action": info.Action.String(),
	})
}

func (t *Tracker) touch(player uuid.UUID, info *model.Info) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.entries[player]; ok && e.info == info {
		e.touched = t.now()
	}
}

// Sweep drops entries untouched since before now-timeout and returns their players.
func (t *Tracker) Sweep(now time.Time) []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var expired []uuid.UUID
	for player, e := range t.entries {
		if t.expired(e, now) {
			delete(t.entries, player)
			expired = append(expired, player)
		}
	}
	return expired
}

// Run sweeps expired entries periodically (blocks until context is canceled).
func (t *Tracker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()

	slog.Info("interaction tracker started",
		"timeout", t.cfg.Timeout,
		"sweepInterval", t.cfg.SweepInterval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("interaction tracker stopping")
			return ctx.Err()

		case <-ticker.C:
			expired := t.Sweep(t.now())
			for _, player := range expired {
				notify.Send(ctx, t.sink, player, notify.KeyActionExpired, nil)
			}
			if len(expired) > 0 {
				slog.Debug("pending actions expired", "count", len(expired))
			}
		}
	}
}

// liveLocked returns the player's entry, dropping it if expired. Caller holds mu.
func (t *Tracker) liveLocked(player uuid.UUID, now time.Time) *entry {
	e, ok := t.entries[player]
	if !ok {
		return nil
	}
	if t.expired(e, now) {
		delete(t.entries, player)
		return nil
	}
	return e
}

func (t *Tracker) expired(e *entry, now time.Time) bool {
	return now.Sub(e.touched) > t.cfg.Timeout
}

// Players returns players with a stored entry.
func (t *Tracker) Players() []uuid.UUID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Collect(maps.Keys(t.entries))
}

// ParsePrice parses a decimal price. Negative prices are invalid.
func ParsePrice(text string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", text, model.ErrInvalidRequest)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative price %s: %w", d, model.ErrInvalidRequest)
	}
	return d.InexactFloat64(), nil
}

// ParseAmount parses a positive trade amount.
func ParseAmount(text string) (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(text), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", text, model.ErrInvalidRequest)
	}
	if n <= 0 {
		return 0, fmt.Errorf("amount must be > 0, got %d: %w", n, model.ErrInvalidRequest)
	}
	return int32(n), nil
}
