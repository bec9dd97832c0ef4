// Package notify is the messaging boundary: template keys plus parameters
// go out to players, delivery failures are logged and never propagated.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Template keys sent by the shop core.
const (
	KeyPurchaseSuccess   = "purchase-success"
	KeySellSuccess       = "sell-success"
	KeyShopInfo          = "shop-info"
	KeyShopCreated       = "shop-created"
	KeyShopRemoved       = "shop-removed"
	KeyEnterPrice        = "enter-price"
	KeyEnterAmount       = "enter-amount"
	KeyParseFailed       = "parse-failed"
	KeyActionCancelled   = "action-cancelled"
	KeyActionExpired     = "action-expired"
	KeyActionReplaced    = "action-replaced"
	KeyPriceRejected     = "price-rejected"
	KeyPriceChanged      = "price-changed"
	KeyTradeFailed       = "trade-failed"
	KeyNoPermission      = "no-permission"
	KeyShopNotValid      = "shop-not-valid"
	KeyAlreadyShop       = "already-shop"
	KeyOperatorAlert     = "operator-alert"
	KeyInsufficientFunds = "insufficient-funds"
)

// Params are template parameters.
type Params map[string]any

// Sink delivers a templated message to an actor.
type Sink interface {
	Notify(ctx context.Context, actor uuid.UUID, key string, params Params) error
}

// Send delivers through sink and logs any failure. Fire-and-forget.
func Send(ctx context.Context, sink Sink, actor uuid.UUID, key string, params Params) {
	if sink == nil {
		return
	}
	if err := sink.Notify(ctx, actor, key, params); err != nil {
		slog.Warn("notification delivery failed",
			"actor", actor,
			"key", key,
			"error", err)
	}
}

// LogSink writes every notification to slog. Used in standalone mode.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink writing to logger (slog.Default() if nil).
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Notify logs the message.
func (s *LogSink) Notify(ctx context.Context, actor uuid.UUID, key string, params Params) error {
	args := make([]any, 0, 4+2*len(params))
	args = append(args, "actor", actor, "key", key)
	for k, v := range params {
		args = append(args, k, v)
	}
	s.logger.InfoContext(ctx, "notify", args...)
	return nil
}

// Message is one recorded notification.
type Message struct {
	Actor  uuid.UUID
	Key    string
	Params Params
}

// Recorder keeps notifications in memory. Потокобезопасный.
type Recorder struct {
	mu       sync.Mutex
	messages []Message
	err      error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// FailWith makes every later Notify return err after recording.
func (r *Recorder) FailWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

// Notify records the message.
func (r *Recorder) Notify(_ context.Context, actor uuid.UUID, key string, params Params) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, Message{Actor: actor, Key: key, Params: params})
	return r.err
}

// Messages returns a copy of recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// Count returns how many messages with key were sent to actor.
func (r *Recorder) Count(actor uuid.UUID, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Actor == actor && m.Key == key {
			n++
		}
	}
	return n
}

// Last returns the last message sent to actor.
func (r *Recorder) Last(actor uuid.UUID) (Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.messages) - 1; i >= 0; i-- {
		if r.messages[i].Actor == actor {
			return r.messages[i], true
		}
	}
	return Message{}, false
}

// Reset drops recorded messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = nil
}
