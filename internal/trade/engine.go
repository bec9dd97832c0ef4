// Package trade executes buy and sell operations against a shop, moving
// money through the economy ledger first and goods second, with
// compensation when the goods step fails.
package trade

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/udisondev/shopkeeper/internal/economy"
	"github.com/udisondev/shopkeeper/internal/model"
	"github.com/udisondev/shopkeeper/internal/notify"
	"github.com/udisondev/shopkeeper/internal/world"
)

// PermTaxBypass exempts the holder from trade tax.
const PermTaxBypass = "shop.tax.bypass"

// Permissions answers permission-node checks. Optional.
type Permissions interface {
	Has(actor uuid.UUID, node string) bool
}

// Options configures the engine.
type Options struct {
	// TaxRate в [0,1). Доля от суммы сделки.
	TaxRate float64
	// TaxAccount получает налог. uuid.Nil — налог сгорает.
	TaxAccount uuid.UUID
	// Exempt — акторы без налога.
	Exempt []uuid.UUID
	// PayUnlimitedOwner — проводить деньги владельцу unlimited магазина.
	PayUnlimitedOwner bool
	// Scale — знаков после запятой при округлении сумм.
	Scale int32
}

// DefaultOptions returns engine defaults.
func DefaultOptions() Options {
	return Options{Scale: 2}
}

// Engine executes trades.
//
// Per-shop ordering: the shop trade mutex is held from the validity check
// through the goods move. No other lock is held across ledger calls.
type Engine struct {
	opts    Options
	index   *world.Index
	host    world.Host
	sink    notify.Sink
	perms   Permissions
	metrics *Metrics
	now     func() time.Time
}

// NewEngine creates a trade engine. perms and metrics may be nil.
func NewEngine(opts Options, index *world.Index, host world.Host, sink notify.Sink, perms Permissions, metrics *Metrics) *Engine {
	if opts.Scale < 0 {
		opts.Scale = DefaultOptions().Scale
	}
	return &Engine{
		opts:    opts,
		index:   index,
		host:    host,
		sink:    sink,
		perms:   perms,
		metrics: metrics,
		now:     time.Now,
	}
}

// Tax returns the tax rate actor pays when trading with shop.
// Always 0 for the shop owner.
func (e *Engine) Tax(shop *model.Shop, actor uuid.UUID) float64 {
	if shop == nil || actor == shop.Owner() {
		return 0
	}
	if slices.Contains(e.opts.Exempt, actor) {
		return 0
	}
	if e.perms != nil && e.perms.Has(actor, PermTaxBypass) {
		return 0
	}
	rate := e.opts.TaxRate
	if rate <= 0 || rate >= 1 {
		return 0
	}
	return rate
}

// ShopIsNotValid reports whether shop was removed, unloaded or changed
// since info was created.
func (e *Engine) ShopIsNotValid(actor uuid.UUID, info *model.Info, shop *model.Shop) bool {
	if err := e.validate(info, shop); err != nil {
		slog.Debug("shop is not valid for trade",
			"actor", actor,
			"error", err)
		return true
	}
	return false
}

func (e *Engine) validate(info *model.Info, shop *model.Shop) error {
	if shop == nil {
		return fmt.Errorf("no shop: %w", model.ErrInvalidRequest)
	}
	if !shop.IsValid() {
		return fmt.Errorf("shop %s is unloaded: %w", shop.Location(), model.ErrNotLoaded)
	}
	if e.index.ShopAt(shop.Location()) != shop {
		return fmt.Errorf("shop %s is not indexed: %w", shop.Location(), model.ErrNotLoaded)
	}
	if info != nil {
		if info.Shop != nil && info.Shop != shop {
			return fmt.Errorf("pending action targets another shop: %w", model.ErrInvalidRequest)
		}
		if info.HasChanged(shop) {
			return fmt.Errorf("shop %s changed since action began: %w", shop.Location(), model.ErrInvalidRequest)
		}
	}
	if !shop.IsUnlimited() {
		if _, ok := e.host.ContainerAt(shop.Location()); !ok {
			return fmt.Errorf("container at %s is gone: %w", shop.Location(), model.ErrNotLoaded)
		}
	}
	return nil
}

// Buy moves amount items from a selling shop to buyer for price*amount.
func (e *Engine) Buy(ctx context.Context, buyer uuid.UUID, buyerInv model.Inventory, ledger economy.Ledger, info *model.Info, shop *model.Shop, amount int32) (*Receipt, error) {
	r, err := e.execute(ctx, SideBuy, buyer, buyerInv, ledger, info, shop, amount)
	e.metrics.observe(SideBuy, outcomeOf(err))
	if err != nil {
		return nil, err
	}

	e.metrics.addVolume(SideBuy, r.Currency, r.Total)
	e.SendPurchaseSuccess(ctx, r)
	return r, nil
}

// Sell moves amount items from seller to a buying shop for price*amount.
func (e *Engine) Sell(ctx context.Context, seller uuid.UUID, sellerInv model.Inventory, ledger economy.Ledger, info *model.Info, shop *model.Shop, amount int32) (*Receipt, error) {
	r, err := e.execute(ctx, SideSell, seller, sellerInv, ledger, info, shop, amount)
	e.metrics.observe(SideSell, outcomeOf(err))
	if err != nil {
		return nil, err
	}

	e.metrics.addVolume(SideSell, r.Currency, r.Total)
	e.SendSellSuccess(ctx, r)
	return r, nil
}

// SendPurchaseSuccess notifies the buyer about a committed purchase.
func (e *Engine) SendPurchaseSuccess(ctx context.Context, r *Receipt) {
	notify.Send(ctx, e.sink, r.Actor, notify.KeyPurchaseSuccess, receiptParams(r))
}

// SendSellSuccess notifies the seller about a committed sale.
func (e *Engine) SendSellSuccess(ctx context.Context, r *Receipt) {
	notify.Send(ctx, e.sink, r.Actor, notify.KeySellSuccess, receiptParams(r))
}

func receiptParams(r *Receipt) notify.Params {
	return notify.Params{
		"item":     r.Item.String(),
		"amount":   r.Amount,
		"total":    r.Total,
		"tax":      r.Tax,
		"currency": r.Currency,
		"location": r.Location.String(),
	}
}

// leg is one ledger operation of a trade.
type leg struct {
	account uuid.UUID
	amount  decimal.Decimal
	deposit bool
	soft    bool // failure is logged, the trade goes on
	name    string
}

func (l leg) apply(ctx context.Context, ledger economy.Ledger, currency string) error {
	amt := l.amount.InexactFloat64()
	if l.deposit {
		return ledger.Deposit(ctx, l.account, amt, currency)
	}
	return ledger.Withdraw(ctx, l.account, amt, currency)
}

func (l leg) reverse() leg {
	l.deposit = !l.deposit
	return l
}

func (e *Engine) execute(ctx context.Context, side Side, actor uuid.UUID, actorInv model.Inventory, ledger economy.Ledger, info *model.Info, shop *model.Shop, amount int32) (*Receipt, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("amount must be > 0, got %d: %w", amount, model.ErrInvalidRequest)
	}
	if shop == nil || actorInv == nil || ledger == nil {
		return nil, fmt.Errorf("incomplete trade request: %w", model.ErrInvalidRequest)
	}
	if side == SideBuy && !shop.IsSelling() {
		return nil, fmt.Errorf("shop %s is not selling: %w", shop.Location(), model.ErrInvalidRequest)
	}
	if side == SideSell && !shop.IsBuying() {
		return nil, fmt.Errorf("shop %s is not buying: %w", shop.Location(), model.ErrInvalidRequest)
	}

	shop.LockTrade()
	defer shop.UnlockTrade()

	if err := e.validate(info, shop); err != nil {
		return nil, err
	}

	item := shop.Item()
	unlimited := shop.IsUnlimited()

	var container model.Inventory
	if !unlimited {
		container, _ = e.host.ContainerAt(shop.Location())
	}

	// Сток и место проверяются до денег: ledger не трогаем, если товар не пройдёт.
	if side == SideBuy {
		if container != nil && container.Count(item) < amount {
			return nil, fmt.Errorf("shop %s has %d %s, want %d: %w",
				shop.Location(), container.Count(item), item, amount, model.ErrInvalidRequest)
		}
		if actorInv.Space(item) < amount {
			return nil, fmt.Errorf("buyer has space for %d %s, want %d: %w",
				actorInv.Space(item), item, amount, model.ErrInvalidRequest)
		}
	} else {
		if actorInv.Count(item) < amount {
			return nil, fmt.Errorf("seller has %d %s, want %d: %w",
				actorInv.Count(item), item, amount, model.ErrInvalidRequest)
		}
		if container != nil && container.Space(item) < amount {
			return nil, fmt.Errorf("shop %s has space for %d %s, want %d: %w",
				shop.Location(), container.Space(item), item, amount, model.ErrInvalidRequest)
		}
	}

	owner := shop.Owner()
	currency := shop.Currency()
	rate := e.Tax(shop, actor)

	total := decimal.NewFromFloat(shop.Price()).Mul(decimal.NewFromInt32(amount)).Round(e.opts.Scale)
	// Ненулевая цена не может округлиться в бесплатную сделку.
	if total.IsZero() && shop.Price() > 0 {
		return nil, fmt.Errorf("total for %d × %v rounds to zero at scale %d: %w",
			amount, shop.Price(), e.opts.Scale, model.ErrInvalidRequest)
	}
	tax := total.Mul(decimal.NewFromFloat(rate)).Round(e.opts.Scale)
	net := total.Sub(tax)

	legs := e.legs(side, actor, owner, unlimited, total, tax, net)

	applied, err := e.moveMoney(ctx, ledger, currency, legs)
	if err != nil {
		return nil, e.abortMoney(ctx, ledger, currency, applied, actor, shop, err)
	}

	if err := e.moveGoods(side, actorInv, container, item, amount); err != nil {
		return nil, e.compensate(ctx, ledger, currency, applied, actor, shop, err)
	}

	stock := int32(-1)
	if container != nil {
		if side == SideBuy {
			stock = container.Count(item)
		} else {
			stock = container.Space(item)
		}
		shop.SetCachedStock(stock)
	}

	r := &Receipt{
		Side:     side,
		Actor:    actor,
		Owner:    owner,
		Shop:     shop.RuntimeID(),
		Location: shop.Location(),
		Item:     item,
		Amount:   amount,
		Price:    shop.Price(),
		Currency: economy.CurrencyOrDefault(currency),
		Total:    total.InexactFloat64(),
		Tax:      tax.InexactFloat64(),
		Net:      net.InexactFloat64(),
		Stock:    stock,
		At:       e.now(),
	}

	slog.Info("trade committed",
		"side", side,
		"actor", actor,
		"owner", owner,
		"location", r.Location,
		"item", item,
		"amount", amount,
		"total", total.String(),
		"tax", tax.String())

	return r, nil
}

func (e *Engine) legs(side Side, actor, owner uuid.UUID, unlimited bool, total, tax, net decimal.Decimal) []leg {
	payOwner := !unlimited || e.opts.PayUnlimitedOwner

	var legs []leg
	if side == SideBuy {
		legs = append(legs, leg{account: actor, amount: total, name: "buyer withdraw"})
		if payOwner && net.IsPositive() {
			legs = append(legs, leg{account: owner, amount: net, deposit: true, name: "owner deposit"})
		}
	} else {
		if payOwner {
			legs = append(legs, leg{account: owner, amount: total, name: "owner withdraw"})
		}
		if net.IsPositive() {
			legs = append(legs, leg{account: actor, amount: net, deposit: true, name: "seller deposit"})
		}
	}
	if e.opts.TaxAccount != uuid.Nil && tax.IsPositive() {
		legs = append(legs, leg{account: e.opts.TaxAccount, amount: tax, deposit: true, soft: true, name: "tax deposit"})
	}
	return legs
}

// moveMoney applies legs in order and returns those that succeeded.
func (e *Engine) moveMoney(ctx context.Context, ledger economy.Ledger, currency string, legs []leg) ([]leg, error) {
	applied := make([]leg, 0, len(legs))
	for _, l := range legs {
		if err := l.apply(ctx, ledger, currency); err != nil {
			if l.soft {
				slog.Warn("trade leg failed, continuing",
					"leg", l.name,
					"account", l.account,
					"amount", l.amount.String(),
					"error", err)
				continue
			}
			return applied, fmt.Errorf("%s: %w", l.name, err)
		}
		applied = append(applied, l)
	}
	return applied, nil
}

// undo reverses applied legs in reverse order. Returns every failure.
func (e *Engine) undo(ctx context.Context, ledger economy.Ledger, currency string, applied []leg) error {
	var errs []error
	for i := len(applied) - 1; i >= 0; i-- {
		l := applied[i].reverse()
		if err := l.apply(ctx, ledger, currency); err != nil {
			errs = append(errs, fmt.Errorf("undo %s for %s: %w", applied[i].name, l.account, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) abortMoney(ctx context.Context, ledger economy.Ledger, currency string, applied []leg, actor uuid.UUID, shop *model.Shop, cause error) error {
	if err := e.undo(ctx, ledger, currency, applied); err != nil {
		e.alert(actor, shop, cause, err)
		return fmt.Errorf("%w: %w (undo: %w)", model.ErrPartialFailureUnrecovered, cause, err)
	}
	return fmt.Errorf("%w: %w", model.ErrEconomyFailure, cause)
}

func (e *Engine) compensate(ctx context.Context, ledger economy.Ledger, currency string, applied []leg, actor uuid.UUID, shop *model.Shop, cause error) error {
	if err := e.undo(ctx, ledger, currency, applied); err != nil {
		e.alert(actor, shop, cause, err)
		return fmt.Errorf("%w: %w (compensation: %w)", model.ErrPartialFailureUnrecovered, cause, err)
	}
	if errors.Is(cause, errGoodsLost) {
		e.alert(actor, shop, cause, nil)
		return fmt.Errorf("%w: %w", model.ErrPartialFailureUnrecovered, cause)
	}

	slog.Warn("trade goods move failed, money returned",
		"actor", actor,
		"location", shop.Location(),
		"error", cause)
	return fmt.Errorf("%w: %w", model.ErrPartialFailureRecovered, cause)
}

func (e *Engine) alert(actor uuid.UUID, shop *model.Shop, cause, undoErr error) {
	slog.Error("trade left inconsistent state",
		"alert", true,
		"actor", actor,
		"owner", shop.Owner(),
		"location", shop.Location(),
		"item", shop.Item(),
		"error", cause,
		"undoError", undoErr)
}

var errGoodsLost = errors.New("goods could not be returned")

// moveGoods moves amount items between the actor and the shop container.
// A nil container stands for an unlimited shop.
func (e *Engine) moveGoods(side Side, actorInv, container model.Inventory, item model.Item, amount int32) error {
	from, to := container, actorInv
	if side == SideSell {
		from, to = actorInv, container
	}

	if from != nil {
		if err := from.Remove(item, amount); err != nil {
			return fmt.Errorf("take %d %s: %w", amount, item, err)
		}
	}
	if to != nil {
		if err := to.Add(item, amount); err != nil {
			if from != nil {
				if rerr := from.Add(item, amount); rerr != nil {
					return fmt.Errorf("put %d %s: %w; return: %w: %w", amount, item, err, errGoodsLost, rerr)
				}
			}
			return fmt.Errorf("put %d %s: %w", amount, item, err)
		}
	}
	return nil
}
