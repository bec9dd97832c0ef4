package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/udisondev/shopkeeper/internal/economy"
	"github.com/udisondev/shopkeeper/internal/interact"
	"github.com/udisondev/shopkeeper/internal/model"
	"github.com/udisondev/shopkeeper/internal/notify"
	"github.com/udisondev/shopkeeper/internal/price"
	"github.com/udisondev/shopkeeper/internal/trade"
)

// Click is a player interaction with a block.
type Click struct {
	Player   uuid.UUID
	Location model.Location
	Face     model.BlockFace
	Item     model.Item // item in hand, zero if empty
	Sneaking bool
}

// HandleInteract routes a click: resolves the shop at the location and
// starts the matching pending action. Returns the started action.
//
// Owner clicks start a price change, other players start a trade, a click
// on a plain container with an item in hand starts shop creation.
func (m *Manager) HandleInteract(ctx context.Context, c Click) (model.ShopAction, error) {
	shop := m.attached.ShopAt(c.Location, true)

	if shop != nil {
		if shop.Owner() == c.Player && m.cfg.Policy.Check(interact.KindControl, c.Sneaking) {
			m.SendShopInfo(ctx, c.Player, shop)
			return m.begin(ctx, c, model.ActionSetPrice, shop, notify.KeyEnterPrice), nil
		}
		if !m.cfg.Policy.Check(interact.KindTrade, c.Sneaking) {
			return model.ActionNone, nil
		}

		m.SendShopInfo(ctx, c.Player, shop)
		action := model.ActionBuy
		if shop.IsBuying() {
			action = model.ActionSell
		}
		return m.begin(ctx, c, action, shop, notify.KeyEnterAmount), nil
	}

	if c.Item.IsZero() || !m.cfg.Policy.Check(interact.KindCreate, c.Sneaking) {
		return model.ActionNone, nil
	}
	if _, ok := m.host.ContainerAt(c.Location); !ok {
		return model.ActionNone, nil
	}
	if !m.CanBuildShop(ctx, c.Player, c.Location, c.Face) {
		notify.Send(ctx, m.sink, c.Player, notify.KeyNoPermission, notify.Params{
			"location": c.Location.String(),
		})
		return model.ActionNone, fmt.Errorf("create shop at %s: %w", c.Location, model.ErrPermissionDenied)
	}

	return m.begin(ctx, c, model.ActionCreate, nil, notify.KeyEnterPrice), nil
}

func (m *Manager) begin(ctx context.Context, c Click, action model.ShopAction, shop *model.Shop, prompt string) model.ShopAction {
	loc := c.Location
	if shop != nil {
		loc = shop.Location()
	}

	info := model.NewInfo(action, loc, shop)
	info.Face = c.Face
	info.Item = c.Item
	info.Sneaking = c.Sneaking

	if prev := m.tracker.Begin(c.Player, info); prev != nil {
		notify.Send(ctx, m.sink, c.Player, notify.KeyActionReplaced, notify.Params{
			"action": prev.Action.String(),
		})
	}
	notify.Send(ctx, m.sink, c.Player, prompt, notify.Params{
		"action":   action.String(),
		"location": loc.String(),
	})
	return action
}

// ActionBuy executes a purchase of amount items for player.
func (m *Manager) ActionBuy(ctx context.Context, player uuid.UUID, inv model.Inventory, info *model.Info, amount int32) (*trade.Receipt, error) {
	if info == nil {
		return nil, fmt.Errorf("buy without pending action: %w", model.ErrInvalidRequest)
	}
	r, err := m.engine.Buy(ctx, player, inv, m.ledger, info, info.Shop, amount)
	if err != nil {
		m.reportTradeError(ctx, player, info, err)
		return nil, err
	}
	m.emit(func(l Listener) { l.ShopChanged(ctx, info.Shop) })
	return r, nil
}

// ActionSell executes a sale of amount items by player.
func (m *Manager) ActionSell(ctx context.Context, player uuid.UUID, inv model.Inventory, info *model.Info, amount int32) (*trade.Receipt, error) {
	if info == nil {
		return nil, fmt.Errorf("sell without pending action: %w", model.ErrInvalidRequest)
	}
	r, err := m.engine.Sell(ctx, player, inv, m.ledger, info, info.Shop, amount)
	if err != nil {
		m.reportTradeError(ctx, player, info, err)
		return nil, err
	}
	m.emit(func(l Listener) { l.ShopChanged(ctx, info.Shop) })
	return r, nil
}

// ActionCreate creates a shop from a pending create action and the price
// the player typed.
func (m *Manager) ActionCreate(ctx context.Context, player uuid.UUID, info *model.Info, message string) error {
	p, err := interact.ParsePrice(message)
	if err != nil {
		notify.Send(ctx, m.sink, player, notify.KeyParseFailed, notify.Params{"input": message})
		return err
	}
	return m.DispatchCreate(ctx, player, info, p)
}

// ActionSetPrice changes the price of the shop in info. The attached half
// of a double container follows.
func (m *Manager) ActionSetPrice(ctx context.Context, player uuid.UUID, info *model.Info, p float64) error {
	shop := info.Shop
	if shop == nil {
		return fmt.Errorf("set price without shop: %w", model.ErrInvalidRequest)
	}
	if shop.Owner() != player {
		notify.Send(ctx, m.sink, player, notify.KeyNoPermission, nil)
		return fmt.Errorf("set price of %s by %s: %w", shop.Location(), player, model.ErrPermissionDenied)
	}
	if !shop.IsValid() || m.index.ShopAt(shop.Location()) != shop {
		notify.Send(ctx, m.sink, player, notify.KeyShopNotValid, nil)
		return fmt.Errorf("set price of %s: %w", shop.Location(), model.ErrNotLoaded)
	}

	loc := shop.Location()
	old := shop.Price()
	if err := m.limiter.EvaluateChange(p, old, shop.Currency(), loc.World).Err(); err != nil {
		m.reportPriceRejected(ctx, player, err)
		return fmt.Errorf("set price of %s: %w", loc, err)
	}

	partner := m.attached.Partner(shop)
	shop.SetPrice(p)
	m.emit(func(l Listener) { l.ShopChanged(ctx, shop) })
	if partner != nil {
		partner.SetPrice(p)
		m.emit(func(l Listener) { l.ShopChanged(ctx, partner) })
	}
	// Цена участвует в канонизации пары: кэш соседей может устареть.
	m.attached.Invalidate(loc)

	notify.Send(ctx, m.sink, player, notify.KeyPriceChanged, notify.Params{
		"old":   m.Format(old, shop.Currency()),
		"price": m.Format(p, shop.Currency()),
	})

	slog.Info("shop price changed",
		"location", loc,
		"owner", player,
		"old", old,
		"price", p)
	return nil
}

// DispatchCreate implements interact.Dispatcher.
func (m *Manager) DispatchCreate(ctx context.Context, player uuid.UUID, info *model.Info, p float64) error {
	loc := info.Location
	if err := m.limiter.Evaluate(p, "", loc.World).Err(); err != nil {
		m.reportPriceRejected(ctx, player, err)
		return fmt.Errorf("create shop at %s: %w", loc, err)
	}

	if m.index.ShopAt(loc) != nil {
		notify.Send(ctx, m.sink, player, notify.KeyAlreadyShop, notify.Params{"location": loc.String()})
		return fmt.Errorf("create shop at %s: %w", loc, model.ErrAlreadyExists)
	}

	shop := model.NewShop(loc, player, info.Item, p, model.ShopSelling)
	if err := m.CreateShop(ctx, shop, info); err != nil {
		switch {
		case errors.Is(err, model.ErrPermissionDenied):
			notify.Send(ctx, m.sink, player, notify.KeyNoPermission, nil)
		case errors.Is(err, model.ErrAlreadyExists):
			notify.Send(ctx, m.sink, player, notify.KeyAlreadyShop, notify.Params{"location": loc.String()})
		}
		return err
	}

	notify.Send(ctx, m.sink, player, notify.KeyShopCreated, notify.Params{
		"location": loc.String(),
		"item":     shop.Item().String(),
		"price":    m.Format(p, shop.Currency()),
	})
	return nil
}

// DispatchSetPrice implements interact.Dispatcher.
func (m *Manager) DispatchSetPrice(ctx context.Context, player uuid.UUID, info *model.Info, p float64) error {
	return m.ActionSetPrice(ctx, player, info, p)
}

// DispatchTrade implements interact.Dispatcher.
func (m *Manager) DispatchTrade(ctx context.Context, player uuid.UUID, info *model.Info, amount int32) error {
	if m.players == nil {
		return fmt.Errorf("trade by %s: no player inventories: %w", player, model.ErrInvalidRequest)
	}
	inv, ok := m.players.PlayerInventory(player)
	if !ok {
		return fmt.Errorf("trade by %s: player is offline: %w", player, model.ErrInvalidRequest)
	}

	var err error
	if info.Action == model.ActionSell {
		_, err = m.ActionSell(ctx, player, inv, info, amount)
	} else {
		_, err = m.ActionBuy(ctx, player, inv, info, amount)
	}
	return err
}

func (m *Manager) reportPriceRejected(ctx context.Context, player uuid.UUID, err error) {
	params := notify.Params{"reason": err.Error()}
	var rej *price.RejectedError
	if errors.As(err, &rej) {
		params["reason"] = rej.Verdict.String()
	}
	notify.Send(ctx, m.sink, player, notify.KeyPriceRejected, params)
}

func (m *Manager) reportTradeError(ctx context.Context, player uuid.UUID, info *model.Info, err error) {
	params := notify.Params{"error": err.Error()}
	if info != nil {
		params["location"] = info.Location.String()
	}

	switch {
	case errors.Is(err, model.ErrPartialFailureUnrecovered):
		notify.Send(ctx, m.sink, player, notify.KeyOperatorAlert, params)
	case errors.Is(err, economy.ErrInsufficientFunds):
		notify.Send(ctx, m.sink, player, notify.KeyInsufficientFunds, params)
	case errors.Is(err, model.ErrNotLoaded):
		notify.Send(ctx, m.sink, player, notify.KeyShopNotValid, params)
	default:
		notify.Send(ctx, m.sink, player, notify.KeyTradeFailed, params)
	}
}
