// Package shop is the entry point of the shop core: it composes the spatial
// index, the attached-shop resolver, the price limiter, the interaction
// tracker and the trade engine behind one Manager.
package shop

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/udisondev/shopkeeper/internal/economy"
	"github.com/udisondev/shopkeeper/internal/interact"
	"github.com/udisondev/shopkeeper/internal/model"
	"github.com/udisondev/shopkeeper/internal/notify"
	"github.com/udisondev/shopkeeper/internal/price"
	"github.com/udisondev/shopkeeper/internal/trade"
	"github.com/udisondev/shopkeeper/internal/world"
)

// Capability is the placement check consulted before any shop is created.
type Capability interface {
	CanPlace(ctx context.Context, actor uuid.UUID, loc model.Location, face model.BlockFace) bool
}

// AllowAll is a Capability that permits every placement.
type AllowAll struct{}

// CanPlace always returns true.
func (AllowAll) CanPlace(context.Context, uuid.UUID, model.Location, model.BlockFace) bool {
	return true
}

// Players gives access to online players' inventories.
type Players interface {
	PlayerInventory(player uuid.UUID) (model.Inventory, bool)
}

// Listener receives shop lifecycle events.
type Listener interface {
	ShopCreated(ctx context.Context, shop *model.Shop)
	ShopChanged(ctx context.Context, shop *model.Shop)
	ShopRemoved(ctx context.Context, shop *model.Shop)
}

// Config configures the manager.
type Config struct {
	PriceRules price.Rules
	Trade      trade.Options
	Interact   interact.Config
	Policy     interact.Policy

	AttachedCacheSize int
	AttachedCacheTTL  time.Duration

	// UnlimitedOwner — владелец, которому передаются магазины при миграции.
	UnlimitedOwner uuid.UUID
}

// DefaultConfig returns manager defaults.
func DefaultConfig() Config {
	return Config{
		PriceRules:        price.DefaultRules(),
		Trade:             trade.DefaultOptions(),
		Interact:          interact.DefaultConfig(),
		Policy:            interact.DefaultPolicy(),
		AttachedCacheSize: 4096,
		AttachedCacheTTL:  5 * time.Second,
	}
}

// Deps are the external collaborators of the manager.
type Deps struct {
	Host        world.Host
	Players     Players
	Capability  Capability
	Ledger      economy.Ledger
	Sink        notify.Sink
	Permissions trade.Permissions // optional
	Metrics     *trade.Metrics    // optional
}

// Manager is the shop core façade.
type Manager struct {
	cfg Config

	index    *world.Index
	attached *world.AttachedResolver
	limiter  *price.Limiter
	tracker  *interact.Tracker
	engine   *trade.Engine

	host       world.Host
	players    Players
	capability Capability
	ledger     economy.Ledger
	sink       notify.Sink

	listener atomic.Pointer[Listener]
}

// NewManager wires the core components together.
func NewManager(cfg Config, deps Deps) *Manager {
	if deps.Capability == nil {
		deps.Capability = AllowAll{}
	}

	index := world.NewIndex()
	m := &Manager{
		cfg:        cfg,
		index:      index,
		attached:   world.NewAttachedResolver(index, deps.Host, cfg.AttachedCacheSize, cfg.AttachedCacheTTL),
		limiter:    price.NewLimiter(cfg.PriceRules),
		engine:     trade.NewEngine(cfg.Trade, index, deps.Host, deps.Sink, deps.Permissions, deps.Metrics),
		host:       deps.Host,
		players:    deps.Players,
		capability: deps.Capability,
		ledger:     deps.Ledger,
		sink:       deps.Sink,
	}
	m.tracker = interact.NewTracker(cfg.Interact, deps.Sink, m)
	return m
}

// SetListener sets the lifecycle listener.
func (m *Manager) SetListener(l Listener) {
	if l == nil {
		m.listener.Store(nil)
		return
	}
	m.listener.Store(&l)
}

func (m *Manager) emit(fn func(Listener)) {
	if l := m.listener.Load(); l != nil {
		fn(*l)
	}
}

// Index returns the spatial index.
func (m *Manager) Index() *world.Index { return m.index }

// Tracker returns the interaction tracker.
func (m *Manager) Tracker() *interact.Tracker { return m.tracker }

// Engine returns the trade engine.
func (m *Manager) Engine() *trade.Engine { return m.engine }

// PriceLimiter returns the price limiter.
func (m *Manager) PriceLimiter() *price.Limiter { return m.limiter }

// Start runs background loops (blocks until context is canceled).
func (m *Manager) Start(ctx context.Context) error {
	return m.tracker.Run(ctx)
}

// CanBuildShop reports whether actor may turn the container at loc into a shop.
func (m *Manager) CanBuildShop(ctx context.Context, actor uuid.UUID, loc model.Location, face model.BlockFace) bool {
	if _, ok := m.host.ContainerAt(loc); !ok {
		return false
	}
	return m.capability.CanPlace(ctx, actor, loc, face)
}

// CreateShop validates placement, indexes shop and clears the pending info.
// The shop owner is the acting player.
func (m *Manager) CreateShop(ctx context.Context, shop *model.Shop, info *model.Info) error {
	if shop == nil {
		return fmt.Errorf("create nil shop: %w", model.ErrInvalidRequest)
	}
	owner := shop.Owner()
	loc := shop.Location()

	face := model.FaceSelf
	if info != nil {
		face = info.Face
	}
	if !m.CanBuildShop(ctx, owner, loc, face) {
		return fmt.Errorf("create shop at %s by %s: %w", loc, owner, model.ErrPermissionDenied)
	}

	if err := m.limiter.Evaluate(shop.Price(), shop.Currency(), loc.World).Err(); err != nil {
		return fmt.Errorf("create shop at %s: %w", loc, err)
	}

	if err := m.index.Add(loc.World, shop); err != nil {
		return fmt.Errorf("create shop: %w", err)
	}
	shop.OnLoad()

	if info != nil {
		m.tracker.Clear(owner, info)
	}

	m.emit(func(l Listener) { l.ShopCreated(ctx, shop) })

	slog.Info("shop created",
		"owner", owner,
		"location", loc,
		"item", shop.Item(),
		"price", shop.Price(),
		"runtimeID", shop.RuntimeID())

	return nil
}

// AddShop indexes shop without loading it.
func (m *Manager) AddShop(world string, shop *model.Shop) error {
	return m.index.Add(world, shop)
}

// LoadShop indexes shop and marks it loaded. Ingestion point for store replay.
func (m *Manager) LoadShop(world string, shop *model.Shop) error {
	if err := m.index.Add(world, shop); err != nil {
		return fmt.Errorf("load shop: %w", err)
	}
	shop.OnLoad()
	return nil
}

// RemoveShop removes shop from every index and drops pending actions on it.
func (m *Manager) RemoveShop(ctx context.Context, shop *model.Shop) error {
	if err := m.index.Remove(shop); err != nil {
		return fmt.Errorf("remove shop: %w", err)
	}
	shop.OnUnload()

	if n := m.tracker.ClearAt(shop.Location()); n > 0 {
		slog.Debug("pending actions dropped with shop", "location", shop.Location(), "count", n)
	}

	m.emit(func(l Listener) { l.ShopRemoved(ctx, shop) })

	slog.Info("shop removed",
		"owner", shop.Owner(),
		"location", shop.Location())
	return nil
}

// ShopAt returns the shop at the exact location.
func (m *Manager) ShopAt(loc model.Location) *model.Shop {
	return m.index.ShopAt(loc)
}

// ShopAtWithAttached resolves the shop at loc including double-container halves.
func (m *Manager) ShopAtWithAttached(loc model.Location, useCache bool) *model.Shop {
	return m.attached.ShopAt(loc, useCache)
}

// ShopAtChecked returns the shop at loc. Unless skipCheck is set, a shop
// whose container is gone from the host world is treated as absent.
func (m *Manager) ShopAtChecked(loc model.Location, skipCheck bool) *model.Shop {
	shop := m.index.ShopAt(loc)
	if shop == nil || skipCheck {
		return shop
	}
	if _, ok := m.host.ContainerAt(loc); !ok {
		return nil
	}
	return shop
}

// ShopsOfWorld returns a copy of the world's chunk map, nil if none.
func (m *Manager) ShopsOfWorld(world string) map[model.ShopChunk]map[model.Location]*model.Shop {
	return m.index.ShopsOfWorld(world)
}

// ShopsOfChunk returns a copy of the chunk's location map, nil if none.
func (m *Manager) ShopsOfChunk(world string, chunkX, chunkZ int32) map[model.Location]*model.Shop {
	return m.index.ShopsOfChunk(world, chunkX, chunkZ)
}

// All iterates every indexed shop.
func (m *Manager) All() iter.Seq[*model.Shop] {
	return m.index.All()
}

// AllShops returns every indexed shop.
func (m *Manager) AllShops() []*model.Shop {
	shops := make([]*model.Shop, 0, m.index.Count())
	for s := range m.index.All() {
		shops = append(shops, s)
	}
	return shops
}

// LoadedShops returns indexed shops that are currently loaded.
func (m *Manager) LoadedShops() []*model.Shop {
	var shops []*model.Shop
	for s := range m.index.All() {
		if s.IsValid() {
			shops = append(shops, s)
		}
	}
	return shops
}

// PlayerAllShops returns every indexed shop owned by player.
func (m *Manager) PlayerAllShops(player uuid.UUID) []*model.Shop {
	var shops []*model.Shop
	for s := range m.index.All() {
		if s.Owner() == player {
			shops = append(shops, s)
		}
	}
	return shops
}

// ShopsInWorld returns every indexed shop of world.
func (m *Manager) ShopsInWorld(world string) []*model.Shop {
	var shops []*model.Shop
	for _, chunk := range m.index.ShopsOfWorld(world) {
		for _, s := range chunk {
			shops = append(shops, s)
		}
	}
	return shops
}

// ShopByRuntimeID resolves a shop by runtime ID.
func (m *Manager) ShopByRuntimeID(id uuid.UUID, includeInvalid bool) *model.Shop {
	return m.index.Lookup(id, includeInvalid)
}

// BakeRuntimeID assigns and registers shop's runtime ID. Idempotent.
func (m *Manager) BakeRuntimeID(shop *model.Shop) uuid.UUID {
	return m.index.BakeRuntimeID(shop)
}

// Tax returns the tax rate actor pays trading with shop.
func (m *Manager) Tax(shop *model.Shop, actor uuid.UUID) float64 {
	return m.engine.Tax(shop, actor)
}

// ShopIsNotValid reports whether shop changed or vanished since info began.
func (m *Manager) ShopIsNotValid(actor uuid.UUID, info *model.Info, shop *model.Shop) bool {
	return m.engine.ShopIsNotValid(actor, info, shop)
}

// MigrateOwnerToUnlimitedShopOwner hands shop to the configured unlimited owner.
// Other fields stay intact.
func (m *Manager) MigrateOwnerToUnlimitedShopOwner(ctx context.Context, shop *model.Shop) error {
	if shop == nil {
		return fmt.Errorf("migrate nil shop: %w", model.ErrInvalidRequest)
	}
	if m.cfg.UnlimitedOwner == uuid.Nil {
		return fmt.Errorf("unlimited owner is not configured: %w", model.ErrInvalidRequest)
	}

	prev := shop.Owner()
	shop.SetOwner(m.cfg.UnlimitedOwner)
	m.emit(func(l Listener) { l.ShopChanged(ctx, shop) })

	slog.Info("shop owner migrated",
		"location", shop.Location(),
		"from", prev,
		"to", m.cfg.UnlimitedOwner)
	return nil
}

// Actions returns a snapshot of pending player actions.
func (m *Manager) Actions() map[uuid.UUID]model.Info {
	return m.tracker.Actions()
}

// HandleChat feeds a chat line to the player's pending action.
func (m *Manager) HandleChat(ctx context.Context, player uuid.UUID, text string) interact.Outcome {
	return m.tracker.HandleChatLine(ctx, player, text)
}

// SendPurchaseSuccess notifies the buyer of a committed purchase.
func (m *Manager) SendPurchaseSuccess(ctx context.Context, r *trade.Receipt) {
	m.engine.SendPurchaseSuccess(ctx, r)
}

// SendSellSuccess notifies the seller of a committed sale.
func (m *Manager) SendSellSuccess(ctx context.Context, r *trade.Receipt) {
	m.engine.SendSellSuccess(ctx, r)
}

// SendShopInfo sends the shop description to player.
func (m *Manager) SendShopInfo(ctx context.Context, player uuid.UUID, shop *model.Shop) {
	stock := shop.CachedStock()
	if !shop.IsUnlimited() {
		if inv, ok := m.host.ContainerAt(shop.Location()); ok {
			if shop.IsSelling() {
				stock = inv.Count(shop.Item())
			} else {
				stock = inv.Space(shop.Item())
			}
			shop.SetCachedStock(stock)
		}
	}

	notify.Send(ctx, m.sink, player, notify.KeyShopInfo, notify.Params{
		"owner":     shop.Owner().String(),
		"item":      shop.Item().String(),
		"type":      shop.Type().String(),
		"price":     m.Format(shop.Price(), shop.Currency()),
		"stock":     stock,
		"unlimited": shop.IsUnlimited(),
		"tax":       m.Tax(shop, player),
	})
}

// Format renders price for chat, e.g. "$1,234.50" or "1,234.50 gems".
func (m *Manager) Format(price float64, currency string) string {
	s := humanize.FormatFloat("#,###.##", price)
	if currency == "" || currency == economy.DefaultCurrency {
		return "$" + s
	}
	return s + " " + currency
}

// Clear unloads and drops every shop. Used at shutdown only; storage is untouched.
func (m *Manager) Clear() {
	for s := range m.index.All() {
		s.OnUnload()
	}
	m.index.Clear()
	m.attached.Purge()
	slog.Info("shop index cleared")
}
