package model

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ShopType определяет направление торговли магазина.
type ShopType int8

const (
	// ShopSelling — магазин продаёт, игроки покупают (actionBuy).
	ShopSelling ShopType = 0
	// ShopBuying — магазин скупает, игроки продают (actionSell).
	ShopBuying ShopType = 1
)

// String returns human-readable shop type name.
func (t ShopType) String() string {
	switch t {
	case ShopSelling:
		return "Selling"
	case ShopBuying:
		return "Buying"
	default:
		return "Unknown"
	}
}

// ShopData — плоское представление магазина для persistence слоя.
type ShopData struct {
	ID        int64
	Location  Location
	Owner     uuid.UUID
	Price     float64
	Currency  string
	Item      Item
	Type      ShopType
	Unlimited bool
}

// Shop is a trading entity bound to a single container location.
//
// Location is immutable. Mutable fields are guarded by mu; the runtime ID is
// assigned once and never regenerated while the shop stays loaded. tradeMu is
// the per-shop ordering token held by the transaction engine.
type Shop struct {
	location Location

	mu        sync.RWMutex
	id        int64 // durable row ID, 0 until persisted
	owner     uuid.UUID
	runtimeID uuid.UUID
	price     float64
	currency  string
	item      Item
	shopType  ShopType
	unlimited bool
	stock     int32 // cached stock (selling) or free space (buying), -1 unknown

	valid   atomic.Bool
	tradeMu sync.Mutex
}

// NewShop создаёт новый магазин. Магазин невалиден до OnLoad.
func NewShop(loc Location, owner uuid.UUID, item Item, price float64, shopType ShopType) *Shop {
	return &Shop{
		location: loc,
		owner:    owner,
		item:     item,
		price:    price,
		shopType: shopType,
		stock:    -1,
	}
}

// NewShopFromData восстанавливает магазин из persistence записи.
func NewShopFromData(d ShopData) *Shop {
	s := NewShop(d.Location, d.Owner, d.Item, d.Price, d.Type)
	s.id = d.ID
	s.currency = d.Currency
	s.unlimited = d.Unlimited
	return s
}

// Data возвращает снимок полей для persistence.
func (s *Shop) Data() ShopData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ShopData{
		ID:        s.id,
		Location:  s.location,
		Owner:     s.owner,
		Price:     s.price,
		Currency:  s.currency,
		Item:      s.item,
		Type:      s.shopType,
		Unlimited: s.unlimited,
	}
}

// Location возвращает локацию контейнера магазина (immutable).
func (s *Shop) Location() Location {
	return s.location
}

// ID returns durable row ID (0 if not persisted yet).
func (s *Shop) ID() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// SetID sets durable row ID after the first insert.
func (s *Shop) SetID(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = id
}

// Owner returns owner identifier.
func (s *Shop) Owner() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owner
}

// SetOwner reassigns shop owner.
func (s *Shop) SetOwner(owner uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owner = owner
}

// RuntimeID returns runtime-random unique ID (uuid.Nil until baked).
func (s *Shop) RuntimeID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runtimeID
}

// EnsureRuntimeID assigns a random runtime ID if none exists and returns it.
// Idempotent: later calls return the same ID.
func (s *Shop) EnsureRuntimeID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.runtimeID == uuid.Nil {
		s.runtimeID = uuid.New()
	}
	return s.runtimeID
}

// Price returns unit price.
func (s *Shop) Price() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.price
}

// SetPrice updates unit price. Validation is the caller's job (price.Limiter).
func (s *Shop) SetPrice(price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.price = price
}

// Currency returns currency name ("" = ledger default).
func (s *Shop) Currency() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currency
}

// SetCurrency sets currency name.
func (s *Shop) SetCurrency(currency string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currency = currency
}

// Item returns traded item descriptor.
func (s *Shop) Item() Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.item
}

// Type returns trade direction.
func (s *Shop) Type() ShopType {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shopType
}

// SetType switches trade direction.
func (s *Shop) SetType(t ShopType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shopType = t
}

// IsSelling returns true if players buy from this shop.
func (s *Shop) IsSelling() bool {
	return s.Type() == ShopSelling
}

// IsBuying returns true if players sell to this shop.
func (s *Shop) IsBuying() bool {
	return s.Type() == ShopBuying
}

// IsUnlimited returns true if stock checks are skipped.
func (s *Shop) IsUnlimited() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unlimited
}

// SetUnlimited toggles unlimited stock mode.
func (s *Shop) SetUnlimited(unlimited bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unlimited = unlimited
}

// CachedStock returns last known stock (selling) or space (buying), -1 if unknown.
func (s *Shop) CachedStock() int32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stock
}

// SetCachedStock updates stock bookkeeping after a trade.
func (s *Shop) SetCachedStock(stock int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock = stock
}

// IsValid returns false once the shop is unloaded or deleted.
func (s *Shop) IsValid() bool {
	return s.valid.Load()
}

// OnLoad marks the shop as loaded and valid.
func (s *Shop) OnLoad() {
	s.valid.Store(true)
}

// OnUnload marks the shop invalid. References held past this point must not trade.
func (s *Shop) OnUnload() {
	s.valid.Store(false)
}

// LockTrade acquires the per-shop ordering token.
func (s *Shop) LockTrade() {
	s.tradeMu.Lock()
}

// UnlockTrade releases the per-shop ordering token.
func (s *Shop) UnlockTrade() {
	s.tradeMu.Unlock()
}

func (s *Shop) String() string {
	return fmt.Sprintf("Shop{%s %s %s @%.2f}", s.location, s.Type(), s.Item().Key(), s.Price())
}
