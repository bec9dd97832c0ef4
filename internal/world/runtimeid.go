package world

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/udisondev/shopkeeper/internal/model"
)

// RuntimeIndex maps runtime-random unique IDs to loaded shops.
// It is a derived index: Index keeps it in lockstep with the spatial map.
type RuntimeIndex struct {
	shops sync.Map // map[uuid.UUID]*model.Shop
	count atomic.Int32
}

// NewRuntimeIndex creates an empty runtime ID index.
func NewRuntimeIndex() *RuntimeIndex {
	return &RuntimeIndex{}
}

// Bake assigns the shop a runtime ID (if it has none) and registers it.
// Idempotent: the ID never changes on repeated calls.
func (r *RuntimeIndex) Bake(shop *model.Shop) uuid.UUID {
	id := shop.EnsureRuntimeID()
	if _, loaded := r.shops.LoadOrStore(id, shop); !loaded {
		r.count.Add(1)
	}
	return id
}

// Lookup returns the shop registered under id.
// Invalid shops are reported absent unless includeInvalid is set.
func (r *RuntimeIndex) Lookup(id uuid.UUID, includeInvalid bool) *model.Shop {
	v, ok := r.shops.Load(id)
	if !ok {
		return nil
	}
	shop := v.(*model.Shop)
	if !includeInvalid && !shop.IsValid() {
		return nil
	}
	return shop
}

// Forget removes the shop's entry if it is still the registered one.
func (r *RuntimeIndex) Forget(shop *model.Shop) {
	id := shop.RuntimeID()
	if id == uuid.Nil {
		return
	}
	if r.shops.CompareAndDelete(id, shop) {
		r.count.Add(-1)
	}
}

// Count returns the number of registered IDs.
func (r *RuntimeIndex) Count() int {
	return int(r.count.Load())
}

// Clear drops every entry.
func (r *RuntimeIndex) Clear() {
	r.shops.Range(func(key, _ any) bool {
		r.shops.Delete(key)
		return true
	})
	r.count.Store(0)
}
