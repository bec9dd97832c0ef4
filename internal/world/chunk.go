package world

import (
	"sync"
	"sync/atomic"

	"github.com/udisondev/shopkeeper/internal/model"
)

// Chunk is the leaf level of the index: location → shop for one 16×16 column.
// Readers never take a lock; inserts and deletes are atomic per location.
type Chunk struct {
	key model.ShopChunk

	shops sync.Map // map[model.Location]*model.Shop

	// Snapshot cache, valid only while its version matches the chunk's.
	snapshot atomic.Pointer[chunkSnapshot]

	version atomic.Uint64 // incremented on every insert/delete
	size    atomic.Int32
}

type chunkSnapshot struct {
	version uint64
	shops   []*model.Shop
}

// NewChunk creates an empty chunk leaf.
func NewChunk(key model.ShopChunk) *Chunk {
	return &Chunk{key: key}
}

// Key returns chunk coordinates.
func (c *Chunk) Key() model.ShopChunk {
	return c.key
}

// Version returns current chunk version (incremented on insert/delete).
func (c *Chunk) Version() uint64 {
	return c.version.Load()
}

// Len returns the number of shops in the chunk.
func (c *Chunk) Len() int {
	return int(c.size.Load())
}

// Get returns the shop at loc or nil.
func (c *Chunk) Get(loc model.Location) *model.Shop {
	v, ok := c.shops.Load(loc)
	if !ok {
		return nil
	}
	return v.(*model.Shop)
}

// insert stores shop at its location unless another shop is there.
// Returns the shop occupying the location afterwards and whether it was inserted.
func (c *Chunk) insert(shop *model.Shop) (*model.Shop, bool) {
	actual, loaded := c.shops.LoadOrStore(shop.Location(), shop)
	if loaded {
		return actual.(*model.Shop), false
	}
	c.size.Add(1)
	c.version.Add(1)
	return shop, true
}

// delete removes shop only if it still occupies its location.
func (c *Chunk) delete(shop *model.Shop) bool {
	if !c.shops.CompareAndDelete(shop.Location(), shop) {
		return false
	}
	c.size.Add(-1)
	c.version.Add(1)
	return true
}

// clear drops every entry.
func (c *Chunk) clear() {
	c.shops.Range(func(key, _ any) bool {
		c.shops.Delete(key)
		return true
	})
	c.size.Store(0)
	c.version.Add(1)
	c.snapshot.Store(nil)
}

// Snapshot returns cached immutable slice of shops in the chunk.
// IMPORTANT: Returned slice is immutable — DO NOT modify.
func (c *Chunk) Snapshot() []*model.Shop {
	if snap := c.snapshot.Load(); snap != nil && snap.version == c.version.Load() {
		return snap.shops
	}
	return c.rebuildSnapshot()
}

// Map returns a fresh location → shop map, nil when the chunk is empty.
func (c *Chunk) Map() map[model.Location]*model.Shop {
	snap := c.Snapshot()
	if len(snap) == 0 {
		return nil
	}
	m := make(map[model.Location]*model.Shop, len(snap))
	for _, s := range snap {
		m[s.Location()] = s
	}
	return m
}

func (c *Chunk) rebuildSnapshot() []*model.Shop {
	old := c.snapshot.Load()
	// Версия читается до обхода: мутация во время обхода поднимет её,
	// и такой снимок не будет опубликован как актуальный.
	v := c.version.Load()

	shops := make([]*model.Shop, 0, c.Len())
	c.shops.Range(func(_, value any) bool {
		shops = append(shops, value.(*model.Shop))
		return true
	})

	if c.version.Load() == v {
		c.snapshot.CompareAndSwap(old, &chunkSnapshot{version: v, shops: shops})
	}
	return shops
}
