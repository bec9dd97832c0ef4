package world

import (
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/udisondev/shopkeeper/internal/model"
)

// Index is the three-level shop map: world → chunk → location → shop.
// The runtime ID index is updated in the same Add/Remove call.
//
// Single writer (the simulation thread) is assumed for Add/Remove/Clear.
// Lookups may run on any goroutine and never take an exclusive lock: a reader
// sees a shop either fully linked or absent.
type Index struct {
	worlds  sync.Map // map[string]*worldShard
	runtime *RuntimeIndex
	count   atomic.Int32

	hooksMu sync.Mutex
	hooks   atomic.Pointer[[]func(model.Location)]
}

type worldShard struct {
	name   string
	chunks sync.Map // map[model.ShopChunk]*Chunk
}

// NewIndex creates an empty shop index.
func NewIndex() *Index {
	return &Index{runtime: NewRuntimeIndex()}
}

// Runtime returns the runtime ID index.
func (idx *Index) Runtime() *RuntimeIndex {
	return idx.runtime
}

// OnMutation registers fn to be called with the location of every shop
// added or removed. Used for cache invalidation.
func (idx *Index) OnMutation(fn func(model.Location)) {
	idx.hooksMu.Lock()
	defer idx.hooksMu.Unlock()

	var next []func(model.Location)
	if cur := idx.hooks.Load(); cur != nil {
		next = append(next, *cur...)
	}
	next = append(next, fn)
	idx.hooks.Store(&next)
}

func (idx *Index) notify(loc model.Location) {
	hooks := idx.hooks.Load()
	if hooks == nil {
		return
	}
	for _, fn := range *hooks {
		fn(loc)
	}
}

// Add inserts shop at its location in world and registers its runtime ID.
// Does NOT require the chunk or world to be loaded by the host.
// Returns model.ErrAlreadyExists if a different shop holds the location;
// adding the same shop twice is a no-op.
func (idx *Index) Add(world string, shop *model.Shop) error {
	if shop == nil {
		return fmt.Errorf("add nil shop: %w", model.ErrInvalidRequest)
	}
	loc := shop.Location()
	if loc.World != world {
		return fmt.Errorf("shop at %s added to world %q: %w", loc, world, model.ErrInvalidRequest)
	}

	ws := idx.shard(world)
	chunk := ws.chunk(loc.Chunk())

	actual, inserted := chunk.insert(shop)
	if !inserted {
		if actual == shop {
			return nil
		}
		return fmt.Errorf("add shop at %s: %w", loc, model.ErrAlreadyExists)
	}

	idx.runtime.Bake(shop)
	idx.count.Add(1)
	idx.notify(loc)
	return nil
}

// Remove deletes the shop's exact-location entry and its runtime ID.
// Returns model.ErrNotLoaded if the world is not indexed or the location
// holds no such shop.
func (idx *Index) Remove(shop *model.Shop) error {
	if shop == nil {
		return fmt.Errorf("remove nil shop: %w", model.ErrInvalidRequest)
	}
	loc := shop.Location()

	v, ok := idx.worlds.Load(loc.World)
	if !ok {
		return fmt.Errorf("remove shop at %s: world %q: %w", loc, loc.World, model.ErrNotLoaded)
	}
	ws := v.(*worldShard)

	cv, ok := ws.chunks.Load(loc.Chunk())
	if !ok || !cv.(*Chunk).delete(shop) {
		return fmt.Errorf("remove shop at %s: %w", loc, model.ErrNotLoaded)
	}

	idx.runtime.Forget(shop)
	idx.count.Add(-1)
	idx.notify(loc)
	return nil
}

// ShopAt returns the shop at the exact location (no attached resolution).
func (idx *Index) ShopAt(loc model.Location) *model.Shop {
	chunk := idx.chunk(loc.Chunk())
	if chunk == nil {
		return nil
	}
	return chunk.Get(loc)
}

// ShopsOfChunk returns location → shop for the chunk, nil if absent or empty.
func (idx *Index) ShopsOfChunk(world string, chunkX, chunkZ int32) map[model.Location]*model.Shop {
	return idx.ShopsOfChunkAt(model.NewShopChunk(world, chunkX, chunkZ))
}

// ShopsOfChunkAt is ShopsOfChunk keyed by ShopChunk.
func (idx *Index) ShopsOfChunkAt(key model.ShopChunk) map[model.Location]*model.Shop {
	chunk := idx.chunk(key)
	if chunk == nil {
		return nil
	}
	return chunk.Map()
}

// ShopsOfWorld returns chunk → location → shop for world, nil if absent or empty.
// The returned maps are copies.
func (idx *Index) ShopsOfWorld(world string) map[model.ShopChunk]map[model.Location]*model.Shop {
	v, ok := idx.worlds.Load(world)
	if !ok {
		return nil
	}
	ws := v.(*worldShard)

	var result map[model.ShopChunk]map[model.Location]*model.Shop
	ws.chunks.Range(func(key, value any) bool {
		m := value.(*Chunk).Map()
		if m == nil {
			return true
		}
		if result == nil {
			result = make(map[model.ShopChunk]map[model.Location]*model.Shop)
		}
		result[key.(model.ShopChunk)] = m
		return true
	})
	return result
}

// Worlds returns names of worlds that have ever held a shop.
func (idx *Index) Worlds() []string {
	var names []string
	idx.worlds.Range(func(key, _ any) bool {
		names = append(names, key.(string))
		return true
	})
	return names
}

// All iterates every loaded shop across all worlds and chunks.
// Each chunk is read through its immutable snapshot; under concurrent
// mutation the sequence may miss shops but never panics.
func (idx *Index) All() iter.Seq[*model.Shop] {
	return func(yield func(*model.Shop) bool) {
		stopped := false
		idx.worlds.Range(func(_, wv any) bool {
			wv.(*worldShard).chunks.Range(func(_, cv any) bool {
				for _, shop := range cv.(*Chunk).Snapshot() {
					if !yield(shop) {
						stopped = true
						return false
					}
				}
				return true
			})
			return !stopped
		})
	}
}

// Lookup returns the shop with the given runtime ID.
func (idx *Index) Lookup(id uuid.UUID, includeInvalid bool) *model.Shop {
	return idx.runtime.Lookup(id, includeInvalid)
}

// BakeRuntimeID assigns the shop a runtime ID and, if the shop is the one
// indexed at its location, registers it. Idempotent.
func (idx *Index) BakeRuntimeID(shop *model.Shop) uuid.UUID {
	if idx.ShopAt(shop.Location()) != shop {
		return shop.EnsureRuntimeID()
	}
	return idx.runtime.Bake(shop)
}

// Count returns total number of indexed shops.
func (idx *Index) Count() int {
	return int(idx.count.Load())
}

// Clear drops every entry from both indexes. Used at full shutdown only.
func (idx *Index) Clear() {
	removed := 0
	idx.worlds.Range(func(key, wv any) bool {
		wv.(*worldShard).chunks.Range(func(_, cv any) bool {
			chunk := cv.(*Chunk)
			for _, shop := range chunk.Snapshot() {
				idx.notify(shop.Location())
			}
			removed += chunk.Len()
			chunk.clear()
			return true
		})
		idx.worlds.Delete(key)
		return true
	})
	idx.runtime.Clear()
	idx.count.Store(0)

	slog.Debug("shop index cleared", "removed", removed)
}

func (idx *Index) shard(world string) *worldShard {
	if v, ok := idx.worlds.Load(world); ok {
		return v.(*worldShard)
	}
	v, _ := idx.worlds.LoadOrStore(world, &worldShard{name: world})
	return v.(*worldShard)
}

func (idx *Index) chunk(key model.ShopChunk) *Chunk {
	v, ok := idx.worlds.Load(key.World)
	if !ok {
		return nil
	}
	cv, ok := v.(*worldShard).chunks.Load(key)
	if !ok {
		return nil
	}
	return cv.(*Chunk)
}

func (ws *worldShard) chunk(key model.ShopChunk) *Chunk {
	if v, ok := ws.chunks.Load(key); ok {
		return v.(*Chunk)
	}
	v, _ := ws.chunks.LoadOrStore(key, NewChunk(key))
	return v.(*Chunk)
}
