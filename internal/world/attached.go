package world

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/udisondev/shopkeeper/internal/model"
)

// AttachedResolver resolves the shop that represents a double container.
//
// Both halves of a pair resolve to the same canonical shop (lowest location
// order). Cached resolutions are dropped whenever the index adds or removes a
// shop at the location or one of its horizontal neighbours, and expire after ttl.
type AttachedResolver struct {
	index *Index
	host  Host
	cache *expirable.LRU[model.Location, *model.Shop]
	group singleflight.Group
}

// NewAttachedResolver creates a resolver bound to index mutations.
func NewAttachedResolver(index *Index, host Host, size int, ttl time.Duration) *AttachedResolver {
	if size <= 0 {
		size = 4096
	}
	r := &AttachedResolver{
		index: index,
		host:  host,
		cache: expirable.NewLRU[model.Location, *model.Shop](size, nil, ttl),
	}
	index.OnMutation(r.Invalidate)
	return r
}

// ShopAt returns the shop at loc, or the shop owning the other half of the
// double container at loc. Nil if neither exists.
func (r *AttachedResolver) ShopAt(loc model.Location, useCache bool) *model.Shop {
	if !useCache {
		return r.Resolve(loc)
	}

	if shop, ok := r.cache.Get(loc); ok {
		if shop.IsValid() {
			return shop
		}
		r.cache.Remove(loc)
	}

	v, _, _ := r.group.Do(loc.String(), func() (any, error) {
		shop := r.Resolve(loc)
		// Misses are not cached; an Add invalidates the neighbours anyway.
		if shop != nil {
			r.cache.Add(loc, shop)
		}
		return shop, nil
	})
	return v.(*model.Shop)
}

// Resolve computes the attached shop without touching the cache.
func (r *AttachedResolver) Resolve(loc model.Location) *model.Shop {
	if shop := r.index.ShopAt(loc); shop != nil {
		return r.canonical(shop)
	}

	for _, n := range loc.Neighbors() {
		if !r.host.IsDoubleContainer(loc, n) {
			continue
		}
		if shop := r.index.ShopAt(n); shop != nil {
			return r.canonical(shop)
		}
	}
	return nil
}

// Partner returns the other shop of a double-container pair: adjacent,
// same owner and same price. Nil if shop is single.
func (r *AttachedResolver) Partner(shop *model.Shop) *model.Shop {
	loc := shop.Location()
	for _, n := range loc.Neighbors() {
		if !r.host.IsDoubleContainer(loc, n) {
			continue
		}
		other := r.index.ShopAt(n)
		if other == nil || other == shop {
			continue
		}
		if other.Owner() == shop.Owner() && other.Price() == shop.Price() {
			return other
		}
	}
	return nil
}

// Invalidate drops cached resolutions for loc and its horizontal neighbours.
func (r *AttachedResolver) Invalidate(loc model.Location) {
	r.cache.Remove(loc)
	for _, n := range loc.Neighbors() {
		r.cache.Remove(n)
	}
}

// Purge drops every cached resolution.
func (r *AttachedResolver) Purge() {
	r.cache.Purge()
}

// CacheLen returns number of cached resolutions.
func (r *AttachedResolver) CacheLen() int {
	return r.cache.Len()
}

func (r *AttachedResolver) canonical(shop *model.Shop) *model.Shop {
	partner := r.Partner(shop)
	if partner != nil && partner.Location().Less(shop.Location()) {
		return partner
	}
	return shop
}
