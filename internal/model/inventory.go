package model

import (
	"fmt"
	"maps"
	"sync"
)

// Inventory is the inventory-like handle the host world hands out for
// players and shop containers.
type Inventory interface {
	// Count returns how many units of item the inventory holds.
	Count(item Item) int32
	// Space returns how many more units of item fit.
	Space(item Item) int32
	// Add puts n units of item. Either all n fit or nothing changes.
	Add(item Item, n int32) error
	// Remove takes n units of item. Either all n are taken or nothing changes.
	Remove(item Item, n int32) error
}

// MemoryInventory — in-memory inventory со слотами и стаками.
// Потокобезопасный: защищён RWMutex.
type MemoryInventory struct {
	slots  int32
	counts map[string]int32 // item key → count
	items  map[string]Item  // item key → descriptor (для stack size)

	mu sync.RWMutex
}

// NewMemoryInventory создаёт пустой инвентарь на slots слотов.
func NewMemoryInventory(slots int32) *MemoryInventory {
	return &MemoryInventory{
		slots:  slots,
		counts: make(map[string]int32),
		items:  make(map[string]Item),
	}
}

// Count returns units of item held.
func (inv *MemoryInventory) Count(item Item) int32 {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.counts[item.Key()]
}

// Space returns how many more units of item fit into free slots and
// into the partially filled stack of the same item.
func (inv *MemoryInventory) Space(item Item) int32 {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return inv.spaceLocked(item)
}

func (inv *MemoryInventory) spaceLocked(item Item) int32 {
	stack := item.StackSize()
	free := inv.slots - inv.usedSlotsLocked()
	if free < 0 {
		free = 0
	}
	space := free * stack
	if rem := inv.counts[item.Key()] % stack; rem != 0 {
		space += stack - rem
	}
	return space
}

func (inv *MemoryInventory) usedSlotsLocked() int32 {
	var used int32
	for key, count := range inv.counts {
		stack := inv.items[key].StackSize()
		used += (count + stack - 1) / stack
	}
	return used
}

// Add puts n units of item into the inventory.
func (inv *MemoryInventory) Add(item Item, n int32) error {
	if n <= 0 {
		return fmt.Errorf("add count must be > 0, got %d", n)
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if space := inv.spaceLocked(item); space < n {
		return fmt.Errorf("not enough space for %s: have %d, need %d", item.Key(), space, n)
	}

	key := item.Key()
	inv.counts[key] += n
	inv.items[key] = item
	return nil
}

// Remove takes n units of item out of the inventory.
func (inv *MemoryInventory) Remove(item Item, n int32) error {
	if n <= 0 {
		return fmt.Errorf("remove count must be > 0, got %d", n)
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	key := item.Key()
	current := inv.counts[key]
	if current < n {
		return fmt.Errorf("not enough %s: have %d, need %d", key, current, n)
	}

	if current == n {
		delete(inv.counts, key)
		delete(inv.items, key)
		return nil
	}
	inv.counts[key] = current - n
	return nil
}

// Snapshot возвращает копию содержимого (item key → count).
func (inv *MemoryInventory) Snapshot() map[string]int32 {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	return maps.Clone(inv.counts)
}
