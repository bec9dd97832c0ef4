package world

import (
	"sync"

	"github.com/google/uuid"

	"github.com/udisondev/shopkeeper/internal/model"
)

// Host is the world-simulation collaborator: container access and
// double-container topology.
type Host interface {
	// ContainerAt returns the container at loc, false if there is none.
	ContainerAt(loc model.Location) (model.Inventory, bool)
	// IsDoubleContainer reports whether a and b are the two halves of one container.
	IsDoubleContainer(a, b model.Location) bool
}

// MemoryHost — in-memory Host для тестов и standalone режима.
// Потокобезопасный: защищён RWMutex.
type MemoryHost struct {
	mu         sync.RWMutex
	containers map[model.Location]model.Inventory
	pairs      map[model.Location]model.Location // half → other half
	players    map[uuid.UUID]model.Inventory
}

// NewMemoryHost creates an empty host world.
func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		containers: make(map[model.Location]model.Inventory),
		pairs:      make(map[model.Location]model.Location),
		players:    make(map[uuid.UUID]model.Inventory),
	}
}

// PlaceContainer puts a container at loc, replacing any existing one.
func (h *MemoryHost) PlaceContainer(loc model.Location, inv model.Inventory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.containers[loc] = inv
}

// PlaceDoubleContainer places one shared inventory at two adjacent locations.
// Returns false if a and b are not horizontally adjacent.
func (h *MemoryHost) PlaceDoubleContainer(a, b model.Location, inv model.Inventory) bool {
	if !a.IsAdjacent(b) {
		return false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.containers[a] = inv
	h.containers[b] = inv
	h.pairs[a] = b
	h.pairs[b] = a
	return true
}

// BreakContainer removes the container at loc; the other half of a double
// container stays as a single container.
func (h *MemoryHost) BreakContainer(loc model.Location) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.containers, loc)
	if other, ok := h.pairs[loc]; ok {
		delete(h.pairs, other)
		delete(h.pairs, loc)
	}
}

// ContainerAt returns the container at loc.
func (h *MemoryHost) ContainerAt(loc model.Location) (model.Inventory, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	inv, ok := h.containers[loc]
	return inv, ok
}

// IsDoubleContainer reports whether a and b form one double container.
func (h *MemoryHost) IsDoubleContainer(a, b model.Location) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	other, ok := h.pairs[a]
	return ok && other == b
}

// SetPlayerInventory attaches inv to player. A nil inv detaches.
func (h *MemoryHost) SetPlayerInventory(player uuid.UUID, inv model.Inventory) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if inv == nil {
		delete(h.players, player)
		return
	}
	h.players[player] = inv
}

// PlayerInventory returns the inventory of an online player.
func (h *MemoryHost) PlayerInventory(player uuid.UUID) (model.Inventory, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	inv, ok := h.players[player]
	return inv, ok
}
