package testutil

import (
	"testing"

	"github.com/udisondev/shopkeeper/internal/model"
	"github.com/udisondev/shopkeeper/internal/world"
)

// StockedHost создаёт MemoryHost с одним контейнером по loc, в котором лежит
// stock единиц Fixtures.Diamond.
func StockedHost(t testing.TB, loc model.Location, stock int32) (*world.MemoryHost, *model.MemoryInventory) {
	t.Helper()

	host := world.NewMemoryHost()
	inv := model.NewMemoryInventory(27)
	if stock > 0 {
		if err := inv.Add(Fixtures.Diamond, stock); err != nil {
			t.Fatalf("stocking container at %s: %v", loc, err)
		}
	}
	host.PlaceContainer(loc, inv)

	return host, inv
}
