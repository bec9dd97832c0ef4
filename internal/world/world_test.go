package world

import (
	"errors"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/udisondev/shopkeeper/internal/model"
)

func newTestShop(world string, x, y, z int32) *model.Shop {
	s := model.NewShop(model.NewLocation(world, x, y, z), uuid.New(), model.NewItem("diamond"), 10.0, model.ShopSelling)
	s.OnLoad()
	return s
}

func TestIndex_AddAndShopAt(t *testing.T) {
	idx := NewIndex()
	shop := newTestShop("world", 5, 64, 5)

	if err := idx.Add("world", shop); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	if got := idx.ShopAt(shop.Location()); got != shop {
		t.Errorf("ShopAt() = %v, want %v", got, shop)
	}
	if idx.Count() != 1 {
		t.Errorf("Count() = %d, want 1", idx.Count())
	}
	if got := idx.ShopAt(model.NewLocation("world", 5, 65, 5)); got != nil {
		t.Errorf("ShopAt(other y) = %v, want nil", got)
	}
}

func TestIndex_Add_Duplicate(t *testing.T) {
	idx := NewIndex()
	first := newTestShop("world", 1, 64, 1)
	second := newTestShop("world", 1, 64, 1)

	if err := idx.Add("world", first); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}

	err := idx.Add("world", second)
	if !errors.Is(err, model.ErrAlreadyExists) {
		t.Fatalf("Add(distinct shop, same location) = %v, want ErrAlreadyExists", err)
	}
	if got := idx.ShopAt(first.Location()); got != first {
		t.Error("duplicate Add overwrote the existing shop")
	}

	// Re-adding the same shop is a no-op
	if err := idx.Add("world", first); err != nil {
		t.Errorf("re-Add of same shop = %v, want nil", err)
	}
	if idx.Count() != 1 {
		t.Errorf("Count() = %d, want 1", idx.Count())
	}
}

func TestIndex_Add_WorldMismatch(t *testing.T) {
	idx := NewIndex()
	shop := newTestShop("world", 1, 64, 1)

	if err := idx.Add("nether", shop); !errors.Is(err, model.ErrInvalidRequest) {
		t.Errorf("Add(wrong world) = %v, want ErrInvalidRequest", err)
	}
}

func TestIndex_Remove(t *testing.T) {
	idx := NewIndex()
	shop := newTestShop("world", 5, 64, 5)

	if err := idx.Add("world", shop); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	id := shop.RuntimeID()

	if err := idx.Remove(shop); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if got := idx.ShopAt(shop.Location()); got != nil {
		t.Errorf("ShopAt() after Remove = %v, want nil", got)
	}
	if got := idx.Lookup(id, true); got != nil {
		t.Errorf("runtime ID still resolves after Remove: %v", got)
	}
	if idx.Count() != 0 {
		t.Errorf("Count() = %d, want 0", idx.Count())
	}
}

func TestIndex_Remove_NotLoaded(t *testing.T) {
	idx := NewIndex()
	shop := newTestShop("world", 5, 64, 5)

	if err := idx.Remove(shop); !errors.Is(err, model.ErrNotLoaded) {
		t.Errorf("Remove(unknown world) = %v, want ErrNotLoaded", err)
	}

	other := newTestShop("world", 6, 64, 6)
	if err := idx.Add("world", other); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := idx.Remove(shop); !errors.Is(err, model.ErrNotLoaded) {
		t.Errorf("Remove(not indexed) = %v, want ErrNotLoaded", err)
	}

	// A distinct shop object at an occupied location must not evict the indexed one
	impostor := newTestShop("world", 6, 64, 6)
	if err := idx.Remove(impostor); !errors.Is(err, model.ErrNotLoaded) {
		t.Errorf("Remove(impostor) = %v, want ErrNotLoaded", err)
	}
	if idx.ShopAt(other.Location()) != other {
		t.Error("Remove(impostor) evicted the indexed shop")
	}
}

func TestIndex_ShopsOfChunk(t *testing.T) {
	idx := NewIndex()
	a := newTestShop("world", 1, 64, 1)
	b := newTestShop("world", 15, 70, 15)
	c := newTestShop("world", 16, 64, 0) // chunk (1, 0)

	for _, s := range []*model.Shop{a, b, c} {
		if err := idx.Add("world", s); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	chunk := idx.ShopsOfChunk("world", 0, 0)
	if len(chunk) != 2 {
		t.Fatalf("len(ShopsOfChunk(0,0)) = %d, want 2", len(chunk))
	}
	if chunk[a.Location()] != a || chunk[b.Location()] != b {
		t.Error("ShopsOfChunk(0,0) missing shops")
	}

	if got := idx.ShopsOfChunk("world", 5, 5); got != nil {
		t.Errorf("ShopsOfChunk(absent) = %v, want nil", got)
	}

	// Empty chunk after removal behaves like an absent one
	if err := idx.Remove(c); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got := idx.ShopsOfChunk("world", 1, 0); got != nil {
		t.Errorf("ShopsOfChunk(emptied) = %v, want nil", got)
	}
}

func TestIndex_ShopsOfWorld(t *testing.T) {
	idx := NewIndex()
	a := newTestShop("world", 1, 64, 1)
	b := newTestShop("world", 100, 64, 100)
	n := newTestShop("nether", 1, 64, 1)

	for _, s := range []*model.Shop{a, b, n} {
		if err := idx.Add(s.Location().World, s); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
	}

	w := idx.ShopsOfWorld("world")
	if len(w) != 2 {
		t.Fatalf("len(ShopsOfWorld) = %d chunks, want 2", len(w))
	}
	if w[a.Location().Chunk()][a.Location()] != a {
		t.Error("ShopsOfWorld missing shop a")
	}
	if idx.ShopsOfWorld("end") != nil {
		t.Error("ShopsOfWorld(absent) should be nil")
	}

	// Returned maps are copies
	delete(w[a.Location().Chunk()], a.Location())
	if idx.ShopAt(a.Location()) != a {
		t.Error("mutating ShopsOfWorld result changed the index")
	}
}

func TestIndex_All(t *testing.T) {
	idx := NewIndex()
	want := map[*model.Shop]bool{}
	for i := range int32(50) {
		s := newTestShop("world", i*7, 64, -i*5)
		if err := idx.Add("world", s); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		want[s] = true
	}

	got := map[*model.Shop]bool{}
	for s := range idx.All() {
		if got[s] {
			t.Fatalf("All() yielded %v twice", s)
		}
		got[s] = true
	}
	if len(got) != len(want) {
		t.Errorf("All() yielded %d shops, want %d", len(got), len(want))
	}

	// Early break
	n := 0
	for range idx.All() {
		n++
		if n == 3 {
			break
		}
	}
	if n != 3 {
		t.Errorf("early break: iterated %d, want 3", n)
	}
}

func TestIndex_Clear(t *testing.T) {
	idx := NewIndex()
	s := newTestShop("world", 1, 64, 1)
	if err := idx.Add("world", s); err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	idx.Clear()

	if idx.Count() != 0 {
		t.Errorf("Count() = %d after Clear, want 0", idx.Count())
	}
	if idx.ShopAt(s.Location()) != nil {
		t.Error("ShopAt() after Clear should be nil")
	}
	if idx.Runtime().Count() != 0 {
		t.Error("runtime index not cleared")
	}
}

// Каждая локация отражает ровно последнюю операцию над ней.
func TestIndex_RandomAddRemove_LastOperationWins(t *testing.T) {
	idx := NewIndex()
	rng := rand.New(rand.NewPCG(1, 2))
	present := map[model.Location]*model.Shop{}

	for range 2000 {
		loc := model.NewLocation("world", rng.Int32N(20)-10, 64, rng.Int32N(20)-10)
		if cur, ok := present[loc]; ok && rng.IntN(2) == 0 {
			if err := idx.Remove(cur); err != nil {
				t.Fatalf("Remove(%v) failed: %v", loc, err)
			}
			delete(present, loc)
			continue
		}
		s := newTestShop(loc.World, loc.X, loc.Y, loc.Z)
		err := idx.Add("world", s)
		if _, ok := present[loc]; ok {
			if !errors.Is(err, model.ErrAlreadyExists) {
				t.Fatalf("Add over existing = %v, want ErrAlreadyExists", err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Add(%v) failed: %v", loc, err)
		}
		present[loc] = s
	}

	for x := int32(-10); x < 10; x++ {
		for z := int32(-10); z < 10; z++ {
			loc := model.NewLocation("world", x, 64, z)
			if got, want := idx.ShopAt(loc), present[loc]; got != want {
				t.Fatalf("ShopAt(%v) = %v, want %v", loc, got, want)
			}
		}
	}
	if idx.Count() != len(present) {
		t.Errorf("Count() = %d, want %d", idx.Count(), len(present))
	}
	if idx.Runtime().Count() != len(present) {
		t.Errorf("runtime Count() = %d, want %d", idx.Runtime().Count(), len(present))
	}
	for _, s := range present {
		if idx.Lookup(s.RuntimeID(), false) != s {
			t.Fatalf("runtime index out of sync for %v", s)
		}
	}
}

func TestIndex_ConcurrentReadsDuringWrites(t *testing.T) {
	idx := NewIndex()
	shops := make([]*model.Shop, 200)
	for i := range shops {
		shops[i] = newTestShop("world", int32(i), 64, int32(i%16))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for _, s := range shops {
					if got := idx.ShopAt(s.Location()); got != nil && got != s {
						t.Errorf("reader saw foreign shop at %v", s.Location())
						return
					}
				}
				for range idx.All() {
				}
			}
		}()
	}

	for round := range 5 {
		for _, s := range shops {
			if err := idx.Add("world", s); err != nil {
				t.Errorf("round %d Add failed: %v", round, err)
			}
		}
		for _, s := range shops {
			if err := idx.Remove(s); err != nil {
				t.Errorf("round %d Remove failed: %v", round, err)
			}
		}
	}
	close(stop)
	wg.Wait()

	if idx.Count() != 0 {
		t.Errorf("Count() = %d, want 0", idx.Count())
	}
}

func TestIndex_OnMutation(t *testing.T) {
	idx := NewIndex()
	var seen []model.Location
	idx.OnMutation(func(loc model.Location) { seen = append(seen, loc) })

	s := newTestShop("world", 3, 64, 3)
	if err := idx.Add("world", s); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := idx.Remove(s); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}

	if len(seen) != 2 || seen[0] != s.Location() || seen[1] != s.Location() {
		t.Errorf("mutation hooks saw %v, want two events at %v", seen, s.Location())
	}
}
