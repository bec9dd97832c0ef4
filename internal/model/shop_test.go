package model

import (
	"sync"
	"testing"

	"github.com/google/uuid"
)

func newTestShop() *Shop {
	return NewShop(NewLocation("world", 5, 64, 5), uuid.New(), NewItem("diamond"), 10.0, ShopSelling)
}

func TestNewShop_InvalidUntilLoaded(t *testing.T) {
	s := newTestShop()

	if s.IsValid() {
		t.Error("new shop must be invalid until OnLoad")
	}
	s.OnLoad()
	if !s.IsValid() {
		t.Error("IsValid() = false after OnLoad")
	}
	s.OnUnload()
	if s.IsValid() {
		t.Error("IsValid() = true after OnUnload")
	}
}

func TestShop_EnsureRuntimeID_Idempotent(t *testing.T) {
	s := newTestShop()

	if s.RuntimeID() != uuid.Nil {
		t.Fatal("runtime ID must be nil before baking")
	}

	first := s.EnsureRuntimeID()
	second := s.EnsureRuntimeID()
	if first == uuid.Nil {
		t.Fatal("EnsureRuntimeID returned nil UUID")
	}
	if first != second {
		t.Errorf("EnsureRuntimeID changed ID: %v -> %v", first, second)
	}
}

func TestShop_EnsureRuntimeID_Concurrent(t *testing.T) {
	s := newTestShop()

	var wg sync.WaitGroup
	ids := make([]uuid.UUID, 32)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = s.EnsureRuntimeID()
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent EnsureRuntimeID produced different IDs: %v vs %v", id, ids[0])
		}
	}
}

func TestShop_DataRoundTrip(t *testing.T) {
	s := newTestShop()
	s.SetID(42)
	s.SetCurrency("gems")
	s.SetUnlimited(true)

	restored := NewShopFromData(s.Data())

	if restored.Data() != s.Data() {
		t.Errorf("NewShopFromData(Data()) = %+v, want %+v", restored.Data(), s.Data())
	}
	if restored.IsValid() {
		t.Error("restored shop must not be valid before OnLoad")
	}
}

func TestShop_Type(t *testing.T) {
	s := newTestShop()
	if !s.IsSelling() || s.IsBuying() {
		t.Error("new selling shop reports wrong type")
	}
	s.SetType(ShopBuying)
	if !s.IsBuying() {
		t.Error("IsBuying() = false after SetType(ShopBuying)")
	}
}
