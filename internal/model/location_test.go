package model

import (
	"testing"
)

func TestLocation_Chunk(t *testing.T) {
	tests := []struct {
		name string
		loc  Location
		want ShopChunk
	}{
		{
			name: "origin",
			loc:  NewLocation("world", 0, 64, 0),
			want: ShopChunk{World: "world", X: 0, Z: 0},
		},
		{
			name: "inside first chunk",
			loc:  NewLocation("world", 5, 64, 5),
			want: ShopChunk{World: "world", X: 0, Z: 0},
		},
		{
			name: "chunk boundary",
			loc:  NewLocation("world", 16, 10, 31),
			want: ShopChunk{World: "world", X: 1, Z: 1},
		},
		{
			name: "negative coordinates",
			loc:  NewLocation("nether", -1, 70, -16),
			want: ShopChunk{World: "nether", X: -1, Z: -1},
		},
		{
			name: "negative past boundary",
			loc:  NewLocation("nether", -17, 70, -33),
			want: ShopChunk{World: "nether", X: -2, Z: -3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.Chunk(); got != tt.want {
				t.Errorf("Chunk() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLocation_Neighbors(t *testing.T) {
	loc := NewLocation("world", 10, 64, 10)

	for _, n := range loc.Neighbors() {
		if !loc.IsAdjacent(n) {
			t.Errorf("IsAdjacent(%v) = false, want true", n)
		}
		if n.Y != loc.Y {
			t.Errorf("neighbour %v changed Y", n)
		}
	}
}

func TestLocation_IsAdjacent(t *testing.T) {
	loc := NewLocation("world", 0, 64, 0)

	tests := []struct {
		name  string
		other Location
		want  bool
	}{
		{"east", NewLocation("world", 1, 64, 0), true},
		{"south", NewLocation("world", 0, 64, 1), true},
		{"diagonal", NewLocation("world", 1, 64, 1), false},
		{"above", NewLocation("world", 0, 65, 0), false},
		{"same", loc, false},
		{"other world", NewLocation("nether", 1, 64, 0), false},
		{"two blocks away", NewLocation("world", 2, 64, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := loc.IsAdjacent(tt.other); got != tt.want {
				t.Errorf("IsAdjacent(%v) = %v, want %v", tt.other, got, tt.want)
			}
		})
	}
}

func TestLocation_Less(t *testing.T) {
	a := NewLocation("world", 0, 64, 0)
	b := NewLocation("world", 1, 64, 0)

	if !a.Less(b) {
		t.Error("a.Less(b) = false, want true")
	}
	if b.Less(a) {
		t.Error("b.Less(a) = true, want false")
	}
	if a.Less(a) {
		t.Error("a.Less(a) = true, want false")
	}
	if !NewLocation("a", 100, 0, 0).Less(NewLocation("b", 0, 0, 0)) {
		t.Error("world name must order first")
	}
}

func TestLocation_AsMapKey(t *testing.T) {
	m := map[Location]int{}
	m[NewLocation("world", 1, 2, 3)] = 1

	if m[NewLocation("world", 1, 2, 3)] != 1 {
		t.Error("equal locations must hit the same map key")
	}
	if _, ok := m[NewLocation("world2", 1, 2, 3)]; ok {
		t.Error("different world must not hit the key")
	}
}
