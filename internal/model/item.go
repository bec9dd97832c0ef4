package model

import "fmt"

// Item describes what a shop trades. Comparable, used as inventory key.
type Item struct {
	Material string // e.g. "minecraft:diamond"
	Meta     string // serialized extra data (name, enchants); empty for plain items
	MaxStack int32  // 0 means DefaultMaxStack
}

// DefaultMaxStack — размер стака по умолчанию.
const DefaultMaxStack int32 = 64

// NewItem создаёт Item без метаданных.
func NewItem(material string) Item {
	return Item{Material: material}
}

// IsZero returns true for the empty descriptor (no item in hand).
func (i Item) IsZero() bool {
	return i.Material == ""
}

// StackSize returns effective max stack size.
func (i Item) StackSize() int32 {
	if i.MaxStack <= 0 {
		return DefaultMaxStack
	}
	return i.MaxStack
}

// Key returns a stable identity for the item (material + meta).
// MaxStack does not take part in identity.
func (i Item) Key() string {
	if i.Meta == "" {
		return i.Material
	}
	return i.Material + "#" + i.Meta
}

func (i Item) String() string {
	return fmt.Sprintf("Item{%s}", i.Key())
}
