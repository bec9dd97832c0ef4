package model

import "fmt"

// ChunkShift — сдвиг для перевода блочной координаты в координату чанка (16 блоков).
const ChunkShift = 4

// Location представляет координаты блока в мире.
// Value type, передаётся по значению (immutable), пригоден как ключ map.
type Location struct {
	World string
	X     int32
	Y     int32
	Z     int32
}

// NewLocation создаёт Location с указанными координатами.
func NewLocation(world string, x, y, z int32) Location {
	return Location{World: world, X: x, Y: y, Z: z}
}

// Chunk возвращает чанк, в котором находится блок.
// Арифметический сдвиг корректно обрабатывает отрицательные координаты.
func (l Location) Chunk() ShopChunk {
	return ShopChunk{World: l.World, X: l.X >> ChunkShift, Z: l.Z >> ChunkShift}
}

// Relative возвращает новый Location, смещённый на (dx, dy, dz) (immutable pattern).
func (l Location) Relative(dx, dy, dz int32) Location {
	l.X += dx
	l.Y += dy
	l.Z += dz
	return l
}

// Neighbors returns the four horizontal neighbours (north, south, west, east).
// Double containers are always formed by horizontally adjacent blocks.
func (l Location) Neighbors() [4]Location {
	return [4]Location{
		l.Relative(0, 0, -1),
		l.Relative(0, 0, 1),
		l.Relative(-1, 0, 0),
		l.Relative(1, 0, 0),
	}
}

// IsAdjacent reports whether other is one of the horizontal neighbours of l.
func (l Location) IsAdjacent(other Location) bool {
	if l.World != other.World || l.Y != other.Y {
		return false
	}
	dx := l.X - other.X
	dz := l.Z - other.Z
	return (dx == 0 && (dz == 1 || dz == -1)) || (dz == 0 && (dx == 1 || dx == -1))
}

// Less задаёт детерминированный порядок локаций (world, x, y, z).
func (l Location) Less(other Location) bool {
	if l.World != other.World {
		return l.World < other.World
	}
	if l.X != other.X {
		return l.X < other.X
	}
	if l.Y != other.Y {
		return l.Y < other.Y
	}
	return l.Z < other.Z
}

func (l Location) String() string {
	return fmt.Sprintf("%s(%d, %d, %d)", l.World, l.X, l.Y, l.Z)
}

// ShopChunk identifies a chunk by world name and chunk coordinates.
// Equality is by value: a lookup succeeds whether or not the host has the chunk loaded.
type ShopChunk struct {
	World string
	X     int32
	Z     int32
}

// NewShopChunk создаёт ShopChunk.
func NewShopChunk(world string, x, z int32) ShopChunk {
	return ShopChunk{World: world, X: x, Z: z}
}

func (c ShopChunk) String() string {
	return fmt.Sprintf("%s[%d, %d]", c.World, c.X, c.Z)
}

// BlockFace is the clicked face of a block, forwarded to the capability checker.
type BlockFace uint8

const (
	FaceSelf BlockFace = iota
	FaceNorth
	FaceSouth
	FaceWest
	FaceEast
	FaceUp
	FaceDown
)

// String returns human-readable face name.
func (f BlockFace) String() string {
	switch f {
	case FaceSelf:
		return "Self"
	case FaceNorth:
		return "North"
	case FaceSouth:
		return "South"
	case FaceWest:
		return "West"
	case FaceEast:
		return "East"
	case FaceUp:
		return "Up"
	case FaceDown:
		return "Down"
	default:
		return "Unknown"
	}
}
