package testutil

import (
	"github.com/google/uuid"

	"github.com/udisondev/shopkeeper/internal/model"
)

// Fixtures содержит общие тестовые данные, чтобы не дублировать их в тестах.
var Fixtures = struct {
	World   string
	Diamond model.Item
	Sword   model.Item

	// Фиксированные UUID, удобные для сравнения в логах
	Owner    uuid.UUID
	Customer uuid.UUID
}{
	World:   "world",
	Diamond: model.Item{Material: "minecraft:diamond", MaxStack: 64},
	Sword: model.Item{
		Material: "minecraft:diamond_sword",
		Meta:     `{"name":"Excalibur"}`,
		MaxStack: 1,
	},
	Owner:    uuid.MustParse("00000000-0000-0000-0000-0000000000a1"),
	Customer: uuid.MustParse("00000000-0000-0000-0000-0000000000b2"),
}

// ShopData строит сохраняемую запись магазина на Fixtures.World.
func ShopData(x, y, z int32, price float64) model.ShopData {
	return model.ShopData{
		Location: model.NewLocation(Fixtures.World, x, y, z),
		Owner:    Fixtures.Owner,
		Price:    price,
		Currency: "gems",
		Item:     Fixtures.Diamond,
		Type:     model.ShopSelling,
	}
}
