package model

import "time"

// ShopAction — что игрок сейчас готовит.
type ShopAction int8

const (
	ActionNone     ShopAction = 0
	ActionCreate   ShopAction = 1 // ждём цену нового магазина
	ActionBuy      ShopAction = 2 // ждём количество для покупки
	ActionSell     ShopAction = 3 // ждём количество для продажи
	ActionSetPrice ShopAction = 4 // ждём новую цену существующего магазина
)

// String returns human-readable action name.
func (a ShopAction) String() string {
	switch a {
	case ActionNone:
		return "None"
	case ActionCreate:
		return "Create"
	case ActionBuy:
		return "Buy"
	case ActionSell:
		return "Sell"
	case ActionSetPrice:
		return "SetPrice"
	default:
		return "Unknown"
	}
}

// IsTrade returns true for buy/sell actions.
func (a ShopAction) IsTrade() bool {
	return a == ActionBuy || a == ActionSell
}

// Info is a per-player pending interaction record.
// Owned by the interaction tracker; at most one per player.
type Info struct {
	Action   ShopAction
	Location Location // target container
	Face     BlockFace
	Item     Item  // item in hand at create time
	Shop     *Shop // target shop for buy/sell/set-price, nil for create
	Message  string
	Quantity int32
	Sneaking bool

	// Snapshot — состояние магазина на момент начала действия.
	Snapshot *ShopData

	CreatedAt time.Time
}

// NewInfo создаёт Info для действия над локацией.
func NewInfo(action ShopAction, loc Location, shop *Shop) *Info {
	info := &Info{
		Action:    action,
		Location:  loc,
		Shop:      shop,
		CreatedAt: time.Now(),
	}
	if shop != nil {
		data := shop.Data()
		info.Snapshot = &data
	}
	return info
}

// HasChanged reports whether shop differs from the snapshot in any
// trade-relevant field.
func (i *Info) HasChanged(shop *Shop) bool {
	if i.Snapshot == nil || shop == nil {
		return false
	}
	cur := shop.Data()
	s := i.Snapshot
	return cur.Location != s.Location ||
		cur.Owner != s.Owner ||
		cur.Price != s.Price ||
		cur.Currency != s.Currency ||
		cur.Item != s.Item ||
		cur.Type != s.Type ||
		cur.Unlimited != s.Unlimited
}
