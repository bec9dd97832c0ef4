package shop

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/shopkeeper/internal/economy"
	"github.com/udisondev/shopkeeper/internal/interact"
	"github.com/udisondev/shopkeeper/internal/model"
	"github.com/udisondev/shopkeeper/internal/notify"
	"github.com/udisondev/shopkeeper/internal/world"
)

var diamond = model.NewItem("diamond")

type denyAll struct{}

func (denyAll) CanPlace(context.Context, uuid.UUID, model.Location, model.BlockFace) bool {
	return false
}

type env struct {
	m      *Manager
	host   *world.MemoryHost
	ledger *economy.MemoryLedger
	rec    *notify.Recorder
}

func newEnv(t *testing.T, mutate func(*Config, *Deps)) *env {
	t.Helper()
	e := &env{
		host:   world.NewMemoryHost(),
		ledger: economy.NewMemoryLedger(false),
		rec:    notify.NewRecorder(),
	}
	cfg := DefaultConfig()
	deps := Deps{
		Host:    e.host,
		Players: e.host,
		Ledger:  e.ledger,
		Sink:    e.rec,
	}
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	e.m = NewManager(cfg, deps)
	return e
}

// placeShop creates a selling shop with stock at loc.
func (e *env) placeShop(t *testing.T, loc model.Location, owner uuid.UUID, p float64, stock int32) *model.Shop {
	t.Helper()
	inv := model.NewMemoryInventory(27)
	if stock > 0 {
		require.NoError(t, inv.Add(diamond, stock))
	}
	e.host.PlaceContainer(loc, inv)

	s := model.NewShop(loc, owner, diamond, p, model.ShopSelling)
	require.NoError(t, e.m.CreateShop(context.Background(), s, nil))
	return s
}

func TestManager_CreateShopIndexesAndBakes(t *testing.T) {
	e := newEnv(t, nil)
	loc := model.NewLocation("world", 5, 64, 5)
	s := e.placeShop(t, loc, uuid.New(), 10, 0)

	assert.Same(t, s, e.m.ShopAt(loc))
	assert.True(t, s.IsValid())
	assert.NotEqual(t, uuid.Nil, s.RuntimeID())
	assert.Same(t, s, e.m.ShopByRuntimeID(s.RuntimeID(), false))
	assert.Len(t, e.m.ShopsOfChunk("world", 0, 0), 1)
}

func TestManager_CreateShopRequiresCapability(t *testing.T) {
	e := newEnv(t, func(_ *Config, d *Deps) { d.Capability = denyAll{} })
	loc := model.NewLocation("world", 1, 64, 1)
	e.host.PlaceContainer(loc, model.NewMemoryInventory(27))

	err := e.m.CreateShop(context.Background(), model.NewShop(loc, uuid.New(), diamond, 1, model.ShopSelling), nil)

	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	assert.Nil(t, e.m.ShopAt(loc))
}

func TestManager_CreateShopRejectsBadPrice(t *testing.T) {
	e := newEnv(t, nil)
	loc := model.NewLocation("world", 1, 64, 1)
	e.host.PlaceContainer(loc, model.NewMemoryInventory(27))

	err := e.m.CreateShop(context.Background(), model.NewShop(loc, uuid.New(), diamond, 0, model.ShopSelling), nil)

	assert.ErrorIs(t, err, model.ErrPriceRejected)
	assert.Nil(t, e.m.ShopAt(loc))
}

func TestManager_CreateShopTwiceAtSameLocation(t *testing.T) {
	e := newEnv(t, nil)
	loc := model.NewLocation("world", 1, 64, 1)
	e.placeShop(t, loc, uuid.New(), 1, 0)

	err := e.m.CreateShop(context.Background(), model.NewShop(loc, uuid.New(), diamond, 1, model.ShopSelling), nil)
	assert.ErrorIs(t, err, model.ErrAlreadyExists)
}

func TestManager_InteractCreateFlow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	player := uuid.New()
	loc := model.NewLocation("world", 3, 70, -2)
	e.host.PlaceContainer(loc, model.NewMemoryInventory(27))

	action, err := e.m.HandleInteract(ctx, Click{Player: player, Location: loc, Item: diamond, Sneaking: true})
	require.NoError(t, err)
	require.Equal(t, model.ActionCreate, action)
	assert.Equal(t, interact.AwaitingCreateConfirm, e.m.Tracker().State(player))
	assert.Equal(t, 1, e.rec.Count(player, notify.KeyEnterPrice))

	assert.Equal(t, interact.Consumed, e.m.HandleChat(ctx, player, "abc"))
	assert.Equal(t, interact.AwaitingCreateConfirm, e.m.Tracker().State(player))

	assert.Equal(t, interact.Consumed, e.m.HandleChat(ctx, player, "7.25"))
	s := e.m.ShopAt(loc)
	require.NotNil(t, s)
	assert.Equal(t, player, s.Owner())
	assert.Equal(t, 7.25, s.Price())
	assert.Equal(t, interact.Idle, e.m.Tracker().State(player))
	assert.Equal(t, 1, e.rec.Count(player, notify.KeyShopCreated))
}

func TestManager_InteractCreateDenied(t *testing.T) {
	e := newEnv(t, func(_ *Config, d *Deps) { d.Capability = denyAll{} })
	player := uuid.New()
	loc := model.NewLocation("world", 0, 64, 0)
	e.host.PlaceContainer(loc, model.NewMemoryInventory(27))

	_, err := e.m.HandleInteract(context.Background(), Click{Player: player, Location: loc, Item: diamond, Sneaking: true})

	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	assert.Equal(t, interact.Idle, e.m.Tracker().State(player))
	assert.Equal(t, 1, e.rec.Count(player, notify.KeyNoPermission))
}

func TestManager_InteractWithoutSneakDoesNotCreate(t *testing.T) {
	e := newEnv(t, nil)
	loc := model.NewLocation("world", 0, 64, 0)
	e.host.PlaceContainer(loc, model.NewMemoryInventory(27))

	action, err := e.m.HandleInteract(context.Background(), Click{Player: uuid.New(), Location: loc, Item: diamond})

	require.NoError(t, err)
	assert.Equal(t, model.ActionNone, action)
}

func TestManager_ChatPriceUpdatesShop(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	owner := uuid.New()
	loc := model.NewLocation("world", 5, 64, 5)
	s := e.placeShop(t, loc, owner, 10, 0)

	action, err := e.m.HandleInteract(ctx, Click{Player: owner, Location: loc})
	require.NoError(t, err)
	require.Equal(t, model.ActionSetPrice, action)
	require.Equal(t, interact.AwaitingPriceInput, e.m.Tracker().State(owner))

	out := e.m.HandleChat(ctx, owner, "12.5")

	assert.Equal(t, interact.Consumed, out)
	assert.Equal(t, 12.5, s.Price())
	assert.Equal(t, interact.Idle, e.m.Tracker().State(owner))
	assert.Empty(t, e.m.Actions())
	assert.Equal(t, 1, e.rec.Count(owner, notify.KeyPriceChanged))
}

func TestManager_ChatBuyScenario(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	owner, buyer := uuid.New(), uuid.New()
	loc := model.NewLocation("world", 5, 64, 5)
	s := e.placeShop(t, loc, owner, 10, 5)

	buyerInv := model.NewMemoryInventory(36)
	e.host.SetPlayerInventory(buyer, buyerInv)
	e.ledger.SetBalance(buyer, "", 25)
	e.ledger.SetBalance(owner, "", 0)

	action, err := e.m.HandleInteract(ctx, Click{Player: buyer, Location: loc})
	require.NoError(t, err)
	require.Equal(t, model.ActionBuy, action)
	assert.Equal(t, 1, e.rec.Count(buyer, notify.KeyShopInfo))

	assert.Equal(t, interact.Consumed, e.m.HandleChat(ctx, buyer, "2"))

	bal, err := e.ledger.Balance(ctx, buyer, "")
	require.NoError(t, err)
	assert.InDelta(t, 5.0, bal, 1e-9)
	assert.Equal(t, int32(2), buyerInv.Count(diamond))
	assert.Equal(t, int32(3), s.CachedStock())
	assert.Equal(t, 1, e.rec.Count(buyer, notify.KeyPurchaseSuccess))
}

func TestManager_BuyInsufficientFundsNotifies(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	owner, buyer := uuid.New(), uuid.New()
	loc := model.NewLocation("world", 5, 64, 5)
	s := e.placeShop(t, loc, owner, 10, 5)
	buyerInv := model.NewMemoryInventory(36)
	e.ledger.SetBalance(buyer, "", 5)
	e.ledger.SetBalance(owner, "", 0)

	_, err := e.m.ActionBuy(ctx, buyer, buyerInv, model.NewInfo(model.ActionBuy, loc, s), 2)

	assert.ErrorIs(t, err, model.ErrEconomyFailure)
	assert.Equal(t, 1, e.rec.Count(buyer, notify.KeyInsufficientFunds))
	assert.Zero(t, e.rec.Count(buyer, notify.KeyPurchaseSuccess))
	assert.Zero(t, buyerInv.Count(diamond))
}

func TestManager_DoubleContainerResolution(t *testing.T) {
	e := newEnv(t, nil)
	owner := uuid.New()
	a := model.NewLocation("world", 10, 64, 10)
	b := model.NewLocation("world", 11, 64, 10)
	inv := model.NewMemoryInventory(54)
	require.True(t, e.host.PlaceDoubleContainer(a, b, inv))

	sa := model.NewShop(a, owner, diamond, 3, model.ShopSelling)
	sb := model.NewShop(b, owner, diamond, 3, model.ShopSelling)
	require.NoError(t, e.m.CreateShop(context.Background(), sa, nil))
	require.NoError(t, e.m.CreateShop(context.Background(), sb, nil))

	ra := e.m.ShopAtWithAttached(a, true)
	rb := e.m.ShopAtWithAttached(b, true)
	require.NotNil(t, ra)
	assert.Same(t, ra, rb, "both halves resolve to one shop")

	require.NoError(t, e.m.RemoveShop(context.Background(), sa))

	assert.Same(t, sb, e.m.ShopAtWithAttached(b, true), "removing A invalidates B's cached resolution")
	assert.Same(t, sb, e.m.ShopAtWithAttached(a, true), "A now resolves through the remaining half")
}

func TestManager_SetPriceFollowsPartner(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	owner := uuid.New()
	a := model.NewLocation("world", 10, 64, 10)
	b := model.NewLocation("world", 10, 64, 11)
	require.True(t, e.host.PlaceDoubleContainer(a, b, model.NewMemoryInventory(54)))
	sa := model.NewShop(a, owner, diamond, 3, model.ShopSelling)
	sb := model.NewShop(b, owner, diamond, 3, model.ShopSelling)
	require.NoError(t, e.m.CreateShop(ctx, sa, nil))
	require.NoError(t, e.m.CreateShop(ctx, sb, nil))

	require.NoError(t, e.m.ActionSetPrice(ctx, owner, model.NewInfo(model.ActionSetPrice, a, sa), 4))

	assert.Equal(t, 4.0, sa.Price())
	assert.Equal(t, 4.0, sb.Price())
}

func TestManager_SetPriceByStranger(t *testing.T) {
	e := newEnv(t, nil)
	loc := model.NewLocation("world", 0, 64, 0)
	s := e.placeShop(t, loc, uuid.New(), 5, 0)

	err := e.m.ActionSetPrice(context.Background(), uuid.New(), model.NewInfo(model.ActionSetPrice, loc, s), 6)

	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	assert.Equal(t, 5.0, s.Price())
}

func TestManager_RemoveShopClearsEverything(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	owner, buyer := uuid.New(), uuid.New()
	loc := model.NewLocation("world", 5, 64, 5)
	s := e.placeShop(t, loc, owner, 10, 1)
	_, err := e.m.HandleInteract(ctx, Click{Player: buyer, Location: loc})
	require.NoError(t, err)
	id := s.RuntimeID()

	require.NoError(t, e.m.RemoveShop(ctx, s))

	assert.Nil(t, e.m.ShopAt(loc))
	assert.Nil(t, e.m.ShopByRuntimeID(id, true))
	assert.False(t, s.IsValid())
	assert.Equal(t, interact.Idle, e.m.Tracker().State(buyer))
	assert.ErrorIs(t, e.m.RemoveShop(ctx, s), model.ErrNotLoaded)
}

func TestManager_ShopAtChecked(t *testing.T) {
	e := newEnv(t, nil)
	loc := model.NewLocation("world", 5, 64, 5)
	s := e.placeShop(t, loc, uuid.New(), 10, 0)

	e.host.BreakContainer(loc)

	assert.Nil(t, e.m.ShopAtChecked(loc, false))
	assert.Same(t, s, e.m.ShopAtChecked(loc, true))
}

func TestManager_Queries(t *testing.T) {
	e := newEnv(t, nil)
	alice, bob := uuid.New(), uuid.New()
	e.placeShop(t, model.NewLocation("world", 0, 64, 0), alice, 1, 0)
	e.placeShop(t, model.NewLocation("world", 100, 64, 100), alice, 1, 0)
	e.placeShop(t, model.NewLocation("nether", 0, 64, 0), bob, 1, 0)

	assert.Len(t, e.m.AllShops(), 3)
	assert.Len(t, e.m.LoadedShops(), 3)
	assert.Len(t, e.m.PlayerAllShops(alice), 2)
	assert.Len(t, e.m.ShopsInWorld("nether"), 1)
	assert.Len(t, e.m.ShopsOfWorld("world"), 2)
	assert.Nil(t, e.m.ShopsOfWorld("end"))

	e.m.Clear()
	assert.Empty(t, e.m.AllShops())
}

func TestManager_LoadShopAndAddShop(t *testing.T) {
	e := newEnv(t, nil)
	a := model.NewShop(model.NewLocation("world", 0, 64, 0), uuid.New(), diamond, 1, model.ShopSelling)
	b := model.NewShop(model.NewLocation("world", 1, 64, 0), uuid.New(), diamond, 1, model.ShopSelling)

	require.NoError(t, e.m.LoadShop("world", a))
	require.NoError(t, e.m.AddShop("world", b))

	assert.True(t, a.IsValid())
	assert.False(t, b.IsValid(), "AddShop does not load")
	assert.Len(t, e.m.LoadedShops(), 1)
	assert.Nil(t, e.m.ShopByRuntimeID(e.m.BakeRuntimeID(b), false))
	assert.Same(t, b, e.m.ShopByRuntimeID(e.m.BakeRuntimeID(b), true))
	assert.ErrorIs(t, e.m.LoadShop("nether", a), model.ErrInvalidRequest)
}

func TestManager_MigrateOwner(t *testing.T) {
	sentinel := uuid.New()
	e := newEnv(t, func(c *Config, _ *Deps) { c.UnlimitedOwner = sentinel })
	loc := model.NewLocation("world", 0, 64, 0)
	s := e.placeShop(t, loc, uuid.New(), 2.5, 0)

	require.NoError(t, e.m.MigrateOwnerToUnlimitedShopOwner(context.Background(), s))

	assert.Equal(t, sentinel, s.Owner())
	assert.Equal(t, 2.5, s.Price())
	assert.Equal(t, diamond, s.Item())
	assert.Same(t, s, e.m.ShopAt(loc))
}

func TestManager_MigrateOwnerNotConfigured(t *testing.T) {
	e := newEnv(t, nil)
	s := e.placeShop(t, model.NewLocation("world", 0, 64, 0), uuid.New(), 1, 0)

	assert.ErrorIs(t, e.m.MigrateOwnerToUnlimitedShopOwner(context.Background(), s), model.ErrInvalidRequest)
}

func TestManager_Format(t *testing.T) {
	e := newEnv(t, nil)

	tests := []struct {
		price    float64
		currency string
		want     string
	}{
		{1234.5, "", "$1,234.50"},
		{10, "gems", "10.00 gems"},
		{0.01, "default", "$0.01"},
	}
	for _, tt := range tests {
		if got := e.m.Format(tt.price, tt.currency); got != tt.want {
			t.Errorf("Format(%v, %q) = %q, want %q", tt.price, tt.currency, got, tt.want)
		}
	}
}

func TestManager_TaxOwnerExempt(t *testing.T) {
	e := newEnv(t, func(c *Config, _ *Deps) { c.Trade.TaxRate = 0.2 })
	owner := uuid.New()
	s := e.placeShop(t, model.NewLocation("world", 0, 64, 0), owner, 1, 0)

	assert.Zero(t, e.m.Tax(s, owner))
	assert.Equal(t, 0.2, e.m.Tax(s, uuid.New()))
}
