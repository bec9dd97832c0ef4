package shop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/udisondev/shopkeeper/internal/model"
)

// Repository defines the durable store for shops.
type Repository interface {
	// Persist inserts or updates the shop row keyed by location.
	// Returns the row ID.
	Persist(ctx context.Context, data model.ShopData) (int64, error)

	// Delete removes the shop row at loc.
	Delete(ctx context.Context, loc model.Location) error

	// LoadAll loads every stored shop.
	LoadAll(ctx context.Context) ([]model.ShopData, error)

	// SaveAll upserts shops in one transaction.
	SaveAll(ctx context.Context, shops []model.ShopData) error
}

// Service bridges the in-memory Manager with the Repository: it replays
// stored shops on startup and persists lifecycle events.
type Service struct {
	manager *Manager
	repo    Repository
}

// NewService creates a persistence service and registers it as the
// manager's listener.
func NewService(manager *Manager, repo Repository) *Service {
	s := &Service{manager: manager, repo: repo}
	manager.SetListener(s)
	return s
}

// Restore loads stored shops into the manager. Returns the number restored.
// Shops that fail to load are logged and skipped.
func (s *Service) Restore(ctx context.Context) (int, error) {
	if s.repo == nil {
		return 0, nil
	}

	rows, err := s.repo.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load shops: %w", err)
	}

	var restored int
	for _, d := range rows {
		shop := model.NewShopFromData(d)
		if err := s.manager.LoadShop(d.Location.World, shop); err != nil {
			slog.Warn("skip stored shop",
				"id", d.ID,
				"location", d.Location,
				"error", err)
			continue
		}
		restored++
	}

	slog.Info("shops restored", "count", restored, "total", len(rows))
	return restored, nil
}

// SaveAll upserts every indexed shop. Called during graceful shutdown.
func (s *Service) SaveAll(ctx context.Context) error {
	if s.repo == nil {
		return nil
	}

	shops := s.manager.AllShops()
	if len(shops) == 0 {
		return nil
	}

	data := make([]model.ShopData, len(shops))
	for i, shop := range shops {
		data[i] = shop.Data()
	}
	if err := s.repo.SaveAll(ctx, data); err != nil {
		return fmt.Errorf("save shops: %w", err)
	}

	slog.Info("shops saved", "count", len(data))
	return nil
}

// RunAutosave periodically flushes every indexed shop until ctx is canceled.
// A failed flush is logged and retried on the next tick.
func (s *Service) RunAutosave(ctx context.Context, interval time.Duration) error {
	if s.repo == nil || interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SaveAll(ctx); err != nil {
				slog.Error("autosave shops", "error", err)
			}
		}
	}
}

// ShopCreated persists a new shop and stores its row ID.
func (s *Service) ShopCreated(ctx context.Context, shop *model.Shop) {
	s.persist(ctx, shop)
}

// ShopChanged persists the shop's current state.
func (s *Service) ShopChanged(ctx context.Context, shop *model.Shop) {
	s.persist(ctx, shop)
}

// ShopRemoved deletes the shop row.
func (s *Service) ShopRemoved(ctx context.Context, shop *model.Shop) {
	if s.repo == nil {
		return
	}
	if err := s.repo.Delete(ctx, shop.Location()); err != nil {
		slog.Error("delete shop from DB",
			"location", shop.Location(),
			"error", err)
	}
}

func (s *Service) persist(ctx context.Context, shop *model.Shop) {
	if s.repo == nil {
		return
	}
	id, err := s.repo.Persist(ctx, shop.Data())
	if err != nil {
		slog.Error("persist shop to DB",
			"location", shop.Location(),
			"error", err)
		return
	}
	shop.SetID(id)
}
