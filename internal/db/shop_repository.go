package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/udisondev/shopkeeper/internal/model"
)

const upsertShopSQL = `
	INSERT INTO shops (world, x, y, z, owner, price, currency, material, meta, max_stack, shop_type, unlimited)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (world, x, y, z) DO UPDATE SET
		owner      = EXCLUDED.owner,
		price      = EXCLUDED.price,
		currency   = EXCLUDED.currency,
		material   = EXCLUDED.material,
		meta       = EXCLUDED.meta,
		max_stack  = EXCLUDED.max_stack,
		shop_type  = EXCLUDED.shop_type,
		unlimited  = EXCLUDED.unlimited,
		updated_at = now()
	RETURNING id`

// ShopRepository implements shop.Repository on PostgreSQL.
// Rows are keyed by location; the row ID is informational.
type ShopRepository struct {
	pool *pgxpool.Pool
}

// NewShopRepository creates a PostgreSQL-backed shop repository.
func NewShopRepository(pool *pgxpool.Pool) *ShopRepository {
	return &ShopRepository{pool: pool}
}

func shopArgs(d model.ShopData) []any {
	return []any{
		d.Location.World, d.Location.X, d.Location.Y, d.Location.Z,
		d.Owner,
		d.Price,
		d.Currency,
		d.Item.Material, d.Item.Meta, d.Item.MaxStack,
		int16(d.Type),
		d.Unlimited,
	}
}

// Persist upserts a shop and returns its row ID.
func (r *ShopRepository) Persist(ctx context.Context, d model.ShopData) (int64, error) {
	var id int64
	if err := r.pool.QueryRow(ctx, upsertShopSQL, shopArgs(d)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert shop at %s: %w", d.Location, err)
	}
	return id, nil
}

// Delete removes the shop row at loc.
func (r *ShopRepository) Delete(ctx context.Context, loc model.Location) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM shops WHERE world = $1 AND x = $2 AND y = $3 AND z = $4`,
		loc.World, loc.X, loc.Y, loc.Z,
	)
	if err != nil {
		return fmt.Errorf("delete shop at %s: %w", loc, err)
	}
	return nil
}

// LoadAll loads every stored shop ordered by row ID.
func (r *ShopRepository) LoadAll(ctx context.Context) ([]model.ShopData, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, world, x, y, z, owner, price, currency, material, meta, max_stack, shop_type, unlimited
		FROM shops
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query shops: %w", err)
	}
	defer rows.Close()

	var shops []model.ShopData
	for rows.Next() {
		var (
			d        model.ShopData
			owner    uuid.UUID
			shopType int16
		)
		if err := rows.Scan(
			&d.ID,
			&d.Location.World, &d.Location.X, &d.Location.Y, &d.Location.Z,
			&owner,
			&d.Price,
			&d.Currency,
			&d.Item.Material, &d.Item.Meta, &d.Item.MaxStack,
			&shopType,
			&d.Unlimited,
		); err != nil {
			return nil, fmt.Errorf("scan shop: %w", err)
		}
		d.Owner = owner
		d.Type = model.ShopType(shopType)
		shops = append(shops, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shops: %w", err)
	}

	return shops, nil
}

// SaveAll upserts shops in a single transaction using a batch.
func (r *ShopRepository) SaveAll(ctx context.Context, shops []model.ShopData) error {
	if len(shops) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, d := range shops {
		batch.Queue(upsertShopSQL, shopArgs(d)...)
	}
	br := tx.SendBatch(ctx, batch)
	for _, d := range shops {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("upsert shop at %s: %w", d.Location, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
