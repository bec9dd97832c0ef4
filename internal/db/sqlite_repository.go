package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/udisondev/shopkeeper/internal/db/migrations"
	"github.com/udisondev/shopkeeper/internal/model"
)

const upsertShopSQLite = `
	INSERT INTO shops (world, x, y, z, owner, price, currency, material, meta, max_stack, shop_type, unlimited)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (world, x, y, z) DO UPDATE SET
		owner      = excluded.owner,
		price      = excluded.price,
		currency   = excluded.currency,
		material   = excluded.material,
		meta       = excluded.meta,
		max_stack  = excluded.max_stack,
		shop_type  = excluded.shop_type,
		unlimited  = excluded.unlimited,
		updated_at = CURRENT_TIMESTAMP
	RETURNING id`

// SQLiteShopRepository implements shop.Repository on an embedded SQLite file.
type SQLiteShopRepository struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the SQLite database at path and
// applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteShopRepository, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// Один writer: SQLite сериализует запись всё равно.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging sqlite %s: %w", path, err)
	}
	if err := migrate(ctx, sqlDB, "sqlite3", migrations.SQLiteDir); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &SQLiteShopRepository{db: sqlDB}, nil
}

// Close closes the database.
func (r *SQLiteShopRepository) Close() error {
	return r.db.Close()
}

func sqliteArgs(d model.ShopData) []any {
	return []any{
		d.Location.World, d.Location.X, d.Location.Y, d.Location.Z,
		d.Owner.String(),
		d.Price,
		d.Currency,
		d.Item.Material, d.Item.Meta, d.Item.MaxStack,
		int(d.Type),
		d.Unlimited,
	}
}

// Persist upserts a shop and returns its row ID.
func (r *SQLiteShopRepository) Persist(ctx context.Context, d model.ShopData) (int64, error) {
	var id int64
	if err := r.db.QueryRowContext(ctx, upsertShopSQLite, sqliteArgs(d)...).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert shop at %s: %w", d.Location, err)
	}
	return id, nil
}

// Delete removes the shop row at loc.
func (r *SQLiteShopRepository) Delete(ctx context.Context, loc model.Location) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM shops WHERE world = ? AND x = ? AND y = ? AND z = ?`,
		loc.World, loc.X, loc.Y, loc.Z,
	)
	if err != nil {
		return fmt.Errorf("delete shop at %s: %w", loc, err)
	}
	return nil
}

// LoadAll loads every stored shop ordered by row ID.
func (r *SQLiteShopRepository) LoadAll(ctx context.Context) ([]model.ShopData, error) {
	rows, err := r.db.QueryContext(ctx, `
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
			owner    string
			shopType int
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
		if d.Owner, err = uuid.Parse(owner); err != nil {
			return nil, fmt.Errorf("parse owner of shop %d: %w", d.ID, err)
		}
		d.Type = model.ShopType(shopType)
		shops = append(shops, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shops: %w", err)
	}

	return shops, nil
}

// SaveAll upserts shops in a single transaction.
func (r *SQLiteShopRepository) SaveAll(ctx context.Context, shops []model.ShopData) error {
	if len(shops) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertShopSQLite)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, d := range shops {
		var id int64
		if err := stmt.QueryRowContext(ctx, sqliteArgs(d)...).Scan(&id); err != nil {
			return fmt.Errorf("upsert shop at %s: %w", d.Location, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
