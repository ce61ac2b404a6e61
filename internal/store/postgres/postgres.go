package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"omnistock/backend/internal/domain"
	"omnistock/backend/internal/store"
	"omnistock/backend/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sqlx.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

type itemRow struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Category   string    `db:"category"`
	StockRatio float64   `db:"stock_ratio"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type brandRow struct {
	ItemID       string `db:"item_id"`
	Brand        string `db:"brand"`
	PriceCents   int64  `db:"price_cents"`
	Quantity     int    `db:"quantity"`
	OnlineStock  int    `db:"online_stock"`
	OfflineStock int    `db:"offline_stock"`
	OnlineLimit  int    `db:"online_limit"`
	OfflineLimit int    `db:"offline_limit"`
}

func (r brandRow) stock() domain.BrandStock {
	return domain.BrandStock{
		PriceCents:   r.PriceCents,
		Quantity:     r.Quantity,
		OnlineStock:  r.OnlineStock,
		OfflineStock: r.OfflineStock,
		OnlineLimit:  r.OnlineLimit,
		OfflineLimit: r.OfflineLimit,
	}
}

func newBrandRow(itemID string, brand string, b domain.BrandStock) brandRow {
	return brandRow{
		ItemID:       itemID,
		Brand:        brand,
		PriceCents:   b.PriceCents,
		Quantity:     b.Quantity,
		OnlineStock:  b.OnlineStock,
		OfflineStock: b.OfflineStock,
		OnlineLimit:  b.OnlineLimit,
		OfflineLimit: b.OfflineLimit,
	}
}

func (r itemRow) item(brands []brandRow) domain.Item {
	item := domain.Item{
		ID:         r.ID,
		Name:       r.Name,
		Category:   r.Category,
		StockRatio: r.StockRatio,
		Brands:     make(map[string]domain.BrandStock, len(brands)),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	for _, b := range brands {
		item.Brands[b.Brand] = b.stock()
	}
	return item
}

const itemColumns = `id, name, category, stock_ratio, created_at, updated_at`
const brandColumns = `item_id, brand, price_cents, quantity, online_stock, offline_stock, online_limit, offline_limit`

func (s *Store) ListItems(ctx context.Context) ([]domain.Item, error) {
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+itemColumns+` FROM items ORDER BY category, name`); err != nil {
		return nil, err
	}
	var brands []brandRow
	if err := s.db.SelectContext(ctx, &brands, `SELECT `+brandColumns+` FROM item_brands`); err != nil {
		return nil, err
	}

	byItem := make(map[string][]brandRow, len(rows))
	for _, b := range brands {
		byItem[b.ItemID] = append(byItem[b.ItemID], b)
	}
	items := make([]domain.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.item(byItem[r.ID]))
	}
	return items, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.Item, error) {
	return s.getItem(ctx, s.db, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id)
}

func (s *Store) GetItemByName(ctx context.Context, name string) (*domain.Item, error) {
	return s.getItem(ctx, s.db, `SELECT `+itemColumns+` FROM items WHERE name = $1`, name)
}

func (s *Store) getItem(ctx context.Context, q sqlx.QueryerContext, query string, arg string) (*domain.Item, error) {
	var row itemRow
	if err := sqlx.GetContext(ctx, q, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	var brands []brandRow
	if err := sqlx.SelectContext(ctx, q, &brands, `SELECT `+brandColumns+` FROM item_brands WHERE item_id = $1`, row.ID); err != nil {
		return nil, err
	}
	item := row.item(brands)
	return &item, nil
}

func (s *Store) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("itm")
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO items (id, name, category, stock_ratio, created_at, updated_at)
		VALUES (:id, :name, :category, :stock_ratio, :created_at, :updated_at)
	`, itemRow{ID: item.ID, Name: item.Name, Category: item.Category, StockRatio: item.StockRatio, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	if err := insertBrands(ctx, tx, item); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	out := item.Clone()
	return &out, nil
}

func (s *Store) SaveItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	if strings.TrimSpace(item.Name) == "" {
		return nil, store.ErrInvalidInput
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var createdAt time.Time
	err = tx.QueryRowxContext(ctx, `
		UPDATE items
		SET name = $2, category = $3, stock_ratio = $4, updated_at = now()
		WHERE id = $1
		RETURNING created_at
	`, item.ID, item.Name, item.Category, item.StockRatio).Scan(&createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_brands WHERE item_id = $1`, item.ID); err != nil {
		return nil, err
	}
	if err := insertBrands(ctx, tx, item); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	out := item.Clone()
	out.CreatedAt = createdAt
	out.UpdatedAt = time.Now().UTC()
	return &out, nil
}

func insertBrands(ctx context.Context, tx *sqlx.Tx, item domain.Item) error {
	if len(item.Brands) == 0 {
		return nil
	}
	rows := make([]brandRow, 0, len(item.Brands))
	for _, name := range item.BrandNames() {
		rows = append(rows, newBrandRow(item.ID, name, item.Brands[name]))
	}
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO item_brands (`+brandColumns+`)
		VALUES (:item_id, :brand, :price_cents, :quantity, :online_stock, :offline_stock, :online_limit, :offline_limit)
	`, rows)
	return err
}

func (s *Store) SaveBrandStock(ctx context.Context, itemID string, brand string, entry domain.BrandStock) error {
	res, err := s.db.NamedExecContext(ctx, `
		UPDATE item_brands
		SET price_cents = :price_cents, quantity = :quantity,
			online_stock = :online_stock, offline_stock = :offline_stock,
			online_limit = :online_limit, offline_limit = :offline_limit
		WHERE item_id = :item_id AND brand = :brand
	`, newBrandRow(itemID, brand, entry))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	_, err = s.db.ExecContext(ctx, `UPDATE items SET updated_at = now() WHERE id = $1`, itemID)
	return err
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
