package localstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/alexkarev/homekeeper/internal/dbx"
	"github.com/alexkarev/homekeeper/internal/localstore/migrations"
	"github.com/alexkarev/homekeeper/internal/models"
)

// SQLiteStore implements Store using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteStore struct {
	db dbx.DBTX
}

// NewSQLiteStore returns a SQLiteStore bound to the given DBTX.
func NewSQLiteStore(db dbx.DBTX) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// RunMigrations applies the embedded schema migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the sqlite database at dsn and applies migrations.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening local database: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}
	return db, nil
}

// encodeList stores a string slice as JSON text; empty slices become NULL.
func encodeList(l []string) (any, error) {
	if len(l) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeList(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}

func fromNullTime(nt sql.NullTime) time.Time {
	if !nt.Valid {
		return time.Time{}
	}
	return nt.Time.UTC()
}

// InsertCategory upserts a category by id.
func (s *SQLiteStore) InsertCategory(ctx context.Context, cat *models.Category) error {
	query := `
		INSERT INTO categories (id, name, icon, modified_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			icon = excluded.icon,
			modified_at = excluded.modified_at
	`
	_, err := s.db.ExecContext(ctx, query, cat.ID, cat.Name, cat.Icon, nullTime(cat.ModifiedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert category: %w", err)
	}
	return nil
}

// InsertItem upserts an item by id.
func (s *SQLiteStore) InsertItem(ctx context.Context, item *models.Item) error {
	photoRefs, err := encodeList(item.PhotoRefs)
	if err != nil {
		return fmt.Errorf("encoding photo refs: %w", err)
	}
	docRefs, err := encodeList(item.DocumentRefs)
	if err != nil {
		return fmt.Errorf("encoding document refs: %w", err)
	}
	tags, err := encodeList(item.Tags)
	if err != nil {
		return fmt.Errorf("encoding tags: %w", err)
	}

	query := `
		INSERT INTO items (id, name, notes, serial_number, category_id,
			purchase_price, estimated_value, quantity, purchase_date,
			photo, photo_refs, document_refs, tags, modified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			notes = excluded.notes,
			serial_number = excluded.serial_number,
			category_id = excluded.category_id,
			purchase_price = excluded.purchase_price,
			estimated_value = excluded.estimated_value,
			quantity = excluded.quantity,
			purchase_date = excluded.purchase_date,
			photo = excluded.photo,
			photo_refs = excluded.photo_refs,
			document_refs = excluded.document_refs,
			tags = excluded.tags,
			modified_at = excluded.modified_at
	`
	_, err = s.db.ExecContext(ctx, query,
		item.ID, item.Name, item.Notes, item.SerialNumber, item.CategoryID,
		item.PurchasePrice, item.EstimatedValue, item.Quantity, nullTime(item.PurchaseDate),
		item.Photo, photoRefs, docRefs, tags, nullTime(item.ModifiedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}
	return nil
}

const itemColumns = `id, name, notes, serial_number, category_id,
	purchase_price, estimated_value, quantity, purchase_date,
	photo, photo_refs, document_refs, tags, modified_at`

func scanItem(scan func(dest ...any) error) (*models.Item, error) {
	var (
		item         models.Item
		purchaseDate sql.NullTime
		modifiedAt   sql.NullTime
		photoRefs    sql.NullString
		docRefs      sql.NullString
		tags         sql.NullString
	)
	err := scan(&item.ID, &item.Name, &item.Notes, &item.SerialNumber, &item.CategoryID,
		&item.PurchasePrice, &item.EstimatedValue, &item.Quantity, &purchaseDate,
		&item.Photo, &photoRefs, &docRefs, &tags, &modifiedAt)
	if err != nil {
		return nil, err
	}

	item.PurchaseDate = fromNullTime(purchaseDate)
	item.ModifiedAt = fromNullTime(modifiedAt)
	if item.PhotoRefs, err = decodeList(photoRefs); err != nil {
		return nil, fmt.Errorf("decoding photo refs: %w", err)
	}
	if item.DocumentRefs, err = decodeList(docRefs); err != nil {
		return nil, fmt.Errorf("decoding document refs: %w", err)
	}
	if item.Tags, err = decodeList(tags); err != nil {
		return nil, fmt.Errorf("decoding tags: %w", err)
	}
	return &item, nil
}

// FetchAllItems lists every item.
func (s *SQLiteStore) FetchAllItems(ctx context.Context) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select items: %w", err)
	}
	defer rows.Close()

	var result []models.Item
	for rows.Next() {
		item, err := scanItem(rows.Scan)
		if err != nil {
			return nil, err
		}
		result = append(result, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// FetchAllCategories lists every category.
func (s *SQLiteStore) FetchAllCategories(ctx context.Context) ([]models.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, icon, modified_at FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select categories: %w", err)
	}
	defer rows.Close()

	var result []models.Category
	for rows.Next() {
		var (
			cat        models.Category
			modifiedAt sql.NullTime
		)
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.Icon, &modifiedAt); err != nil {
			return nil, err
		}
		cat.ModifiedAt = fromNullTime(modifiedAt)
		result = append(result, cat)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ExistingItem returns the item with the given id, or nil when absent.
func (s *SQLiteStore) ExistingItem(ctx context.Context, id string) (*models.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select item %s: %w", id, err)
	}
	return item, nil
}

// ExistingCategory returns the category with the given id, or nil when absent.
func (s *SQLiteStore) ExistingCategory(ctx context.Context, id string) (*models.Category, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, icon, modified_at FROM categories WHERE id = ?`, id)

	var (
		cat        models.Category
		modifiedAt sql.NullTime
	)
	err := row.Scan(&cat.ID, &cat.Name, &cat.Icon, &modifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select category %s: %w", id, err)
	}
	cat.ModifiedAt = fromNullTime(modifiedAt)
	return &cat, nil
}
