// Package sqlite is a single-file collectionsvc.Store for local servers.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/erauner12/shopsync/internal/service/collectionsvc"
	"github.com/erauner12/shopsync/internal/syncx"
)

//go:embed schema.sql
var schemaSQL string

// Store persists collections in SQLite with WAL journaling
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ collectionsvc.Store = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One writer at a time; a single connection also keeps ":memory:" shared
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Str("path", path).Msg("sqlite store opened")
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

const itemColumns = `id, owner_id, product_id, name, price_cents, quantity, image_url, created_at_ms`

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (optimistic.Item, error) {
	var (
		it optimistic.Item
		ms int64
	)
	err := row.Scan(&it.ID, &it.OwnerID, &it.Payload.ProductID, &it.Payload.Name,
		&it.Payload.PriceCents, &it.Payload.Quantity, &it.Payload.ImageURL, &ms)
	if err != nil {
		return optimistic.Item{}, err
	}
	it.CreatedAt = time.UnixMilli(ms).UTC()
	return it, nil
}

func collectItems(rows *sql.Rows) ([]optimistic.Item, error) {
	defer rows.Close()
	items := []optimistic.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return collectionsvc.ErrNotFound
	}
	return err
}

func affectedOrNotFound(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return collectionsvc.ErrNotFound
	}
	return nil
}

// List implements collectionsvc.Store.
// Canonical uuid strings sort like their bytes, so the text id keeps the
// same tie-break order as the other stores.
func (s *Store) List(ctx context.Context, owner, collection string, after syncx.Cursor, limit int) ([]optimistic.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM collection_item
		WHERE owner_id = ? AND collection = ?
		  AND (created_at_ms, id) > (?, ?)
		ORDER BY created_at_ms, id
		LIMIT ?`,
		owner, collection, after.Ms, after.ID.String(), limit)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// All implements collectionsvc.Store
func (s *Store) All(ctx context.Context, owner, collection string) ([]optimistic.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM collection_item
		WHERE owner_id = ? AND collection = ?
		ORDER BY created_at_ms, id`,
		owner, collection)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// Insert implements collectionsvc.Store
func (s *Store) Insert(ctx context.Context, owner, collection string, item optimistic.Item) error {
	id, err := uuid.Parse(item.ID)
	if err != nil {
		return err
	}
	p := item.Payload
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collection_item (id, owner_id, collection, product_id, name, price_cents, quantity, image_url, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id.String(), owner, collection, p.ProductID, p.Name, p.PriceCents, p.Quantity, p.ImageURL, item.CreatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return collectionsvc.ErrDuplicate
	}
	return err
}

// SetQuantity implements collectionsvc.Store
func (s *Store) SetQuantity(ctx context.Context, owner, collection, id string, quantity int) (optimistic.Item, error) {
	it, err := scanItem(s.db.QueryRowContext(ctx, `
		UPDATE collection_item SET quantity = ?
		WHERE owner_id = ? AND collection = ? AND id = ?
		RETURNING `+itemColumns,
		quantity, owner, collection, id))
	return it, notFound(err)
}

// Delete implements collectionsvc.Store
func (s *Store) Delete(ctx context.Context, owner, collection, id string) error {
	return affectedOrNotFound(s.db.ExecContext(ctx, `
		DELETE FROM collection_item WHERE owner_id = ? AND collection = ? AND id = ?`,
		owner, collection, id))
}

// DeleteByProduct implements collectionsvc.Store
func (s *Store) DeleteByProduct(ctx context.Context, owner, collection, productID string) error {
	return affectedOrNotFound(s.db.ExecContext(ctx, `
		DELETE FROM collection_item WHERE owner_id = ? AND collection = ? AND product_id = ?`,
		owner, collection, productID))
}

// Clear implements collectionsvc.Store
func (s *Store) Clear(ctx context.Context, owner, collection string) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM collection_item WHERE owner_id = ? AND collection = ?`,
		owner, collection)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Move implements collectionsvc.Store
func (s *Store) Move(ctx context.Context, owner, from, to, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	it, err := scanItem(tx.QueryRowContext(ctx, `
		DELETE FROM collection_item
		WHERE owner_id = ? AND collection = ? AND id = ?
		RETURNING `+itemColumns,
		owner, from, id))
	if err != nil {
		return notFound(err)
	}

	p := it.Payload
	_, err = tx.ExecContext(ctx, `
		INSERT INTO collection_item (id, owner_id, collection, product_id, name, price_cents, quantity, image_url, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, collection, product_id) DO UPDATE
			SET quantity = collection_item.quantity + excluded.quantity`,
		it.ID, owner, to, p.ProductID, p.Name, p.PriceCents, p.Quantity, p.ImageURL, it.CreatedAt.UnixMilli())
	if err != nil {
		return err
	}

	return tx.Commit()
}

// Epoch implements collectionsvc.Store
func (s *Store) Epoch(ctx context.Context, owner string) (int, error) {
	var epoch int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO owner_state (owner_id, epoch) VALUES (?, 1)
		ON CONFLICT (owner_id) DO UPDATE SET owner_id = excluded.owner_id
		RETURNING epoch`, owner).Scan(&epoch)
	return epoch, err
}

// Wipe implements collectionsvc.Store
func (s *Store) Wipe(ctx context.Context, owner string) (int, map[string]int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback()

	var epoch int
	err = tx.QueryRowContext(ctx, `
		INSERT INTO owner_state (owner_id, epoch, last_wipe_at) VALUES (?, 2, ?)
		ON CONFLICT (owner_id) DO UPDATE
			SET epoch = owner_state.epoch + 1,
				last_wipe_at = excluded.last_wipe_at
		RETURNING epoch`, owner, s.now().UnixMilli()).Scan(&epoch)
	if err != nil {
		return 0, nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT collection, COUNT(*) FROM collection_item
		WHERE owner_id = ? GROUP BY collection`, owner)
	if err != nil {
		return 0, nil, err
	}
	deleted := make(map[string]int)
	for rows.Next() {
		var (
			collection string
			n          int
		)
		if err := rows.Scan(&collection, &n); err != nil {
			rows.Close()
			return 0, nil, err
		}
		deleted[collection] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM collection_item WHERE owner_id = ?`, owner); err != nil {
		return 0, nil, err
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, err
	}
	return epoch, deleted, nil
}

// EnsureUser maps a token subject to a stable user id, creating it on first sight
func (s *Store) EnsureUser(ctx context.Context, sub string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO app_user (sub, id, created_at) VALUES (?, ?, ?)
		ON CONFLICT (sub) DO UPDATE SET sub = excluded.sub
		RETURNING id`, sub, uuid.New().String(), s.now().UnixMilli()).Scan(&id)
	return id, err
}
