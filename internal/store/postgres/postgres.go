// Package postgres is the pgx-backed collectionsvc.Store.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/erauner12/shopsync/internal/optimistic"
	"github.com/erauner12/shopsync/internal/service/collectionsvc"
	"github.com/erauner12/shopsync/internal/syncx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists collections in Postgres
type Store struct {
	DB *pgxpool.Pool
}

var _ collectionsvc.Store = (*Store)(nil)

// New wraps an open pool
func New(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

const itemColumns = `id, owner_id, product_id, name, price_cents, quantity, image_url, created_at_ms`

func scanItem(row pgx.Row) (optimistic.Item, error) {
	var (
		it optimistic.Item
		id uuid.UUID
		ms int64
	)
	err := row.Scan(&id, &it.OwnerID, &it.Payload.ProductID, &it.Payload.Name,
		&it.Payload.PriceCents, &it.Payload.Quantity, &it.Payload.ImageURL, &ms)
	if err != nil {
		return optimistic.Item{}, err
	}
	it.ID = id.String()
	it.CreatedAt = time.UnixMilli(ms).UTC()
	return it, nil
}

func collectItems(rows pgx.Rows) ([]optimistic.Item, error) {
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
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return collectionsvc.ErrNotFound
	}
	return err
}

// List implements collectionsvc.Store
func (s *Store) List(ctx context.Context, owner, collection string, after syncx.Cursor, limit int) ([]optimistic.Item, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+itemColumns+`
		FROM collection_item
		WHERE owner_id = $1 AND collection = $2
		  AND (created_at_ms, id) > ($3, $4)
		ORDER BY created_at_ms, id
		LIMIT $5`,
		owner, collection, after.Ms, after.ID, limit)
	if err != nil {
		return nil, err
	}
	return collectItems(rows)
}

// All implements collectionsvc.Store
func (s *Store) All(ctx context.Context, owner, collection string) ([]optimistic.Item, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT `+itemColumns+`
		FROM collection_item
		WHERE owner_id = $1 AND collection = $2
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
	_, err = s.DB.Exec(ctx, `
		INSERT INTO collection_item (id, owner_id, collection, product_id, name, price_cents, quantity, image_url, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, owner, collection, p.ProductID, p.Name, p.PriceCents, p.Quantity, p.ImageURL, item.CreatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return collectionsvc.ErrDuplicate
	}
	return err
}

// SetQuantity implements collectionsvc.Store
func (s *Store) SetQuantity(ctx context.Context, owner, collection, id string, quantity int) (optimistic.Item, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return optimistic.Item{}, collectionsvc.ErrNotFound
	}
	it, err := scanItem(s.DB.QueryRow(ctx, `
		UPDATE collection_item SET quantity = $4
		WHERE owner_id = $1 AND collection = $2 AND id = $3
		RETURNING `+itemColumns,
		owner, collection, uid, quantity))
	return it, notFound(err)
}

// Delete implements collectionsvc.Store
func (s *Store) Delete(ctx context.Context, owner, collection, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return collectionsvc.ErrNotFound
	}
	tag, err := s.DB.Exec(ctx, `
		DELETE FROM collection_item WHERE owner_id = $1 AND collection = $2 AND id = $3`,
		owner, collection, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return collectionsvc.ErrNotFound
	}
	return nil
}

// DeleteByProduct implements collectionsvc.Store
func (s *Store) DeleteByProduct(ctx context.Context, owner, collection, productID string) error {
	tag, err := s.DB.Exec(ctx, `
		DELETE FROM collection_item WHERE owner_id = $1 AND collection = $2 AND product_id = $3`,
		owner, collection, productID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return collectionsvc.ErrNotFound
	}
	return nil
}

// Clear implements collectionsvc.Store
func (s *Store) Clear(ctx context.Context, owner, collection string) (int, error) {
	tag, err := s.DB.Exec(ctx, `
		DELETE FROM collection_item WHERE owner_id = $1 AND collection = $2`,
		owner, collection)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Move implements collectionsvc.Store
func (s *Store) Move(ctx context.Context, owner, from, to, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return collectionsvc.ErrNotFound
	}

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	it, err := scanItem(tx.QueryRow(ctx, `
		DELETE FROM collection_item
		WHERE owner_id = $1 AND collection = $2 AND id = $3
		RETURNING `+itemColumns,
		owner, from, uid))
	if err != nil {
		return notFound(err)
	}

	p := it.Payload
	_, err = tx.Exec(ctx, `
		INSERT INTO collection_item (id, owner_id, collection, product_id, name, price_cents, quantity, image_url, created_at_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_id, collection, product_id) DO UPDATE
			SET quantity = collection_item.quantity + EXCLUDED.quantity`,
		uid, owner, to, p.ProductID, p.Name, p.PriceCents, p.Quantity, p.ImageURL, it.CreatedAt.UnixMilli())
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Epoch implements collectionsvc.Store
func (s *Store) Epoch(ctx context.Context, owner string) (int, error) {
	var epoch int
	err := s.DB.QueryRow(ctx, `
		INSERT INTO owner_state (owner_id, epoch) VALUES ($1, 1)
		ON CONFLICT (owner_id) DO UPDATE SET owner_id = EXCLUDED.owner_id
		RETURNING epoch`, owner).Scan(&epoch)
	return epoch, err
}

// Wipe implements collectionsvc.Store
func (s *Store) Wipe(ctx context.Context, owner string) (int, map[string]int, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return 0, nil, err
	}
	defer tx.Rollback(ctx)

	var epoch int
	err = tx.QueryRow(ctx, `
		INSERT INTO owner_state (owner_id, epoch, last_wipe_at)
		VALUES ($1, 2, NOW())
		ON CONFLICT (owner_id) DO UPDATE
			SET epoch = owner_state.epoch + 1,
				last_wipe_at = NOW(),
				updated_at = NOW()
		RETURNING epoch`, owner).Scan(&epoch)
	if err != nil {
		return 0, nil, err
	}

	rows, err := tx.Query(ctx, `
		WITH del AS (
			DELETE FROM collection_item WHERE owner_id = $1 RETURNING collection
		)
		SELECT collection, COUNT(*) FROM del GROUP BY collection`, owner)
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

	if err := tx.Commit(ctx); err != nil {
		return 0, nil, err
	}
	return epoch, deleted, nil
}

// EnsureUser maps a token subject to a stable user id, creating it on first sight
func (s *Store) EnsureUser(ctx context.Context, sub string) (string, error) {
	var id string
	err := s.DB.QueryRow(ctx, `
		INSERT INTO app_user (id, sub) VALUES ($1, $2)
		ON CONFLICT (sub) DO UPDATE SET sub = EXCLUDED.sub
		RETURNING id`, uuid.New().String(), sub).Scan(&id)
	return id, err
}
