package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS app_user (
	id         TEXT PRIMARY KEY,
	sub        TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS owner_state (
	owner_id     TEXT PRIMARY KEY,
	epoch        INT NOT NULL DEFAULT 1,
	last_wipe_at TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS collection_item (
	id            UUID PRIMARY KEY,
	owner_id      TEXT NOT NULL,
	collection    TEXT NOT NULL,
	product_id    TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	price_cents   BIGINT NOT NULL CHECK (price_cents >= 0),
	quantity      INT NOT NULL CHECK (quantity >= 1),
	image_url     TEXT NOT NULL DEFAULT '',
	created_at_ms BIGINT NOT NULL,
	UNIQUE (owner_id, collection, product_id)
);

CREATE INDEX IF NOT EXISTS collection_item_page_idx
	ON collection_item (owner_id, collection, created_at_ms, id);
`

// Migrate creates the tables the store needs. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return err
	}
	log.Info().Msg("database schema ensured")
	return nil
}
