package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool used by PostgresTier, abstracted so
// tests can substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresTier is a Tier persisted in PostgreSQL, used as the workspace
// cache when several desktop clients share a backend.
type PostgresTier struct {
	pool Pool
}

// NewPostgresTier connects a pool to the given database and applies the
// schema.
func NewPostgresTier(ctx context.Context, connString string) (*PostgresTier, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "cache: connect postgres")
	}
	t := &PostgresTier{pool: pool}
	if err := t.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return t, nil
}

// NewPostgresTierWithPool wraps an existing pool without migrating.
func NewPostgresTierWithPool(pool Pool) *PostgresTier {
	return &PostgresTier{pool: pool}
}

func (p *PostgresTier) migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	expires_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`)
	return eris.Wrap(err, "cache: migrate postgres")
}

func (p *PostgresTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT value FROM cache_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`,
		key,
	)
	var value []byte
	err := row.Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: postgres get")
	}
	return value, true, nil
}

func (p *PostgresTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().UTC().Add(ttl)
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return eris.Wrap(err, "cache: postgres set")
}

func (p *PostgresTier) Remove(ctx context.Context, key string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM cache_entries WHERE key = $1`, key)
	return eris.Wrap(err, "cache: postgres remove")
}

func (p *PostgresTier) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key FROM cache_entries
		 WHERE key LIKE $1 || '%' AND (expires_at IS NULL OR expires_at > now())`,
		prefix,
	)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, eris.Wrap(err, "cache: postgres scan key")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "cache: postgres keys iterate")
}

func (p *PostgresTier) Close() error {
	p.pool.Close()
	return nil
}
