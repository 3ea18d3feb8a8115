package cache

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteTier is a Tier persisted in a local SQLite database, used for the
// workspace-scoped cache that outlives a session.
type SQLiteTier struct {
	db *sql.DB
}

// NewSQLiteTier opens (or creates) the cache database at dsn and applies
// the schema. WAL mode keeps concurrent reads cheap.
func NewSQLiteTier(dsn string) (*SQLiteTier, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	// An in-memory database exists per connection; the pool must not open
	// a second one.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate sqlite")
	}
	return &SQLiteTier{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	expires_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);
`

func (s *SQLiteTier) Get(ctx context.Context, key string) ([]byte, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries
		 WHERE key = ? AND (expires_at IS NULL OR expires_at > datetime('now'))`,
		key,
	)
	var value []byte
	err := row.Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: sqlite get")
	}
	return value, true, nil
}

func (s *SQLiteTier) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	var expiresAt any
	if ttl > 0 {
		expiresAt = time.Now().UTC().Add(ttl)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	return eris.Wrap(err, "cache: sqlite set")
}

func (s *SQLiteTier) Remove(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, key)
	return eris.Wrap(err, "cache: sqlite remove")
}

func (s *SQLiteTier) Keys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM cache_entries
		 WHERE key LIKE ? || '%' AND (expires_at IS NULL OR expires_at > datetime('now'))`,
		prefix,
	)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite keys")
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, eris.Wrap(err, "cache: sqlite scan key")
		}
		keys = append(keys, k)
	}
	return keys, eris.Wrap(rows.Err(), "cache: sqlite keys iterate")
}

// PurgeExpired removes entries past their expiry and returns the count.
func (s *SQLiteTier) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= datetime('now')`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "cache: sqlite purge expired")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "cache: sqlite rows affected")
}

func (s *SQLiteTier) Close() error {
	return s.db.Close()
}
