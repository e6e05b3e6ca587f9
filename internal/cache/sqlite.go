package cache

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLite is a Store backed by modernc.org/sqlite, shared across processes
// and surviving restarts.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (or creates) the cache database at dsn and configures
// WAL mode.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
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

	const migration = `
CREATE TABLE IF NOT EXISTS resolution_cache (
	key        TEXT PRIMARY KEY,
	payload    BLOB NOT NULL,
	stored_at  INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resolution_cache_expires ON resolution_cache(expires_at);
`
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, expires_at FROM resolution_cache WHERE key = ?`, key,
	).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "cache: get %s", key)
	}
	if time.Now().Unix() > expiresAt {
		// Stale entries stay in place until superseded by the re-resolution
		// or swept by PurgeExpired.
		return nil, false, nil
	}
	return payload, true, nil
}

func (s *SQLite) Put(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resolution_cache (key, payload, stored_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			payload    = excluded.payload,
			stored_at  = excluded.stored_at,
			expires_at = excluded.expires_at`,
		key, payload, now.Unix(), now.Add(ttl).Unix(),
	)
	return eris.Wrapf(err, "cache: put %s", key)
}

// PurgeExpired deletes entries past their expiry, returning the count.
func (s *SQLite) PurgeExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM resolution_cache WHERE expires_at < ?`, time.Now().Unix(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "cache: purge expired")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLite) Close() error { return s.db.Close() }
