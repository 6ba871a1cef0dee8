// Package cache implements algoc's build-result cache: a compile of a
// given source file, for a given back-end, is keyed by the blake2b hash
// of its contents plus the back-end name, so the artifact stored for an
// unchanged input can be found again by that key.
//
// The cache is a plain SQL table behind database/sql, and algoc links
// the sqlite, postgres, mysql and mssql drivers, the same pluggable-
// driver idiom the teacher used for its own multi-database support. The
// statements below are written in SQLite's dialect (`?` placeholders, a
// BLOB column, an ON CONFLICT upsert); they are not adapted to the other
// drivers' dialects.
package cache

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	_ "github.com/denisenkom/go-mssqldb"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"golang.org/x/crypto/blake2b"
)

// Store is a handle on the build cache's backing database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if absent) a cache store. driverName/dsn follow
// database/sql conventions; "sqlite" with a file path is the default
// single-developer case.
func Open(driverName, dsn string) (*Store, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("cache: open %s: %w", driverName, err)
	}
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS build_cache (
			key        TEXT PRIMARY KEY,
			backend    TEXT NOT NULL,
			artifact   BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("cache: migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// Key hashes source bytes plus the back-end name into a lookup key.
func Key(source []byte, backend string) string {
	h := blake2b.Sum256(append(append([]byte(nil), source...), []byte(backend)...))
	return hex.EncodeToString(h[:])
}

// Lookup returns the cached artifact for key, or ok=false on a miss.
func (s *Store) Lookup(ctx context.Context, key string) (artifact []byte, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `SELECT artifact FROM build_cache WHERE key = ?`, key)
	if err := row.Scan(&artifact); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache: lookup: %w", err)
	}
	return artifact, true, nil
}

// Store records an artifact under key, replacing any prior entry.
func (s *Store) Store(ctx context.Context, key, backend string, artifact []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO build_cache (key, backend, artifact, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET artifact = excluded.artifact, created_at = excluded.created_at
	`, key, backend, artifact, time.Now())
	if err != nil {
		return fmt.Errorf("cache: store: %w", err)
	}
	return nil
}
