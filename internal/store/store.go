// Package store provides tabkeeper's SQLite persistence: a key-value table
// with two scopes, mirroring the split between bulk session storage
// ("local") and small settings storage ("sync"). Values are JSON blobs.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// Store is the tabkeeper database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the database at path with production-safe pragmas
// and applies the schema. The caller must blank-import a driver registering
// "sqlite" (modernc.org/sqlite).
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Store{DB: db}, nil
}

// OpenMemory opens an in-memory store for tests. MaxOpenConns(1) keeps all
// queries on the single shared in-memory database.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	s.DB.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
