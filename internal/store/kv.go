package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Scope selects one of the two storage partitions.
type Scope string

const (
	// ScopeLocal holds bulk data: the three session lists.
	ScopeLocal Scope = "local"
	// ScopeSync holds small settings values.
	ScopeSync Scope = "sync"
)

// ErrNoKey is returned by GetJSON when the key has never been written.
var ErrNoKey = errors.New("store: key not found")

// GetJSON reads a key's value into v. Returns ErrNoKey for absent keys.
func (s *Store) GetJSON(ctx context.Context, scope Scope, key string, v any) error {
	var raw string
	err := s.DB.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE scope = ? AND key = ?`, string(scope), key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoKey
	}
	if err != nil {
		return fmt.Errorf("store: get %s/%s: %w", scope, key, err)
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("store: decode %s/%s: %w", scope, key, err)
	}
	return nil
}

// SetJSON writes v under key, replacing any previous value.
func (s *Store) SetJSON(ctx context.Context, scope Scope, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("store: encode %s/%s: %w", scope, key, err)
	}
	_, err = s.DB.ExecContext(ctx,
		`INSERT INTO kv (scope, key, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		string(scope), key, string(raw), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("store: set %s/%s: %w", scope, key, err)
	}
	return nil
}

// Delete removes a key. Absent keys are not an error.
func (s *Store) Delete(ctx context.Context, scope Scope, key string) error {
	_, err := s.DB.ExecContext(ctx,
		`DELETE FROM kv WHERE scope = ? AND key = ?`, string(scope), key)
	if err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", scope, key, err)
	}
	return nil
}
