package cachestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/precache/internal/model"
)

// StatusKey is the fixed key under which the PreCacheStatus record is kept.
const StatusKey = "preCacheStatus"

// GetValue returns the raw value stored under key.
func (s *Store) GetValue(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %q: %w", key, err)
	}
	return value, true, nil
}

// SetValue stores value under key, replacing any previous value.
func (s *Store) SetValue(ctx context.Context, key, value string) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, time.Now().UnixNano()); err != nil {
		return fmt.Errorf("failed to write %q: %w", key, err)
	}
	return nil
}

// DeleteValue removes key.
func (s *Store) DeleteValue(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// StatusRecord persists the PreCacheStatus as JSON in the key/value table.
type StatusRecord struct {
	store *Store
}

// NewStatusRecord returns a StatusRecord backed by store.
func NewStatusRecord(store *Store) *StatusRecord {
	return &StatusRecord{store: store}
}

// Read returns the stored status, or nil when none has been written.
func (r *StatusRecord) Read(ctx context.Context) (*model.PreCacheStatus, error) {
	raw, ok, err := r.store.GetValue(ctx, StatusKey)
	if err != nil || !ok {
		return nil, err
	}
	var status model.PreCacheStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", StatusKey, err)
	}
	return &status, nil
}

// Write replaces the stored status.
func (r *StatusRecord) Write(ctx context.Context, status model.PreCacheStatus) error {
	b, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to serialize %s: %w", StatusKey, err)
	}
	return r.store.SetValue(ctx, StatusKey, string(b))
}

// Clear removes the stored status.
func (r *StatusRecord) Clear(ctx context.Context) error {
	return r.store.DeleteValue(ctx, StatusKey)
}
