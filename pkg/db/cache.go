package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrCacheEntryNotFound = errors.New("device cache entry not found")

// CacheEntry is one persisted device document. State is an opaque JSON
// blob owned by the device engine; the store never inspects it.
type CacheEntry struct {
	IEEE     string
	State    []byte
	LastSeen int64 // unix milliseconds
}

// CacheStore persists device state documents between runs.
type CacheStore interface {
	Get(ctx context.Context, ieee string) (*CacheEntry, error)
	Put(ctx context.Context, entry *CacheEntry) error
	PutAll(ctx context.Context, entries []*CacheEntry) error
	Delete(ctx context.Context, ieee string) error
	All(ctx context.Context) ([]*CacheEntry, error)
}

// Cache returns a CacheStore for this database.
func (db *DB) Cache() CacheStore {
	return &cacheStore{db: db}
}

type cacheStore struct {
	db *DB
}

func (s *cacheStore) Get(ctx context.Context, ieee string) (*CacheEntry, error) {
	e := &CacheEntry{IEEE: ieee}
	var state string
	err := s.db.QueryRowContext(ctx, `
		SELECT state, last_seen FROM device_cache WHERE ieee = ?
	`, ieee).Scan(&state, &e.LastSeen)
	if err == sql.ErrNoRows {
		return nil, ErrCacheEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	e.State = []byte(state)
	return e, nil
}

func (s *cacheStore) Put(ctx context.Context, entry *CacheEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_cache (ieee, state, last_seen) VALUES (?, ?, ?)
		ON CONFLICT(ieee) DO UPDATE SET
			state = excluded.state,
			last_seen = excluded.last_seen,
			updated_at = datetime('now')
	`, entry.IEEE, string(entry.State), entry.LastSeen)
	if err != nil {
		return fmt.Errorf("failed to store device cache entry: %w", err)
	}
	return nil
}

// PutAll writes a batch of documents in one transaction. A dirty-device
// flush uses this so a crash mid-flush never leaves a half-written set.
func (s *cacheStore) PutAll(ctx context.Context, entries []*CacheEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO device_cache (ieee, state, last_seen) VALUES (?, ?, ?)
			ON CONFLICT(ieee) DO UPDATE SET
				state = excluded.state,
				last_seen = excluded.last_seen,
				updated_at = datetime('now')
		`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, entry := range entries {
			if _, err := stmt.ExecContext(ctx, entry.IEEE, string(entry.State), entry.LastSeen); err != nil {
				return fmt.Errorf("failed to store cache entry for %s: %w", entry.IEEE, err)
			}
		}
		return nil
	})
}

func (s *cacheStore) Delete(ctx context.Context, ieee string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM device_cache WHERE ieee = ?`, ieee)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrCacheEntryNotFound
	}
	return nil
}

func (s *cacheStore) All(ctx context.Context) ([]*CacheEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ieee, state, last_seen FROM device_cache`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []*CacheEntry
	for rows.Next() {
		e := &CacheEntry{}
		var state string
		if err := rows.Scan(&e.IEEE, &state, &e.LastSeen); err != nil {
			return nil, err
		}
		e.State = []byte(state)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
