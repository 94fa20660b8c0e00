package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var ErrNameNotFound = errors.New("device name not found")

// NameStore persists friendly name overrides keyed by IEEE address.
type NameStore interface {
	Get(ctx context.Context, ieee string) (string, error)
	Set(ctx context.Context, ieee, name string) error
	Delete(ctx context.Context, ieee string) error
	All(ctx context.Context) (map[string]string, error)
}

// Names returns a NameStore for this database.
func (db *DB) Names() NameStore {
	return &nameStore{db: db}
}

type nameStore struct {
	db *DB
}

func (s *nameStore) Get(ctx context.Context, ieee string) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `
		SELECT name FROM device_names WHERE ieee = ?
	`, ieee).Scan(&name)
	if err == sql.ErrNoRows {
		return "", ErrNameNotFound
	}
	if err != nil {
		return "", err
	}
	return name, nil
}

func (s *nameStore) Set(ctx context.Context, ieee, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO device_names (ieee, name) VALUES (?, ?)
		ON CONFLICT(ieee) DO UPDATE SET name = excluded.name, updated_at = datetime('now')
	`, ieee, name)
	if err != nil {
		return fmt.Errorf("failed to store device name: %w", err)
	}
	return nil
}

func (s *nameStore) Delete(ctx context.Context, ieee string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM device_names WHERE ieee = ?`, ieee)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNameNotFound
	}
	return nil
}

func (s *nameStore) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ieee, name FROM device_names`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	names := make(map[string]string)
	for rows.Next() {
		var ieee, name string
		if err := rows.Scan(&ieee, &name); err != nil {
			return nil, err
		}
		names[ieee] = name
	}
	return names, rows.Err()
}
