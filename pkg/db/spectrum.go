package db

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"
)

// SpectrumRecord is one channel reading from one scan.
type SpectrumRecord struct {
	Timestamp int64 `json:"timestamp"` // unix seconds
	Channel   int   `json:"channel"`
	Energy    int   `json:"energy"` // 0-255, higher = noisier
}

// SpectrumStore persists background energy scan results.
type SpectrumStore interface {
	SaveScan(ctx context.Context, results map[int]int) error
	History(ctx context.Context, hours int) ([]SpectrumRecord, error)
	ChannelAverages(ctx context.Context, hours int) (map[int]float64, error)
	Prune(ctx context.Context, keepDays int) (int64, error)
}

// Spectrum returns a SpectrumStore for this database.
func (db *DB) Spectrum() SpectrumStore {
	return &spectrumStore{db: db}
}

type spectrumStore struct {
	db *DB
}

// SaveScan persists one scan's channel-to-energy pairs, all stamped with
// the same timestamp.
func (s *spectrumStore) SaveScan(ctx context.Context, results map[int]int) error {
	if len(results) == 0 {
		return nil
	}
	ts := time.Now().Unix()
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO spectrum_history (timestamp, channel, energy) VALUES (?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for ch, energy := range results {
			if _, err := stmt.ExecContext(ctx, ts, ch, energy); err != nil {
				return fmt.Errorf("failed to store scan for channel %d: %w", ch, err)
			}
		}
		return nil
	})
}

func (s *spectrumStore) History(ctx context.Context, hours int) ([]SpectrumRecord, error) {
	since := time.Now().Unix() - int64(hours)*3600
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, channel, energy FROM spectrum_history
		WHERE timestamp >= ? ORDER BY timestamp ASC
	`, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var records []SpectrumRecord
	for rows.Next() {
		var r SpectrumRecord
		if err := rows.Scan(&r.Timestamp, &r.Channel, &r.Energy); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// ChannelAverages returns the mean energy per channel over the past N
// hours, rounded to one decimal place.
func (s *spectrumStore) ChannelAverages(ctx context.Context, hours int) (map[int]float64, error) {
	since := time.Now().Unix() - int64(hours)*3600
	rows, err := s.db.QueryContext(ctx, `
		SELECT channel, AVG(energy) FROM spectrum_history
		WHERE timestamp >= ? GROUP BY channel
	`, since)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	averages := make(map[int]float64)
	for rows.Next() {
		var channel int
		var avg float64
		if err := rows.Scan(&channel, &avg); err != nil {
			return nil, err
		}
		averages[channel] = math.Round(avg*10) / 10
	}
	return averages, rows.Err()
}

// Prune removes records older than keepDays and returns the count removed.
func (s *spectrumStore) Prune(ctx context.Context, keepDays int) (int64, error) {
	cutoff := time.Now().Unix() - int64(keepDays)*86400
	result, err := s.db.ExecContext(ctx, `DELETE FROM spectrum_history WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
