package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// IncrementCounter bumps a named per-day counter and returns the new value.
// Used for daily action and follow caps.
func (s *Store) IncrementCounter(name string, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey(day)
	_, err := s.db.Exec(
		`INSERT INTO daily_counters (name, day, count) VALUES (?, ?, 1)
		 ON CONFLICT(name, day) DO UPDATE SET count = count + 1`, name, key)
	if err != nil {
		return 0, fmt.Errorf("failed to increment counter %s: %w", name, err)
	}
	var n int
	if err := s.db.QueryRow(
		`SELECT count FROM daily_counters WHERE name = ? AND day = ?`, name, key).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", name, err)
	}
	return n, nil
}

// GetCounter reads a per-day counter, zero when absent.
func (s *Store) GetCounter(name string, day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRow(
		`SELECT count FROM daily_counters WHERE name = ? AND day = ?`, name, dayKey(day)).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", name, err)
	}
	return n, nil
}
