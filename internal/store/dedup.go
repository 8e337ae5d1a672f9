package store

import (
	"fmt"
	"time"
)

// MarkNotificationProcessed records a notification id so it is never handled
// twice. Ids persist across sessions.
func (s *Store) MarkNotificationProcessed(id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO processed_notifications (id, processed_at) VALUES (?, ?)
		 ON CONFLICT(id) DO NOTHING`, id, fmtTime(now))
	if err != nil {
		return fmt.Errorf("failed to mark notification processed: %w", err)
	}
	return nil
}

// IsNotificationProcessed reports whether the id has been handled before.
func (s *Store) IsNotificationProcessed(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM processed_notifications WHERE id = ?`, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check notification: %w", err)
	}
	return n > 0, nil
}
