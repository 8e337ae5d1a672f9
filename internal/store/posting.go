package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// InsertPostingRecord logs a published post.
func (s *Store) InsertPostingRecord(pr *PostingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pr.ID == "" {
		pr.ID = newID()
	}
	if pr.PostedAt.IsZero() {
		pr.PostedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO posting_history (id, origin_inspiration_id, content, trigger_type, posted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		pr.ID, pr.OriginInspirationID, pr.Content, pr.TriggerType, fmtTime(pr.PostedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert posting record: %w", err)
	}
	return nil
}

// RecentPosts returns the newest published posts.
func (s *Store) RecentPosts(limit int) ([]*PostingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(
		`SELECT id, origin_inspiration_id, content, trigger_type, posted_at
		 FROM posting_history ORDER BY posted_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query posting history: %w", err)
	}
	defer rows.Close()

	var out []*PostingRecord
	for rows.Next() {
		var pr PostingRecord
		var postedAt string
		if err := rows.Scan(&pr.ID, &pr.OriginInspirationID, &pr.Content, &pr.TriggerType, &postedAt); err != nil {
			return nil, fmt.Errorf("failed to scan posting record: %w", err)
		}
		pr.PostedAt = parseTime(postedAt)
		out = append(out, &pr)
	}
	return out, rows.Err()
}

// CountPostsOnDay counts posts published on the given UTC day. The daily
// posting cap checks this.
func (s *Store) CountPostsOnDay(day time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM posting_history WHERE substr(posted_at, 1, 10) = ?`,
		dayKey(day)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return n, nil
}

// LastPostTime returns the timestamp of the most recent post, or a zero time
// when nothing has been posted yet.
func (s *Store) LastPostTime() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var postedAt string
	err := s.db.QueryRow(
		`SELECT posted_at FROM posting_history ORDER BY posted_at DESC LIMIT 1`).Scan(&postedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last post time: %w", err)
	}
	return parseTime(postedAt), nil
}
