package store

import (
	"fmt"
	"time"
)

// InsertPatternUsage records one speech-pattern occurrence in a published
// post. Every literal detected at review time gets a row.
func (s *Store) InsertPatternUsage(u *PatternUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.UsedAt.IsZero() {
		u.UsedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO pattern_usage (pattern_type, literal, post_id, used_at) VALUES (?, ?, ?, ?)`,
		u.PatternType, u.Literal, u.PostID, fmtTime(u.UsedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert pattern usage: %w", err)
	}
	return nil
}

// PostsSinceLastUse counts how many posts were published after the literal
// last appeared. Returns -1 if the literal has never been used.
func (s *Store) PostsSinceLastUse(literal string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var lastUsed string
	err := s.db.QueryRow(
		`SELECT used_at FROM pattern_usage WHERE literal = ? ORDER BY used_at DESC LIMIT 1`,
		literal).Scan(&lastUsed)
	if err != nil {
		// never used
		return -1, nil
	}

	var n int
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM posting_history WHERE posted_at > ?`, lastUsed).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts since pattern use: %w", err)
	}
	return n, nil
}

// RecentPatternLiterals returns the literals detected in the last n posts,
// newest first, for consecutive-use checks.
func (s *Store) RecentPatternLiterals(n int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n <= 0 {
		n = 5
	}
	rows, err := s.db.Query(
		`SELECT literal FROM pattern_usage ORDER BY used_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query pattern usage: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var lit string
		if err := rows.Scan(&lit); err != nil {
			return nil, err
		}
		out = append(out, lit)
	}
	return out, rows.Err()
}

// ConsecutivePostsWithLiteral counts how many of the most recent posts, in an
// unbroken run from the newest, contain the literal.
func (s *Store) ConsecutivePostsWithLiteral(literal string, window int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if window <= 0 {
		window = 10
	}
	rows, err := s.db.Query(
		`SELECT id FROM posting_history ORDER BY posted_at DESC LIMIT ?`, window)
	if err != nil {
		return 0, fmt.Errorf("failed to query recent posts: %w", err)
	}
	var postIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		postIDs = append(postIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	run := 0
	for _, postID := range postIDs {
		var n int
		err := s.db.QueryRow(
			`SELECT COUNT(*) FROM pattern_usage WHERE post_id = ? AND literal = ?`,
			postID, literal).Scan(&n)
		if err != nil {
			return 0, fmt.Errorf("failed to check pattern in post: %w", err)
		}
		if n == 0 {
			break
		}
		run++
	}
	return run, nil
}
