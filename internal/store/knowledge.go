package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// UpsertKnowledge caches a research result for a keyword, replacing any
// earlier entry.
func (s *Store) UpsertKnowledge(k *KnowledgeEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO knowledge (keyword, summary, my_angle, relevance, source_platform, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(keyword) DO UPDATE SET
			summary = excluded.summary,
			my_angle = excluded.my_angle,
			relevance = excluded.relevance,
			source_platform = excluded.source_platform,
			expires_at = excluded.expires_at`,
		k.Keyword, k.Summary, k.MyAngle, k.Relevance, k.SourcePlatform, fmtTime(k.ExpiresAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert knowledge: %w", err)
	}
	return nil
}

// GetFreshKnowledge returns the cached entry for a keyword when it has not
// expired, or ErrNotFound.
func (s *Store) GetFreshKnowledge(keyword string, now time.Time) (*KnowledgeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var k KnowledgeEntry
	var expiresAt string
	err := s.db.QueryRow(
		`SELECT keyword, summary, my_angle, relevance, source_platform, expires_at
		 FROM knowledge WHERE keyword = ?`, keyword).
		Scan(&k.Keyword, &k.Summary, &k.MyAngle, &k.Relevance, &k.SourcePlatform, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge: %w", err)
	}
	k.ExpiresAt = parseTime(expiresAt)
	if !k.ExpiresAt.IsZero() && !now.Before(k.ExpiresAt) {
		return nil, ErrNotFound
	}
	return &k, nil
}

// PruneExpiredKnowledge deletes stale cache rows.
func (s *Store) PruneExpiredKnowledge(now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`DELETE FROM knowledge WHERE expires_at != '' AND expires_at <= ?`, fmtTime(now))
	if err != nil {
		return 0, fmt.Errorf("failed to prune knowledge: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
