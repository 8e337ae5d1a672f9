package store

import (
	"fmt"
	"strings"
	"time"
)

// InsertEpisode persists a new episode. Episodes are immutable once written.
func (s *Store) InsertEpisode(ep *Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ep.ID == "" {
		ep.ID = newID()
	}
	if ep.CreatedAt.IsZero() {
		ep.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO episodes (id, type, source_id, source_user, content, topics, sentiment, emotional_impact, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ep.ID, string(ep.Type), ep.SourceID, ep.SourceUser, ep.Content,
		encodeList(ep.Topics), string(ep.Sentiment), ep.EmotionalImpact, fmtTime(ep.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}
	return nil
}

// GetEpisode fetches one episode by id.
func (s *Store) GetEpisode(id string) (*Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(
		`SELECT id, type, source_id, source_user, content, topics, sentiment, emotional_impact, created_at
		 FROM episodes WHERE id = ?`, id)
	return scanEpisode(row)
}

// RecentEpisodes returns the newest episodes, optionally filtered by type.
func (s *Store) RecentEpisodes(epType EpisodeType, limit int) ([]*Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = 10
	}
	query := `SELECT id, type, source_id, source_user, content, topics, sentiment, emotional_impact, created_at
		 FROM episodes`
	args := []any{}
	if epType != "" {
		query += ` WHERE type = ?`
		args = append(args, string(epType))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query episodes: %w", err)
	}
	defer rows.Close()

	var out []*Episode
	for rows.Next() {
		ep, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, rows.Err()
}

// LatestEpisode returns the newest episode or nil when the store is empty.
func (s *Store) LatestEpisode() (*Episode, error) {
	eps, err := s.RecentEpisodes("", 1)
	if err != nil || len(eps) == 0 {
		return nil, err
	}
	return eps[0], nil
}

// CompactEpisodes folds episodes older than cutoff into per-day digests and
// deletes the rows. Returns the number of episodes compacted.
func (s *Store) CompactEpisodes(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin compaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT substr(created_at, 1, 10) AS day, type, COUNT(*), GROUP_CONCAT(topics, '|')
		 FROM episodes WHERE created_at < ? GROUP BY day, type`, fmtTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to digest episodes: %w", err)
	}

	type digest struct {
		day, typ  string
		count     int
		topTopics string
	}
	var digests []digest
	for rows.Next() {
		var d digest
		var topicsBlob string
		if err := rows.Scan(&d.day, &d.typ, &d.count, &topicsBlob); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan digest: %w", err)
		}
		d.topTopics = topTopicsFromBlob(topicsBlob, 5)
		digests = append(digests, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	total := 0
	for _, d := range digests {
		if _, err := tx.Exec(
			`INSERT INTO episode_digests (day, type, count, top_topics) VALUES (?, ?, ?, ?)
			 ON CONFLICT(day, type) DO UPDATE SET count = count + excluded.count`,
			d.day, d.typ, d.count, d.topTopics); err != nil {
			return 0, fmt.Errorf("failed to write digest: %w", err)
		}
		total += d.count
	}

	if _, err := tx.Exec(`DELETE FROM episodes WHERE created_at < ?`, fmtTime(cutoff)); err != nil {
		return 0, fmt.Errorf("failed to delete compacted episodes: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit compaction: %w", err)
	}
	return total, nil
}

// topTopicsFromBlob picks the most frequent topics from concatenated JSON
// topic lists.
func topTopicsFromBlob(blob string, n int) string {
	counts := map[string]int{}
	for _, part := range strings.Split(blob, "|") {
		for _, topic := range decodeList(part) {
			counts[topic]++
		}
	}
	var best []string
	for len(best) < n {
		top, topCount := "", 0
		for topic, c := range counts {
			if c > topCount {
				top, topCount = topic, c
			}
		}
		if top == "" {
			break
		}
		best = append(best, top)
		delete(counts, top)
	}
	return strings.Join(best, ",")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEpisode(row rowScanner) (*Episode, error) {
	var ep Episode
	var typ, sentiment, topics, createdAt string
	if err := row.Scan(&ep.ID, &typ, &ep.SourceID, &ep.SourceUser, &ep.Content,
		&topics, &sentiment, &ep.EmotionalImpact, &createdAt); err != nil {
		return nil, fmt.Errorf("failed to scan episode: %w", err)
	}
	ep.Type = EpisodeType(typ)
	ep.Sentiment = Sentiment(sentiment)
	ep.Topics = decodeList(topics)
	ep.CreatedAt = parseTime(createdAt)
	return &ep, nil
}
