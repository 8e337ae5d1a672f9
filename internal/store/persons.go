package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetOrCreatePerson resolves a counterparty by platform user id, creating a
// stranger record on first contact.
func (s *Store) GetOrCreatePerson(userID, screenName string, now time.Time) (*Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(personSelect+` WHERE user_id = ?`, userID)
	p, err := scanPerson(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up person: %w", err)
	}

	p = &Person{
		ID:         newID(),
		UserID:     userID,
		ScreenName: screenName,
		Tier:       PersonStranger,
		FirstMetAt: now,
	}
	_, err = s.db.Exec(
		`INSERT INTO persons (id, user_id, screen_name, tier, affinity, sentiment_history, common_topics, who_is_this, first_met_at, last_interaction_at)
		 VALUES (?, ?, ?, ?, 0, '[]', '[]', '', ?, ?)`,
		p.ID, p.UserID, p.ScreenName, string(p.Tier), fmtTime(now), fmtTime(time.Time{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create person: %w", err)
	}
	return p, nil
}

// GetPersonByUserID fetches a person without creating one.
func (s *Store) GetPersonByUserID(userID string) (*Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(personSelect+` WHERE user_id = ?`, userID)
	p, err := scanPerson(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up person: %w", err)
	}
	return p, nil
}

// UpdatePerson writes back mutable person fields. Tier may only move upward;
// a downgrade attempt keeps the stored tier.
func (s *Store) UpdatePerson(p *Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var storedTier string
	if err := s.db.QueryRow(`SELECT tier FROM persons WHERE id = ?`, p.ID).Scan(&storedTier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read person tier: %w", err)
	}
	if PersonTier(storedTier).Rank() > p.Tier.Rank() {
		p.Tier = PersonTier(storedTier)
	}

	_, err := s.db.Exec(
		`UPDATE persons SET screen_name = ?, tier = ?, affinity = ?, my_reply_count = ?,
			their_reply_count = ?, my_like_count = ?, their_like_count = ?,
			sentiment_history = ?, common_topics = ?, who_is_this = ?, last_interaction_at = ?
		 WHERE id = ?`,
		p.ScreenName, string(p.Tier), clamp01(p.Affinity), p.MyReplyCount,
		p.TheirReplyCount, p.MyLikeCount, p.TheirLikeCount,
		encodeList(p.SentimentHistory), encodeList(p.CommonTopics), p.WhoIsThis,
		fmtTime(p.LastInteractionAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update person: %w", err)
	}
	return nil
}

// FamiliarPersons returns persons at or above the familiar tier keyed by
// user id, for the feed journey's rule-based classification.
func (s *Store) FamiliarPersons() (map[string]*Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(personSelect+` WHERE tier IN (?, ?)`,
		string(PersonFamiliar), string(PersonFriend))
	if err != nil {
		return nil, fmt.Errorf("failed to query familiar persons: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*Person)
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}

const personSelect = `SELECT id, user_id, screen_name, tier, affinity, my_reply_count,
	their_reply_count, my_like_count, their_like_count, sentiment_history, common_topics,
	who_is_this, first_met_at, last_interaction_at FROM persons`

func scanPerson(row rowScanner) (*Person, error) {
	var p Person
	var tier, sentiments, topics, firstMet, lastSeen string
	err := row.Scan(&p.ID, &p.UserID, &p.ScreenName, &tier, &p.Affinity,
		&p.MyReplyCount, &p.TheirReplyCount, &p.MyLikeCount, &p.TheirLikeCount,
		&sentiments, &topics, &p.WhoIsThis, &firstMet, &lastSeen)
	if err != nil {
		return nil, err
	}
	p.Tier = PersonTier(tier)
	p.SentimentHistory = decodeList(sentiments)
	p.CommonTopics = decodeList(topics)
	p.FirstMetAt = parseTime(firstMet)
	p.LastInteractionAt = parseTime(lastSeen)
	return &p, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
