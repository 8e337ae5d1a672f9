package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// GetOrCreateConversation resolves the ongoing thread for (person, post),
// opening a new one in state ongoing when none exists.
func (s *Store) GetOrCreateConversation(personID, platform, postID, convType, topic string, now time.Time) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(conversationSelect+` WHERE person_id = ? AND post_id = ? AND state = ?`,
		personID, postID, string(ConversationOngoing))
	c, err := scanConversation(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	c = &Conversation{
		ID:               newID(),
		PersonID:         personID,
		Platform:         platform,
		PostID:           postID,
		ConversationType: convType,
		Topic:            topic,
		State:            ConversationOngoing,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	_, err = s.db.Exec(
		`INSERT INTO conversations (id, person_id, platform, post_id, conversation_type, topic, summary, turn_count, state, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '', 0, ?, ?, ?)`,
		c.ID, c.PersonID, c.Platform, c.PostID, c.ConversationType, c.Topic,
		string(c.State), fmtTime(now), fmtTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return c, nil
}

// AdvanceConversation bumps turn_count and stamps updated_at.
func (s *Store) AdvanceConversation(id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE conversations SET turn_count = turn_count + 1, updated_at = ? WHERE id = ?`,
		fmtTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to advance conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ConcludeConversation marks a thread finished and stores its summary.
func (s *Store) ConcludeConversation(id, summary string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE conversations SET state = ?, summary = ?, updated_at = ? WHERE id = ?`,
		string(ConversationConcluded), summary, fmtTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to conclude conversation: %w", err)
	}
	return nil
}

// CountConversationsByPerson counts threads for a person, any state. Person
// tier upgrades key off this.
func (s *Store) CountConversationsByPerson(personID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations WHERE person_id = ?`, personID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count conversations: %w", err)
	}
	return n, nil
}

const conversationSelect = `SELECT id, person_id, platform, post_id, conversation_type, topic,
	summary, turn_count, state, created_at, updated_at FROM conversations`

func scanConversation(row rowScanner) (*Conversation, error) {
	var c Conversation
	var state, createdAt, updatedAt string
	err := row.Scan(&c.ID, &c.PersonID, &c.Platform, &c.PostID, &c.ConversationType,
		&c.Topic, &c.Summary, &c.TurnCount, &state, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.State = ConversationState(state)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
