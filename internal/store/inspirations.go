package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned when an entity id does not exist.
var ErrNotFound = errors.New("store: not found")

// InsertInspiration persists a new inspiration.
func (s *Store) InsertInspiration(insp *Inspiration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if insp.CreatedAt.IsZero() {
		insp.CreatedAt = now
	}
	if insp.LastReinforcedAt.IsZero() {
		insp.LastReinforcedAt = insp.CreatedAt
	}
	if insp.LastAccessedAt.IsZero() {
		insp.LastAccessedAt = insp.CreatedAt
	}
	_, err := s.db.Exec(
		`INSERT INTO inspirations (id, origin_episode_id, trigger_content, topic, my_angle, potential_post,
			tier, strength, emotional_impact, reinforcement_count, created_at, last_reinforced_at,
			last_accessed_at, used_count, last_used_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		insp.ID, insp.OriginEpisodeID, insp.TriggerContent, insp.Topic, insp.MyAngle, insp.PotentialPost,
		string(insp.Tier), insp.Strength, insp.EmotionalImpact, insp.ReinforcementCount,
		fmtTime(insp.CreatedAt), fmtTime(insp.LastReinforcedAt), fmtTime(insp.LastAccessedAt),
		insp.UsedCount, fmtTime(insp.LastUsedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert inspiration: %w", err)
	}
	return nil
}

// GetInspiration fetches one inspiration by id.
func (s *Store) GetInspiration(id string) (*Inspiration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getInspirationLocked(id)
}

func (s *Store) getInspirationLocked(id string) (*Inspiration, error) {
	row := s.db.QueryRow(inspirationSelect+` WHERE id = ?`, id)
	insp, err := scanInspiration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return insp, err
}

// GetInspirationByTopic fetches the inspiration with the given normalised
// topic, or ErrNotFound.
func (s *Store) GetInspirationByTopic(topic string) (*Inspiration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(inspirationSelect+` WHERE topic = ? LIMIT 1`, topic)
	insp, err := scanInspiration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return insp, err
}

// AllInspirations returns every inspiration; used by the consolidator.
func (s *Store) AllInspirations() ([]*Inspiration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(inspirationSelect)
	if err != nil {
		return nil, fmt.Errorf("failed to query inspirations: %w", err)
	}
	defer rows.Close()
	return collectInspirations(rows)
}

// ReadyFilter selects matured inspirations eligible for posting.
type ReadyFilter struct {
	MinStrength     float64
	Tiers           []Tier
	MaturationHours float64       // age since created must exceed this
	UsedCooldown    time.Duration // never used, or last used at least this long ago
	Limit           int
}

// ReadyInspirations runs the bulk readiness query: strength and tier filters,
// maturation age, and the used/cooldown disjunction, strongest first.
func (s *Store) ReadyInspirations(f ReadyFilter, now time.Time) ([]*Inspiration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if f.Limit <= 0 {
		f.Limit = 10
	}
	var conds []string
	var args []any

	conds = append(conds, "strength > ?")
	args = append(args, f.MinStrength)

	if len(f.Tiers) > 0 {
		placeholders := make([]string, len(f.Tiers))
		for i, t := range f.Tiers {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conds = append(conds, "tier IN ("+strings.Join(placeholders, ",")+")")
	}
	if f.MaturationHours > 0 {
		conds = append(conds, "created_at <= ?")
		args = append(args, fmtTime(now.Add(-time.Duration(f.MaturationHours*float64(time.Hour)))))
	}
	if f.UsedCooldown > 0 {
		conds = append(conds, "(used_count = 0 OR last_used_at <= ?)")
		args = append(args, fmtTime(now.Add(-f.UsedCooldown)))
	}

	query := inspirationSelect + ` WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY strength DESC LIMIT ?`
	args = append(args, f.Limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ready inspirations: %w", err)
	}
	defer rows.Close()
	return collectInspirations(rows)
}

// InspirationsByTier returns all inspirations in a tier, weakest first, so
// capacity enforcement can trim from the bottom.
func (s *Store) InspirationsByTier(tier Tier) ([]*Inspiration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(inspirationSelect+` WHERE tier = ? ORDER BY strength ASC`, string(tier))
	if err != nil {
		return nil, fmt.Errorf("failed to query tier %s: %w", tier, err)
	}
	defer rows.Close()
	return collectInspirations(rows)
}

// CountByTier returns inspiration populations per tier.
func (s *Store) CountByTier() (map[Tier]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT tier, COUNT(*) FROM inspirations GROUP BY tier`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tiers: %w", err)
	}
	defer rows.Close()

	counts := make(map[Tier]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, err
		}
		counts[Tier(tier)] = n
	}
	return counts, rows.Err()
}

// Reinforce atomically bumps strength (clamped to 1.0) and the reinforcement
// count, stamping last_reinforced_at. Returns the updated inspiration.
func (s *Store) Reinforce(id string, strengthDelta float64, reinforceDelta int, now time.Time) (*Inspiration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(
		`UPDATE inspirations SET
			strength = MIN(1.0, strength + ?),
			reinforcement_count = reinforcement_count + ?,
			last_reinforced_at = ?
		 WHERE id = ?`,
		strengthDelta, reinforceDelta, fmtTime(now), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to reinforce inspiration: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}
	return s.getInspirationLocked(id)
}

// SetInspirationStrength writes back a recomputed decayed strength.
func (s *Store) SetInspirationStrength(id string, strength float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`UPDATE inspirations SET strength = ? WHERE id = ?`, strength, id)
	if err != nil {
		return fmt.Errorf("failed to set strength: %w", err)
	}
	return nil
}

// RebaseStrength writes a decayed strength and moves the decay anchor to now,
// so the next consolidation pass does not decay the same interval twice.
func (s *Store) RebaseStrength(id string, strength float64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE inspirations SET strength = ?, last_reinforced_at = ? WHERE id = ?`,
		strength, fmtTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to rebase strength: %w", err)
	}
	return nil
}

// SetInspirationTier performs a tier transition in a transaction, stamping
// strength at the same time so decay and promotion commit together.
func (s *Store) SetInspirationTier(id string, tier Tier, strength float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin tier transition: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE inspirations SET tier = ?, strength = ? WHERE id = ?`,
		string(tier), strength, id)
	if err != nil {
		return fmt.Errorf("failed to set tier: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

// TouchAccessed stamps last_accessed_at and applies the access strength bump.
func (s *Store) TouchAccessed(id string, strengthDelta float64, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE inspirations SET strength = MIN(1.0, strength + ?), last_accessed_at = ? WHERE id = ?`,
		strengthDelta, fmtTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to touch inspiration: %w", err)
	}
	return nil
}

// MarkInspirationUsed records that the inspiration sourced a published post.
func (s *Store) MarkInspirationUsed(id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`UPDATE inspirations SET used_count = used_count + 1, last_used_at = ? WHERE id = ?`,
		fmtTime(now), id)
	if err != nil {
		return fmt.Errorf("failed to mark inspiration used: %w", err)
	}
	return nil
}

// DeleteInspiration removes an inspiration. Only callers enforcing the
// ephemeral-floor rule should delete.
func (s *Store) DeleteInspiration(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM inspirations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete inspiration: %w", err)
	}
	return nil
}

const inspirationSelect = `SELECT id, origin_episode_id, trigger_content, topic, my_angle, potential_post,
	tier, strength, emotional_impact, reinforcement_count, created_at, last_reinforced_at,
	last_accessed_at, used_count, last_used_at FROM inspirations`

func scanInspiration(row rowScanner) (*Inspiration, error) {
	var insp Inspiration
	var tier, createdAt, reinforcedAt, accessedAt, usedAt string
	err := row.Scan(&insp.ID, &insp.OriginEpisodeID, &insp.TriggerContent, &insp.Topic,
		&insp.MyAngle, &insp.PotentialPost, &tier, &insp.Strength, &insp.EmotionalImpact,
		&insp.ReinforcementCount, &createdAt, &reinforcedAt, &accessedAt,
		&insp.UsedCount, &usedAt)
	if err != nil {
		return nil, err
	}
	insp.Tier = Tier(tier)
	insp.CreatedAt = parseTime(createdAt)
	insp.LastReinforcedAt = parseTime(reinforcedAt)
	insp.LastAccessedAt = parseTime(accessedAt)
	insp.LastUsedAt = parseTime(usedAt)
	return &insp, nil
}

func collectInspirations(rows *sql.Rows) ([]*Inspiration, error) {
	var out []*Inspiration
	for rows.Next() {
		insp, err := scanInspiration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan inspiration: %w", err)
		}
		out = append(out, insp)
	}
	return out, rows.Err()
}
