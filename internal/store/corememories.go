package store

import (
	"fmt"
	"time"
)

// InsertCoreMemory persists a crystallised core memory.
func (s *Store) InsertCoreMemory(cm *CoreMemory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cm.CreatedAt.IsZero() {
		cm.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO core_memories (id, type, content, formed_from, total_reinforcements, persona_impact, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cm.ID, string(cm.Type), cm.Content, cm.FormedFrom, cm.TotalReinforcements,
		cm.PersonaImpact, fmtTime(cm.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert core memory: %w", err)
	}
	return nil
}

// CoreMemories returns every core memory, oldest first.
func (s *Store) CoreMemories() ([]*CoreMemory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		`SELECT id, type, content, formed_from, total_reinforcements, persona_impact, created_at
		 FROM core_memories ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query core memories: %w", err)
	}
	defer rows.Close()

	var out []*CoreMemory
	for rows.Next() {
		var cm CoreMemory
		var typ, createdAt string
		if err := rows.Scan(&cm.ID, &typ, &cm.Content, &cm.FormedFrom,
			&cm.TotalReinforcements, &cm.PersonaImpact, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan core memory: %w", err)
		}
		cm.Type = CoreMemoryType(typ)
		cm.CreatedAt = parseTime(createdAt)
		out = append(out, &cm)
	}
	return out, rows.Err()
}

// CountCoreMemories returns the population of the core tier.
func (s *Store) CountCoreMemories() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM core_memories`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count core memories: %w", err)
	}
	return n, nil
}
