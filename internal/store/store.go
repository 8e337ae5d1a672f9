// Package store is the persistence layer: a SQLite structured store owning
// every entity in the memory model, plus a vector index for similarity
// lookup. All other components hold ids and go through this interface;
// mutations for a given entity are serialised by the store mutex.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Store wraps the SQLite database.
type Store struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	logger *zap.Logger

	vectors *VectorIndex
}

// Open initialises the database at path ("file::memory:?cache=shared" or
// ":memory:" work for tests) and runs migrations.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer keeps entity mutations serialised at the driver level
	// too; the store mutex is the primary guard.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dbPath: path, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	s.vectors = newVectorIndex(s)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Vectors exposes the similarity index backed by this store.
func (s *Store) Vectors() *VectorIndex {
	return s.vectors
}

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`CREATE TABLE IF NOT EXISTS episodes (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			source_id TEXT,
			source_user TEXT,
			content TEXT,
			topics TEXT,
			sentiment TEXT,
			emotional_impact REAL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_episodes_type ON episodes(type, created_at);`,
		`CREATE TABLE IF NOT EXISTS inspirations (
			id TEXT PRIMARY KEY,
			origin_episode_id TEXT,
			trigger_content TEXT,
			topic TEXT NOT NULL,
			my_angle TEXT,
			potential_post TEXT,
			tier TEXT NOT NULL,
			strength REAL NOT NULL,
			emotional_impact REAL,
			reinforcement_count INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			last_reinforced_at TEXT NOT NULL,
			last_accessed_at TEXT NOT NULL,
			used_count INTEGER NOT NULL DEFAULT 0,
			last_used_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_inspirations_topic ON inspirations(topic);`,
		`CREATE INDEX IF NOT EXISTS idx_inspirations_tier ON inspirations(tier, strength);`,
		`CREATE TABLE IF NOT EXISTS core_memories (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			content TEXT,
			formed_from TEXT,
			total_reinforcements INTEGER,
			persona_impact TEXT,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS persons (
			id TEXT PRIMARY KEY,
			user_id TEXT UNIQUE,
			screen_name TEXT,
			tier TEXT NOT NULL,
			affinity REAL NOT NULL DEFAULT 0,
			my_reply_count INTEGER NOT NULL DEFAULT 0,
			their_reply_count INTEGER NOT NULL DEFAULT 0,
			my_like_count INTEGER NOT NULL DEFAULT 0,
			their_like_count INTEGER NOT NULL DEFAULT 0,
			sentiment_history TEXT,
			common_topics TEXT,
			who_is_this TEXT,
			first_met_at TEXT NOT NULL,
			last_interaction_at TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_persons_screen ON persons(screen_name);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			person_id TEXT NOT NULL,
			platform TEXT,
			post_id TEXT,
			conversation_type TEXT,
			topic TEXT,
			summary TEXT,
			turn_count INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_person ON conversations(person_id, state);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_post ON conversations(post_id);`,
		`CREATE TABLE IF NOT EXISTS posting_history (
			id TEXT PRIMARY KEY,
			origin_inspiration_id TEXT,
			content TEXT,
			trigger_type TEXT,
			posted_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS pattern_usage (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			pattern_type TEXT NOT NULL,
			literal TEXT NOT NULL,
			post_id TEXT NOT NULL,
			used_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pattern_literal ON pattern_usage(literal, used_at);`,
		`CREATE TABLE IF NOT EXISTS knowledge (
			keyword TEXT PRIMARY KEY,
			summary TEXT,
			my_angle TEXT,
			relevance REAL,
			source_platform TEXT,
			expires_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS processed_notifications (
			id TEXT PRIMARY KEY,
			processed_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS daily_counters (
			name TEXT NOT NULL,
			day TEXT NOT NULL,
			count INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (name, day)
		);`,
		`CREATE TABLE IF NOT EXISTS episode_digests (
			day TEXT NOT NULL,
			type TEXT NOT NULL,
			count INTEGER NOT NULL,
			top_topics TEXT,
			PRIMARY KEY (day, type)
		);`,
		`CREATE TABLE IF NOT EXISTS vectors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			content TEXT NOT NULL,
			embedding TEXT,
			tier TEXT,
			strength REAL,
			topic TEXT,
			emotional_impact REAL,
			reinforcement_count INTEGER,
			created_at TEXT NOT NULL,
			UNIQUE (kind, entity_id)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// Stats returns row counts per table.
func (s *Store) Stats() (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]int64)
	tables := []string{
		"episodes", "inspirations", "core_memories", "persons", "conversations",
		"posting_history", "pattern_usage", "knowledge", "processed_notifications",
		"vectors",
	}
	for _, table := range tables {
		var count int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = count
	}
	return stats, nil
}

// ---- time and list encoding helpers ----

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func encodeList(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(items)
	return string(b)
}

func decodeList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// dayKey formats a date for the daily_counters table.
func dayKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
