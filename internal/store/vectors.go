package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"personad/internal/embedding"
)

// VectorWriteTimeout bounds every embedding computation performed on the
// session's critical path. On timeout the row is written without an
// embedding and keyword search still finds it.
const VectorWriteTimeout = 5 * time.Second

// VectorKind namespaces entries in the vector index.
const (
	KindInspiration = "inspiration"
	KindEpisode     = "episode"
	KindPost        = "post"
)

// VectorMeta carries the filterable attributes mirrored from the entity.
type VectorMeta struct {
	Tier               Tier
	Strength           float64
	Topic              string
	EmotionalImpact    float64
	ReinforcementCount int
}

// VectorHit is one ranked match from a similarity search.
type VectorHit struct {
	EntityID string
	Content  string
	Distance float64 // 1 - cosine similarity; 0 is identical
	Meta     VectorMeta
}

// VectorFilter restricts a similarity search.
type VectorFilter struct {
	MinStrength float64
	Tiers       []Tier
	MaxDistance float64 // 0 means no cap
	Limit       int
}

// VectorIndex is the similarity side of the store. Rows live in the vectors
// table with JSON-encoded embeddings; search loads candidates through SQL
// filters and ranks in memory. Without an engine it degrades to keyword LIKE
// matching so the memory system keeps working offline.
type VectorIndex struct {
	s      *Store
	engine embedding.Engine
}

func newVectorIndex(s *Store) *VectorIndex {
	return &VectorIndex{s: s}
}

// SetEngine installs the embedding backend. Nil leaves the index in keyword
// fallback mode.
func (v *VectorIndex) SetEngine(e embedding.Engine) {
	v.engine = e
}

// HasEngine reports whether similarity search is available.
func (v *VectorIndex) HasEngine() bool {
	return v.engine != nil
}

// Add indexes an entity. Embedding computation is bounded by
// VectorWriteTimeout; on timeout the entry is stored without an embedding
// and a warning is logged.
func (v *VectorIndex) Add(ctx context.Context, kind, entityID, content string, meta VectorMeta) error {
	emb := v.embedBounded(ctx, content)

	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	_, err := v.s.db.Exec(
		`INSERT INTO vectors (kind, entity_id, content, embedding, tier, strength, topic, emotional_impact, reinforcement_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(kind, entity_id) DO UPDATE SET
			content = excluded.content,
			embedding = excluded.embedding,
			tier = excluded.tier,
			strength = excluded.strength,
			topic = excluded.topic,
			emotional_impact = excluded.emotional_impact,
			reinforcement_count = excluded.reinforcement_count`,
		kind, entityID, content, encodeEmbedding(emb), string(meta.Tier), meta.Strength,
		meta.Topic, meta.EmotionalImpact, meta.ReinforcementCount, fmtTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to index %s/%s: %w", kind, entityID, err)
	}
	return nil
}

// UpdateMeta rewrites the filterable attributes without touching the
// embedding. The consolidator calls this after decay and tier transitions.
func (v *VectorIndex) UpdateMeta(kind, entityID string, meta VectorMeta) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	return v.updateMetaLocked(kind, entityID, meta)
}

func (v *VectorIndex) updateMetaLocked(kind, entityID string, meta VectorMeta) error {
	_, err := v.s.db.Exec(
		`UPDATE vectors SET tier = ?, strength = ?, topic = ?, emotional_impact = ?, reinforcement_count = ?
		 WHERE kind = ? AND entity_id = ?`,
		string(meta.Tier), meta.Strength, meta.Topic, meta.EmotionalImpact,
		meta.ReinforcementCount, kind, entityID,
	)
	if err != nil {
		return fmt.Errorf("failed to update vector meta %s/%s: %w", kind, entityID, err)
	}
	return nil
}

// UpdateMetaBatch applies many metadata rewrites in one transaction.
func (v *VectorIndex) UpdateMetaBatch(kind string, metas map[string]VectorMeta) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	tx, err := v.s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin meta batch: %w", err)
	}
	defer tx.Rollback()

	for entityID, meta := range metas {
		if _, err := tx.Exec(
			`UPDATE vectors SET tier = ?, strength = ?, topic = ?, emotional_impact = ?, reinforcement_count = ?
			 WHERE kind = ? AND entity_id = ?`,
			string(meta.Tier), meta.Strength, meta.Topic, meta.EmotionalImpact,
			meta.ReinforcementCount, kind, entityID,
		); err != nil {
			return fmt.Errorf("failed to update vector meta %s/%s: %w", kind, entityID, err)
		}
	}
	return tx.Commit()
}

// Delete removes one entry from the index.
func (v *VectorIndex) Delete(kind, entityID string) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	if _, err := v.s.db.Exec(
		`DELETE FROM vectors WHERE kind = ? AND entity_id = ?`, kind, entityID); err != nil {
		return fmt.Errorf("failed to delete vector %s/%s: %w", kind, entityID, err)
	}
	return nil
}

// DeleteBatch removes many entries in one transaction.
func (v *VectorIndex) DeleteBatch(kind string, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	tx, err := v.s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin delete batch: %w", err)
	}
	defer tx.Rollback()

	for _, id := range entityIDs {
		if _, err := tx.Exec(
			`DELETE FROM vectors WHERE kind = ? AND entity_id = ?`, kind, id); err != nil {
			return fmt.Errorf("failed to delete vector %s/%s: %w", kind, id, err)
		}
	}
	return tx.Commit()
}

// Search ranks indexed entries by similarity to the query text, nearest
// first. Falls back to keyword matching when no engine is configured or the
// query embedding cannot be computed in time.
func (v *VectorIndex) Search(ctx context.Context, kind, query string, f VectorFilter) ([]VectorHit, error) {
	if f.Limit <= 0 {
		f.Limit = 10
	}

	queryEmb := v.embedBounded(ctx, query)
	if queryEmb == nil {
		return v.keywordSearch(kind, query, f)
	}

	candidates, err := v.loadCandidates(kind, f)
	if err != nil {
		return nil, err
	}

	var hits []VectorHit
	for _, c := range candidates {
		if c.embedding == nil {
			continue
		}
		dist, err := embedding.Distance(queryEmb, c.embedding)
		if err != nil {
			continue
		}
		if f.MaxDistance > 0 && dist > f.MaxDistance {
			continue
		}
		hits = append(hits, VectorHit{
			EntityID: c.entityID,
			Content:  c.content,
			Distance: dist,
			Meta:     c.meta,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > f.Limit {
		hits = hits[:f.Limit]
	}
	return hits, nil
}

// keywordSearch is the engine-less fallback: case-insensitive substring match
// on content and topic. Matches report a nominal mid-range distance so
// thresholded callers still accept them.
func (v *VectorIndex) keywordSearch(kind, query string, f VectorFilter) ([]VectorHit, error) {
	candidates, err := v.loadCandidates(kind, f)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}
	terms := strings.Fields(needle)

	var hits []VectorHit
	for _, c := range candidates {
		haystack := strings.ToLower(c.content + " " + c.meta.Topic)
		matched := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		// More matched terms rank closer.
		dist := 0.3 - 0.05*float64(matched-1)
		if dist < 0.05 {
			dist = 0.05
		}
		if f.MaxDistance > 0 && dist > f.MaxDistance {
			continue
		}
		hits = append(hits, VectorHit{
			EntityID: c.entityID,
			Content:  c.content,
			Distance: dist,
			Meta:     c.meta,
		})
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if len(hits) > f.Limit {
		hits = hits[:f.Limit]
	}
	return hits, nil
}

type vectorRow struct {
	entityID  string
	content   string
	embedding []float32
	meta      VectorMeta
}

func (v *VectorIndex) loadCandidates(kind string, f VectorFilter) ([]vectorRow, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()

	conds := []string{"kind = ?"}
	args := []any{kind}
	if f.MinStrength > 0 {
		conds = append(conds, "strength >= ?")
		args = append(args, f.MinStrength)
	}
	if len(f.Tiers) > 0 {
		placeholders := make([]string, len(f.Tiers))
		for i, t := range f.Tiers {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		conds = append(conds, "tier IN ("+strings.Join(placeholders, ",")+")")
	}

	rows, err := v.s.db.Query(
		`SELECT entity_id, content, embedding, tier, strength, topic, emotional_impact, reinforcement_count
		 FROM vectors WHERE `+strings.Join(conds, " AND "), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query vectors: %w", err)
	}
	defer rows.Close()

	var out []vectorRow
	for rows.Next() {
		var r vectorRow
		var embBlob, tier string
		if err := rows.Scan(&r.entityID, &r.content, &embBlob, &tier, &r.meta.Strength,
			&r.meta.Topic, &r.meta.EmotionalImpact, &r.meta.ReinforcementCount); err != nil {
			return nil, fmt.Errorf("failed to scan vector row: %w", err)
		}
		r.meta.Tier = Tier(tier)
		r.embedding = decodeEmbedding(embBlob)
		out = append(out, r)
	}
	return out, rows.Err()
}

// embedBounded computes an embedding under VectorWriteTimeout. Any failure
// is logged and swallowed; callers treat a nil result as "no embedding".
func (v *VectorIndex) embedBounded(ctx context.Context, text string) []float32 {
	if v.engine == nil || strings.TrimSpace(text) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, VectorWriteTimeout)
	defer cancel()

	emb, err := v.engine.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			v.s.logger.Warn("embedding timed out, continuing without vector",
				zap.Duration("timeout", VectorWriteTimeout))
		} else {
			v.s.logger.Warn("embedding failed, continuing without vector", zap.Error(err))
		}
		return nil
	}
	return emb
}

func encodeEmbedding(emb []float32) string {
	if emb == nil {
		return ""
	}
	b, _ := json.Marshal(emb)
	return string(b)
}

func decodeEmbedding(s string) []float32 {
	if s == "" {
		return nil
	}
	var out []float32
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}
