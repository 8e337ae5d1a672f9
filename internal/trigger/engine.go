// Package trigger decides when an original post should happen. Five triggers
// are evaluated in a fixed order, first match wins; both rate caps (daily
// maximum and minimum interval) must pass before any trigger fires. The fixed
// order can starve later triggers when flashes are frequent; this mirrors the
// source behavior and is kept deliberately simple.
package trigger

import (
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"personad/internal/config"
	"personad/internal/memory"
	"personad/internal/store"
)

// Type names the trigger that fired.
type Type string

const (
	TypeFlash           Type = "flash"
	TypeFlashReinforced Type = "flash_reinforced"
	TypeReady           Type = "ready"
	TypeMoodBurst       Type = "mood_burst"
	TypeRandomRecall    Type = "random_recall"
)

// Urgency grades how soon the post should go out.
type Urgency string

const (
	UrgencyImmediate Urgency = "immediate"
	UrgencySoon      Urgency = "soon"
	UrgencyWhenever  Urgency = "whenever"
)

// Readiness thresholds for matured inspirations.
const (
	readyMinStrength     = 0.4
	readyMaturationHours = 24
	readyUsedCooldown    = 7 * 24 * time.Hour
)

// Decision is a fired trigger.
type Decision struct {
	Type        Type
	Urgency     Urgency
	Inspiration *store.Inspiration // nil for bare flash
	Episode     *store.Episode     // the stimulus, when there is one
}

// Input is the stimulus snapshot the engine evaluates against.
type Input struct {
	// Episode is the latest observation, nil when idle.
	Episode *store.Episode
	// FlashCandidate is a reinforced-flash candidate from the inspiration
	// pool's on_content_seen, nil when none.
	FlashCandidate *memory.FlashCandidate
	// Mood is the behavior engine's current mood in [0,1].
	Mood float64
}

// Engine aggregates episode impact, matured inspirations, mood, and
// randomness into a posting decision under rate caps.
type Engine struct {
	cfg    config.PostingConfig
	store  *store.Store
	rng    *rand.Rand
	logger *zap.Logger
}

// New builds a trigger engine.
func New(cfg config.PostingConfig, st *store.Store, rng *rand.Rand, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{cfg: cfg, store: st, rng: rng, logger: logger}
}

// Evaluate runs the rate caps and the trigger chain. A nil decision means no
// post right now.
func (e *Engine) Evaluate(in Input, now time.Time) (*Decision, error) {
	ok, err := e.underRateLimits(now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	// 1. flash: the latest episode hit hard.
	if in.Episode != nil && in.Episode.EmotionalImpact >= 0.9 && e.rng.Float64() < e.cfg.PFlash {
		e.logger.Info("flash trigger", zap.Float64("impact", in.Episode.EmotionalImpact))
		return &Decision{Type: TypeFlash, Urgency: UrgencyImmediate, Episode: in.Episode}, nil
	}

	// 2. flash_reinforced: a strong inspiration just got hit again.
	if in.FlashCandidate != nil && e.rng.Float64() < e.cfg.PFlashReinforced {
		insp := in.FlashCandidate.Inspiration
		e.logger.Info("flash_reinforced trigger", zap.String("topic", insp.Topic))
		return &Decision{Type: TypeFlashReinforced, Urgency: UrgencyImmediate, Inspiration: insp, Episode: in.Episode}, nil
	}

	ready, err := e.readyInspirations(now)
	if err != nil {
		return nil, err
	}

	// 3. ready: a matured inspiration matches the current episode's topics.
	if in.Episode != nil {
		if insp := matchTopic(ready, in.Episode.Topics); insp != nil {
			e.logger.Info("ready trigger", zap.String("topic", insp.Topic))
			return &Decision{Type: TypeReady, Urgency: UrgencySoon, Inspiration: insp, Episode: in.Episode}, nil
		}
	}

	if len(ready) == 0 {
		return nil, nil
	}

	// 4. mood_burst: high spirits plus something worth saying.
	if in.Mood >= 0.8 && e.rng.Float64() < e.cfg.PMoodBurst {
		e.logger.Info("mood_burst trigger", zap.Float64("mood", in.Mood))
		return &Decision{Type: TypeMoodBurst, Urgency: UrgencySoon, Inspiration: ready[0]}, nil
	}

	// 5. random_recall: an idea resurfaces for no particular reason.
	if e.rng.Float64() < e.cfg.PRandomRecall {
		e.logger.Info("random_recall trigger", zap.String("topic", ready[0].Topic))
		return &Decision{Type: TypeRandomRecall, Urgency: UrgencyWhenever, Inspiration: ready[0]}, nil
	}
	return nil, nil
}

// RecordPost advances the posting counters and, when the decision was sourced
// from an inspiration, notifies the pool through the returned id. The caller
// inserts the PostingHistory row with the published content.
func (e *Engine) RecordPost(d *Decision, postID, content string, now time.Time) (*store.PostingRecord, error) {
	pr := &store.PostingRecord{
		ID:          postID,
		Content:     content,
		TriggerType: string(d.Type),
		PostedAt:    now,
	}
	if d.Inspiration != nil {
		pr.OriginInspirationID = d.Inspiration.ID
	}
	if err := e.store.InsertPostingRecord(pr); err != nil {
		return nil, fmt.Errorf("failed to record post: %w", err)
	}
	return pr, nil
}

// underRateLimits checks the daily cap and the minimum inter-post interval.
func (e *Engine) underRateLimits(now time.Time) (bool, error) {
	count, err := e.store.CountPostsOnDay(now)
	if err != nil {
		return false, err
	}
	if count >= e.cfg.MaxPerDay {
		return false, nil
	}
	last, err := e.store.LastPostTime()
	if err != nil {
		return false, err
	}
	if !last.IsZero() {
		minInterval := time.Duration(e.cfg.MinIntervalMinutes * float64(time.Minute))
		if now.Sub(last) < minInterval {
			return false, nil
		}
	}
	return true, nil
}

// readyInspirations fetches matured long_term/core inspirations, strongest
// first.
func (e *Engine) readyInspirations(now time.Time) ([]*store.Inspiration, error) {
	return e.store.ReadyInspirations(store.ReadyFilter{
		MinStrength:     readyMinStrength,
		Tiers:           []store.Tier{store.TierLongTerm, store.TierCore},
		MaturationHours: readyMaturationHours,
		UsedCooldown:    readyUsedCooldown,
		Limit:           10,
	}, now)
}

// matchTopic returns the strongest ready inspiration whose topic appears in
// the episode's topics.
func matchTopic(ready []*store.Inspiration, topics []string) *store.Inspiration {
	for _, insp := range ready {
		for _, topic := range topics {
			if memory.NormalizeTopic(topic) == insp.Topic {
				return insp
			}
		}
	}
	return nil
}
