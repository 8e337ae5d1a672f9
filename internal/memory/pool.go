package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"personad/internal/store"
)

// Urgency classifies how an inspiration was born.
type Urgency string

const (
	UrgencyFlash   Urgency = "flash"   // strong first impression
	UrgencyBrewing Urgency = "brewing" // slow-burn idea
)

// Event is a reinforcement event type with fixed numeric effects.
type Event string

const (
	EventSimilarContentSeen Event = "similar_content_seen"
	EventSameTopicSearched  Event = "same_topic_searched"
	EventPostedAbout        Event = "posted_about"
	EventAccessed           Event = "accessed"
)

type eventEffect struct {
	strength     float64
	reinforce    int
	minTierAfter store.Tier // "" means no tier floor
}

var eventEffects = map[Event]eventEffect{
	EventSimilarContentSeen: {strength: 0.10, reinforce: 1},
	EventSameTopicSearched:  {strength: 0.05, reinforce: 1},
	EventPostedAbout:        {strength: 0.30, reinforce: 3, minTierAfter: store.TierLongTerm},
	EventAccessed:           {strength: 0.05, reinforce: 0},
}

// FlashCandidate is an existing inspiration whose reinforcement was strong
// enough to propose an immediate post.
type FlashCandidate struct {
	Inspiration *store.Inspiration
	Distance    float64
}

// Pool creates, reinforces and retrieves inspirations.
type Pool struct {
	store  *store.Store
	logger *zap.Logger
}

// NewPool wires an inspiration pool over the store.
func NewPool(st *store.Store, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{store: st, logger: logger}
}

// NormalizeTopic canonicalises a topic key. Empty input maps to "general".
func NormalizeTopic(topic string) string {
	topic = strings.ToLower(strings.TrimSpace(topic))
	if topic == "" {
		return "general"
	}
	return topic
}

// CreateFromEpisode distils an episode into an inspiration. When one with
// the same normalised topic already exists it is reinforced instead of
// duplicated.
func (p *Pool) CreateFromEpisode(ctx context.Context, ep *store.Episode, myAngle string, urgency Urgency, now time.Time) (*store.Inspiration, error) {
	topic := "general"
	if len(ep.Topics) > 0 {
		topic = NormalizeTopic(ep.Topics[0])
	}

	existing, err := p.store.GetInspirationByTopic(topic)
	if err == nil {
		return p.ApplyEvent(ctx, existing.ID, EventSimilarContentSeen, now)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing topic: %w", err)
	}

	strength, tier := 0.5, store.TierEphemeral
	if urgency == UrgencyFlash {
		strength, tier = 0.8, store.TierShortTerm
	}
	insp := &store.Inspiration{
		ID:              newInspirationID(),
		OriginEpisodeID: ep.ID,
		TriggerContent:  ep.Content,
		Topic:           topic,
		MyAngle:         myAngle,
		Tier:            tier,
		Strength:        strength,
		EmotionalImpact: ep.EmotionalImpact,
		CreatedAt:       now,
	}
	if err := p.store.InsertInspiration(insp); err != nil {
		return nil, err
	}
	if err := p.store.Vectors().Add(ctx, store.KindInspiration, insp.ID,
		insp.TriggerContent+" "+insp.MyAngle, metaFor(insp)); err != nil {
		p.logger.Warn("failed to index inspiration", zap.String("id", insp.ID), zap.Error(err))
	}
	p.logger.Debug("inspiration created",
		zap.String("topic", topic), zap.String("urgency", string(urgency)),
		zap.String("tier", string(tier)))
	return insp, nil
}

// ApplyEvent reinforces an inspiration per the event table and attempts a
// promotion afterwards. Returns the inspiration in its final state.
func (p *Pool) ApplyEvent(ctx context.Context, id string, ev Event, now time.Time) (*store.Inspiration, error) {
	effect, ok := eventEffects[ev]
	if !ok {
		return nil, fmt.Errorf("unknown reinforcement event: %s", ev)
	}

	insp, err := p.store.Reinforce(id, effect.strength, effect.reinforce, now)
	if err != nil {
		return nil, err
	}
	if effect.minTierAfter != "" && insp.Tier.Rank() < effect.minTierAfter.Rank() {
		if err := p.store.SetInspirationTier(id, effect.minTierAfter, insp.Strength); err != nil {
			return nil, err
		}
		insp.Tier = effect.minTierAfter
	}

	insp, err = p.promoteIfEligible(insp, now)
	if err != nil {
		return nil, err
	}
	if err := p.store.Vectors().UpdateMeta(store.KindInspiration, id, metaFor(insp)); err != nil {
		p.logger.Warn("failed to sync vector meta", zap.String("id", id), zap.Error(err))
	}
	return insp, nil
}

// OnContentSeen reinforces every inspiration similar to the content
// (distance at most 0.3). When the content hits hard and a strong candidate
// exists, the strongest one is returned as a flash-reinforced candidate.
func (p *Pool) OnContentSeen(ctx context.Context, content string, emotionalImpact float64, now time.Time) (*FlashCandidate, error) {
	hits, err := p.store.Vectors().Search(ctx, store.KindInspiration, content, store.VectorFilter{
		MaxDistance: 0.3,
		Limit:       10,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}

	var flash *FlashCandidate
	for _, hit := range hits {
		insp, err := p.ApplyEvent(ctx, hit.EntityID, EventSimilarContentSeen, now)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // stale index entry
			}
			return nil, err
		}
		if emotionalImpact >= 0.8 && insp.Strength >= 0.5 {
			if flash == nil || insp.Strength > flash.Inspiration.Strength {
				flash = &FlashCandidate{Inspiration: insp, Distance: hit.Distance}
			}
		}
	}
	return flash, nil
}

// OnTopicSearched reinforces the inspiration holding the searched topic.
func (p *Pool) OnTopicSearched(ctx context.Context, topic string, now time.Time) error {
	insp, err := p.store.GetInspirationByTopic(NormalizeTopic(topic))
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = p.ApplyEvent(ctx, insp.ID, EventSameTopicSearched, now)
	return err
}

// OnPosted applies the posted_about reinforcement and marks the inspiration
// as used.
func (p *Pool) OnPosted(ctx context.Context, id string, now time.Time) error {
	if _, err := p.ApplyEvent(ctx, id, EventPostedAbout, now); err != nil {
		return err
	}
	return p.store.MarkInspirationUsed(id, now)
}

// Access applies the read-path reinforcement without bumping the count.
func (p *Pool) Access(id string, now time.Time) error {
	return p.store.TouchAccessed(id, 0.05, now)
}

// promoteIfEligible moves the inspiration up one tier when it qualifies and
// crystallises a core memory on promotion into core.
func (p *Pool) promoteIfEligible(insp *store.Inspiration, now time.Time) (*store.Inspiration, error) {
	target, ok := PromotionTarget(insp)
	if !ok {
		return insp, nil
	}
	if err := p.store.SetInspirationTier(insp.ID, target, insp.Strength); err != nil {
		return nil, err
	}
	from := insp.Tier
	insp.Tier = target
	p.logger.Info("inspiration promoted",
		zap.String("topic", insp.Topic), zap.String("from", string(from)), zap.String("to", string(target)))

	if target == store.TierCore {
		if err := p.crystallise(insp, now); err != nil {
			return nil, err
		}
	}
	return insp, nil
}

// crystallise creates the single CoreMemory for a newly core inspiration.
func (p *Pool) crystallise(insp *store.Inspiration, now time.Time) error {
	cm := &store.CoreMemory{
		ID:                  newInspirationID(),
		Type:                DeriveCoreType(insp),
		Content:             insp.MyAngle,
		FormedFrom:          insp.ID,
		TotalReinforcements: insp.ReinforcementCount,
		PersonaImpact:       fmt.Sprintf("cares deeply about %s", insp.Topic),
		CreatedAt:           now,
	}
	if cm.Content == "" {
		cm.Content = insp.TriggerContent
	}
	if err := p.store.InsertCoreMemory(cm); err != nil {
		return fmt.Errorf("failed to crystallise core memory: %w", err)
	}
	p.logger.Info("core memory formed",
		zap.String("type", string(cm.Type)), zap.String("topic", insp.Topic))
	return nil
}

func metaFor(insp *store.Inspiration) store.VectorMeta {
	return store.VectorMeta{
		Tier:               insp.Tier,
		Strength:           insp.Strength,
		Topic:              insp.Topic,
		EmotionalImpact:    insp.EmotionalImpact,
		ReinforcementCount: insp.ReinforcementCount,
	}
}
