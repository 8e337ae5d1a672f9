// Package behavior turns a perceived post into a probabilistic interaction
// decision: an additive score clamped to [0,1], hard gates for per-user and
// per-post saturation, an obsession override that pierces both, and three
// independent action draws scaled by configured ratios.
package behavior

import (
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"personad/internal/config"
	"personad/internal/intelligence"
	"personad/internal/platform"
	"personad/internal/store"
)

// Hard-gate floor scores. An obsession override skips the gate entirely.
const (
	gateUserCapScore  = 0.05
	gateCooldownScore = 0.10
)

// Verdict says what to do with one candidate post.
type Verdict struct {
	Interact bool
	Like     bool
	Repost   bool
	Comment  bool
	Score    float64
	Reason   string // set on SKIP
}

// Candidate is one post under consideration.
type Candidate struct {
	Post       platform.Post
	Person     *store.Person // nil for an unknown author
	Perception *intelligence.Perception
}

// Engine holds the session's interaction state: mood, per-user and per-post
// histories, daily totals. Counters reset when the wallclock date rolls.
type Engine struct {
	cfg        config.Behavior
	aggressive bool
	rng        *rand.Rand
	logger     *zap.Logger

	Mood *Mood

	day             string
	dailyTotal      int
	perUserToday    map[string]int
	lastUserContact map[string]time.Time
	commentsPerPost map[string]int
	probabilityDamp func() float64 // humanlike controller's modifier
}

// New builds a behavior engine. damp supplies the human-like probability
// modifier; nil means no dampening.
func New(cfg config.Behavior, aggressive bool, damp func() float64, rng *rand.Rand, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if damp == nil {
		damp = func() float64 { return 1.0 }
	}
	return &Engine{
		cfg:             cfg,
		aggressive:      aggressive,
		rng:             rng,
		logger:          logger,
		Mood:            NewMood(cfg.InteractionPatterns.MoodVolatility, rng),
		perUserToday:    make(map[string]int),
		lastUserContact: make(map[string]time.Time),
		commentsPerPost: make(map[string]int),
		probabilityDamp: damp,
	}
}

// Decide scores the candidate and rolls the dice. A SKIP still drifts the
// mood; an INTERACT records the interaction against the caps.
func (e *Engine) Decide(c Candidate, now time.Time) Verdict {
	e.rollDay(now)
	e.Mood.Drift()

	obsessed := e.isObsessionTopic(c.Perception)
	score, gateReason := e.score(c, obsessed, now)
	score = clamp01(score * e.probabilityDamp())

	r := e.rng.Float64()
	if r > score {
		reason := e.skipReason(c, gateReason, now)
		e.logger.Debug("skip",
			zap.String("post", c.Post.ID), zap.Float64("score", score), zap.String("reason", reason))
		return Verdict{Score: score, Reason: reason}
	}

	ratios := e.cfg.ProbabilityModel.ActionRatios
	v := Verdict{
		Interact: true,
		Score:    score,
		Like:     e.rng.Float64() < clamp01(score*ratios.Like),
		Repost:   e.rng.Float64() < clamp01(score*ratios.Repost),
		Comment:  e.rng.Float64() < clamp01(score*ratios.Comment),
	}
	e.recordInteraction(c, v, now)
	return v
}

// score builds the additive interaction score. Hard gates are applied first
// and short-circuit with a floor score unless the obsession override holds.
func (e *Engine) score(c Candidate, obsessed bool, now time.Time) (float64, string) {
	su := e.cfg.InteractionPatterns.SameUser
	userKey := c.Post.AuthorID

	override := obsessed && su.ObsessionOverride
	if !override {
		if su.MaxInteractionsPerDay > 0 && e.perUserToday[userKey] >= su.MaxInteractionsPerDay {
			return gateUserCapScore, "daily user cap"
		}
		if last, ok := e.lastUserContact[userKey]; ok && su.CooldownMinutes > 0 {
			if now.Sub(last) < time.Duration(su.CooldownMinutes)*time.Minute {
				return gateCooldownScore, "user cooldown"
			}
		}
	}

	mods := e.cfg.ProbabilityModel.Modifiers
	score := e.cfg.ProbabilityModel.BaseProbability

	relevance := 0.0
	sentiment := store.SentimentNeutral
	if c.Perception != nil {
		relevance = c.Perception.RelevanceToDomain
		sentiment = c.Perception.Sentiment
	}
	score *= 0.5 + 0.5*relevance

	if e.aggressive {
		score += mods.AggressiveMode
	}
	if obsessed {
		score += mods.ObsessionTopic
	}
	switch sentiment {
	case store.SentimentPositive:
		score += mods.PositiveSentiment
	case store.SentimentNegative:
		score += mods.NegativeSentiment
	}
	if c.Person == nil || c.Person.Tier == store.PersonStranger {
		score += mods.Stranger
	}
	if !obsessed {
		score += mods.Introversion
	}
	return clamp01(score), ""
}

// skipReason picks the human-readable explanation for a SKIP.
func (e *Engine) skipReason(c Candidate, gateReason string, now time.Time) string {
	if gateReason != "" {
		return gateReason
	}
	sp := e.cfg.InteractionPatterns.SamePost
	if sp.MaxCommentsPerPost > 0 && e.commentsPerPost[c.Post.ID] >= sp.MaxCommentsPerPost {
		return "already said enough on this post"
	}
	if e.commentsPerPost[c.Post.ID] > 0 && sp.RegretProbability > 0 &&
		e.rng.Float64() < sp.RegretProbability {
		return "over-committed to this post already"
	}
	if e.Mood.Current(now) < 0.3 {
		return "low mood"
	}
	return "just passing"
}

// RegretCheck is the pre-score regret gate: when the post already carries our
// comments, sometimes back out regardless of score.
func (e *Engine) RegretCheck(postID string) (Verdict, bool) {
	sp := e.cfg.InteractionPatterns.SamePost
	if e.commentsPerPost[postID] == 0 || sp.RegretProbability <= 0 {
		return Verdict{}, false
	}
	if e.rng.Float64() >= sp.RegretProbability {
		return Verdict{}, false
	}
	return Verdict{Reason: "over-committed to this post already"}, true
}

// recordInteraction charges the interaction against user, post and daily
// counters and feeds the mood.
func (e *Engine) recordInteraction(c Candidate, v Verdict, now time.Time) {
	e.dailyTotal++
	e.perUserToday[c.Post.AuthorID]++
	e.lastUserContact[c.Post.AuthorID] = now
	if v.Comment {
		e.commentsPerPost[c.Post.ID]++
	}
	if c.Perception != nil {
		e.Mood.RecordInteraction(c.Perception.Sentiment)
	}
}

// NoteComment charges one comment against a post made outside Decide (e.g.
// a scenario reply driven by the judge).
func (e *Engine) NoteComment(postID string) {
	e.commentsPerPost[postID]++
}

// NoteUserInteraction charges a user contact made outside Decide.
func (e *Engine) NoteUserInteraction(userID string, now time.Time) {
	e.rollDay(now)
	e.dailyTotal++
	e.perUserToday[userID]++
	e.lastUserContact[userID] = now
}

// InteractionsToday returns today's interaction total.
func (e *Engine) InteractionsToday(now time.Time) int {
	e.rollDay(now)
	return e.dailyTotal
}

// isObsessionTopic reports whether any perceived topic hits the persona's
// obsession list.
func (e *Engine) isObsessionTopic(p *intelligence.Perception) bool {
	if p == nil {
		return false
	}
	obsessions := e.cfg.InteractionPatterns.SameUser.ObsessionTopics
	for _, topic := range p.Topics {
		for _, ob := range obsessions {
			if strings.EqualFold(strings.TrimSpace(topic), strings.TrimSpace(ob)) {
				return true
			}
		}
	}
	return false
}

// rollDay resets daily counters when the wallclock date moves forward.
func (e *Engine) rollDay(now time.Time) {
	day := now.Format("2006-01-02")
	if day == e.day {
		return
	}
	e.day = day
	e.dailyTotal = 0
	e.perUserToday = make(map[string]int)
}
