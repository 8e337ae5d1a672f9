// Package follow decides whom to follow and when. Candidates pass eligibility
// gates and a 0-100 score; accepted follows are never executed synchronously
// but queued with a random delay and drained at session boundaries under a
// daily cap.
package follow

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"personad/internal/config"
	"personad/internal/platform"
	"personad/internal/store"
)

// Score constants.
const (
	scoreBase          = 50
	scoreFollowsMe     = 30
	scorePerBioKeyword = 10
	scorePerPriorTouch = 5
	priorTouchCap      = 20
	scoreMidFollowers  = 10
	scoreBigFollowers  = 5
	scoreHasImage      = 5
	scoreHasBio        = 5
	maxAcceptProb      = 0.8
)

// emergencyPause after consecutive queue errors.
const emergencyPause = 30 * time.Minute

// consecutiveErrorLimit latches the emergency pause.
const consecutiveErrorLimit = 3

// followCounter is the daily_counters row name.
const followCounter = "follows"

// Assessment explains an eligibility or scoring outcome.
type Assessment struct {
	Eligible bool
	Score    int
	Reason   string // set when ineligible or rejected
}

// queueItem is one pending follow.
type queueItem struct {
	UserID     string
	ScreenName string
	ExecuteAt  time.Time
}

// Engine owns the follow policy and the delayed queue.
type Engine struct {
	cfg    config.FollowConfig
	store  *store.Store
	rng    *rand.Rand
	logger *zap.Logger

	queue             []queueItem
	consecutiveErrors int
	pausedUntil       time.Time
}

// New builds a follow engine.
func New(cfg config.FollowConfig, st *store.Store, rng *rand.Rand, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Engine{cfg: cfg, store: st, rng: rng, logger: logger}
}

// Assess runs the eligibility gates and the score for one profile.
// alreadyFollowed and priorInteractions come from the caller's state.
func (e *Engine) Assess(u *platform.User, alreadyFollowed bool, priorInteractions int, now time.Time) Assessment {
	if alreadyFollowed {
		return Assessment{Reason: "already followed"}
	}
	if !u.HasImage {
		return Assessment{Reason: "no profile image"}
	}
	if len(strings.TrimSpace(u.Bio)) < e.cfg.MinBioLength {
		return Assessment{Reason: "bio too short"}
	}
	if u.FollowingCount > 0 {
		ratio := float64(u.FollowerCount) / float64(u.FollowingCount)
		if ratio < e.cfg.MinFollowerRatio {
			return Assessment{Reason: "follower ratio too low"}
		}
	}
	if age := now.Sub(u.CreatedAt); age < time.Duration(e.cfg.MinAccountAgeDays)*24*time.Hour {
		return Assessment{Reason: "account too new"}
	}
	if u.FollowingCount > e.cfg.MaxFollowings {
		return Assessment{Reason: "follows too many accounts"}
	}

	score := scoreBase
	if u.FollowsMe {
		score += scoreFollowsMe
	}
	bio := strings.ToLower(u.Bio)
	for _, kw := range e.cfg.BioKeywords {
		if strings.Contains(bio, strings.ToLower(kw)) {
			score += scorePerBioKeyword
		}
	}
	touch := priorInteractions * scorePerPriorTouch
	if touch > priorTouchCap {
		touch = priorTouchCap
	}
	score += touch
	switch {
	case u.FollowerCount >= 100 && u.FollowerCount <= 10000:
		score += scoreMidFollowers
	case u.FollowerCount > 10000:
		score += scoreBigFollowers
	}
	score += scoreHasImage // image presence survived the gate
	if u.Bio != "" {
		score += scoreHasBio
	}
	if score > 100 {
		score = 100
	}
	return Assessment{Eligible: true, Score: score}
}

// Consider assesses a profile and, on acceptance, enqueues a delayed follow.
// Returns true when the follow was queued.
func (e *Engine) Consider(u *platform.User, alreadyFollowed bool, priorInteractions int, now time.Time) (Assessment, bool) {
	a := e.Assess(u, alreadyFollowed, priorInteractions, now)
	if !a.Eligible {
		return a, false
	}
	if a.Score < e.cfg.ScoreThreshold {
		a.Reason = "score below threshold"
		return a, false
	}
	p := e.cfg.BaseProbability * float64(a.Score) / 50
	if p > maxAcceptProb {
		p = maxAcceptProb
	}
	if e.rng.Float64() >= p {
		a.Reason = "probability roll failed"
		return a, false
	}

	delayRange := e.cfg.DelayMaxSeconds - e.cfg.DelayMinSeconds
	delay := time.Duration(e.cfg.DelayMinSeconds) * time.Second
	if delayRange > 0 {
		delay += time.Duration(e.rng.Intn(delayRange)) * time.Second
	}
	e.queue = append(e.queue, queueItem{
		UserID:     u.ID,
		ScreenName: u.ScreenName,
		ExecuteAt:  now.Add(delay),
	})
	e.logger.Info("follow queued",
		zap.String("user", u.ScreenName), zap.Int("score", a.Score), zap.Duration("delay", delay))
	return a, true
}

// QueueLen reports pending follows.
func (e *Engine) QueueLen() int {
	return len(e.queue)
}

// ProcessQueue executes due items through followFn, up to the per-drain cap
// and the daily limit. Three consecutive errors latch an emergency pause.
// Returns the number of follows executed.
func (e *Engine) ProcessQueue(ctx context.Context, followFn func(ctx context.Context, userID string) (bool, error), now time.Time) (int, error) {
	if now.Before(e.pausedUntil) {
		return 0, nil
	}

	executed := 0
	var remaining []queueItem
	for i, item := range e.queue {
		if ctx.Err() != nil {
			remaining = append(remaining, e.queue[i:]...)
			break
		}
		if now.Before(item.ExecuteAt) || executed >= e.cfg.MaxPerDrain {
			remaining = append(remaining, item)
			continue
		}

		count, err := e.store.GetCounter(followCounter, now)
		if err != nil {
			return executed, err
		}
		if count >= e.cfg.DailyLimit {
			e.logger.Info("daily follow limit reached, holding queue",
				zap.Int("limit", e.cfg.DailyLimit))
			remaining = append(remaining, e.queue[i:]...)
			break
		}

		if _, err := followFn(ctx, item.UserID); err != nil {
			e.consecutiveErrors++
			e.logger.Warn("follow failed",
				zap.String("user", item.ScreenName), zap.Error(err),
				zap.Int("consecutive", e.consecutiveErrors))
			if e.consecutiveErrors >= consecutiveErrorLimit {
				e.pausedUntil = now.Add(emergencyPause)
				e.consecutiveErrors = 0
				e.logger.Warn("follow queue paused", zap.Time("until", e.pausedUntil))
				remaining = append(remaining, e.queue[i:]...)
				break
			}
			remaining = append(remaining, item)
			continue
		}

		e.consecutiveErrors = 0
		if _, err := e.store.IncrementCounter(followCounter, now); err != nil {
			return executed, err
		}
		executed++
		e.logger.Info("followed", zap.String("user", item.ScreenName))
	}
	e.queue = remaining
	return executed, nil
}

// FollowsToday reads the daily counter.
func (e *Engine) FollowsToday(now time.Time) (int, error) {
	return e.store.GetCounter(followCounter, now)
}
