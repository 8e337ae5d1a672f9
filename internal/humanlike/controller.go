// Package humanlike paces the agent like a person at a keyboard: a warm-up
// before the first action, randomised delays between actions, a cooldown
// after bursts, and error-triggered pauses that also dampen interaction
// probabilities.
package humanlike

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"personad/internal/config"
	"personad/internal/platform"
)

const historyCap = 100

// actionRecord is one entry in the rolling history.
type actionRecord struct {
	Kind string
	At   time.Time
}

// Controller carries the process-wide pacing state.
type Controller struct {
	cfg    config.HumanLikeConfig
	rng    *rand.Rand
	logger *zap.Logger

	stepCount          int
	sessionActionCount int
	consecutiveActions int
	lastActionTime     time.Time
	lastActionKind     string
	history            []actionRecord

	pauseUntil time.Time

	// probabilityModifier multiplies interaction scores; throttle errors
	// shrink it for the rest of the run.
	probabilityModifier float64
}

// New builds a controller.
func New(cfg config.HumanLikeConfig, rng *rand.Rand, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Controller{cfg: cfg, rng: rng, logger: logger, probabilityModifier: 1.0}
}

// Step advances the warm-up counter. Called once per orchestrator step.
func (c *Controller) Step() {
	c.stepCount++
}

// CanTakeAction reports whether an action is allowed right now, with a
// human-readable reason when not.
func (c *Controller) CanTakeAction(now time.Time) (bool, string) {
	if c.stepCount < c.cfg.WarmupSteps {
		return false, "warming up"
	}
	if now.Before(c.pauseUntil) {
		return false, "paused after error"
	}
	bp := c.cfg.BurstPrevention
	if bp.MaxConsecutive > 0 && c.consecutiveActions >= bp.MaxConsecutive {
		cooldown := time.Duration(bp.CooldownMinutes * float64(time.Minute))
		if now.Sub(c.lastActionTime) < cooldown {
			return false, "burst cooldown"
		}
		c.consecutiveActions = 0
	}
	return true, ""
}

// ApplyActionDelay sleeps a uniform duration from the configured range for
// the action kind. Cancellable via ctx.
func (c *Controller) ApplyActionDelay(ctx context.Context, kind string) error {
	r, ok := c.cfg.ActionDelays[kind]
	if !ok || r.MaxSeconds <= 0 {
		return nil
	}
	secs := r.MinSeconds
	if r.MaxSeconds > r.MinSeconds {
		secs += c.rng.Float64() * (r.MaxSeconds - r.MinSeconds)
	}
	d := time.Duration(secs * float64(time.Second))
	c.logger.Debug("action delay", zap.String("kind", kind), zap.Duration("sleep", d))
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordAction advances counters and the rolling history.
func (c *Controller) RecordAction(kind string, now time.Time) {
	bp := c.cfg.BurstPrevention
	cooldown := time.Duration(bp.CooldownMinutes * float64(time.Minute))
	if !c.lastActionTime.IsZero() && cooldown > 0 && now.Sub(c.lastActionTime) >= cooldown {
		c.consecutiveActions = 0
	}
	c.sessionActionCount++
	c.consecutiveActions++
	c.lastActionTime = now
	c.lastActionKind = kind
	c.history = append(c.history, actionRecord{Kind: kind, At: now})
	if len(c.history) > historyCap {
		c.history = c.history[len(c.history)-historyCap:]
	}
}

// HandleError reacts to an adapter failure. Throttle-class errors latch a
// long pause and dampen the probability modifier; not-found pauses briefly.
func (c *Controller) HandleError(err error, now time.Time) {
	switch platform.Classify(err) {
	case platform.ErrClassAccount, platform.ErrClassRateLimit:
		p := c.cfg.ErrorHandling.On226
		c.pauseUntil = now.Add(time.Duration(p.PauseMinutes * float64(time.Minute)))
		if p.ProbabilityFactor > 0 && p.ProbabilityFactor < 1 {
			c.probabilityModifier *= p.ProbabilityFactor
		}
		c.logger.Warn("throttled, backing way off",
			zap.Time("pause_until", c.pauseUntil),
			zap.Float64("probability_modifier", c.probabilityModifier))
	case platform.ErrClassNotFound:
		p := c.cfg.ErrorHandling.On404
		c.pauseUntil = now.Add(time.Duration(p.PauseMinutes * float64(time.Minute)))
		c.logger.Debug("entity gone, short pause", zap.Time("pause_until", c.pauseUntil))
	}
}

// ProbabilityModifier is the multiplicative dampener applied to interaction
// scores. Starts at 1.0 and only shrinks.
func (c *Controller) ProbabilityModifier() float64 {
	return c.probabilityModifier
}

// ResetSession clears per-session counters at a session boundary.
func (c *Controller) ResetSession() {
	c.sessionActionCount = 0
}

// SessionActionCount is the number of actions taken this session.
func (c *Controller) SessionActionCount() int {
	return c.sessionActionCount
}
