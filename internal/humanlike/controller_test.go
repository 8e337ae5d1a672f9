package humanlike

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"personad/internal/config"
)

func testConfig() config.HumanLikeConfig {
	return config.HumanLikeConfig{
		WarmupSteps: 2,
		BurstPrevention: config.BurstPrevention{
			MaxConsecutive:  3,
			CooldownMinutes: 10,
		},
		ErrorHandling: config.HumanLikeErrorHandling{
			On226: config.ThrottlePolicy{PauseMinutes: 30, ProbabilityFactor: 0.5},
			On404: config.PausePolicy{PauseMinutes: 1},
		},
	}
}

func newTestController() *Controller {
	return New(testConfig(), rand.New(rand.NewSource(1)), nil)
}

func TestWarmup(t *testing.T) {
	c := newTestController()
	now := time.Now()

	if ok, reason := c.CanTakeAction(now); ok || reason != "warming up" {
		t.Errorf("step 0 should be warming up, got ok=%v reason=%q", ok, reason)
	}
	c.Step()
	if ok, _ := c.CanTakeAction(now); ok {
		t.Error("step 1 of 2 should still be warming up")
	}
	c.Step()
	if ok, _ := c.CanTakeAction(now); !ok {
		t.Error("warm-up complete, action should be allowed")
	}
}

func TestBurstCooldown(t *testing.T) {
	c := newTestController()
	c.Step()
	c.Step()
	now := time.Now()

	for i := 0; i < 3; i++ {
		c.RecordAction("like", now)
	}
	if ok, reason := c.CanTakeAction(now.Add(time.Minute)); ok || reason != "burst cooldown" {
		t.Errorf("3 consecutive actions should trigger cooldown, got ok=%v reason=%q", ok, reason)
	}
	if ok, _ := c.CanTakeAction(now.Add(11 * time.Minute)); !ok {
		t.Error("cooldown elapsed, action should be allowed")
	}
	// Crossing the cooldown also resets the consecutive counter.
	if c.consecutiveActions != 0 {
		t.Errorf("consecutive count = %d, want reset to 0", c.consecutiveActions)
	}
}

func TestRecordActionResetsAfterGap(t *testing.T) {
	c := newTestController()
	now := time.Now()

	c.RecordAction("like", now)
	c.RecordAction("like", now.Add(time.Minute))
	c.RecordAction("reply", now.Add(20*time.Minute)) // past the 10m cooldown
	if c.consecutiveActions != 1 {
		t.Errorf("consecutive count = %d, want 1 after gap", c.consecutiveActions)
	}
}

func TestThrottlePauseAndDampening(t *testing.T) {
	c := newTestController()
	c.Step()
	c.Step()
	now := time.Now()

	c.HandleError(errors.New("error 226: automated behavior detected"), now)
	if ok, reason := c.CanTakeAction(now.Add(time.Minute)); ok || reason != "paused after error" {
		t.Errorf("throttle should pause, got ok=%v reason=%q", ok, reason)
	}
	if got := c.ProbabilityModifier(); got != 0.5 {
		t.Errorf("probability modifier = %v, want 0.5", got)
	}
	c.HandleError(errors.New("429 rate limit"), now)
	if got := c.ProbabilityModifier(); got != 0.25 {
		t.Errorf("modifier should compound: %v, want 0.25", got)
	}
	if ok, _ := c.CanTakeAction(now.Add(31 * time.Minute)); !ok {
		t.Error("pause elapsed, action should be allowed")
	}
}

func TestNotFoundShortPause(t *testing.T) {
	c := newTestController()
	c.Step()
	c.Step()
	now := time.Now()

	c.HandleError(errors.New("404 not found"), now)
	if ok, _ := c.CanTakeAction(now.Add(30 * time.Second)); ok {
		t.Error("404 should pause briefly")
	}
	if ok, _ := c.CanTakeAction(now.Add(2 * time.Minute)); !ok {
		t.Error("404 pause should be short")
	}
	if got := c.ProbabilityModifier(); got != 1.0 {
		t.Errorf("404 must not dampen probabilities, modifier = %v", got)
	}
}

func TestHistoryCap(t *testing.T) {
	c := newTestController()
	now := time.Now()
	for i := 0; i < 250; i++ {
		c.RecordAction("like", now.Add(time.Duration(i)*time.Second))
	}
	if len(c.history) != historyCap {
		t.Errorf("history length = %d, want cap %d", len(c.history), historyCap)
	}
}
