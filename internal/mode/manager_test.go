package mode

import (
	"errors"
	"testing"
	"time"

	"personad/internal/config"
)

func testModes() map[string]config.ModeConfig {
	return map[string]config.ModeConfig{
		"normal": {
			SessionIntervalMinSeconds: 300,
			SessionIntervalMaxSeconds: 900,
			DailyActionCap:            3,
		},
		"aggressive": {
			SessionIntervalMinSeconds: 60,
			SessionIntervalMaxSeconds: 180,
			StepProbabilities:         config.StepProbabilities{Scout: 0.8, Mentions: 0.8, ReplyCheck: 0.8, Post: 0.4},
			ActionProbabilities:       config.ActionRatios{Like: 0.7, Repost: 0.4, Comment: 0.6},
			DailyActionCap:            200,
		},
	}
}

func TestNormalUsesPersonaProbabilities(t *testing.T) {
	m := New(Normal, testModes(), nil)
	persona := config.StepProbabilities{Scout: 0.5, Mentions: 0.6, ReplyCheck: 0.4, Post: 0.1}

	if got := m.StepProbabilities(persona); got != persona {
		t.Errorf("normal mode should defer to persona, got %+v", got)
	}
	ratios := config.ActionRatios{Like: 1.0, Repost: 0.8, Comment: 0.6}
	if got := m.ActionProbabilities(ratios); got != ratios {
		t.Errorf("normal mode should defer to persona ratios, got %+v", got)
	}
}

func TestAggressiveOverrides(t *testing.T) {
	m := New(Aggressive, testModes(), nil)
	persona := config.StepProbabilities{Scout: 0.5}

	got := m.StepProbabilities(persona)
	if got.Scout != 0.8 || got.Post != 0.4 {
		t.Errorf("aggressive mode should override, got %+v", got)
	}
}

func TestThreeErrorsForceNormalAndPause(t *testing.T) {
	m := New(Aggressive, testModes(), nil)
	err := errors.New("connection reset")

	for i := 0; i < 2; i++ {
		if d, _ := m.OnError(err); d != DecisionContinue {
			t.Fatalf("error %d should not escalate yet", i+1)
		}
	}
	d, pause := m.OnError(err)
	if d != DecisionPause {
		t.Fatal("third consecutive error should pause")
	}
	if pause <= 0 {
		t.Error("pause duration must be positive")
	}
	if m.Current() != Normal {
		t.Errorf("mode = %s, want normal after escalation", m.Current())
	}
}

func TestAccountThrottleWhileAggressiveEscalatesImmediately(t *testing.T) {
	m := New(Aggressive, testModes(), nil)

	d, _ := m.OnError(errors.New("403 authorization failed"))
	if d != DecisionPause {
		t.Fatal("account throttle in aggressive mode should pause immediately")
	}
	if m.Current() != Normal {
		t.Errorf("mode = %s, want normal", m.Current())
	}
}

func TestSuccessResetsStreak(t *testing.T) {
	m := New(Normal, testModes(), nil)
	err := errors.New("boom")
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	m.OnError(err)
	m.OnError(err)
	m.OnSuccess(now)
	m.OnError(err)
	if d, _ := m.OnError(err); d != DecisionContinue {
		t.Error("success should have reset the error streak")
	}
}

func TestDailyActionCap(t *testing.T) {
	m := New(Normal, testModes(), nil)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		if !m.OnSuccess(now) {
			t.Fatalf("action %d should fit under cap 3", i+1)
		}
	}
	if m.OnSuccess(now) {
		t.Error("fourth action should exceed the cap")
	}
	if !m.DailyCapReached(now) {
		t.Error("DailyCapReached should report true")
	}
	// Date rollover resets the counter.
	tomorrow := now.AddDate(0, 0, 1)
	if m.DailyCapReached(tomorrow) {
		t.Error("new day should reset the cap")
	}
	if !m.OnSuccess(tomorrow) {
		t.Error("first action of the new day should pass")
	}
}
