// Package mode selects the agent's operating mode (normal, test, aggressive)
// and escalates to normal on repeated errors. Each mode is one row of a fixed
// table: session interval, warm-up, whether sleep and breaks are honoured,
// and probability overrides.
package mode

import (
	"time"

	"go.uber.org/zap"

	"personad/internal/config"
	"personad/internal/platform"
)

// Name is a mode identifier.
type Name string

const (
	Normal     Name = "normal"
	Test       Name = "test"
	Aggressive Name = "aggressive"
)

// maxConsecutiveErrors before the manager forces normal and pauses.
const maxConsecutiveErrors = 3

// safePause is how long the manager asks the orchestrator to sleep after an
// escalation.
const safePause = 15 * time.Minute

// Decision is what the manager asks the orchestrator to do after an error.
type Decision int

const (
	DecisionContinue Decision = iota
	DecisionPause
)

// Manager tracks the current mode and error streaks.
type Manager struct {
	modes   map[string]config.ModeConfig
	current Name
	logger  *zap.Logger

	consecutiveErrors int
	dailyActions      int
	actionDay         string
}

// New builds a manager starting in the requested mode. The mode table comes
// from the persona's platform config; missing rows were defaulted at load.
func New(start Name, modes map[string]config.ModeConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{modes: modes, current: start, logger: logger}
}

// Current returns the active mode name.
func (m *Manager) Current() Name {
	return m.current
}

// Config returns the active mode's table row.
func (m *Manager) Config() config.ModeConfig {
	return m.modes[string(m.current)]
}

// SessionInterval is the configured inter-session sleep range.
func (m *Manager) SessionInterval() (time.Duration, time.Duration) {
	c := m.Config()
	return time.Duration(c.SessionIntervalMinSeconds) * time.Second,
		time.Duration(c.SessionIntervalMaxSeconds) * time.Second
}

// StepProbabilities returns the step-level overrides, or the persona's own
// values in normal mode (zero override means "use persona").
func (m *Manager) StepProbabilities(persona config.StepProbabilities) config.StepProbabilities {
	o := m.Config().StepProbabilities
	if o == (config.StepProbabilities{}) {
		return persona
	}
	return o
}

// ActionProbabilities returns the action-level overrides, or the persona's
// own ratios in normal mode.
func (m *Manager) ActionProbabilities(persona config.ActionRatios) config.ActionRatios {
	o := m.Config().ActionProbabilities
	if o == (config.ActionRatios{}) {
		return persona
	}
	return o
}

// OnError counts an error. Three in a row, or an account throttle while
// aggressive, force normal mode and request a pause.
func (m *Manager) OnError(err error) (Decision, time.Duration) {
	m.consecutiveErrors++

	throttledWhileAggressive := m.current == Aggressive && platform.IsAccountError(err)
	if m.consecutiveErrors >= maxConsecutiveErrors || throttledWhileAggressive {
		if m.current != Normal {
			m.logger.Warn("falling back to normal mode",
				zap.String("from", string(m.current)),
				zap.Int("consecutive_errors", m.consecutiveErrors),
				zap.Error(err))
			m.current = Normal
		} else {
			m.logger.Warn("error streak, pausing",
				zap.Int("consecutive_errors", m.consecutiveErrors), zap.Error(err))
		}
		m.consecutiveErrors = 0
		return DecisionPause, safePause
	}
	return DecisionContinue, 0
}

// OnSuccess resets the error streak and counts one action against the daily
// cap. Returns false when the cap is exhausted for today.
func (m *Manager) OnSuccess(now time.Time) bool {
	m.consecutiveErrors = 0

	day := now.Format("2006-01-02")
	if day != m.actionDay {
		m.actionDay = day
		m.dailyActions = 0
	}
	m.dailyActions++
	cap := m.Config().DailyActionCap
	if cap > 0 && m.dailyActions > cap {
		m.logger.Warn("daily action cap reached", zap.Int("cap", cap))
		return false
	}
	return true
}

// DailyCapReached reports whether today's action budget is spent.
func (m *Manager) DailyCapReached(now time.Time) bool {
	if now.Format("2006-01-02") != m.actionDay {
		return false
	}
	cap := m.Config().DailyActionCap
	return cap > 0 && m.dailyActions >= cap
}
