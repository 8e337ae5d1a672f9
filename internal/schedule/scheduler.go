// Package schedule implements the clock & activity scheduler: per-day sleep
// windows with noise and weekend shifts, off days, random breaks, a midnight
// check exception, and an hourly activity level the orchestrator uses to pace
// inter-session sleep.
package schedule

import (
	"math/rand"
	"time"

	"go.uber.org/zap"

	"personad/internal/config"
)

// State describes what the persona is doing right now.
type State string

const (
	StateActive        State = "active"
	StateSleeping      State = "sleeping"
	StateOnBreak       State = "on_break"
	StateOffDay        State = "off_day"
	StateMidnightCheck State = "midnight_check"
)

// Status is one scheduler reading.
type Status struct {
	IsActive   bool
	State      State
	NextActive time.Time
}

// Scheduler derives daily sleep/wake hours once per calendar day and answers
// activity queries against them.
type Scheduler struct {
	cfg    config.ActivitySchedule
	rng    *rand.Rand
	logger *zap.Logger

	derivedDay   string // dayKey of the last derivation
	sleepStart   float64
	wakeHour     float64
	isOffDay     bool
	midnightHour int // -1 when no midnight check today

	breakUntil time.Time
}

// New builds a scheduler. rng must not be shared with other components so
// tests can seed deterministically.
func New(cfg config.ActivitySchedule, rng *rand.Rand, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scheduler{cfg: cfg, rng: rng, logger: logger, midnightHour: -1}
}

// Check returns the current status. The first call of each calendar day
// derives that day's schedule.
func (s *Scheduler) Check(now time.Time) Status {
	s.deriveDay(now)

	if s.isOffDay {
		next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		return Status{IsActive: false, State: StateOffDay, NextActive: next}
	}

	hour := now.Hour()
	if s.midnightHour >= 0 && hour == s.midnightHour {
		// Brief wake-up inside the sleep window.
		return Status{IsActive: true, State: StateMidnightCheck}
	}

	if s.sleeping(float64(hour) + float64(now.Minute())/60) {
		next := time.Date(now.Year(), now.Month(), now.Day(), int(s.wakeHour), 0, 0, 0, now.Location())
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}
		return Status{IsActive: false, State: StateSleeping, NextActive: next}
	}

	if now.Before(s.breakUntil) {
		return Status{IsActive: false, State: StateOnBreak, NextActive: s.breakUntil}
	}
	return Status{IsActive: true, State: StateActive}
}

// sleeping reports whether h falls in the wrap-around window [sleepStart, wake).
func (s *Scheduler) sleeping(h float64) bool {
	if s.sleepStart == s.wakeHour {
		return true // degenerate window: always asleep
	}
	if s.sleepStart < s.wakeHour {
		return h >= s.sleepStart && h < s.wakeHour
	}
	return h >= s.sleepStart || h < s.wakeHour
}

// deriveDay rolls the daily dice once per calendar day.
func (s *Scheduler) deriveDay(now time.Time) {
	day := now.Format("2006-01-02")
	if day == s.derivedDay {
		return
	}
	s.derivedDay = day

	sp := s.cfg.SleepPattern
	sleep := sp.SleepStartHour + uniform(s.rng, -sp.SleepVariance, sp.SleepVariance)
	wake := sp.WakeHour + uniform(s.rng, -sp.WakeVariance, sp.WakeVariance)

	if wd := now.Weekday(); wd == time.Saturday || wd == time.Sunday {
		sleep += sp.WeekendSleepShift
		wake += sp.WeekendWakeShift
	}
	if sp.LateNightProb > 0 && s.rng.Float64() < sp.LateNightProb {
		sleep += 1.5
	}
	if sp.EarlyWakeProb > 0 && s.rng.Float64() < sp.EarlyWakeProb {
		wake -= 1.5
	}

	s.sleepStart = clampF(sleep, 0, 5)
	s.wakeHour = clampF(wake, 5, 12)

	s.midnightHour = -1
	if sp.MidnightCheckProb > 0 && s.rng.Float64() < sp.MidnightCheckProb {
		// One brief check somewhere in the first sleep hours.
		s.midnightHour = int(s.sleepStart) + s.rng.Intn(2)
	}

	s.isOffDay = s.cfg.RandomOffDay.Probability > 0 && s.rng.Float64() < s.cfg.RandomOffDay.Probability

	s.logger.Info("daily schedule derived",
		zap.String("day", day),
		zap.Float64("sleep_start", s.sleepStart),
		zap.Float64("wake", s.wakeHour),
		zap.Bool("off_day", s.isOffDay),
		zap.Int("midnight_check_hour", s.midnightHour))
}

// ShouldTakeBreak rolls for a random break and latches it when it hits.
// While a break is latched, Check reports on_break.
func (s *Scheduler) ShouldTakeBreak(now time.Time) bool {
	if now.Before(s.breakUntil) {
		return true
	}
	rb := s.cfg.RandomBreaks
	if rb.Probability <= 0 || s.rng.Float64() >= rb.Probability {
		return false
	}
	minutes := uniform(s.rng, rb.DurationMinMinutes, rb.DurationMaxMinutes)
	s.breakUntil = now.Add(time.Duration(minutes * float64(time.Minute)))
	s.logger.Info("taking a break", zap.Time("until", s.breakUntil))
	return true
}

// ActivityLevel returns the configured level for the current hour, 0.5 when
// no interval matches. Intervals may wrap midnight ("22-01").
func (s *Scheduler) ActivityLevel(now time.Time) float64 {
	hour := now.Hour()
	for _, h := range s.cfg.HourlyActivity {
		start, end, err := config.ParseHourRange(h.Hours)
		if err != nil {
			continue // validated at load
		}
		if config.HourInRange(hour, start, end) {
			return h.Level
		}
	}
	return 0.5
}

// PaceMultiplier converts the activity level into the inter-session sleep
// multiplier 1/max(level, 0.1).
func (s *Scheduler) PaceMultiplier(now time.Time) float64 {
	level := s.ActivityLevel(now)
	if level < 0.1 {
		level = 0.1
	}
	return 1 / level
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
