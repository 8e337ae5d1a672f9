package behavior

import (
	"math"
	"math/rand"
	"time"

	"personad/internal/config"
	"personad/internal/store"
)

// moodHistoryCap bounds the recent-sentiment window.
const moodHistoryCap = 10

// Mood tracks the persona's current emotional state in [0,1]. It drifts with
// time of day, recent interaction sentiment, and random jitter around the
// configured base.
type Mood struct {
	cfg config.MoodVolatility
	rng *rand.Rand

	recent []float64 // signed sentiment impacts, newest last
	jitter float64
}

// NewMood builds the mood model.
func NewMood(cfg config.MoodVolatility, rng *rand.Rand) *Mood {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Mood{cfg: cfg, rng: rng}
}

// Current computes the mood at now.
func (m *Mood) Current(now time.Time) float64 {
	mood := m.cfg.BaseMood
	mood += m.timeFactor(now) * m.cfg.Factors.TimeOfDay
	mood += m.recentImpact() * m.cfg.Factors.RecentInteractions
	mood += m.jitter * m.cfg.Factors.Random
	return clamp01(mood)
}

// timeFactor peaks late morning and dips deep at night, in [-1, 1].
func (m *Mood) timeFactor(now time.Time) float64 {
	h := float64(now.Hour()) + float64(now.Minute())/60
	// Sine with its maximum around 11:00 and minimum around 23:00.
	return math.Sin((h - 5) / 24 * 2 * math.Pi)
}

// recentImpact averages the sentiment of recent interactions, in [-1, 1].
func (m *Mood) recentImpact() float64 {
	if len(m.recent) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range m.recent {
		sum += v
	}
	return sum / float64(len(m.recent))
}

// RecordInteraction feeds one interaction's sentiment into the mood.
func (m *Mood) RecordInteraction(sentiment store.Sentiment) {
	var impact float64
	switch sentiment {
	case store.SentimentPositive:
		impact = 1
	case store.SentimentNegative:
		impact = -1
	}
	m.recent = append(m.recent, impact)
	if len(m.recent) > moodHistoryCap {
		m.recent = m.recent[len(m.recent)-moodHistoryCap:]
	}
}

// Drift re-rolls the random jitter component. Called once per decision so a
// SKIP still moves the mood a little.
func (m *Mood) Drift() {
	m.jitter = m.rng.Float64()*2 - 1
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
