package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// File names recognised inside a persona package directory. identity.yaml is
// required; the rest are optional and fall back to defaults.
const (
	fileIdentity      = "identity.yaml"
	fileSpeechStyle   = "speech_style.yaml"
	fileBehavior      = "behavior.yaml"
	fileRelationships = "relationships.yaml"
	filePatterns      = "patterns.yaml"
	filePlatform      = "platform.yaml"
	fileSeries        = "series.yaml"
)

// LoadPersona reads the persona package rooted at dir. The directory name is
// the persona id. Configuration errors are fatal at startup; this is the only
// place they can surface.
func LoadPersona(dir string) (*Persona, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("persona package %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("persona package %s is not a directory", dir)
	}

	p := &Persona{ID: filepath.Base(dir)}

	if err := decodeInto(filepath.Join(dir, fileIdentity), &p.Identity, true); err != nil {
		return nil, err
	}
	if err := decodeInto(filepath.Join(dir, fileSpeechStyle), &p.Speech, false); err != nil {
		return nil, err
	}
	if err := decodeInto(filepath.Join(dir, fileBehavior), &p.Behavior, false); err != nil {
		return nil, err
	}
	if err := decodeInto(filepath.Join(dir, fileRelationships), &p.Relationships, false); err != nil {
		return nil, err
	}
	if err := decodeInto(filepath.Join(dir, filePatterns), &p.Patterns, false); err != nil {
		return nil, err
	}
	if err := decodeInto(filepath.Join(dir, filePlatform), &p.Platform, false); err != nil {
		return nil, err
	}
	if err := decodeInto(filepath.Join(dir, fileSeries), &p.Series, false); err != nil {
		return nil, err
	}

	p.applyDefaults()
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("persona %s: %w", p.ID, err)
	}
	return p, nil
}

// decodeInto strictly decodes one yaml file. Unknown keys are errors: the
// schema is closed so a typo fails loudly instead of silently changing
// behavior.
func decodeInto(path string, out any, required bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func (p *Persona) validate() error {
	if p.Identity.Name == "" {
		return fmt.Errorf("identity.name is required")
	}
	if p.Identity.Domain.Name == "" {
		return fmt.Errorf("identity.domain.name is required")
	}

	b := p.Behavior
	for name, v := range map[string]float64{
		"probability_model.base_probability": b.ProbabilityModel.BaseProbability,
		"mood_volatility.base_mood":          b.InteractionPatterns.MoodVolatility.BaseMood,
		"posting.p_flash":                    b.Posting.PFlash,
		"posting.p_flash_reinforced":         b.Posting.PFlashReinforced,
		"posting.p_mood_burst":               b.Posting.PMoodBurst,
		"posting.p_random_recall":            b.Posting.PRandomRecall,
		"p_notifications":                    b.PNotifications,
		"random_off_day.probability":         b.ActivitySchedule.RandomOffDay.Probability,
		"random_breaks.probability":          b.ActivitySchedule.RandomBreaks.Probability,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("behavior.%s must be in [0,1], got %v", name, v)
		}
	}

	sp := b.ActivitySchedule.SleepPattern
	if sp.SleepStartHour < 0 || sp.SleepStartHour >= 24 {
		return fmt.Errorf("sleep_pattern.sleep_start_hour out of range: %v", sp.SleepStartHour)
	}
	if sp.WakeHour < 0 || sp.WakeHour >= 24 {
		return fmt.Errorf("sleep_pattern.wake_hour out of range: %v", sp.WakeHour)
	}

	for _, h := range b.ActivitySchedule.HourlyActivity {
		if _, _, err := ParseHourRange(h.Hours); err != nil {
			return fmt.Errorf("hourly_activity %q: %w", h.Hours, err)
		}
		if h.Level < 0 || h.Level > 1 {
			return fmt.Errorf("hourly_activity %q level out of range: %v", h.Hours, h.Level)
		}
	}

	if b.Posting.MaxPerDay < 1 {
		return fmt.Errorf("posting.max_per_day must be positive")
	}
	if w := b.ModeWeights; w.Social+w.Casual+w.Series <= 0 {
		return fmt.Errorf("mode_weights must have positive total weight")
	}

	for name, d := range b.HumanLike.ActionDelays {
		if d.MinSeconds < 0 || d.MaxSeconds < d.MinSeconds {
			return fmt.Errorf("human_like.action_delays.%s invalid range", name)
		}
	}

	for name, m := range p.Platform.Modes {
		if m.SessionIntervalMinSeconds < 0 || m.SessionIntervalMaxSeconds < m.SessionIntervalMinSeconds {
			return fmt.Errorf("platform.modes.%s session interval invalid", name)
		}
	}
	return nil
}

// ParseHourRange parses "HH-HH" into start and end hours. The interval is
// half-open [start, end) and may wrap midnight ("22-01").
func ParseHourRange(s string) (int, int, error) {
	var start, end int
	if _, err := fmt.Sscanf(s, "%d-%d", &start, &end); err != nil {
		return 0, 0, fmt.Errorf("expected HH-HH: %w", err)
	}
	if start < 0 || start > 23 || end < 0 || end > 24 {
		return 0, 0, fmt.Errorf("hour out of range in %q", s)
	}
	return start, end, nil
}

// HourInRange reports whether hour falls inside the (possibly wrap-around)
// half-open interval [start, end).
func HourInRange(hour, start, end int) bool {
	if start == end {
		return false
	}
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}
