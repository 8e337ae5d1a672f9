// Package patterns guards generated text against sounding like a bot: speech
// patterns carry cooldowns and caps, certain character ranges are forbidden
// outright, and a review pass moderates over-used phrases. Usage accounting
// lives in the store so cooldowns survive restarts.
package patterns

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"personad/internal/config"
	"personad/internal/store"
)

// ViolationKind classifies one rule breach.
type ViolationKind string

const (
	ViolationSignatureCooldown ViolationKind = "signature_cooldown"
	ViolationConsecutiveUse    ViolationKind = "consecutive_use"
	ViolationFillerCap         ViolationKind = "filler_cap"
	ViolationContextualAvoid   ViolationKind = "contextual_avoid"
	ViolationForbiddenChars    ViolationKind = "forbidden_chars"
)

// Violation is one detected breach with enough detail to rewrite around it.
type Violation struct {
	Kind    ViolationKind
	Literal string
	Detail  string
}

// Tracker checks candidate text against the persona's pattern registry.
type Tracker struct {
	cfg    config.PatternsConfig
	store  *store.Store
	logger *zap.Logger
}

// New builds a tracker over the persisted usage history.
func New(cfg config.PatternsConfig, st *store.Store, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{cfg: cfg, store: st, logger: logger}
}

// CheckViolations enumerates every rule the candidate text breaks.
// contextTag may be empty when no conversational context applies.
func (t *Tracker) CheckViolations(text, contextTag string) ([]Violation, error) {
	var out []Violation
	lower := strings.ToLower(text)

	if ContainsForbidden(text) {
		out = append(out, Violation{
			Kind:   ViolationForbiddenChars,
			Detail: "contains forbidden characters (Han/kana); regenerate",
		})
	}

	for _, p := range t.cfg.Signature {
		if p.CooldownPosts <= 0 || !strings.Contains(lower, strings.ToLower(p.Literal)) {
			continue
		}
		since, err := t.store.PostsSinceLastUse(p.Literal)
		if err != nil {
			return nil, fmt.Errorf("failed to check signature cooldown: %w", err)
		}
		if since >= 0 && since < p.CooldownPosts {
			out = append(out, Violation{
				Kind:    ViolationSignatureCooldown,
				Literal: p.Literal,
				Detail:  fmt.Sprintf("%q used %d posts ago, cooldown is %d", p.Literal, since, p.CooldownPosts),
			})
		}
	}

	for _, p := range t.cfg.Frequent {
		if p.MaxConsecutive <= 0 || !strings.Contains(lower, strings.ToLower(p.Literal)) {
			continue
		}
		run, err := t.store.ConsecutivePostsWithLiteral(p.Literal, p.MaxConsecutive+1)
		if err != nil {
			return nil, fmt.Errorf("failed to check consecutive use: %w", err)
		}
		if run >= p.MaxConsecutive {
			out = append(out, Violation{
				Kind:    ViolationConsecutiveUse,
				Literal: p.Literal,
				Detail:  fmt.Sprintf("%q appeared in the last %d posts in a row", p.Literal, run),
			})
		}
	}

	for _, p := range t.cfg.Filler {
		if p.MaxPerPost <= 0 {
			continue
		}
		if n := strings.Count(lower, strings.ToLower(p.Literal)); n > p.MaxPerPost {
			out = append(out, Violation{
				Kind:    ViolationFillerCap,
				Literal: p.Literal,
				Detail:  fmt.Sprintf("%q appears %d times, cap is %d per post", p.Literal, n, p.MaxPerPost),
			})
		}
	}

	if contextTag != "" {
		for _, p := range t.cfg.Contextual {
			if !strings.Contains(lower, strings.ToLower(p.Literal)) {
				continue
			}
			for _, avoid := range p.AvoidContexts {
				if avoid == contextTag {
					out = append(out, Violation{
						Kind:    ViolationContextualAvoid,
						Literal: p.Literal,
						Detail:  fmt.Sprintf("%q should be avoided in %s context", p.Literal, contextTag),
					})
					break
				}
			}
		}
	}
	return out, nil
}

// RecordUsage inserts one usage row per pattern occurrence found in the
// published text.
func (t *Tracker) RecordUsage(text, postID string) error {
	lower := strings.ToLower(text)
	record := func(patternType, literal string) error {
		if !strings.Contains(lower, strings.ToLower(literal)) {
			return nil
		}
		return t.store.InsertPatternUsage(&store.PatternUsage{
			PatternType: patternType,
			Literal:     literal,
			PostID:      postID,
		})
	}
	for _, p := range t.cfg.Signature {
		if err := record("signature", p.Literal); err != nil {
			return err
		}
	}
	for _, p := range t.cfg.Frequent {
		if err := record("frequent", p.Literal); err != nil {
			return err
		}
	}
	for _, p := range t.cfg.Filler {
		if err := record("filler", p.Literal); err != nil {
			return err
		}
	}
	for _, p := range t.cfg.Contextual {
		if err := record("contextual", p.Literal); err != nil {
			return err
		}
	}
	return nil
}

// FormatViolationsForLLM renders violations as a concise rewrite instruction.
func FormatViolationsForLLM(violations []Violation) string {
	if len(violations) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Rewrite the text with these fixes:\n")
	for _, v := range violations {
		b.WriteString("- ")
		b.WriteString(v.Detail)
		b.WriteString("\n")
	}
	return b.String()
}

// Review applies the persona's content_review config: phrases listed in
// patterns_to_moderate may appear at most max_pattern_occurrences times; the
// extras are cut (everything after the allowed count's occurrence is
// rewritten without the phrase). Returns the moderated text.
func Review(cfg config.ContentReview, text string) string {
	if !cfg.Enabled || !cfg.FixExcessivePatterns {
		return text
	}
	for _, phrase := range cfg.PatternsToModerate {
		if phrase == "" {
			continue
		}
		text = capOccurrences(text, phrase, cfg.MaxPatternOccurrences)
	}
	return text
}

// capOccurrences removes occurrences of phrase beyond the first max,
// case-insensitively, collapsing any doubled spaces left behind.
func capOccurrences(text, phrase string, max int) string {
	if max <= 0 {
		max = 1
	}
	lowerPhrase := strings.ToLower(phrase)
	var b strings.Builder
	seen := 0
	rest := text
	for {
		idx := strings.Index(strings.ToLower(rest), lowerPhrase)
		if idx < 0 {
			b.WriteString(rest)
			break
		}
		seen++
		if seen <= max {
			b.WriteString(rest[:idx+len(phrase)])
		} else {
			b.WriteString(rest[:idx])
		}
		rest = rest[idx+len(phrase):]
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
