package journey

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"personad/internal/config"
	"personad/internal/intelligence"
	"personad/internal/llm"
	"personad/internal/patterns"
	"personad/internal/platform"
	"personad/internal/store"
)

// maxRegenerations bounds the novelty/violation retry loop.
const maxRegenerations = 3

// noveltyFloor is the minimum fraction of tokens a reply must not share with
// any of the recent replies.
const noveltyFloor = 0.5

// recentReplyWindow is how many past replies the novelty check compares
// against.
const recentReplyWindow = 5

// ErrNoReply means generation could not produce an acceptable reply; the
// caller skips the reply action and continues.
var ErrNoReply = errors.New("journey: no acceptable reply produced")

// ReplyGenerator writes replies in the persona's voice, under the pattern
// tracker's constraints and a novelty check against recent output.
type ReplyGenerator struct {
	persona  *config.Persona
	provider llm.Provider
	intel    *intelligence.Intelligence
	tracker  *patterns.Tracker
	store    *store.Store
	logger   *zap.Logger
}

// NewReplyGenerator builds a reply generator. provider may be nil; quip
// replies still work from the pools, everything else returns ErrNoReply.
func NewReplyGenerator(persona *config.Persona, provider llm.Provider, intel *intelligence.Intelligence, tracker *patterns.Tracker, st *store.Store, logger *zap.Logger) *ReplyGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplyGenerator{
		persona:  persona,
		provider: provider,
		intel:    intel,
		tracker:  tracker,
		store:    st,
		logger:   logger,
	}
}

// Generate produces one reply of the given type for the post. Pattern
// violations and stale phrasing trigger regeneration, at most three times;
// the last candidate is used when the loop exhausts.
func (g *ReplyGenerator) Generate(ctx context.Context, post platform.Post, p *intelligence.Perception, replyType intelligence.ResponseType) (string, error) {
	if replyType == intelligence.ResponseQuip {
		category := ""
		if p != nil {
			category = p.QuipCategory
		}
		if quip := g.intel.PickQuip(category); quip != "" {
			return quip, nil
		}
		replyType = intelligence.ResponseShort
	}
	if g.provider == nil {
		return "", ErrNoReply
	}

	recent, err := g.recentReplies()
	if err != nil {
		g.logger.Warn("novelty window unavailable", zap.Error(err))
	}

	var text string
	feedback := ""
	for attempt := 0; attempt <= maxRegenerations; attempt++ {
		text, err = g.generateOnce(ctx, post, p, replyType, feedback)
		if err != nil {
			return "", err
		}
		text = g.finish(text, replyType)

		violations, verr := g.tracker.CheckViolations(text, contextTag(p))
		if verr != nil {
			g.logger.Warn("pattern check failed", zap.Error(verr))
		}
		if len(violations) > 0 {
			feedback = patterns.FormatViolationsForLLM(violations)
			g.logger.Debug("reply regenerated", zap.Int("attempt", attempt), zap.String("why", "pattern violations"))
			continue
		}
		if !novel(text, recent) {
			feedback = "Your draft repeats your recent replies almost verbatim. Say it differently."
			g.logger.Debug("reply regenerated", zap.Int("attempt", attempt), zap.String("why", "stale phrasing"))
			continue
		}
		return text, nil
	}
	// Exhausted: ship the last draft rather than go silent.
	g.logger.Warn("reply retries exhausted, using last draft")
	return text, nil
}

func (g *ReplyGenerator) generateOnce(ctx context.Context, post platform.Post, p *intelligence.Perception, replyType intelligence.ResponseType, feedback string) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Post by %s:\n%s\n\n", post.AuthorName, post.Text)
	if p != nil && p.MyAngle != "" {
		fmt.Fprintf(&sb, "Your angle: %s\n", p.MyAngle)
	}
	fmt.Fprintf(&sb, "Write a %s reply in your voice. Reply text only, no quotes, no hashtags unless natural.\n",
		replyType)
	if maxLen := g.maxLength(replyType); maxLen > 0 {
		fmt.Fprintf(&sb, "Hard limit: %d display characters.\n", maxLen)
	}
	if feedback != "" {
		fmt.Fprintf(&sb, "\n%s\n", feedback)
	}

	out, err := g.provider.Generate(ctx, g.systemPrompt(), sb.String())
	if err != nil {
		return "", fmt.Errorf("reply generation: %w", err)
	}
	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	if out == "" {
		return "", ErrNoReply
	}
	return out, nil
}

// finish applies moderation and the hard length cap.
func (g *ReplyGenerator) finish(text string, replyType intelligence.ResponseType) string {
	text = patterns.Review(g.persona.Behavior.ContentReview, text)
	if maxLen := g.maxLength(replyType); maxLen > 0 && patterns.WeightedLength(text) > maxLen {
		text = patterns.Truncate(text, maxLen)
	}
	return text
}

func (g *ReplyGenerator) systemPrompt() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s. %s\n", g.persona.Identity.Name, g.persona.Identity.Identity)
	chat := g.persona.Speech.Chat
	if chat.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", chat.Tone)
	}
	if len(chat.Patterns) > 0 {
		fmt.Fprintf(&sb, "Speech patterns: %s\n", strings.Join(chat.Patterns, "; "))
	}
	if alt := g.persona.Platform.Constraints.FriendlyAlternative; alt != "" &&
		len(g.persona.Platform.Constraints.AvoidExpertPhrases) > 0 {
		fmt.Fprintf(&sb, "Never sound like an expert (%s); instead: %s\n",
			strings.Join(g.persona.Platform.Constraints.AvoidExpertPhrases, ", "), alt)
	}
	return sb.String()
}

func (g *ReplyGenerator) maxLength(replyType intelligence.ResponseType) int {
	if rc, ok := g.persona.Platform.ResponseTypes[string(replyType)]; ok {
		return rc.MaxLength
	}
	return 0
}

func (g *ReplyGenerator) recentReplies() ([]string, error) {
	if g.store == nil {
		return nil, nil
	}
	eps, err := g.store.RecentEpisodes(store.EpisodeReplied, recentReplyWindow)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(eps))
	for _, ep := range eps {
		out = append(out, ep.Content)
	}
	return out, nil
}

// contextTag extracts the avoid-context tag from a perception for the
// contextual pattern check.
func contextTag(p *intelligence.Perception) string {
	if p == nil {
		return ""
	}
	if p.Sentiment == store.SentimentNegative {
		return "serious"
	}
	return p.Intent
}

// novel reports whether text shares less than half its tokens with every
// recent reply.
func novel(text string, recent []string) bool {
	words := tokens(text)
	if len(words) == 0 {
		return true
	}
	for _, prev := range recent {
		prevSet := make(map[string]bool)
		for _, w := range tokens(prev) {
			prevSet[w] = true
		}
		shared := 0
		for _, w := range words {
			if prevSet[w] {
				shared++
			}
		}
		if float64(len(words)-shared)/float64(len(words)) < noveltyFloor {
			return false
		}
	}
	return true
}

func tokens(s string) []string {
	return strings.Fields(strings.ToLower(s))
}
