// Package journey drives a session's interaction flows: the notification
// journey (inbound events, priority-ordered), the feed journey (outbound
// browsing), and the single-post scenario both delegate to. A scenario
// perceives a post, judges engagement, acts with human pacing, and writes
// every consequence back to memory.
package journey

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"personad/internal/behavior"
	"personad/internal/config"
	"personad/internal/intelligence"
	"personad/internal/llm"
	"personad/internal/platform"
)

// EngagementDecision is the judge's structured verdict for one post.
type EngagementDecision struct {
	Like       bool    `json:"like"`
	Repost     bool    `json:"repost"`
	Reply      bool    `json:"reply"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
	ReplyType  string  `json:"reply_type"`
}

// Judge decides how to engage a post. It asks the LLM for a structured
// decision and falls back to the behavior engine's dice when the provider is
// missing or the output does not parse.
type Judge struct {
	persona  *config.Persona
	provider llm.Provider
	logger   *zap.Logger
}

// NewJudge builds an engagement judge. provider may be nil.
func NewJudge(persona *config.Persona, provider llm.Provider, logger *zap.Logger) *Judge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Judge{persona: persona, provider: provider, logger: logger}
}

// Decide produces an engagement decision. verdict supplies the fallback and
// caps the judge: the judge may decline actions the dice granted but never
// invents ones they denied.
func (j *Judge) Decide(ctx context.Context, post platform.Post, p *intelligence.Perception, verdict behavior.Verdict) EngagementDecision {
	fallback := EngagementDecision{
		Like:       verdict.Like,
		Repost:     verdict.Repost,
		Reply:      verdict.Comment,
		Confidence: verdict.Score,
		Reason:     "dice",
		ReplyType:  string(intelligence.ResponseNormal),
	}
	if j.provider == nil {
		return fallback
	}

	d, err := j.decideLLM(ctx, post, p)
	if err != nil {
		j.logger.Warn("engagement judge fell back to dice", zap.Error(err))
		return fallback
	}
	// The dice are the ceiling.
	d.Like = d.Like && verdict.Like
	d.Repost = d.Repost && verdict.Repost
	d.Reply = d.Reply && verdict.Comment
	if d.ReplyType == "" {
		d.ReplyType = string(intelligence.ResponseNormal)
	}
	return d
}

func (j *Judge) decideLLM(ctx context.Context, post platform.Post, p *intelligence.Perception) (EngagementDecision, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, %s.\n", j.persona.Identity.Name, j.persona.Identity.Identity)
	fmt.Fprintf(&sb, "A post by %s:\n%s\n\n", post.AuthorName, post.Text)
	if p != nil {
		fmt.Fprintf(&sb, "Your reading: topics=%s sentiment=%s relevance=%.2f\n",
			strings.Join(p.Topics, ","), p.Sentiment, p.RelevanceToDomain)
	}
	sb.WriteString(`Decide how to engage. Reply with ONLY a JSON object:
{"like": bool, "repost": bool, "reply": bool, "confidence": 0..1, "reason": "...", "reply_type": "quip|short|normal|long|personal"}`)

	out, err := j.provider.Generate(ctx, "", sb.String())
	if err != nil {
		return EngagementDecision{}, err
	}
	var d EngagementDecision
	if err := json.Unmarshal([]byte(extractJSON(out)), &d); err != nil {
		return EngagementDecision{}, fmt.Errorf("unparseable judge output: %w", err)
	}
	return d, nil
}

// extractJSON strips markdown fences and surrounding prose from a model reply.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
}
