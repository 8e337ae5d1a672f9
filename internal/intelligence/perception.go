// Package intelligence perceives incoming posts: topics, sentiment, intent,
// domain relevance, and the response-type class. Perception prefers a
// structured LLM call and falls back to a keyword heuristic when the provider
// is unavailable or returns something unparseable, so a format error never
// aborts a session.
package intelligence

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"personad/internal/config"
	"personad/internal/llm"
	"personad/internal/patterns"
	"personad/internal/store"
)

// Complexity grades how much thought a post demands.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// ResponseType classes drive reply length and register.
type ResponseType string

const (
	ResponseQuip     ResponseType = "quip"
	ResponseShort    ResponseType = "short"
	ResponseNormal   ResponseType = "normal"
	ResponseLong     ResponseType = "long"
	ResponsePersonal ResponseType = "personal"
)

// Perception is the language-agnostic reading of one post.
type Perception struct {
	Topics            []string        `json:"topics"`
	Sentiment         store.Sentiment `json:"sentiment"`
	Intent            string          `json:"intent"`
	RelevanceToDomain float64         `json:"relevance_to_domain"`
	Complexity        Complexity      `json:"complexity"`
	QuipCategory      string          `json:"quip_category"`
	UserProfileHint   string          `json:"user_profile_hint"`
	MyAngle           string          `json:"my_angle"`
	TweetLength       int             `json:"-"`
	ResponseType      ResponseType    `json:"-"`
}

// Intelligence wraps the perception pipeline for one persona.
type Intelligence struct {
	persona  *config.Persona
	provider llm.Provider // nil runs heuristics only
	rng      *rand.Rand
	logger   *zap.Logger
}

// New builds the perception layer. provider may be nil.
func New(persona *config.Persona, provider llm.Provider, rng *rand.Rand, logger *zap.Logger) *Intelligence {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Intelligence{persona: persona, provider: provider, rng: rng, logger: logger}
}

// Perceive reads a post. The LLM path asks for a JSON object; on any failure
// the heuristic path takes over.
func (i *Intelligence) Perceive(ctx context.Context, text, handle string) *Perception {
	p := i.perceiveLLM(ctx, text, handle)
	if p == nil {
		p = i.perceiveHeuristic(text)
	}
	p.TweetLength = patterns.WeightedLength(text)
	p.ResponseType = i.SampleResponseType(p.TweetLength, p.RelevanceToDomain)
	if len(p.Topics) > 3 {
		p.Topics = p.Topics[:3]
	}
	return p
}

func (i *Intelligence) perceiveLLM(ctx context.Context, text, handle string) *Perception {
	if i.provider == nil {
		return nil
	}
	domain := i.persona.Identity.Domain
	prompt := fmt.Sprintf(`Analyze this post by @%s:

%s

My domain is %q (%s). Respond with only a JSON object:
{"topics": ["up to 3 topics"], "sentiment": "positive|neutral|negative",
"intent": "short intent", "relevance_to_domain": 0.0,
"complexity": "simple|moderate|complex", "quip_category": "agreement|impressed|casual|food_related|skeptical|simple_answer",
"user_profile_hint": "one line about the author", "my_angle": "what I could say about this"}`,
		handle, text, domain.Name, domain.Perspective)

	out, err := i.provider.Generate(ctx, "You analyze social media posts and answer in strict JSON.", prompt)
	if err != nil {
		i.logger.Warn("perception llm call failed, using heuristic", zap.Error(err))
		return nil
	}
	var p Perception
	if err := json.Unmarshal([]byte(extractJSON(out)), &p); err != nil {
		i.logger.Warn("perception output unparseable, using heuristic", zap.Error(err))
		return nil
	}
	if p.Sentiment != store.SentimentPositive && p.Sentiment != store.SentimentNegative {
		p.Sentiment = store.SentimentNeutral
	}
	p.RelevanceToDomain = clamp01(p.RelevanceToDomain)
	return &p
}

var positiveWords = []string{"love", "great", "amazing", "best", "happy", "awesome", "delicious", "excited", "wonderful", "nice"}
var negativeWords = []string{"hate", "awful", "worst", "terrible", "angry", "sad", "disgusting", "annoying", "disappointed", "bad"}

// perceiveHeuristic is the no-LLM fallback: domain keyword hits drive topics
// and relevance, a small lexicon drives sentiment.
func (i *Intelligence) perceiveHeuristic(text string) *Perception {
	lower := strings.ToLower(text)
	domain := i.persona.Identity.Domain

	var topics []string
	for _, kw := range domain.Keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			topics = append(topics, strings.ToLower(kw))
			if len(topics) == 3 {
				break
			}
		}
	}
	relevance := 0.1
	if len(topics) > 0 {
		relevance = clamp01(0.4 + 0.2*float64(len(topics)))
	}

	sentiment := store.SentimentNeutral
	pos, neg := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	if pos > neg {
		sentiment = store.SentimentPositive
	} else if neg > pos {
		sentiment = store.SentimentNegative
	}

	complexity := ComplexitySimple
	if n := patterns.WeightedLength(text); n > 200 {
		complexity = ComplexityComplex
	} else if n > 80 {
		complexity = ComplexityModerate
	}

	intent := "statement"
	if strings.Contains(text, "?") {
		intent = "question"
	}

	return &Perception{
		Topics:            topics,
		Sentiment:         sentiment,
		Intent:            intent,
		RelevanceToDomain: relevance,
		Complexity:        complexity,
		QuipCategory:      "casual",
	}
}

// extractJSON trims everything around the outermost JSON object, tolerating
// markdown fences around model output.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return s
	}
	return s[start : end+1]
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
