package intelligence

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"personad/internal/config"
	"personad/internal/llm"
	"personad/internal/store"
)

func testPersona() *config.Persona {
	return &config.Persona{
		Identity: config.Identity{
			Name: "tester",
			Domain: config.Domain{
				Name:     "cooking",
				Keywords: []string{"braised", "kimchi", "sourdough"},
			},
		},
		Speech: config.SpeechStyle{
			QuipPool: map[string][]string{
				"agreement": {"so true", "exactly"},
				"casual":    {"ha", "nice one"},
			},
		},
		Behavior: config.Behavior{
			ResponseStrategy: config.ResponseStrategy{
				BaseProbabilities: map[string]float64{
					"quip": 0.25, "short": 0.35, "normal": 0.25, "long": 0.10, "personal": 0.05,
				},
				TweetLengthModifiers: config.TweetLengthModifiers{
					ShortThreshold: 40,
					Overrides:      map[string]float64{"quip": 0.7, "short": 0.3, "normal": 0, "long": 0, "personal": 0},
				},
				DomainModifiers: config.DomainModifiers{
					HighRelevance: 0.7,
					Adjustments:   map[string]float64{"long": 0.2, "personal": 0.1, "quip": -0.2},
				},
			},
		},
	}
}

// fakeProvider returns a canned response or error.
type fakeProvider struct {
	out string
	err error
}

func (f *fakeProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	return f.out, f.err
}
func (f *fakeProvider) Name() string { return "fake" }

func newIntel(provider llm.Provider) *Intelligence {
	return New(testPersona(), provider, rand.New(rand.NewSource(1)), nil)
}

func TestHeuristicPerception(t *testing.T) {
	i := newIntel(nil)

	p := i.Perceive(context.Background(), "I love this braised pork with kimchi so much", "@foodie")
	if len(p.Topics) == 0 || p.Topics[0] != "braised" {
		t.Errorf("topics = %v, want braised first", p.Topics)
	}
	if p.Sentiment != store.SentimentPositive {
		t.Errorf("sentiment = %s, want positive", p.Sentiment)
	}
	if p.RelevanceToDomain <= 0.4 {
		t.Errorf("two keyword hits should raise relevance, got %v", p.RelevanceToDomain)
	}
	if p.TweetLength == 0 {
		t.Error("tweet length must be set")
	}
	if p.ResponseType == "" {
		t.Error("response type must be sampled")
	}
}

func TestHeuristicNegativeSentiment(t *testing.T) {
	i := newIntel(nil)
	p := i.Perceive(context.Background(), "this is the worst, terrible stuff", "@x")
	if p.Sentiment != store.SentimentNegative {
		t.Errorf("sentiment = %s, want negative", p.Sentiment)
	}
}

func TestLLMPerception(t *testing.T) {
	i := newIntel(&fakeProvider{out: "```json\n" + `{"topics":["kimchi","fermentation"],"sentiment":"positive","intent":"sharing","relevance_to_domain":0.9,"complexity":"moderate","quip_category":"impressed","user_profile_hint":"home cook","my_angle":"fermentation timing matters"}` + "\n```"})

	p := i.Perceive(context.Background(), "three week kimchi batch finally done", "@cook")
	if p.Topics[0] != "kimchi" {
		t.Errorf("topics = %v", p.Topics)
	}
	if p.RelevanceToDomain != 0.9 {
		t.Errorf("relevance = %v, want 0.9 from llm", p.RelevanceToDomain)
	}
	if p.MyAngle == "" {
		t.Error("my_angle should pass through")
	}
}

func TestLLMFailureFallsBack(t *testing.T) {
	i := newIntel(&fakeProvider{err: errors.New("503")})
	p := i.Perceive(context.Background(), "braised beef tonight", "@x")
	if len(p.Topics) == 0 {
		t.Error("heuristic fallback should still find topics")
	}

	i = newIntel(&fakeProvider{out: "sorry, I can't do that"})
	p = i.Perceive(context.Background(), "braised beef tonight", "@x")
	if len(p.Topics) == 0 {
		t.Error("unparseable output should fall back to heuristic")
	}
}

func TestShortTweetOverridesResponseType(t *testing.T) {
	i := newIntel(nil)

	// Below the threshold only quip/short carry weight; over many samples
	// nothing else should ever surface.
	for n := 0; n < 200; n++ {
		rt := i.SampleResponseType(10, 0.1)
		if rt != ResponseQuip && rt != ResponseShort {
			t.Fatalf("short tweet sampled %s, want quip or short", rt)
		}
	}
}

func TestHighRelevanceBoostsLong(t *testing.T) {
	i := newIntel(nil)

	longCountHigh, longCountLow := 0, 0
	for n := 0; n < 2000; n++ {
		if i.SampleResponseType(100, 0.9) == ResponseLong {
			longCountHigh++
		}
		if i.SampleResponseType(100, 0.1) == ResponseLong {
			longCountLow++
		}
	}
	if longCountHigh <= longCountLow {
		t.Errorf("high relevance should boost long: high=%d low=%d", longCountHigh, longCountLow)
	}
}

func TestPickQuip(t *testing.T) {
	i := newIntel(nil)

	q := i.PickQuip("agreement")
	if q != "so true" && q != "exactly" {
		t.Errorf("quip = %q, want from agreement pool", q)
	}
	q = i.PickQuip("unknown_category")
	if q != "ha" && q != "nice one" {
		t.Errorf("unknown category should fall back to casual, got %q", q)
	}
}
