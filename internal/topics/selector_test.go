package topics

import (
	"math/rand"
	"strings"
	"testing"
)

func fixed(keywords ...string) Provider {
	return func() []string { return keywords }
}

func TestCooldownGuarantee(t *testing.T) {
	s := New([]string{"fallback-topic"}, rand.New(rand.NewSource(1)), nil)
	s.Register(SourceCore, 0, fixed("a", "b", "c", "d", "e", "f", "g", "h"))

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		sel := s.Pick()
		cooled := s.Cooldown()
		// The FIFO holds the pick itself at the tail; everything before it
		// must not equal the pick from the previous rounds' guarantee.
		for _, k := range cooled[:len(cooled)-1] {
			if k == sel.Keyword {
				t.Fatalf("pick %q was in the cooldown FIFO %v", sel.Keyword, cooled)
			}
		}
		seen[sel.Keyword] = true
	}
	if len(seen) < 7 {
		t.Errorf("expected rotation across keywords, saw only %v", seen)
	}
}

func TestFallbackWhenAllCooled(t *testing.T) {
	s := New([]string{"evergreen"}, rand.New(rand.NewSource(1)), nil)
	s.Register(SourceCore, 0, fixed("only"))

	first := s.Pick()
	if first.Keyword != "only" {
		t.Fatalf("first pick = %q, want only", first.Keyword)
	}
	second := s.Pick()
	if second.Keyword != "evergreen" || second.Source != "fallback" {
		t.Errorf("cooled-out pick = %+v, want fallback evergreen", second)
	}
}

func TestWeightedSampling(t *testing.T) {
	s := New([]string{"fb"}, rand.New(rand.NewSource(7)), nil)
	s.Register(SourceCore, 1.0, fixed("core-kw"))
	s.Register(SourceCuriosity, 100.0, fixed("curious-kw"))

	curious := 0
	for i := 0; i < 100; i++ {
		s.cooldown = nil // isolate the weighting from the cooldown
		if s.Pick().Source == SourceCuriosity {
			curious++
		}
	}
	if curious < 90 {
		t.Errorf("curiosity weight 100 vs 1 picked only %d/100", curious)
	}
}

func TestQueryEnrichment(t *testing.T) {
	s := New(nil, rand.New(rand.NewSource(1)), nil)
	s.Register(SourceTrends, 0, fixed("street food"))

	sel := s.Pick()
	if !strings.HasPrefix(sel.Query, "street food") {
		t.Errorf("query should start with the keyword: %q", sel.Query)
	}
	for _, frag := range []string{"-giveaway", "-filter:links", "-filter:replies"} {
		if !strings.Contains(sel.Query, frag) {
			t.Errorf("query missing %q: %q", frag, sel.Query)
		}
	}
	if sel.Keyword != "street food" {
		t.Errorf("raw keyword should stay clean: %q", sel.Keyword)
	}
}

func TestEmptySourcesUseFallback(t *testing.T) {
	s := New([]string{"x", "y"}, rand.New(rand.NewSource(1)), nil)
	sel := s.Pick()
	if sel.Source != "fallback" {
		t.Errorf("no sources registered, want fallback, got %+v", sel)
	}
}
