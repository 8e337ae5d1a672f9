package patterns

import (
	"testing"
	"time"

	"personad/internal/config"
	"personad/internal/store"
)

func testTracker(t *testing.T) (*Tracker, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	cfg := config.PatternsConfig{
		Signature: []config.SignaturePattern{
			{Literal: "chef's kiss", CooldownPosts: 5},
		},
		Frequent: []config.FrequentPattern{
			{Literal: "honestly", MaxConsecutive: 2},
		},
		Filler: []config.FillerPattern{
			{Literal: "lol", MaxPerPost: 1},
		},
		Contextual: []config.ContextualPattern{
			{Literal: "rip", AvoidContexts: []string{"serious"}},
		},
	}
	return New(cfg, s, nil), s
}

func publishPost(t *testing.T, s *store.Store, id string, at time.Time) {
	t.Helper()
	if err := s.InsertPostingRecord(&store.PostingRecord{
		ID: id, Content: "x", TriggerType: "casual", PostedAt: at,
	}); err != nil {
		t.Fatalf("InsertPostingRecord: %v", err)
	}
}

func TestSignatureCooldownAfterRecord(t *testing.T) {
	tr, s := testTracker(t)
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	// record_usage then immediate check_violations must flag the cooldown.
	publishPost(t, s, "p1", now)
	if err := tr.RecordUsage("that sauce was chef's kiss", "p1"); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	vs, err := tr.CheckViolations("another chef's kiss moment", "")
	if err != nil {
		t.Fatalf("CheckViolations: %v", err)
	}
	if len(vs) != 1 || vs[0].Kind != ViolationSignatureCooldown {
		t.Fatalf("violations = %+v, want one signature_cooldown", vs)
	}
}

func TestSignatureCooldownExpires(t *testing.T) {
	tr, s := testTracker(t)
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	publishPost(t, s, "p1", base)
	if err := tr.RecordUsage("chef's kiss", "p1"); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}
	// Five more posts without the signature satisfy the cooldown.
	for i := 0; i < 5; i++ {
		publishPost(t, s, "px"+string(rune('a'+i)), base.Add(time.Duration(i+1)*time.Hour))
	}
	vs, err := tr.CheckViolations("chef's kiss again", "")
	if err != nil {
		t.Fatalf("CheckViolations: %v", err)
	}
	if len(vs) != 0 {
		t.Errorf("cooldown satisfied, violations = %+v", vs)
	}
}

func TestFrequentConsecutiveCap(t *testing.T) {
	tr, s := testTracker(t)
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		id := []string{"p1", "p2"}[i]
		publishPost(t, s, id, base.Add(time.Duration(i)*time.Hour))
		if err := tr.RecordUsage("honestly great", id); err != nil {
			t.Fatalf("RecordUsage: %v", err)
		}
	}
	vs, err := tr.CheckViolations("honestly though", "")
	if err != nil {
		t.Fatalf("CheckViolations: %v", err)
	}
	if len(vs) != 1 || vs[0].Kind != ViolationConsecutiveUse {
		t.Fatalf("violations = %+v, want consecutive_use", vs)
	}
}

func TestFillerCap(t *testing.T) {
	tr, _ := testTracker(t)

	vs, err := tr.CheckViolations("lol that was lol funny", "")
	if err != nil {
		t.Fatalf("CheckViolations: %v", err)
	}
	if len(vs) != 1 || vs[0].Kind != ViolationFillerCap {
		t.Fatalf("violations = %+v, want filler_cap", vs)
	}
	vs, err = tr.CheckViolations("lol just once", "")
	if err != nil {
		t.Fatalf("CheckViolations: %v", err)
	}
	if len(vs) != 0 {
		t.Errorf("single filler within cap, got %+v", vs)
	}
}

func TestContextualAvoid(t *testing.T) {
	tr, _ := testTracker(t)

	vs, err := tr.CheckViolations("rip to that pan", "serious")
	if err != nil {
		t.Fatalf("CheckViolations: %v", err)
	}
	if len(vs) != 1 || vs[0].Kind != ViolationContextualAvoid {
		t.Fatalf("violations = %+v, want contextual_avoid", vs)
	}
	vs, err = tr.CheckViolations("rip to that pan", "banter")
	if err != nil {
		t.Fatalf("CheckViolations: %v", err)
	}
	if len(vs) != 0 {
		t.Errorf("other contexts are fine, got %+v", vs)
	}
}

func TestForbiddenCharacters(t *testing.T) {
	tr, _ := testTracker(t)

	vs, err := tr.CheckViolations("this is 美味しい", "")
	if err != nil {
		t.Fatalf("CheckViolations: %v", err)
	}
	found := false
	for _, v := range vs {
		if v.Kind == ViolationForbiddenChars {
			found = true
		}
	}
	if !found {
		t.Errorf("CJK text must be flagged, got %+v", vs)
	}
}

func TestFormatViolationsForLLM(t *testing.T) {
	msg := FormatViolationsForLLM([]Violation{
		{Kind: ViolationFillerCap, Literal: "lol", Detail: `"lol" appears 3 times, cap is 1 per post`},
	})
	if msg == "" {
		t.Fatal("expected a rewrite instruction")
	}
	if FormatViolationsForLLM(nil) != "" {
		t.Error("no violations should render empty")
	}
}

func TestWeightedLength(t *testing.T) {
	if got := WeightedLength("abc"); got != 3 {
		t.Errorf("ascii length = %d, want 3", got)
	}
	if got := WeightedLength("한국"); got != 4 {
		t.Errorf("hangul length = %d, want 4", got)
	}
	if got := WeightedLength("a한b"); got != 4 {
		t.Errorf("mixed length = %d, want 4", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("under limit should pass through, got %q", got)
	}
	got := Truncate("hello world this is long", 12)
	if WeightedLength(got) > 12 {
		t.Errorf("truncated to %d weights: %q", WeightedLength(got), got)
	}
	if got[len(got)-len("…"):] != "…" {
		t.Errorf("truncation should end with ellipsis, got %q", got)
	}
}

func TestReviewModeratesExcessivePatterns(t *testing.T) {
	cfg := config.ContentReview{
		Enabled:               true,
		FixExcessivePatterns:  true,
		PatternsToModerate:    []string{"amazing"},
		MaxPatternOccurrences: 1,
	}
	got := Review(cfg, "amazing dish, amazing plating, amazing night")
	if got != "amazing dish, plating, night" {
		t.Errorf("Review = %q", got)
	}

	disabled := config.ContentReview{}
	if got := Review(disabled, "amazing amazing"); got != "amazing amazing" {
		t.Errorf("disabled review must not touch text, got %q", got)
	}
}
