package memory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"personad/internal/store"
)

func newTestPool(t *testing.T) (*Pool, *store.Store, time.Time) {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "memory.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	return NewPool(st, nil), st, now
}

func episode(topic, content string, impact float64, now time.Time) *store.Episode {
	return &store.Episode{
		Type:            store.EpisodeSawPost,
		Content:         content,
		Topics:          []string{topic},
		EmotionalImpact: impact,
		CreatedAt:       now,
	}
}

func TestCreateFromEpisodeUrgency(t *testing.T) {
	pool, st, now := newTestPool(t)
	ctx := context.Background()

	ep := episode("Kimchi", "a jar of kimchi at peak funk", 0.9, now)
	if err := st.InsertEpisode(ep); err != nil {
		t.Fatalf("insert episode: %v", err)
	}

	flash, err := pool.CreateFromEpisode(ctx, ep, "peak funk is a real date", UrgencyFlash, now)
	if err != nil {
		t.Fatalf("create flash: %v", err)
	}
	if flash.Tier != store.TierShortTerm || flash.Strength != 0.8 {
		t.Errorf("flash = (%s, %v), want (short_term, 0.8)", flash.Tier, flash.Strength)
	}
	if flash.Topic != "kimchi" {
		t.Errorf("topic not normalised: %q", flash.Topic)
	}

	ep2 := episode("noodles", "hand pulled noodles", 0.3, now)
	brewing, err := pool.CreateFromEpisode(ctx, ep2, "", UrgencyBrewing, now)
	if err != nil {
		t.Fatalf("create brewing: %v", err)
	}
	if brewing.Tier != store.TierEphemeral || brewing.Strength != 0.5 {
		t.Errorf("brewing = (%s, %v), want (ephemeral, 0.5)", brewing.Tier, brewing.Strength)
	}
}

func TestCreateFromEpisodeDedupesByTopic(t *testing.T) {
	pool, _, now := newTestPool(t)
	ctx := context.Background()

	first, err := pool.CreateFromEpisode(ctx, episode("kimchi", "first sighting", 0.4, now), "", UrgencyBrewing, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := pool.CreateFromEpisode(ctx, episode("KIMCHI ", "second sighting", 0.4, now.Add(time.Hour)), "", UrgencyBrewing, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("same topic should reinforce, not duplicate")
	}
	if second.ReinforcementCount != 1 {
		t.Errorf("reinforcement count = %d, want 1", second.ReinforcementCount)
	}
	if second.Strength < 0.59 || second.Strength > 0.61 {
		t.Errorf("strength = %v, want 0.5 + 0.10", second.Strength)
	}
}

func TestApplyEventEffects(t *testing.T) {
	cases := []struct {
		ev           Event
		wantStrength float64
		wantReinf    int
	}{
		{EventSimilarContentSeen, 0.60, 1},
		{EventSameTopicSearched, 0.55, 1},
		{EventAccessed, 0.55, 0},
	}
	for _, tc := range cases {
		t.Run(string(tc.ev), func(t *testing.T) {
			pool, _, now := newTestPool(t)
			ctx := context.Background()
			insp, err := pool.CreateFromEpisode(ctx, episode("soup", "cold soup season", 0.2, now), "", UrgencyBrewing, now)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			got, err := pool.ApplyEvent(ctx, insp.ID, tc.ev, now.Add(time.Hour))
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if got.Strength < tc.wantStrength-0.001 || got.Strength > tc.wantStrength+0.001 {
				t.Errorf("strength = %v, want %v", got.Strength, tc.wantStrength)
			}
			if got.ReinforcementCount != tc.wantReinf {
				t.Errorf("reinforcements = %d, want %d", got.ReinforcementCount, tc.wantReinf)
			}
		})
	}
}

func TestPostedAboutJumpsToLongTerm(t *testing.T) {
	pool, _, now := newTestPool(t)
	ctx := context.Background()

	insp, err := pool.CreateFromEpisode(ctx, episode("soup", "cold soup season", 0.2, now), "", UrgencyBrewing, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := pool.ApplyEvent(ctx, insp.ID, EventPostedAbout, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Tier != store.TierLongTerm {
		t.Errorf("tier = %s, posting about an idea should land it in long_term", got.Tier)
	}
	if got.ReinforcementCount != 3 {
		t.Errorf("reinforcements = %d, want 3", got.ReinforcementCount)
	}
}

func TestStrengthClampedAtOne(t *testing.T) {
	pool, st, now := newTestPool(t)
	ctx := context.Background()

	insp := &store.Inspiration{
		ID: "insp-max", Topic: "kimchi", TriggerContent: "kimchi",
		Tier: store.TierLongTerm, Strength: 0.95, CreatedAt: now,
	}
	if err := st.InsertInspiration(insp); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err := pool.ApplyEvent(ctx, insp.ID, EventPostedAbout, now)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Strength != 1.0 {
		t.Errorf("strength = %v, want clamped to 1.0", got.Strength)
	}
}

func TestOnTopicSearchedUnknownTopicIsNoop(t *testing.T) {
	pool, _, now := newTestPool(t)
	if err := pool.OnTopicSearched(context.Background(), "never seen", now); err != nil {
		t.Fatalf("unknown topic should be a no-op, got %v", err)
	}
}

func TestOnPostedMarksUsed(t *testing.T) {
	pool, st, now := newTestPool(t)
	ctx := context.Background()

	insp, err := pool.CreateFromEpisode(ctx, episode("soup", "cold soup season", 0.2, now), "", UrgencyBrewing, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := pool.OnPosted(ctx, insp.ID, now.Add(time.Hour)); err != nil {
		t.Fatalf("on posted: %v", err)
	}
	got, err := st.GetInspiration(insp.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UsedCount != 1 || got.LastUsedAt.IsZero() {
		t.Errorf("used = (%d, %v), want (1, set)", got.UsedCount, got.LastUsedAt)
	}
}

func TestCrystalliseExactlyOnce(t *testing.T) {
	pool, st, now := newTestPool(t)
	ctx := context.Background()

	insp := &store.Inspiration{
		ID: "insp-core", Topic: "fermentation", TriggerContent: "fermentation notes",
		MyAngle: "i think every kitchen needs a crock", Tier: store.TierLongTerm,
		Strength: 0.9, ReinforcementCount: 9, CreatedAt: now,
	}
	if err := st.InsertInspiration(insp); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := pool.ApplyEvent(ctx, insp.ID, EventSimilarContentSeen, now)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got.Tier != store.TierCore {
		t.Fatalf("tier = %s, want core at 10 reinforcements", got.Tier)
	}

	// Further events must not mint more core memories.
	for i := 0; i < 3; i++ {
		if _, err := pool.ApplyEvent(ctx, insp.ID, EventSimilarContentSeen, now.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}
	cores, err := st.CoreMemories()
	if err != nil {
		t.Fatalf("core memories: %v", err)
	}
	if len(cores) != 1 {
		t.Fatalf("core memories = %d, want 1", len(cores))
	}
	if cores[0].Type != store.CoreOpinion {
		t.Errorf("type = %s, opinionated angle should classify as opinion", cores[0].Type)
	}
	if cores[0].FormedFrom != insp.ID {
		t.Errorf("formed from = %s, want %s", cores[0].FormedFrom, insp.ID)
	}
}

func TestOnContentSeenReinforcesSimilar(t *testing.T) {
	pool, st, now := newTestPool(t)
	ctx := context.Background()

	insp, err := pool.CreateFromEpisode(ctx, episode("kimchi", "kimchi fermentation timing", 0.5, now), "", UrgencyFlash, now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Weak exposure reinforces without proposing a flash.
	flash, err := pool.OnContentSeen(ctx, "another kimchi thread", 0.4, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("on content seen: %v", err)
	}
	if flash != nil {
		t.Error("mild content should not propose a flash")
	}

	// A hit above both bars returns the candidate.
	flash, err = pool.OnContentSeen(ctx, "kimchi stew changed my week", 0.9, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("on content seen: %v", err)
	}
	if flash == nil || flash.Inspiration.ID != insp.ID {
		t.Fatalf("flash = %+v, want candidate %s", flash, insp.ID)
	}
	got, _ := st.GetInspiration(insp.ID)
	if got.ReinforcementCount != 2 {
		t.Errorf("reinforcements = %d, want one per exposure", got.ReinforcementCount)
	}
}
