package store

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInspirationRoundTrip(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	insp := &Inspiration{
		ID:              "i1",
		Topic:           "retro gaming",
		TriggerContent:  "someone posted about CRT shaders",
		MyAngle:         "nothing beats the real glass",
		Tier:            TierShortTerm,
		Strength:        0.8,
		EmotionalImpact: 0.9,
		CreatedAt:       now,
	}
	if err := s.InsertInspiration(insp); err != nil {
		t.Fatalf("InsertInspiration: %v", err)
	}

	got, err := s.GetInspiration("i1")
	if err != nil {
		t.Fatalf("GetInspiration: %v", err)
	}
	if got.Topic != "retro gaming" || got.Tier != TierShortTerm || got.Strength != 0.8 {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.LastReinforcedAt.Equal(now) {
		t.Errorf("LastReinforcedAt not defaulted to CreatedAt: %v", got.LastReinforcedAt)
	}

	if _, err := s.GetInspiration("missing"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReinforceClampsAtOne(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	insp := &Inspiration{ID: "i1", Topic: "x", Tier: TierEphemeral, Strength: 0.95}
	if err := s.InsertInspiration(insp); err != nil {
		t.Fatalf("InsertInspiration: %v", err)
	}

	got, err := s.Reinforce("i1", 0.30, 3, now)
	if err != nil {
		t.Fatalf("Reinforce: %v", err)
	}
	if got.Strength != 1.0 {
		t.Errorf("strength = %v, want clamp at 1.0", got.Strength)
	}
	if got.ReinforcementCount != 3 {
		t.Errorf("reinforcement_count = %d, want 3", got.ReinforcementCount)
	}
	if !got.LastReinforcedAt.Equal(now.UTC().Truncate(0)) && got.LastReinforcedAt.Unix() != now.Unix() {
		t.Errorf("last_reinforced_at not stamped: %v", got.LastReinforcedAt)
	}

	if _, err := s.Reinforce("missing", 0.1, 1, now); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReadyInspirations(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	seed := []*Inspiration{
		{ID: "ready-strong", Topic: "a", Tier: TierShortTerm, Strength: 0.9,
			CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "ready-weak", Topic: "b", Tier: TierLongTerm, Strength: 0.65,
			CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "too-weak", Topic: "c", Tier: TierShortTerm, Strength: 0.3,
			CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "too-young", Topic: "d", Tier: TierShortTerm, Strength: 0.9,
			CreatedAt: now.Add(-1 * time.Hour)},
		{ID: "wrong-tier", Topic: "e", Tier: TierEphemeral, Strength: 0.9,
			CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "on-cooldown", Topic: "f", Tier: TierShortTerm, Strength: 0.95,
			CreatedAt: now.Add(-48 * time.Hour), UsedCount: 1, LastUsedAt: now.Add(-2 * time.Hour)},
	}
	for _, insp := range seed {
		if err := s.InsertInspiration(insp); err != nil {
			t.Fatalf("seed %s: %v", insp.ID, err)
		}
	}

	got, err := s.ReadyInspirations(ReadyFilter{
		MinStrength:     0.6,
		Tiers:           []Tier{TierShortTerm, TierLongTerm, TierCore},
		MaturationHours: 24,
		UsedCooldown:    72 * time.Hour,
	}, now)
	if err != nil {
		t.Fatalf("ReadyInspirations: %v", err)
	}

	if len(got) != 2 {
		ids := make([]string, len(got))
		for i, g := range got {
			ids[i] = g.ID
		}
		t.Fatalf("got %d ready %v, want 2", len(got), ids)
	}
	if got[0].ID != "ready-strong" || got[1].ID != "ready-weak" {
		t.Errorf("wrong order: %s, %s", got[0].ID, got[1].ID)
	}
}

func TestSetInspirationTier(t *testing.T) {
	s := openTestStore(t)

	insp := &Inspiration{ID: "i1", Topic: "x", Tier: TierEphemeral, Strength: 0.4}
	if err := s.InsertInspiration(insp); err != nil {
		t.Fatalf("InsertInspiration: %v", err)
	}
	if err := s.SetInspirationTier("i1", TierShortTerm, 0.35); err != nil {
		t.Fatalf("SetInspirationTier: %v", err)
	}

	got, err := s.GetInspiration("i1")
	if err != nil {
		t.Fatalf("GetInspiration: %v", err)
	}
	if got.Tier != TierShortTerm || got.Strength != 0.35 {
		t.Errorf("tier transition not applied: tier=%s strength=%v", got.Tier, got.Strength)
	}

	if err := s.SetInspirationTier("missing", TierCore, 1.0); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPersonTierMonotonic(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	p, err := s.GetOrCreatePerson("u1", "alice", now)
	if err != nil {
		t.Fatalf("GetOrCreatePerson: %v", err)
	}
	if p.Tier != PersonStranger {
		t.Fatalf("new person tier = %s, want stranger", p.Tier)
	}

	p.Tier = PersonFamiliar
	if err := s.UpdatePerson(p); err != nil {
		t.Fatalf("UpdatePerson upgrade: %v", err)
	}

	// A stale writer trying to downgrade must lose.
	p.Tier = PersonAcquaintance
	if err := s.UpdatePerson(p); err != nil {
		t.Fatalf("UpdatePerson downgrade: %v", err)
	}
	got, err := s.GetPersonByUserID("u1")
	if err != nil {
		t.Fatalf("GetPersonByUserID: %v", err)
	}
	if got.Tier != PersonFamiliar {
		t.Errorf("tier = %s after downgrade attempt, want familiar", got.Tier)
	}

	again, err := s.GetOrCreatePerson("u1", "alice", now)
	if err != nil {
		t.Fatalf("GetOrCreatePerson again: %v", err)
	}
	if again.ID != p.ID {
		t.Errorf("second GetOrCreate created a new person")
	}
}

func TestConversationLifecycle(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	c, err := s.GetOrCreateConversation("p1", "twitter", "post1", "reply", "coffee", now)
	if err != nil {
		t.Fatalf("GetOrCreateConversation: %v", err)
	}
	if c.State != ConversationOngoing || c.TurnCount != 0 {
		t.Fatalf("new conversation state: %+v", c)
	}

	same, err := s.GetOrCreateConversation("p1", "twitter", "post1", "reply", "coffee", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second GetOrCreate: %v", err)
	}
	if same.ID != c.ID {
		t.Errorf("ongoing thread not reused")
	}

	if err := s.AdvanceConversation(c.ID, now.Add(2*time.Minute)); err != nil {
		t.Fatalf("AdvanceConversation: %v", err)
	}
	if err := s.ConcludeConversation(c.ID, "talked about coffee", now.Add(3*time.Minute)); err != nil {
		t.Fatalf("ConcludeConversation: %v", err)
	}

	fresh, err := s.GetOrCreateConversation("p1", "twitter", "post1", "reply", "coffee", now.Add(4*time.Minute))
	if err != nil {
		t.Fatalf("GetOrCreate after conclude: %v", err)
	}
	if fresh.ID == c.ID {
		t.Errorf("concluded thread was reused")
	}

	n, err := s.CountConversationsByPerson("p1")
	if err != nil {
		t.Fatalf("CountConversationsByPerson: %v", err)
	}
	if n != 2 {
		t.Errorf("conversation count = %d, want 2", n)
	}
}

func TestDailyCounters(t *testing.T) {
	s := openTestStore(t)
	day := time.Date(2026, 8, 1, 23, 59, 0, 0, time.UTC)

	for i := 1; i <= 3; i++ {
		n, err := s.IncrementCounter("actions", day)
		if err != nil {
			t.Fatalf("IncrementCounter: %v", err)
		}
		if n != i {
			t.Errorf("counter = %d, want %d", n, i)
		}
	}

	// Next day starts fresh.
	n, err := s.GetCounter("actions", day.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("GetCounter: %v", err)
	}
	if n != 0 {
		t.Errorf("next-day counter = %d, want 0", n)
	}
}

func TestKnowledgeExpiry(t *testing.T) {
	s := openTestStore(t)
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	k := &KnowledgeEntry{
		Keyword:   "new console",
		Summary:   "announcement roundup",
		Relevance: 0.8,
		ExpiresAt: now.Add(24 * time.Hour),
	}
	if err := s.UpsertKnowledge(k); err != nil {
		t.Fatalf("UpsertKnowledge: %v", err)
	}

	if _, err := s.GetFreshKnowledge("new console", now); err != nil {
		t.Fatalf("GetFreshKnowledge before expiry: %v", err)
	}
	if _, err := s.GetFreshKnowledge("new console", now.Add(25*time.Hour)); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after expiry, got %v", err)
	}

	pruned, err := s.PruneExpiredKnowledge(now.Add(25 * time.Hour))
	if err != nil {
		t.Fatalf("PruneExpiredKnowledge: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
}

func TestNotificationDedup(t *testing.T) {
	s := openTestStore(t)
	now := time.Now()

	seen, err := s.IsNotificationProcessed("n1")
	if err != nil {
		t.Fatalf("IsNotificationProcessed: %v", err)
	}
	if seen {
		t.Fatal("fresh id reported processed")
	}

	if err := s.MarkNotificationProcessed("n1", now); err != nil {
		t.Fatalf("MarkNotificationProcessed: %v", err)
	}
	// Idempotent re-mark.
	if err := s.MarkNotificationProcessed("n1", now); err != nil {
		t.Fatalf("re-mark: %v", err)
	}

	seen, err = s.IsNotificationProcessed("n1")
	if err != nil {
		t.Fatalf("IsNotificationProcessed: %v", err)
	}
	if !seen {
		t.Error("marked id not reported processed")
	}
}

func TestCompactEpisodes(t *testing.T) {
	s := openTestStore(t)
	old := time.Date(2026, 7, 1, 10, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	eps := []*Episode{
		{ID: "e1", Type: EpisodeSawPost, Topics: []string{"coffee"}, CreatedAt: old},
		{ID: "e2", Type: EpisodeSawPost, Topics: []string{"coffee", "tea"}, CreatedAt: old.Add(time.Hour)},
		{ID: "e3", Type: EpisodeReplied, Topics: []string{"games"}, CreatedAt: old},
		{ID: "e4", Type: EpisodeSawPost, Topics: []string{"games"}, CreatedAt: recent},
	}
	for _, ep := range eps {
		if err := s.InsertEpisode(ep); err != nil {
			t.Fatalf("InsertEpisode %s: %v", ep.ID, err)
		}
	}

	n, err := s.CompactEpisodes(time.Date(2026, 7, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CompactEpisodes: %v", err)
	}
	if n != 3 {
		t.Errorf("compacted = %d, want 3", n)
	}

	remaining, err := s.RecentEpisodes("", 10)
	if err != nil {
		t.Fatalf("RecentEpisodes: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "e4" {
		t.Errorf("remaining episodes wrong: %+v", remaining)
	}
}

func TestPostingHistory(t *testing.T) {
	s := openTestStore(t)
	day := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{day, day.Add(time.Hour), day.Add(26 * time.Hour)} {
		pr := &PostingRecord{Content: "post", TriggerType: "ready", PostedAt: at}
		if err := s.InsertPostingRecord(pr); err != nil {
			t.Fatalf("InsertPostingRecord %d: %v", i, err)
		}
	}

	n, err := s.CountPostsOnDay(day)
	if err != nil {
		t.Fatalf("CountPostsOnDay: %v", err)
	}
	if n != 2 {
		t.Errorf("posts on day = %d, want 2", n)
	}

	last, err := s.LastPostTime()
	if err != nil {
		t.Fatalf("LastPostTime: %v", err)
	}
	if !last.Equal(day.Add(26 * time.Hour)) {
		t.Errorf("last post = %v", last)
	}
}

func TestConsecutivePostsWithLiteral(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	// Three posts, the newest two containing the literal.
	posts := []struct {
		id      string
		literal bool
	}{{"p1", true}, {"p2", true}, {"p3", false}}
	for i, p := range posts {
		at := base.Add(time.Duration(len(posts)-i) * time.Hour) // p1 newest
		if err := s.InsertPostingRecord(&PostingRecord{ID: p.id, Content: "x", PostedAt: at}); err != nil {
			t.Fatalf("InsertPostingRecord: %v", err)
		}
		if p.literal {
			if err := s.InsertPatternUsage(&PatternUsage{
				PatternType: "signature", Literal: "honestly", PostID: p.id, UsedAt: at,
			}); err != nil {
				t.Fatalf("InsertPatternUsage: %v", err)
			}
		}
	}

	run, err := s.ConsecutivePostsWithLiteral("honestly", 10)
	if err != nil {
		t.Fatalf("ConsecutivePostsWithLiteral: %v", err)
	}
	if run != 2 {
		t.Errorf("run = %d, want 2", run)
	}

	since, err := s.PostsSinceLastUse("never-used")
	if err != nil {
		t.Fatalf("PostsSinceLastUse: %v", err)
	}
	if since != -1 {
		t.Errorf("PostsSinceLastUse(never-used) = %d, want -1", since)
	}
}
