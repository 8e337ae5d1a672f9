package journey

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"personad/internal/behavior"
	"personad/internal/config"
	"personad/internal/humanlike"
	"personad/internal/intelligence"
	"personad/internal/llm"
	"personad/internal/memory"
	"personad/internal/patterns"
	"personad/internal/platform"
	"personad/internal/store"
)

// fakeProvider returns canned completions in order, cycling on exhaustion.
type fakeProvider struct {
	outs []string
	i    int
	err  error
}

func (f *fakeProvider) Generate(ctx context.Context, system, prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if len(f.outs) == 0 {
		return "", nil
	}
	out := f.outs[f.i%len(f.outs)]
	f.i++
	return out, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func testPersona() *config.Persona {
	return &config.Persona{
		Identity: config.Identity{
			Name:         "Mina",
			Identity:     "a street-food-obsessed home cook",
			CoreKeywords: []string{"kimchi", "street food"},
			Domain: config.Domain{
				Name:     "food",
				Keywords: []string{"kimchi", "recipe", "fermentation"},
			},
		},
		Behavior: config.Behavior{
			ProbabilityModel: config.ProbabilityModel{
				BaseProbability: 1.0,
				ActionRatios:    config.ActionRatios{Like: 1.0, Repost: 1.0, Comment: 1.0},
			},
			InteractionPatterns: config.InteractionPatterns{
				MoodVolatility: config.MoodVolatility{BaseMood: 0.7},
			},
		},
		Platform: config.PlatformConfig{
			Name: "testnet",
			Fetch: config.FetchConfig{
				NotificationFetch: 20,
				ProcessLimit:      10,
				FeedFetch:         20,
			},
			ResponseTypes: map[string]config.ResponseTypeConfig{
				"normal": {MaxLength: 280},
			},
		},
	}
}

type fixture struct {
	persona  *config.Persona
	fake     *platform.Fake
	store    *store.Store
	scenario *Scenario
	now      time.Time
}

func newFixture(t *testing.T, replyProvider *fakeProvider) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "journey.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	persona := testPersona()
	fake := platform.NewFake()
	now := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

	rng := rand.New(rand.NewSource(7))
	intel := intelligence.New(persona, nil, rng, nil)
	engine := behavior.New(persona.Behavior, false, nil, rng, nil)
	human := humanlike.New(persona.Behavior.HumanLike, rng, nil)
	pool := memory.NewPool(st, nil)
	tracker := patterns.New(persona.Patterns, st, nil)
	judge := NewJudge(persona, nil, nil)

	var provider llm.Provider
	if replyProvider != nil {
		provider = replyProvider
	}
	replies := NewReplyGenerator(persona, provider, intel, tracker, st, nil)

	sc := NewScenario(ScenarioDeps{
		Persona: persona,
		Client:  fake,
		Store:   st,
		Intel:   intel,
		Engine:  engine,
		Human:   human,
		Pool:    pool,
		Tracker: tracker,
		Judge:   judge,
		Replies: replies,
		Now:     func() time.Time { return now },
	})
	return &fixture{persona: persona, fake: fake, store: st, scenario: sc, now: now}
}

func relevantPost(id, author string) platform.Post {
	return platform.Post{
		ID:         id,
		AuthorID:   author,
		AuthorName: "@" + author,
		Text:       "tried a new kimchi recipe today and the fermentation smell is incredible",
	}
}

func TestScenarioActsAndRecords(t *testing.T) {
	f := newFixture(t, &fakeProvider{outs: []string{"that fermentation funk is the best part, how long did you let it go?"}})

	res, err := f.scenario.Run(context.Background(), relevantPost("p1", "alice"), "feed")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Skipped {
		t.Fatalf("score 1.0 should interact, skipped with %q", res.Reason)
	}
	if !res.Liked || !res.Replied {
		t.Errorf("ratios 1.0 should like and reply: %+v", res)
	}

	// The counterparty graduated from stranger and gained affinity.
	person, err := f.store.GetPersonByUserID("alice")
	if err != nil {
		t.Fatalf("person: %v", err)
	}
	if person.Tier != store.PersonAcquaintance {
		t.Errorf("tier = %s, want acquaintance after first interaction", person.Tier)
	}
	if person.Affinity <= 0 {
		t.Error("affinity should have increased")
	}

	// Both the sighting and our reply became episodes.
	saw, err := f.store.RecentEpisodes(store.EpisodeSawPost, 10)
	if err != nil || len(saw) != 1 {
		t.Fatalf("saw_post episodes = %d (%v), want 1", len(saw), err)
	}
	replied, err := f.store.RecentEpisodes(store.EpisodeReplied, 10)
	if err != nil || len(replied) != 1 {
		t.Fatalf("replied episodes = %d (%v), want 1", len(replied), err)
	}
	if !strings.Contains(replied[0].Content, "fermentation") {
		t.Errorf("reply episode should carry our words: %q", replied[0].Content)
	}
}

func TestScenarioSkipRecordsNoAction(t *testing.T) {
	f := newFixture(t, nil)
	f.persona.Behavior.ProbabilityModel.BaseProbability = 0.0

	res, err := f.scenario.Run(context.Background(), relevantPost("p1", "bob"), "feed")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.Skipped {
		t.Fatal("probability 0 must skip")
	}
	if len(f.fake.CallLog()) != 0 {
		t.Errorf("skip should touch nothing: %v", f.fake.CallLog())
	}

	// The sighting is still remembered.
	saw, _ := f.store.RecentEpisodes(store.EpisodeSawPost, 10)
	if len(saw) != 1 {
		t.Errorf("saw_post episodes = %d, want 1 even on skip", len(saw))
	}
}

func TestScenarioPropagatesAccountErrors(t *testing.T) {
	f := newFixture(t, nil)
	f.fake.FailWith = errors.New("403 authorization: account temporarily locked")

	_, err := f.scenario.Run(context.Background(), relevantPost("p1", "carol"), "feed")
	if err == nil {
		t.Fatal("account-class errors must propagate")
	}
	if !platform.IsAccountError(err) {
		t.Errorf("propagated error should stay account-class: %v", err)
	}
}

func TestNotificationPriorityAndDispatch(t *testing.T) {
	f := newFixture(t, &fakeProvider{outs: []string{"haha true, the first batch is always chaos"}})
	post := relevantPost("p1", "dave")

	f.fake.Notifications = []platform.Notification{
		{ID: "n1", Type: platform.NotifFollow, User: platform.User{ID: "u-f", ScreenName: "follower"}},
		{ID: "n2", Type: platform.NotifReply, Post: &post, User: platform.User{ID: "dave"}},
		{ID: "n3", Type: platform.NotifLike, Post: &post, User: platform.User{ID: "u-l", ScreenName: "liker"}},
		{ID: "n4", Type: platform.NotifMention, Post: &post, User: platform.User{ID: "dave"}},
	}

	j := NewNotificationJourney(f.persona.Platform.Fetch, f.fake, f.store, f.scenario, nil,
		func() time.Time { return f.now })
	report, err := j.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Fetched != 4 || report.Processed != 4 {
		t.Errorf("fetched=%d processed=%d, want 4/4", report.Fetched, report.Processed)
	}

	// The reply outranks the mention; the like and follow dispatch no scenario.
	log := f.fake.CallLog()
	var replies int
	for _, c := range log {
		if strings.HasPrefix(c, "reply:") {
			replies++
		}
	}
	if replies == 0 {
		t.Errorf("reply notification should have produced a reply, log=%v", log)
	}

	// The follower is remembered even without a scenario.
	if _, err := f.store.GetPersonByUserID("u-f"); err != nil {
		t.Errorf("follow notification should create a person record: %v", err)
	}

	// A second run is a no-op: every id is in the processed set.
	f.fake.Calls = nil
	report2, err := j.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report2.Processed != 0 {
		t.Errorf("dedup failed, reprocessed %d notifications", report2.Processed)
	}
	if len(f.fake.CallLog()) != 0 {
		t.Errorf("second run acted: %v", f.fake.CallLog())
	}
}

func TestNotificationProcessLimitHonorsPriority(t *testing.T) {
	f := newFixture(t, nil)
	f.persona.Behavior.ProbabilityModel.BaseProbability = 0.0 // observe ordering only
	f.persona.Platform.Fetch.ProcessLimit = 1
	post := relevantPost("p1", "erin")

	f.fake.Notifications = []platform.Notification{
		{ID: "n-follow", Type: platform.NotifFollow, User: platform.User{ID: "u-f"}},
		{ID: "n-reply", Type: platform.NotifReply, Post: &post, User: platform.User{ID: "erin"}},
	}
	j := NewNotificationJourney(f.persona.Platform.Fetch, f.fake, f.store, f.scenario, nil,
		func() time.Time { return f.now })
	if _, err := j.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	// Only the highest-priority id is marked.
	done, _ := f.store.IsNotificationProcessed("n-reply")
	if !done {
		t.Error("reply should be processed first under limit 1")
	}
	pending, _ := f.store.IsNotificationProcessed("n-follow")
	if pending {
		t.Error("follow should wait for the next drain")
	}
}

func TestFeedJourneyClassification(t *testing.T) {
	f := newFixture(t, nil)
	f.persona.Behavior.ProbabilityModel.BaseProbability = 0.0 // classification only
	f.persona.Platform.Fetch.ProcessLimit = 2

	// Promote a known counterparty to familiar.
	person, err := f.store.GetOrCreatePerson("friend-1", "friend", f.now)
	if err != nil {
		t.Fatalf("person: %v", err)
	}
	person.Tier = store.PersonFamiliar
	person.Affinity = 0.9
	if err := f.store.UpdatePerson(person); err != nil {
		t.Fatalf("update: %v", err)
	}

	f.fake.AddPost(platform.Post{ID: "f1", AuthorID: "friend-1", AuthorName: "@friend", Text: "boring errand day"})
	f.fake.AddPost(platform.Post{ID: "i1", AuthorID: "x1", AuthorName: "@x1", Text: "best kimchi spot downtown", LikeCount: 50})
	f.fake.AddPost(platform.Post{ID: "o1", AuthorID: "x2", AuthorName: "@x2", Text: "stock market update"})

	j := NewFeedJourney(f.persona, f.fake, f.store, f.scenario, rand.New(rand.NewSource(1)), nil)
	report, err := j.Run(context.Background(), "kimchi")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Fetched != 3 {
		t.Fatalf("fetched = %d, want 3", report.Fetched)
	}
	// Limit 2 covers the familiar author and the interesting post; the
	// off-domain post only gets in by a 10% roll and never ahead of them.
	if report.Processed != 2 {
		t.Errorf("processed = %d, want the familiar + interesting pair", report.Processed)
	}

	// Both processed posts were at least seen.
	saw, _ := f.store.RecentEpisodes(store.EpisodeSawPost, 10)
	if len(saw) != 2 {
		t.Errorf("saw_post episodes = %d, want 2", len(saw))
	}
}

func TestReplyNoveltyRegeneration(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "novel.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	// Seed a recent reply the first draft will collide with.
	prev := "that kimchi looks absolutely incredible honestly"
	if err := st.InsertEpisode(&store.Episode{
		Type: store.EpisodeReplied, Content: prev, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	persona := testPersona()
	provider := &fakeProvider{outs: []string{
		prev, // verbatim repeat, must be rejected
		"ooh what cabbage did you use, napa or the pointed kind?",
	}}
	intel := intelligence.New(persona, nil, rand.New(rand.NewSource(1)), nil)
	tracker := patterns.New(persona.Patterns, st, nil)
	g := NewReplyGenerator(persona, provider, intel, tracker, st, nil)

	out, err := g.Generate(context.Background(), relevantPost("p1", "zoe"), nil, intelligence.ResponseNormal)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out == prev {
		t.Errorf("stale draft shipped verbatim: %q", out)
	}
	if provider.i < 2 {
		t.Errorf("expected a regeneration, provider called %d times", provider.i)
	}
}

func TestReplyTruncatedToTypeLimit(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "trunc.db"), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	persona := testPersona()
	persona.Platform.ResponseTypes["normal"] = config.ResponseTypeConfig{MaxLength: 20}
	provider := &fakeProvider{outs: []string{strings.Repeat("spicy ", 30)}}
	intel := intelligence.New(persona, nil, rand.New(rand.NewSource(1)), nil)
	tracker := patterns.New(persona.Patterns, st, nil)
	g := NewReplyGenerator(persona, provider, intel, tracker, st, nil)

	out, err := g.Generate(context.Background(), relevantPost("p1", "kim"), nil, intelligence.ResponseNormal)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if patterns.WeightedLength(out) > 20 {
		t.Errorf("reply length %d exceeds the type cap", patterns.WeightedLength(out))
	}
}
