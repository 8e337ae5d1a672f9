package journey

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"personad/internal/config"
	"personad/internal/platform"
	"personad/internal/store"
)

// pOtherPost is the chance a post outside the familiar/interesting buckets
// still gets a look.
const pOtherPost = 0.10

// FeedJourney browses the timeline: classify each fetched post as familiar
// (known counterparty), interesting (touches a core keyword), or other, and
// run scenarios in that priority order.
type FeedJourney struct {
	persona  *config.Persona
	client   platform.Client
	store    *store.Store
	scenario *Scenario
	rng      *rand.Rand
	logger   *zap.Logger
}

// NewFeedJourney builds the browsing journey.
func NewFeedJourney(persona *config.Persona, client platform.Client, st *store.Store, sc *Scenario, rng *rand.Rand, logger *zap.Logger) *FeedJourney {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &FeedJourney{persona: persona, client: client, store: st, scenario: sc, rng: rng, logger: logger}
}

// Run executes the feed journey once over the given query. Account-class
// errors propagate; everything else is absorbed per post.
func (j *FeedJourney) Run(ctx context.Context, query string) (*JourneyReport, error) {
	report := &JourneyReport{}

	posts, err := j.client.Search(ctx, query, j.persona.Platform.Fetch.FeedFetch)
	if err != nil {
		if platform.IsAccountError(err) {
			return report, err
		}
		j.logger.Warn("feed fetch failed", zap.String("query", query), zap.Error(err))
		return report, nil
	}
	report.Fetched = len(posts)

	familiar, err := j.store.FamiliarPersons()
	if err != nil {
		return report, err
	}

	var known, interesting, other []platform.Post
	for _, p := range posts {
		switch {
		case familiar[p.AuthorID] != nil:
			known = append(known, p)
		case j.touchesCoreInterest(p.Text):
			interesting = append(interesting, p)
		default:
			other = append(other, p)
		}
	}

	// Familiar authors first, closest first.
	sort.SliceStable(known, func(a, b int) bool {
		return familiar[known[a].AuthorID].Affinity > familiar[known[b].AuthorID].Affinity
	})
	// Then interesting posts by traction.
	sort.SliceStable(interesting, func(a, b int) bool {
		return engagement(interesting[a]) > engagement(interesting[b])
	})

	ordered := append(append([]platform.Post{}, known...), interesting...)
	for _, p := range other {
		if j.rng.Float64() < pOtherPost {
			ordered = append(ordered, p)
		}
	}

	limit := j.persona.Platform.Fetch.ProcessLimit
	if limit <= 0 || limit > len(ordered) {
		limit = len(ordered)
	}
	for _, p := range ordered[:limit] {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		res, err := j.scenario.Run(ctx, p, "feed")
		if err != nil {
			if platform.IsAccountError(err) {
				return report, err
			}
			j.logger.Warn("feed scenario failed", zap.String("post", p.ID), zap.Error(err))
			continue
		}
		report.Processed++
		if res.Replied {
			report.Replied++
		}
		if res.Liked {
			report.Liked++
		}
		if res.Skipped {
			report.Skipped++
		}
	}
	return report, nil
}

// touchesCoreInterest reports whether the text mentions any core or domain
// keyword.
func (j *FeedJourney) touchesCoreInterest(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range j.persona.Identity.CoreKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	for _, kw := range j.persona.Identity.Domain.Keywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// engagement ranks a post by likes plus double-weighted reposts.
func engagement(p platform.Post) int {
	return p.LikeCount + 2*p.RepostNum
}
