// Package topics picks the next search/posting keyword: a weighted sample
// over several keyword sources with a FIFO cooldown so the agent does not
// circle the same subject, emitted as a platform query string with noise
// exclusions baked in.
package topics

import (
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"
)

// cooldownSize is how many recently emitted keywords are suppressed.
const cooldownSize = 6

// Source names, with their default weights.
const (
	SourceCore        = "core"
	SourceTime        = "time"
	SourceCuriosity   = "curiosity"
	SourceInspiration = "inspiration"
	SourceTrends      = "trends"
)

var defaultWeights = map[string]float64{
	SourceCore:        1.0,
	SourceTime:        1.2,
	SourceCuriosity:   1.8,
	SourceInspiration: 1.0,
	SourceTrends:      1.5,
}

// negativeSuffix excludes promotional noise from platform searches.
const negativeSuffix = ` -giveaway -promo -ad -sale -discount`

// contentFilters restrict results to original posts.
const contentFilters = ` -filter:links -filter:replies`

// Selection is one chosen topic.
type Selection struct {
	Keyword string // raw keyword, recorded in the cooldown FIFO
	Source  string
	Query   string // enriched platform query string
}

// Provider supplies the current keywords for one source.
type Provider func() []string

// Selector samples keywords across sources.
type Selector struct {
	rng    *rand.Rand
	logger *zap.Logger

	sources map[string]Provider
	weights map[string]float64

	cooldown []string // FIFO of last emitted keywords, oldest first

	// fallback is used when every source is empty after cooldown filtering.
	fallback []string
}

// New builds a selector. fallback must not be empty for the cooldown
// guarantee to hold under starvation.
func New(fallback []string, rng *rand.Rand, logger *zap.Logger) *Selector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Selector{
		rng:      rng,
		logger:   logger,
		sources:  make(map[string]Provider),
		weights:  make(map[string]float64),
		fallback: fallback,
	}
}

// Register installs a source. weight <= 0 uses the source's default.
func (s *Selector) Register(name string, weight float64, p Provider) {
	if weight <= 0 {
		weight = defaultWeights[name]
		if weight == 0 {
			weight = 1.0
		}
	}
	s.sources[name] = p
	s.weights[name] = weight
}

type weighted struct {
	keyword string
	source  string
	weight  float64
}

// Pick samples one keyword. Keywords in the cooldown FIFO are never selected
// unless every source is empty after filtering, in which case the fallback
// list is sampled (still preferring non-cooled entries).
func (s *Selector) Pick() Selection {
	blocked := make(map[string]bool, len(s.cooldown))
	for _, k := range s.cooldown {
		blocked[strings.ToLower(k)] = true
	}

	// Stable source order keeps seeded runs reproducible.
	order := []string{SourceCore, SourceTime, SourceCuriosity, SourceInspiration, SourceTrends}
	var pool []weighted
	for _, name := range order {
		p, ok := s.sources[name]
		if !ok {
			continue
		}
		for _, kw := range p() {
			kw = strings.TrimSpace(kw)
			if kw == "" || blocked[strings.ToLower(kw)] {
				continue
			}
			pool = append(pool, weighted{keyword: kw, source: name, weight: s.weights[name]})
		}
	}

	var chosen weighted
	if len(pool) == 0 {
		chosen = s.pickFallback(blocked)
		s.logger.Debug("all sources cooled down, using fallback", zap.String("keyword", chosen.keyword))
	} else {
		total := 0.0
		for _, w := range pool {
			total += w.weight
		}
		r := s.rng.Float64() * total
		chosen = pool[len(pool)-1]
		for _, w := range pool {
			r -= w.weight
			if r < 0 {
				chosen = w
				break
			}
		}
	}

	s.remember(chosen.keyword)
	return Selection{
		Keyword: chosen.keyword,
		Source:  chosen.source,
		Query:   chosen.keyword + negativeSuffix + contentFilters,
	}
}

// pickFallback samples the fallback list, preferring entries outside the
// cooldown when any exist.
func (s *Selector) pickFallback(blocked map[string]bool) weighted {
	var fresh []string
	for _, kw := range s.fallback {
		if !blocked[strings.ToLower(kw)] {
			fresh = append(fresh, kw)
		}
	}
	candidates := fresh
	if len(candidates) == 0 {
		candidates = s.fallback
	}
	if len(candidates) == 0 {
		return weighted{keyword: "general", source: "fallback"}
	}
	return weighted{keyword: candidates[s.rng.Intn(len(candidates))], source: "fallback"}
}

// remember pushes the keyword into the cooldown FIFO.
func (s *Selector) remember(keyword string) {
	s.cooldown = append(s.cooldown, keyword)
	if len(s.cooldown) > cooldownSize {
		s.cooldown = s.cooldown[len(s.cooldown)-cooldownSize:]
	}
}

// Cooldown returns a copy of the current FIFO, oldest first.
func (s *Selector) Cooldown() []string {
	out := make([]string, len(s.cooldown))
	copy(out, s.cooldown)
	return out
}
