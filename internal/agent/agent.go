// Package agent owns the session loop: one long-running cooperative loop per
// persona that consults the scheduler, picks a task, runs journeys or posts,
// consolidates memory every few sessions, and drains the follow queue. All
// component state lives on the Agent so nothing is process-global.
package agent

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"personad/internal/behavior"
	"personad/internal/config"
	"personad/internal/embedding"
	"personad/internal/follow"
	"personad/internal/humanlike"
	"personad/internal/intelligence"
	"personad/internal/journey"
	"personad/internal/llm"
	"personad/internal/logging"
	"personad/internal/memory"
	"personad/internal/mode"
	"personad/internal/patterns"
	"personad/internal/platform"
	"personad/internal/schedule"
	"personad/internal/store"
	"personad/internal/topics"
	"personad/internal/trigger"
)

// consolidationInterval spaces full memory sweeps.
const consolidationInterval = 6 * time.Hour

// episodeRetention is how long raw episodes are kept before compaction.
const episodeRetention = 7 * 24 * time.Hour

// Options wires an agent. Client and Store are required; Provider and
// Embedder may be nil (heuristic perception, keyword vector search).
type Options struct {
	Persona  *config.Persona
	Client   platform.Client
	Store    *store.Store
	Provider llm.Provider
	Embedder embedding.Engine
	Mode     mode.Name
	Logger   *zap.Logger
	Rand     *rand.Rand
	Now      func() time.Time

	// FallbackLogPath is the append-only posted-content log. Empty disables it.
	FallbackLogPath string
}

// Agent is one persona's full component graph plus the loop state.
type Agent struct {
	persona *config.Persona
	client  platform.Client
	store   *store.Store
	logger  *zap.Logger
	rng     *rand.Rand
	now     func() time.Time

	sched    *schedule.Scheduler
	human    *humanlike.Controller
	modes    *mode.Manager
	engine   *behavior.Engine
	intel    *intelligence.Intelligence
	topics   *topics.Selector
	tracker  *patterns.Tracker
	pool     *memory.Pool
	consol   *memory.Consolidator
	triggers *trigger.Engine
	follows  *follow.Engine
	scenario *journey.Scenario
	notifs   *journey.NotificationJourney
	feed     *journey.FeedJourney
	provider llm.Provider

	sessionCount int
	fallbackLog  string
	stopRequest  chan struct{}
}

// New assembles the component graph.
func New(opts Options) (*Agent, error) {
	if opts.Persona == nil {
		return nil, fmt.Errorf("agent: persona is required")
	}
	if opts.Client == nil || opts.Store == nil {
		return nil, fmt.Errorf("agent: client and store are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Mode == "" {
		opts.Mode = mode.Normal
	}

	p := opts.Persona
	if opts.Embedder != nil {
		opts.Store.Vectors().SetEngine(opts.Embedder)
	}

	a := &Agent{
		persona:     p,
		client:      opts.Client,
		store:       opts.Store,
		logger:      logging.Named(opts.Logger, logging.CategorySession),
		rng:         opts.Rand,
		now:         opts.Now,
		provider:    opts.Provider,
		fallbackLog: opts.FallbackLogPath,
		stopRequest: make(chan struct{}, 1),
	}

	a.sched = schedule.New(p.Behavior.ActivitySchedule, opts.Rand, logging.Named(opts.Logger, logging.CategoryScheduler))
	a.human = humanlike.New(p.Behavior.HumanLike, opts.Rand, logging.Named(opts.Logger, logging.CategoryHumanLike))
	a.modes = mode.New(opts.Mode, p.Platform.Modes, logging.Named(opts.Logger, logging.CategoryMode))
	a.engine = behavior.New(p.Behavior, opts.Mode == mode.Aggressive, a.human.ProbabilityModifier,
		opts.Rand, logging.Named(opts.Logger, logging.CategoryBehavior))
	a.intel = intelligence.New(p, opts.Provider, opts.Rand, logging.Named(opts.Logger, logging.CategoryBehavior))
	a.tracker = patterns.New(p.Patterns, opts.Store, logging.Named(opts.Logger, logging.CategoryPatterns))
	a.pool = memory.NewPool(opts.Store, logging.Named(opts.Logger, logging.CategoryMemory))
	a.consol = memory.NewConsolidator(opts.Store, a.pool, consolidationInterval,
		logging.Named(opts.Logger, logging.CategoryMemory))
	a.triggers = trigger.New(p.Behavior.Posting, opts.Store, opts.Rand,
		logging.Named(opts.Logger, logging.CategoryTrigger))
	a.follows = follow.New(p.Behavior.Follow, opts.Store, opts.Rand,
		logging.Named(opts.Logger, logging.CategoryFollow))

	a.topics = topics.New(p.Identity.Domain.FallbackTopics, opts.Rand,
		logging.Named(opts.Logger, logging.CategoryTopics))
	a.registerTopicSources()

	judge := journey.NewJudge(p, opts.Provider, logging.Named(opts.Logger, logging.CategoryJourney))
	replies := journey.NewReplyGenerator(p, opts.Provider, a.intel, a.tracker, opts.Store,
		logging.Named(opts.Logger, logging.CategoryJourney))
	a.scenario = journey.NewScenario(journey.ScenarioDeps{
		Persona: p,
		Client:  opts.Client,
		Store:   opts.Store,
		Intel:   a.intel,
		Engine:  a.engine,
		Human:   a.human,
		Pool:    a.pool,
		Tracker: a.tracker,
		Judge:   judge,
		Replies: replies,
		Logger:  logging.Named(opts.Logger, logging.CategoryJourney),
		Now:     opts.Now,
	})
	a.notifs = journey.NewNotificationJourney(p.Platform.Fetch, opts.Client, opts.Store, a.scenario,
		logging.Named(opts.Logger, logging.CategoryJourney), opts.Now)
	a.feed = journey.NewFeedJourney(p, opts.Client, opts.Store, a.scenario, opts.Rand,
		logging.Named(opts.Logger, logging.CategoryJourney))
	return a, nil
}

// registerTopicSources installs the five keyword sources over the persona and
// the store.
func (a *Agent) registerTopicSources() {
	id := a.persona.Identity
	a.topics.Register(topics.SourceCore, 0, func() []string { return id.CoreKeywords })
	a.topics.Register(topics.SourceTime, 0, func() []string { return id.TimeKeywords })
	a.topics.Register(topics.SourceCuriosity, 0, func() []string { return id.Domain.Keywords })
	a.topics.Register(topics.SourceInspiration, 0, func() []string {
		ready, err := a.store.ReadyInspirations(store.ReadyFilter{
			MinStrength: 0.3,
			Tiers:       []store.Tier{store.TierShortTerm, store.TierLongTerm, store.TierCore},
			Limit:       5,
		}, a.now())
		if err != nil {
			a.logger.Warn("inspiration topic source failed", zap.Error(err))
			return nil
		}
		out := make([]string, 0, len(ready))
		for _, insp := range ready {
			out = append(out, insp.Topic)
		}
		return out
	})
	a.topics.Register(topics.SourceTrends, 0, func() []string {
		ctx, cancel := a.callContext()
		defer cancel()
		trends, err := a.client.GetTrends(ctx, a.persona.Platform.Fetch.Locale)
		if err != nil {
			a.logger.Debug("trends unavailable", zap.Error(err))
			return nil
		}
		return trends
	})
}

// RequestStop asks the loop to finish the current session and exit. Used by
// the persona-directory watcher; persona config is immutable per run.
func (a *Agent) RequestStop() {
	select {
	case a.stopRequest <- struct{}{}:
	default:
	}
}

// SessionCount reports completed sessions.
func (a *Agent) SessionCount() int {
	return a.sessionCount
}

// appendFallbackLog records a published post in the append-only text log.
// Best effort: failures are logged and ignored.
func (a *Agent) appendFallbackLog(postID, triggerType, content string) {
	if a.fallbackLog == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(a.fallbackLog), 0o755); err != nil {
		a.logger.Warn("fallback log dir failed", zap.Error(err))
		return
	}
	f, err := os.OpenFile(a.fallbackLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		a.logger.Warn("fallback log open failed", zap.Error(err))
		return
	}
	defer f.Close()
	line := fmt.Sprintf("%s\t%s\t%s\t%s\n",
		a.now().UTC().Format(time.RFC3339), postID, triggerType, content)
	if _, err := f.WriteString(line); err != nil {
		a.logger.Warn("fallback log write failed", zap.Error(err))
	}
}
