package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"personad/internal/mode"
	"personad/internal/patterns"
	"personad/internal/platform"
	"personad/internal/store"
	"personad/internal/trigger"
)

// maxSleepChunk caps a single scheduler sleep so shutdown stays responsive
// even without context plumbing bugs.
const maxSleepChunk = 30 * time.Minute

// postRetries bounds content regeneration on guard failures.
const postRetries = 3

// Run is the outer loop. It returns nil on a graceful stop (context
// cancelled or stop requested) and an error only on unrecoverable failures.
func (a *Agent) Run(ctx context.Context) error {
	a.logger.Info("agent started",
		zap.String("persona", a.persona.Identity.Name),
		zap.String("mode", string(a.modes.Current())))

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("shutting down")
			return nil
		case <-a.stopRequest:
			a.logger.Info("stop requested, exiting at session boundary")
			return nil
		default:
		}

		now := a.now()
		if wait, why := a.holdFor(now); wait > 0 {
			a.logger.Info("holding", zap.String("why", why), zap.Duration("wait", wait))
			if err := a.sleep(ctx, wait); err != nil {
				return nil
			}
			continue
		}

		if err := a.runSession(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			decision, pause := a.modes.OnError(err)
			a.logger.Warn("session error", zap.Error(err))
			if decision == mode.DecisionPause {
				if serr := a.sleep(ctx, pause); serr != nil {
					return nil
				}
			}
		}
		a.sessionCount++

		// Maintenance and the follow drain are independent of the session
		// and of each other.
		g, gctx := errgroup.WithContext(ctx)
		if a.maintenanceDue() {
			g.Go(func() error { return a.runMaintenance(gctx) })
		}
		g.Go(func() error { return a.drainFollowQueue(gctx) })
		if err := g.Wait(); err != nil {
			a.logger.Warn("background work failed", zap.Error(err))
		}

		if err := a.sleep(ctx, a.sessionSleep(a.now())); err != nil {
			return nil
		}
	}
}

// holdFor reports how long to wait before the next session, zero when active.
func (a *Agent) holdFor(now time.Time) (time.Duration, string) {
	cfg := a.modes.Config()
	status := a.sched.Check(now)
	if !status.IsActive && cfg.HonorSleep {
		wait := status.NextActive.Sub(now)
		if wait > maxSleepChunk {
			wait = maxSleepChunk
		}
		return wait, string(status.State)
	}
	if cfg.HonorBreaks && a.sched.ShouldTakeBreak(now) {
		return 5 * time.Minute, "random break"
	}
	if a.modes.DailyCapReached(now) {
		return maxSleepChunk, "daily action cap"
	}
	return 0, ""
}

// runSession executes one session: pick a task by the persona's mode weights
// and run it, then give the trigger engine a chance to post.
func (a *Agent) runSession(ctx context.Context) error {
	a.human.ResetSession()

	task := a.pickTask()
	a.logger.Info("session start", zap.Int("n", a.sessionCount+1), zap.String("task", task))

	var err error
	switch task {
	case "social":
		err = a.socialTask(ctx)
	case "casual":
		err = a.casualTask(ctx)
	case "series":
		// Signature-series pipelines are configured but dispatch is not built.
		a.logger.Info("series task skipped", zap.Int("configured", len(a.persona.Series)))
	}
	if err != nil {
		return err
	}

	if err := a.evaluateTriggers(ctx); err != nil {
		if platform.IsAccountError(err) {
			return err
		}
		a.logger.Warn("trigger evaluation failed", zap.Error(err))
	}

	a.modes.OnSuccess(a.now())
	a.logger.Info("session end", zap.Int("actions", a.human.SessionActionCount()))
	return nil
}

// pickTask samples the session task from the persona's mode weights.
func (a *Agent) pickTask() string {
	w := a.persona.Behavior.ModeWeights
	total := w.Social + w.Casual + w.Series
	if total <= 0 {
		return "social"
	}
	r := a.rng.Float64() * total
	if r < w.Social {
		return "social"
	}
	if r < w.Social+w.Casual {
		return "casual"
	}
	return "series"
}

// socialTask runs the notification journey with probability p_notifications,
// otherwise the feed journey; when the first produced nothing, the other gets
// one try.
func (a *Agent) socialTask(ctx context.Context) error {
	notifFirst := a.rng.Float64() < a.persona.Behavior.PNotifications

	run := func(first bool) (int, error) {
		if first {
			report, err := a.notifs.Run(ctx)
			if err != nil {
				return 0, err
			}
			return report.Processed, nil
		}
		sel := a.topics.Pick()
		if err := a.pool.OnTopicSearched(ctx, sel.Keyword, a.now()); err != nil {
			a.logger.Warn("topic reinforcement failed", zap.Error(err))
		}
		report, err := a.feed.Run(ctx, sel.Query)
		if err != nil {
			return 0, err
		}
		return report.Processed, nil
	}

	n, err := run(notifFirst)
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := run(!notifFirst); err != nil {
			return err
		}
	}
	return nil
}

// casualTask posts on a selected topic, optionally enriched from the
// knowledge cache.
func (a *Agent) casualTask(ctx context.Context) error {
	sel := a.topics.Pick()
	if err := a.pool.OnTopicSearched(ctx, sel.Keyword, a.now()); err != nil {
		a.logger.Warn("topic reinforcement failed", zap.Error(err))
	}

	knowledge := ""
	if k, err := a.store.GetFreshKnowledge(sel.Keyword, a.now()); err == nil {
		knowledge = k.Summary
	} else if !errors.Is(err, store.ErrNotFound) {
		a.logger.Warn("knowledge lookup failed", zap.Error(err))
	}

	content, err := a.composePost(ctx, postSubject{topic: sel.Keyword, knowledge: knowledge})
	if err != nil {
		a.logger.Warn("casual post composition failed", zap.String("topic", sel.Keyword), zap.Error(err))
		return nil
	}
	return a.publish(ctx, content, &trigger.Decision{Type: "casual"})
}

// evaluateTriggers feeds the latest episode, the pending flash candidate, and
// the mood into the trigger engine and publishes when one fires.
func (a *Agent) evaluateTriggers(ctx context.Context) error {
	now := a.now()

	latest, err := a.store.LatestEpisode()
	if err != nil {
		return err
	}

	in := trigger.Input{
		Episode:        latest,
		FlashCandidate: a.scenario.TakeFlashCandidate(),
		Mood:           a.engine.Mood.Current(now),
	}
	d, err := a.triggers.Evaluate(in, now)
	if err != nil || d == nil {
		return err
	}

	subject := postSubject{}
	if d.Inspiration != nil {
		subject.topic = d.Inspiration.Topic
		subject.angle = d.Inspiration.MyAngle
		subject.draft = d.Inspiration.PotentialPost
	} else if d.Episode != nil {
		subject.topic = firstTopic(d.Episode.Topics)
		subject.reactTo = d.Episode.Content
	}

	content, err := a.composePost(ctx, subject)
	if err != nil {
		a.logger.Warn("triggered post composition failed", zap.String("type", string(d.Type)), zap.Error(err))
		return nil
	}
	return a.publish(ctx, content, d)
}

// postSubject is what a post should be about.
type postSubject struct {
	topic     string
	angle     string
	draft     string
	knowledge string
	reactTo   string
}

// composePost produces publishable content for the subject, under the
// forbidden-character and pattern guards. Regenerates up to three times; with
// no provider it uses the inspiration draft or gives up.
func (a *Agent) composePost(ctx context.Context, s postSubject) (string, error) {
	feedback := ""
	for attempt := 0; attempt <= postRetries; attempt++ {
		text, err := a.generatePost(ctx, s, feedback)
		if err != nil {
			return "", err
		}
		text = patterns.Review(a.persona.Behavior.ContentReview, text)
		if maxLen := a.postMaxLength(); maxLen > 0 && patterns.WeightedLength(text) > maxLen {
			text = patterns.Truncate(text, maxLen)
		}

		if patterns.ContainsForbidden(text) {
			feedback = "The draft contains characters outside the persona's writing system. Rewrite it."
			continue
		}
		violations, verr := a.tracker.CheckViolations(text, "")
		if verr != nil {
			a.logger.Warn("pattern check failed", zap.Error(verr))
		}
		if len(violations) > 0 {
			feedback = patterns.FormatViolationsForLLM(violations)
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("post guards rejected every draft")
}

// generatePost builds one draft.
func (a *Agent) generatePost(ctx context.Context, s postSubject, feedback string) (string, error) {
	if a.provider == nil {
		if s.draft != "" && feedback == "" {
			return s.draft, nil
		}
		return "", fmt.Errorf("no llm provider and no prepared draft")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write one original social post in your voice about: %s\n", s.topic)
	if s.angle != "" {
		fmt.Fprintf(&sb, "Your angle: %s\n", s.angle)
	}
	if s.draft != "" {
		fmt.Fprintf(&sb, "You once drafted: %q — improve on it, do not repeat it.\n", s.draft)
	}
	if s.knowledge != "" {
		fmt.Fprintf(&sb, "Something you recently learned: %s\n", s.knowledge)
	}
	if s.reactTo != "" {
		fmt.Fprintf(&sb, "You just saw this and it hit you hard:\n%s\n", s.reactTo)
	}
	if maxLen := a.postMaxLength(); maxLen > 0 {
		fmt.Fprintf(&sb, "Hard limit: %d display characters.\n", maxLen)
	}
	sb.WriteString("Post text only, no quotes.\n")
	if feedback != "" {
		fmt.Fprintf(&sb, "\n%s\n", feedback)
	}

	out, err := a.provider.Generate(ctx, a.postSystemPrompt(), sb.String())
	if err != nil {
		return "", fmt.Errorf("post generation: %w", err)
	}
	out = strings.TrimSpace(strings.Trim(strings.TrimSpace(out), `"`))
	if out == "" {
		return "", fmt.Errorf("empty post draft")
	}
	return out, nil
}

func (a *Agent) postSystemPrompt() string {
	var sb strings.Builder
	id := a.persona.Identity
	fmt.Fprintf(&sb, "You are %s. %s\n", id.Name, id.Identity)
	post := a.persona.Speech.Post
	if post.Tone != "" {
		fmt.Fprintf(&sb, "Tone: %s\n", post.Tone)
	}
	if len(post.Patterns) > 0 {
		fmt.Fprintf(&sb, "Speech patterns: %s\n", strings.Join(post.Patterns, "; "))
	}
	if id.Domain.Perspective != "" {
		fmt.Fprintf(&sb, "Perspective: %s\n", id.Domain.Perspective)
	}
	return sb.String()
}

func (a *Agent) postMaxLength() int {
	return a.persona.Speech.Post.Length.Max
}

// publish sends the post, records history and counters, reinforces the source
// inspiration, and remembers the event as an episode.
func (a *Agent) publish(ctx context.Context, content string, d *trigger.Decision) error {
	if err := a.human.ApplyActionDelay(ctx, "post"); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, platform.DefaultCallTimeout)
	postID, err := a.client.Post(callCtx, content, "")
	cancel()
	now := a.now()
	if err != nil {
		a.human.HandleError(err, now)
		if platform.IsAccountError(err) {
			return err
		}
		a.logger.Warn("publish failed", zap.Error(err))
		return nil
	}
	a.human.RecordAction("post", now)

	if _, err := a.triggers.RecordPost(d, postID, content, now); err != nil {
		a.logger.Warn("posting record failed", zap.Error(err))
	}
	if _, err := a.store.IncrementCounter("posts", now); err != nil {
		a.logger.Warn("post counter failed", zap.Error(err))
	}
	if err := a.tracker.RecordUsage(content, postID); err != nil {
		a.logger.Warn("pattern usage failed", zap.Error(err))
	}
	if d.Inspiration != nil {
		if err := a.pool.OnPosted(ctx, d.Inspiration.ID, now); err != nil {
			a.logger.Warn("inspiration post reinforcement failed", zap.Error(err))
		}
	}

	topicList := []string{}
	if d.Inspiration != nil {
		topicList = append(topicList, d.Inspiration.Topic)
	} else if d.Episode != nil {
		topicList = d.Episode.Topics
	}
	if err := a.store.InsertEpisode(&store.Episode{
		Type:      store.EpisodePosted,
		SourceID:  postID,
		Content:   content,
		Topics:    topicList,
		Sentiment: store.SentimentNeutral,
		CreatedAt: now,
	}); err != nil {
		a.logger.Warn("post episode failed", zap.Error(err))
	}

	a.appendFallbackLog(postID, string(d.Type), content)
	a.logger.Info("published",
		zap.String("post", postID), zap.String("trigger", string(d.Type)),
		zap.Int("length", patterns.WeightedLength(content)))
	return nil
}

// maintenanceDue gates the periodic memory sweep by session count.
func (a *Agent) maintenanceDue() bool {
	k := a.persona.Behavior.ConsolidateEveryNSessions
	if k <= 0 {
		k = 10
	}
	return a.sessionCount%k == 0
}

// runMaintenance runs consolidation, compacts stale episodes, and prunes the
// knowledge cache. Compaction and pruning are best effort.
func (a *Agent) runMaintenance(ctx context.Context) error {
	now := a.now()
	if a.consol.Due(now) {
		report, err := a.consol.Run(ctx, now)
		if err != nil {
			return fmt.Errorf("consolidation: %w", err)
		}
		a.logger.Info("consolidated",
			zap.Int("promoted", report.Promoted), zap.Int("demoted", report.Demoted),
			zap.Int("deleted", report.Deleted))
	}
	if n, err := a.store.CompactEpisodes(now.Add(-episodeRetention)); err != nil {
		a.logger.Warn("episode compaction failed", zap.Error(err))
	} else if n > 0 {
		a.logger.Info("episodes compacted", zap.Int("n", n))
	}
	if n, err := a.store.PruneExpiredKnowledge(now); err != nil {
		a.logger.Warn("knowledge prune failed", zap.Error(err))
	} else if n > 0 {
		a.logger.Debug("knowledge pruned", zap.Int("n", n))
	}
	return nil
}

// drainFollowQueue executes due queued follows.
func (a *Agent) drainFollowQueue(ctx context.Context) error {
	n, err := a.follows.ProcessQueue(ctx, func(ctx context.Context, userID string) (bool, error) {
		callCtx, cancel := context.WithTimeout(ctx, platform.DefaultCallTimeout)
		defer cancel()
		return a.client.Follow(callCtx, userID)
	}, a.now())
	if err != nil {
		return fmt.Errorf("follow drain: %w", err)
	}
	if n > 0 {
		a.logger.Info("followed", zap.Int("n", n))
	}
	return nil
}

// sessionSleep is Uniform(session interval) scaled by the schedule pace.
func (a *Agent) sessionSleep(now time.Time) time.Duration {
	lo, hi := a.modes.SessionInterval()
	d := lo
	if hi > lo {
		d += time.Duration(a.rng.Float64() * float64(hi-lo))
	}
	scaled := time.Duration(float64(d) * a.sched.PaceMultiplier(now))
	if scaled < time.Second {
		scaled = time.Second
	}
	return scaled
}

// sleep waits cancellably.
func (a *Agent) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.stopRequest:
		return errors.New("stop requested")
	}
}

// callContext wraps one adapter call with the standard timeout.
func (a *Agent) callContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), platform.DefaultCallTimeout)
}

func firstTopic(topics []string) string {
	if len(topics) > 0 {
		return topics[0]
	}
	return ""
}
