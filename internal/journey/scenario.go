package journey

import (
	"context"
	"time"

	"go.uber.org/zap"

	"personad/internal/behavior"
	"personad/internal/config"
	"personad/internal/humanlike"
	"personad/internal/intelligence"
	"personad/internal/memory"
	"personad/internal/patterns"
	"personad/internal/platform"
	"personad/internal/store"
)

// affinityStep is added per interaction, clamped at the store.
const affinityStep = 0.05

// familiarAfterConversations upgrades acquaintance to familiar.
const familiarAfterConversations = 3

// ScenarioResult reports what one scenario actually did.
type ScenarioResult struct {
	Liked     bool
	Reposted  bool
	Replied   bool
	ReplyText string
	Skipped   bool
	Reason    string
}

// Scenario handles one post end to end: resolve the counterparty, perceive,
// judge, act with human pacing, and write the consequences to memory. Errors
// other than account-class ones degrade to a skip so a single bad post never
// kills a session.
type Scenario struct {
	persona *config.Persona
	client  platform.Client
	store   *store.Store
	intel   *intelligence.Intelligence
	engine  *behavior.Engine
	human   *humanlike.Controller
	pool    *memory.Pool
	tracker *patterns.Tracker
	judge   *Judge
	replies *ReplyGenerator
	logger  *zap.Logger
	now     func() time.Time

	// lastFlash is the most recent reinforced-flash candidate surfaced while
	// perceiving content; the orchestrator drains it into the trigger engine.
	lastFlash *memory.FlashCandidate
}

// ScenarioDeps wires a scenario's collaborators.
type ScenarioDeps struct {
	Persona *config.Persona
	Client  platform.Client
	Store   *store.Store
	Intel   *intelligence.Intelligence
	Engine  *behavior.Engine
	Human   *humanlike.Controller
	Pool    *memory.Pool
	Tracker *patterns.Tracker
	Judge   *Judge
	Replies *ReplyGenerator
	Logger  *zap.Logger
	Now     func() time.Time
}

// NewScenario builds a scenario runner.
func NewScenario(d ScenarioDeps) *Scenario {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return &Scenario{
		persona: d.Persona,
		client:  d.Client,
		store:   d.Store,
		intel:   d.Intel,
		engine:  d.Engine,
		human:   d.Human,
		pool:    d.Pool,
		tracker: d.Tracker,
		judge:   d.Judge,
		replies: d.Replies,
		logger:  d.Logger,
		now:     d.Now,
	}
}

// Run processes one post. convType labels the conversation record
// ("reply", "mention", "feed", ...).
func (s *Scenario) Run(ctx context.Context, post platform.Post, convType string) (*ScenarioResult, error) {
	now := s.now()
	s.human.Step()

	if ok, why := s.human.CanTakeAction(now); !ok {
		return &ScenarioResult{Skipped: true, Reason: why}, nil
	}

	person, err := s.store.GetOrCreatePerson(post.AuthorID, post.AuthorName, now)
	if err != nil {
		return nil, err
	}

	p := s.intel.Perceive(ctx, post.Text, post.AuthorName)

	// Seeing the post is an episode regardless of what happens next.
	saw := &store.Episode{
		Type:            store.EpisodeSawPost,
		SourceID:        post.ID,
		SourceUser:      post.AuthorID,
		Content:         post.Text,
		Topics:          p.Topics,
		Sentiment:       p.Sentiment,
		EmotionalImpact: p.RelevanceToDomain,
		CreatedAt:       now,
	}
	if err := s.store.InsertEpisode(saw); err != nil {
		s.logger.Warn("episode write failed", zap.Error(err))
	}
	if flash, err := s.pool.OnContentSeen(ctx, post.Text, p.RelevanceToDomain, now); err != nil {
		s.logger.Warn("inspiration check failed", zap.Error(err))
	} else if flash != nil {
		s.lastFlash = flash
	}

	if v, regret := s.engine.RegretCheck(post.ID); regret {
		return &ScenarioResult{Skipped: true, Reason: v.Reason}, nil
	}

	verdict := s.engine.Decide(behavior.Candidate{Post: post, Person: person, Perception: p}, now)
	if !verdict.Interact {
		return &ScenarioResult{Skipped: true, Reason: verdict.Reason}, nil
	}

	decision := s.judge.Decide(ctx, post, p, verdict)
	res := &ScenarioResult{}

	if decision.Like {
		if err := s.act(ctx, "like", func() error {
			_, lerr := s.client.Like(ctx, post.ID)
			return lerr
		}, now); err != nil {
			if platform.IsAccountError(err) {
				return res, err
			}
		} else {
			res.Liked = true
			person.MyLikeCount++
			s.recordEpisode(store.EpisodeLiked, post, p, now)
		}
	}

	if decision.Repost {
		if err := s.act(ctx, "repost", func() error {
			_, rerr := s.client.Repost(ctx, post.ID)
			return rerr
		}, now); err != nil {
			if platform.IsAccountError(err) {
				return res, err
			}
		} else {
			res.Reposted = true
		}
	}

	if decision.Reply {
		if err := s.reply(ctx, post, p, decision, person, convType, res, now); err != nil {
			if platform.IsAccountError(err) {
				return res, err
			}
			s.logger.Warn("reply failed", zap.String("post", post.ID), zap.Error(err))
		}
	}

	if res.Liked || res.Reposted || res.Replied {
		s.updatePerson(person, p, now)
	}
	return res, nil
}

// TakeFlashCandidate hands over the pending reinforced-flash candidate, if
// any, clearing it.
func (s *Scenario) TakeFlashCandidate() *memory.FlashCandidate {
	f := s.lastFlash
	s.lastFlash = nil
	return f
}

// reply generates and posts the reply, then advances the conversation.
func (s *Scenario) reply(ctx context.Context, post platform.Post, p *intelligence.Perception, decision EngagementDecision, person *store.Person, convType string, res *ScenarioResult, now time.Time) error {
	replyType := intelligence.ResponseType(decision.ReplyType)
	if p.ResponseType != "" {
		replyType = p.ResponseType
	}

	text, err := s.replies.Generate(ctx, post, p, replyType)
	if err != nil {
		return err
	}

	if err := s.act(ctx, "reply", func() error {
		_, perr := s.client.Post(ctx, text, post.ID)
		return perr
	}, now); err != nil {
		return err
	}
	res.Replied = true
	res.ReplyText = text
	person.MyReplyCount++

	if err := s.tracker.RecordUsage(text, post.ID); err != nil {
		s.logger.Warn("pattern usage write failed", zap.Error(err))
	}
	s.engine.NoteComment(post.ID)
	s.recordReplyEpisode(text, post, p, now)

	topic := ""
	if len(p.Topics) > 0 {
		topic = memory.NormalizeTopic(p.Topics[0])
	}
	conv, err := s.store.GetOrCreateConversation(person.ID, s.persona.Platform.Name, post.ID, convType, topic, now)
	if err != nil {
		s.logger.Warn("conversation write failed", zap.Error(err))
		return nil
	}
	if err := s.store.AdvanceConversation(conv.ID, now); err != nil {
		s.logger.Warn("conversation advance failed", zap.Error(err))
	}
	return nil
}

// act runs one platform action with the human-like delay and error handling.
func (s *Scenario) act(ctx context.Context, kind string, fn func() error, now time.Time) error {
	if err := s.human.ApplyActionDelay(ctx, kind); err != nil {
		return err
	}
	if err := fn(); err != nil {
		s.human.HandleError(err, now)
		return err
	}
	s.human.RecordAction(kind, now)
	return nil
}

// updatePerson applies the relationship progression rules after a real
// interaction.
func (s *Scenario) updatePerson(person *store.Person, p *intelligence.Perception, now time.Time) {
	if person.Tier == store.PersonStranger {
		person.Tier = store.PersonAcquaintance
	} else if person.Tier == store.PersonAcquaintance {
		n, err := s.store.CountConversationsByPerson(person.ID)
		if err == nil && n >= familiarAfterConversations {
			person.Tier = store.PersonFamiliar
		}
	}
	person.Affinity += affinityStep
	person.LastInteractionAt = now
	person.SentimentHistory = appendBounded(person.SentimentHistory, string(p.Sentiment), 20)
	for _, t := range p.Topics {
		person.CommonTopics = appendUnique(person.CommonTopics, memory.NormalizeTopic(t), 20)
	}
	if err := s.store.UpdatePerson(person); err != nil {
		s.logger.Warn("person update failed", zap.String("person", person.ScreenName), zap.Error(err))
	}
}

func (s *Scenario) recordEpisode(t store.EpisodeType, post platform.Post, p *intelligence.Perception, now time.Time) {
	ep := &store.Episode{
		Type:            t,
		SourceID:        post.ID,
		SourceUser:      post.AuthorID,
		Content:         post.Text,
		Topics:          p.Topics,
		Sentiment:       p.Sentiment,
		EmotionalImpact: p.RelevanceToDomain,
		CreatedAt:       now,
	}
	if err := s.store.InsertEpisode(ep); err != nil {
		s.logger.Warn("episode write failed", zap.Error(err))
	}
}

// recordReplyEpisode stores our own words so the novelty check can see them.
func (s *Scenario) recordReplyEpisode(text string, post platform.Post, p *intelligence.Perception, now time.Time) {
	ep := &store.Episode{
		Type:            store.EpisodeReplied,
		SourceID:        post.ID,
		SourceUser:      post.AuthorID,
		Content:         text,
		Topics:          p.Topics,
		Sentiment:       p.Sentiment,
		EmotionalImpact: p.RelevanceToDomain,
		CreatedAt:       now,
	}
	if err := s.store.InsertEpisode(ep); err != nil {
		s.logger.Warn("episode write failed", zap.Error(err))
	}
}

func appendBounded(list []string, v string, max int) []string {
	list = append(list, v)
	if len(list) > max {
		list = list[len(list)-max:]
	}
	return list
}

func appendUnique(list []string, v string, max int) []string {
	if v == "" {
		return list
	}
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return appendBounded(list, v, max)
}
