package store

import "time"

// Tier is the longevity class of an inspiration.
type Tier string

const (
	TierEphemeral Tier = "ephemeral"
	TierShortTerm Tier = "short_term"
	TierLongTerm  Tier = "long_term"
	TierCore      Tier = "core"
)

// Rank orders tiers from most volatile (0) to permanent (3).
func (t Tier) Rank() int {
	switch t {
	case TierEphemeral:
		return 0
	case TierShortTerm:
		return 1
	case TierLongTerm:
		return 2
	case TierCore:
		return 3
	}
	return -1
}

// Sentiment classifies perceived tone.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// EpisodeType tags what kind of observation an episode records.
type EpisodeType string

const (
	EpisodeSawPost  EpisodeType = "saw_post"
	EpisodeReplied  EpisodeType = "replied"
	EpisodeLiked    EpisodeType = "liked"
	EpisodePosted   EpisodeType = "posted"
	EpisodeSearched EpisodeType = "searched"
)

// Episode is an immutable observation record.
type Episode struct {
	ID              string
	Type            EpisodeType
	SourceID        string // post id, if any
	SourceUser      string
	Content         string
	Topics          []string
	Sentiment       Sentiment
	EmotionalImpact float64 // [0,1]
	CreatedAt       time.Time
}

// Inspiration is a candidate idea distilled from episodes.
type Inspiration struct {
	ID                 string
	OriginEpisodeID    string // optional
	TriggerContent     string
	Topic              string // normalised key
	MyAngle            string
	PotentialPost      string
	Tier               Tier
	Strength           float64 // [0,1]
	EmotionalImpact    float64
	ReinforcementCount int
	CreatedAt          time.Time
	LastReinforcedAt   time.Time
	LastAccessedAt     time.Time
	UsedCount          int
	LastUsedAt         time.Time // zero if never used
}

// CoreMemoryType classifies a crystallised core memory.
type CoreMemoryType string

const (
	CoreObsession CoreMemoryType = "obsession"
	CoreOpinion   CoreMemoryType = "opinion"
	CoreTheme     CoreMemoryType = "theme"
	CoreTrait     CoreMemoryType = "trait"
)

// CoreMemory is a non-decaying fact formed when an inspiration reaches the
// core tier.
type CoreMemory struct {
	ID                  string
	Type                CoreMemoryType
	Content             string
	FormedFrom          string // inspiration id
	TotalReinforcements int
	PersonaImpact       string
	CreatedAt           time.Time
}

// PersonTier is the relationship stage with a counterparty.
type PersonTier string

const (
	PersonStranger     PersonTier = "stranger"
	PersonAcquaintance PersonTier = "acquaintance"
	PersonFamiliar     PersonTier = "familiar"
	PersonFriend       PersonTier = "friend"
)

// Rank orders person tiers from stranger (0) upward. Upgrades are monotonic.
func (t PersonTier) Rank() int {
	switch t {
	case PersonStranger:
		return 0
	case PersonAcquaintance:
		return 1
	case PersonFamiliar:
		return 2
	case PersonFriend:
		return 3
	}
	return -1
}

// Person is the identity and running statistics for a counterparty.
type Person struct {
	ID               string
	UserID           string
	ScreenName       string
	Tier             PersonTier
	Affinity         float64 // [0,1]
	MyReplyCount     int
	TheirReplyCount  int
	MyLikeCount      int
	TheirLikeCount   int
	SentimentHistory []string
	CommonTopics     []string
	WhoIsThis        string
	FirstMetAt       time.Time
	LastInteractionAt time.Time
}

// ConversationState marks a thread as live or finished.
type ConversationState string

const (
	ConversationOngoing   ConversationState = "ongoing"
	ConversationConcluded ConversationState = "concluded"
)

// Conversation is one logical thread with a person.
type Conversation struct {
	ID               string
	PersonID         string
	Platform         string
	PostID           string
	ConversationType string
	Topic            string
	Summary          string
	TurnCount        int
	State            ConversationState
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PostingRecord is one published post.
type PostingRecord struct {
	ID                  string
	OriginInspirationID string // optional
	Content             string
	TriggerType         string
	PostedAt            time.Time
}

// PatternUsage records one detected pattern occurrence in a published post.
type PatternUsage struct {
	PatternType string // signature | frequent | filler | contextual
	Literal     string
	PostID      string
	UsedAt      time.Time
}

// KnowledgeEntry is a cached research result for a keyword.
type KnowledgeEntry struct {
	Keyword        string
	Summary        string
	MyAngle        string
	Relevance      float64 // [0,1]
	SourcePlatform string
	ExpiresAt      time.Time
}
