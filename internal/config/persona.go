// Package config loads and validates the persona package: a directory of
// yaml files describing identity, speech style, behavior knobs, schedules,
// relationships, and per-platform mode tables. The schema is closed; unknown
// keys fail at load time. Persona configuration is immutable after load.
package config

// Persona is the fully-loaded configuration for one agent run.
type Persona struct {
	ID            string                      `yaml:"-"`
	Identity      Identity                    `yaml:"identity"`
	Speech        SpeechStyle                 `yaml:"speech_style"`
	Behavior      Behavior                    `yaml:"behavior"`
	Relationships map[string]RelationshipRule `yaml:"relationships"`
	Patterns      PatternsConfig              `yaml:"patterns"`
	Platform      PlatformConfig              `yaml:"platform"`
	Series        []SeriesConfig              `yaml:"series"`
}

// Identity describes who the persona is and what it cares about.
type Identity struct {
	Name         string   `yaml:"name"`
	Identity     string   `yaml:"identity"`
	Occupation   string   `yaml:"occupation"`
	CoreKeywords []string `yaml:"core_keywords"`
	TimeKeywords []string `yaml:"time_keywords"`
	Domain       Domain   `yaml:"domain"`
}

// Domain is the persona's subject-matter anchor.
type Domain struct {
	Name           string   `yaml:"name"`
	Keywords       []string `yaml:"keywords"`
	Perspective    string   `yaml:"perspective"`
	RelevanceDesc  string   `yaml:"relevance_desc"`
	FallbackTopics []string `yaml:"fallback_topics"`
}

// SpeechStyle drives content generation prompts and quip selection.
type SpeechStyle struct {
	Chat             SpeechBlock         `yaml:"chat"`
	Post             SpeechBlock         `yaml:"post"`
	EnergyLevels     []string            `yaml:"energy_levels"`
	OpenerPool       []string            `yaml:"opener_pool"`
	CloserPool       []string            `yaml:"closer_pool"`
	SignaturePhrases []string            `yaml:"signature_phrases"`
	QuipPool         map[string][]string `yaml:"quip_pool"`
}

// SpeechBlock is the length/tone envelope for one output mode.
type SpeechBlock struct {
	Length   LengthRange `yaml:"length"`
	Tone     string      `yaml:"tone"`
	Starters []string    `yaml:"starters"`
	Endings  []string    `yaml:"endings"`
	Patterns []string    `yaml:"patterns"`
}

// LengthRange bounds output length in weighted characters.
type LengthRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// RelationshipRule predefines how to treat a matching handle.
type RelationshipRule struct {
	Relationship     string   `yaml:"relationship"`
	InteractionStyle string   `yaml:"interaction_style"`
	Topics           []string `yaml:"topics"`
	Condition        string   `yaml:"condition"`
}

// Behavior groups all probabilistic knobs.
type Behavior struct {
	InteractionPatterns InteractionPatterns `yaml:"interaction_patterns"`
	ProbabilityModel    ProbabilityModel    `yaml:"probability_model"`
	StepProbabilities   StepProbabilities   `yaml:"step_probabilities"`
	HumanLike           HumanLikeConfig     `yaml:"human_like"`
	Follow              FollowConfig        `yaml:"follow_behavior"`
	ActivitySchedule    ActivitySchedule    `yaml:"activity_schedule"`
	ResponseStrategy    ResponseStrategy    `yaml:"response_strategy"`
	ContentReview       ContentReview       `yaml:"content_review"`
	Posting             PostingConfig       `yaml:"posting"`
	ModeWeights         ModeWeights         `yaml:"mode_weights"`
	// PNotifications is the chance the social task starts with the
	// notification journey rather than the feed.
	PNotifications float64 `yaml:"p_notifications"`
	// ConsolidateEveryNSessions controls the periodic memory sweep.
	ConsolidateEveryNSessions int `yaml:"consolidate_every_n_sessions"`
}

// InteractionPatterns caps repeated engagement with the same user or post.
type InteractionPatterns struct {
	SameUser       SameUserPolicy `yaml:"same_user"`
	SamePost       SamePostPolicy `yaml:"same_post"`
	MoodVolatility MoodVolatility `yaml:"mood_volatility"`
}

// SameUserPolicy limits per-user interaction frequency.
type SameUserPolicy struct {
	MaxInteractionsPerDay int      `yaml:"max_interactions_per_day"`
	CooldownMinutes       int      `yaml:"cooldown_minutes"`
	ObsessionOverride     bool     `yaml:"obsession_override"`
	ObsessionTopics       []string `yaml:"obsession_topics"`
}

// SamePostPolicy limits engagement with a single post.
type SamePostPolicy struct {
	MaxCommentsPerPost int     `yaml:"max_comments_per_post"`
	RegretProbability  float64 `yaml:"regret_probability"`
}

// MoodVolatility parameterises the mood model.
type MoodVolatility struct {
	BaseMood float64     `yaml:"base_mood"`
	Factors  MoodFactors `yaml:"factors"`
}

// MoodFactors weight each mood input.
type MoodFactors struct {
	TimeOfDay          float64 `yaml:"time_of_day"`
	RecentInteractions float64 `yaml:"recent_interactions"`
	Random             float64 `yaml:"random"`
}

// ProbabilityModel is the additive interaction score model.
type ProbabilityModel struct {
	BaseProbability float64      `yaml:"base_probability"`
	Modifiers       ScoreMods    `yaml:"modifiers"`
	ActionRatios    ActionRatios `yaml:"action_ratios"`
}

// ScoreMods are the additive score adjustments.
type ScoreMods struct {
	AggressiveMode    float64 `yaml:"aggressive_mode"`
	ObsessionTopic    float64 `yaml:"obsession_topic"`
	PositiveSentiment float64 `yaml:"positive_sentiment"`
	NegativeSentiment float64 `yaml:"negative_sentiment"`
	Stranger          float64 `yaml:"stranger"`
	Introversion      float64 `yaml:"introversion"`
}

// ActionRatios scale the interaction score per action kind.
type ActionRatios struct {
	Like    float64 `yaml:"like"`
	Repost  float64 `yaml:"repost"`
	Comment float64 `yaml:"comment"`
}

// StepProbabilities weight the orchestrator's step choice in normal mode.
type StepProbabilities struct {
	Scout      float64 `yaml:"scout"`
	Mentions   float64 `yaml:"mentions"`
	ReplyCheck float64 `yaml:"reply_check"`
	Post       float64 `yaml:"post"`
}

// HumanLikeConfig parameterises the human-like controller.
type HumanLikeConfig struct {
	WarmupSteps     int                    `yaml:"warmup_steps"`
	ActionDelays    map[string]DelayRange  `yaml:"action_delays"`
	BurstPrevention BurstPrevention        `yaml:"burst_prevention"`
	ErrorHandling   HumanLikeErrorHandling `yaml:"error_handling"`
}

// DelayRange is a uniform sleep range in seconds.
type DelayRange struct {
	MinSeconds float64 `yaml:"min_seconds"`
	MaxSeconds float64 `yaml:"max_seconds"`
}

// BurstPrevention caps consecutive actions.
type BurstPrevention struct {
	MaxConsecutive  int     `yaml:"max_consecutive"`
	CooldownMinutes float64 `yaml:"cooldown_minutes"`
}

// HumanLikeErrorHandling configures error-triggered pauses.
type HumanLikeErrorHandling struct {
	On226 ThrottlePolicy `yaml:"on_226"`
	On404 PausePolicy    `yaml:"on_404"`
}

// ThrottlePolicy reacts to account-level throttles.
type ThrottlePolicy struct {
	PauseMinutes      float64 `yaml:"pause_minutes"`
	ProbabilityFactor float64 `yaml:"probability_factor"`
}

// PausePolicy is a plain pause.
type PausePolicy struct {
	PauseMinutes float64 `yaml:"pause_minutes"`
}

// FollowConfig parameterises the follow engine.
type FollowConfig struct {
	BaseProbability   float64  `yaml:"base_probability"`
	ScoreThreshold    int      `yaml:"score_threshold"`
	DailyLimit        int      `yaml:"daily_limit"`
	DelayMinSeconds   int      `yaml:"delay_min_seconds"`
	DelayMaxSeconds   int      `yaml:"delay_max_seconds"`
	MinFollowerRatio  float64  `yaml:"min_follower_ratio"`
	MinAccountAgeDays int      `yaml:"min_account_age_days"`
	MaxFollowings     int      `yaml:"max_followings"`
	MinBioLength      int      `yaml:"min_bio_length"`
	BioKeywords       []string `yaml:"bio_keywords"`
	MaxPerDrain       int      `yaml:"max_per_drain"`
}

// ActivitySchedule drives the clock & activity scheduler.
type ActivitySchedule struct {
	SleepPattern   SleepPattern  `yaml:"sleep_pattern"`
	HourlyActivity []HourlyLevel `yaml:"hourly_activity"`
	RandomBreaks   RandomBreaks  `yaml:"random_breaks"`
	RandomOffDay   RandomOffDay  `yaml:"random_off_day"`
}

// SleepPattern defines the nightly window and its noise.
type SleepPattern struct {
	SleepStartHour    float64 `yaml:"sleep_start_hour"`
	WakeHour          float64 `yaml:"wake_hour"`
	SleepVariance     float64 `yaml:"sleep_variance"`
	WakeVariance      float64 `yaml:"wake_variance"`
	WeekendSleepShift float64 `yaml:"weekend_sleep_shift"`
	WeekendWakeShift  float64 `yaml:"weekend_wake_shift"`
	LateNightProb     float64 `yaml:"late_night_prob"`
	EarlyWakeProb     float64 `yaml:"early_wake_prob"`
	MidnightCheckProb float64 `yaml:"midnight_check_prob"`
}

// HourlyLevel maps an hour interval (wrap-around allowed, e.g. "22-01") to an
// activity level in [0,1].
type HourlyLevel struct {
	Hours string  `yaml:"hours"`
	Level float64 `yaml:"level"`
}

// RandomBreaks latches short inactive stretches.
type RandomBreaks struct {
	Probability        float64 `yaml:"probability"`
	DurationMinMinutes float64 `yaml:"duration_min_minutes"`
	DurationMaxMinutes float64 `yaml:"duration_max_minutes"`
}

// RandomOffDay makes a whole calendar day inactive.
type RandomOffDay struct {
	Probability float64 `yaml:"probability"`
}

// ResponseStrategy drives the two-stage response-type sampler.
type ResponseStrategy struct {
	BaseProbabilities    map[string]float64   `yaml:"base_probabilities"`
	TweetLengthModifiers TweetLengthModifiers `yaml:"tweet_length_modifiers"`
	DomainModifiers      DomainModifiers      `yaml:"domain_modifiers"`
}

// TweetLengthModifiers override the distribution for short inputs.
type TweetLengthModifiers struct {
	ShortThreshold int                `yaml:"short_threshold"`
	Overrides      map[string]float64 `yaml:"overrides"`
}

// DomainModifiers adjust the distribution when relevance is high.
type DomainModifiers struct {
	HighRelevance float64            `yaml:"high_relevance"`
	Adjustments   map[string]float64 `yaml:"adjustments"`
}

// ContentReview post-processes generated text.
type ContentReview struct {
	Enabled               bool     `yaml:"enabled"`
	FixExcessivePatterns  bool     `yaml:"fix_excessive_patterns"`
	PatternsToModerate    []string `yaml:"patterns_to_moderate"`
	MaxPatternOccurrences int      `yaml:"max_pattern_occurrences"`
}

// PostingConfig feeds the posting trigger engine.
type PostingConfig struct {
	MaxPerDay          int     `yaml:"max_per_day"`
	MinIntervalMinutes float64 `yaml:"min_interval_minutes"`
	PFlash             float64 `yaml:"p_flash"`
	PFlashReinforced   float64 `yaml:"p_flash_reinforced"`
	PMoodBurst         float64 `yaml:"p_mood_burst"`
	PRandomRecall      float64 `yaml:"p_random_recall"`
}

// ModeWeights weight the per-session task choice.
type ModeWeights struct {
	Social float64 `yaml:"social"`
	Casual float64 `yaml:"casual"`
	Series float64 `yaml:"series"`
}

// PatternsConfig is the pattern tracker registry.
type PatternsConfig struct {
	Signature  []SignaturePattern  `yaml:"signature"`
	Frequent   []FrequentPattern   `yaml:"frequent"`
	Filler     []FillerPattern     `yaml:"filler"`
	Contextual []ContextualPattern `yaml:"contextual"`
}

// SignaturePattern may only appear once every CooldownPosts posts.
type SignaturePattern struct {
	Literal       string `yaml:"literal"`
	CooldownPosts int    `yaml:"cooldown_posts"`
}

// FrequentPattern is capped on consecutive-post usage.
type FrequentPattern struct {
	Literal        string `yaml:"literal"`
	MaxConsecutive int    `yaml:"max_consecutive"`
}

// FillerPattern is bounded per post.
type FillerPattern struct {
	Literal    string `yaml:"literal"`
	MaxPerPost int    `yaml:"max_per_post"`
	MinPerPost int    `yaml:"min_per_post"`
}

// ContextualPattern is avoided under the listed context tags.
type ContextualPattern struct {
	Literal       string   `yaml:"literal"`
	AvoidContexts []string `yaml:"avoid_contexts"`
}

// PlatformConfig is the per-platform subtree.
type PlatformConfig struct {
	Name          string                        `yaml:"name"`
	Fetch         FetchConfig                   `yaml:"config"`
	Modes         map[string]ModeConfig         `yaml:"modes"`
	QuipPool      map[string][]string           `yaml:"quip_pool"`
	Constraints   Constraints                   `yaml:"constraints"`
	ResponseTypes map[string]ResponseTypeConfig `yaml:"response_types"`
}

// FetchConfig bounds per-journey fetch sizes.
type FetchConfig struct {
	NotificationFetch int    `yaml:"notification_fetch"`
	ProcessLimit      int    `yaml:"process_limit"`
	FeedFetch         int    `yaml:"feed_fetch"`
	Locale            string `yaml:"locale"`
}

// ModeConfig is one row of the mode manager's fixed tables.
type ModeConfig struct {
	SessionIntervalMinSeconds int               `yaml:"session_interval_min_seconds"`
	SessionIntervalMaxSeconds int               `yaml:"session_interval_max_seconds"`
	WarmupSteps               int               `yaml:"warmup_steps"`
	HonorSleep                bool              `yaml:"honor_sleep"`
	HonorBreaks               bool              `yaml:"honor_breaks"`
	StepProbabilities         StepProbabilities `yaml:"step_probabilities"`
	ActionProbabilities       ActionRatios      `yaml:"action_probabilities"`
	DailyActionCap            int               `yaml:"daily_action_cap"`
}

// Constraints name phrases to avoid in generated text.
type Constraints struct {
	AvoidExpertPhrases  []string `yaml:"avoid_expert_phrases"`
	FriendlyAlternative string   `yaml:"friendly_alternative"`
}

// ResponseTypeConfig bounds one response class.
type ResponseTypeConfig struct {
	MaxLength   int    `yaml:"max_length"`
	Description string `yaml:"description"`
}

// SeriesConfig names a signature-series pipeline; execution is external.
type SeriesConfig struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"`
	Pipeline string `yaml:"pipeline"`
}
