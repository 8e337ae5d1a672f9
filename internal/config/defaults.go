package config

// applyDefaults fills zero values with the documented defaults. Called after
// unmarshal, before validation.
func (p *Persona) applyDefaults() {
	b := &p.Behavior

	if b.ProbabilityModel.BaseProbability == 0 {
		b.ProbabilityModel.BaseProbability = 0.3
	}
	if b.ProbabilityModel.ActionRatios == (ActionRatios{}) {
		b.ProbabilityModel.ActionRatios = ActionRatios{Like: 1.0, Repost: 0.8, Comment: 0.6}
	}
	mods := &b.ProbabilityModel.Modifiers
	if *mods == (ScoreMods{}) {
		*mods = ScoreMods{
			AggressiveMode:    0.30,
			ObsessionTopic:    0.30,
			PositiveSentiment: 0.15,
			NegativeSentiment: -0.20,
			Stranger:          -0.10,
			Introversion:      -0.10,
		}
	}

	if b.InteractionPatterns.SameUser.MaxInteractionsPerDay == 0 {
		b.InteractionPatterns.SameUser.MaxInteractionsPerDay = 3
	}
	if b.InteractionPatterns.SameUser.CooldownMinutes == 0 {
		b.InteractionPatterns.SameUser.CooldownMinutes = 60
	}
	if b.InteractionPatterns.SamePost.MaxCommentsPerPost == 0 {
		b.InteractionPatterns.SamePost.MaxCommentsPerPost = 2
	}
	if b.InteractionPatterns.MoodVolatility.BaseMood == 0 {
		b.InteractionPatterns.MoodVolatility.BaseMood = 0.5
	}

	if b.HumanLike.WarmupSteps == 0 {
		b.HumanLike.WarmupSteps = 3
	}
	if b.HumanLike.BurstPrevention.MaxConsecutive == 0 {
		b.HumanLike.BurstPrevention.MaxConsecutive = 5
	}
	if b.HumanLike.BurstPrevention.CooldownMinutes == 0 {
		b.HumanLike.BurstPrevention.CooldownMinutes = 10
	}
	if b.HumanLike.ActionDelays == nil {
		b.HumanLike.ActionDelays = map[string]DelayRange{
			"like":   {MinSeconds: 2, MaxSeconds: 8},
			"repost": {MinSeconds: 3, MaxSeconds: 10},
			"reply":  {MinSeconds: 15, MaxSeconds: 60},
			"post":   {MinSeconds: 20, MaxSeconds: 90},
			"read":   {MinSeconds: 1, MaxSeconds: 5},
		}
	}
	if b.HumanLike.ErrorHandling.On226.PauseMinutes == 0 {
		b.HumanLike.ErrorHandling.On226.PauseMinutes = 30
	}
	if b.HumanLike.ErrorHandling.On226.ProbabilityFactor == 0 {
		b.HumanLike.ErrorHandling.On226.ProbabilityFactor = 0.5
	}
	if b.HumanLike.ErrorHandling.On404.PauseMinutes == 0 {
		b.HumanLike.ErrorHandling.On404.PauseMinutes = 1
	}

	if b.Follow.BaseProbability == 0 {
		b.Follow.BaseProbability = 0.3
	}
	if b.Follow.ScoreThreshold == 0 {
		b.Follow.ScoreThreshold = 40
	}
	if b.Follow.DailyLimit == 0 {
		b.Follow.DailyLimit = 10
	}
	if b.Follow.DelayMinSeconds == 0 {
		b.Follow.DelayMinSeconds = 30
	}
	if b.Follow.DelayMaxSeconds == 0 {
		b.Follow.DelayMaxSeconds = 300
	}
	if b.Follow.MinFollowerRatio == 0 {
		b.Follow.MinFollowerRatio = 0.1
	}
	if b.Follow.MinAccountAgeDays == 0 {
		b.Follow.MinAccountAgeDays = 30
	}
	if b.Follow.MaxFollowings == 0 {
		b.Follow.MaxFollowings = 5000
	}
	if b.Follow.MinBioLength == 0 {
		b.Follow.MinBioLength = 10
	}
	if b.Follow.MaxPerDrain == 0 {
		b.Follow.MaxPerDrain = 2
	}

	sp := &b.ActivitySchedule.SleepPattern
	if sp.SleepStartHour == 0 && sp.WakeHour == 0 {
		sp.SleepStartHour = 1
		sp.WakeHour = 7
	}
	if sp.SleepVariance == 0 {
		sp.SleepVariance = 1
	}
	if sp.WakeVariance == 0 {
		sp.WakeVariance = 1
	}
	if b.ActivitySchedule.RandomBreaks.DurationMinMinutes == 0 {
		b.ActivitySchedule.RandomBreaks.DurationMinMinutes = 10
	}
	if b.ActivitySchedule.RandomBreaks.DurationMaxMinutes == 0 {
		b.ActivitySchedule.RandomBreaks.DurationMaxMinutes = 45
	}

	if b.ResponseStrategy.BaseProbabilities == nil {
		b.ResponseStrategy.BaseProbabilities = map[string]float64{
			"quip": 0.25, "short": 0.35, "normal": 0.25, "long": 0.10, "personal": 0.05,
		}
	}
	if b.ResponseStrategy.TweetLengthModifiers.ShortThreshold == 0 {
		b.ResponseStrategy.TweetLengthModifiers.ShortThreshold = 40
	}
	if b.ResponseStrategy.DomainModifiers.HighRelevance == 0 {
		b.ResponseStrategy.DomainModifiers.HighRelevance = 0.7
	}

	if b.Posting.MaxPerDay == 0 {
		b.Posting.MaxPerDay = 5
	}
	if b.Posting.MinIntervalMinutes == 0 {
		b.Posting.MinIntervalMinutes = 90
	}
	if b.Posting.PFlash == 0 {
		b.Posting.PFlash = 0.70
	}
	if b.Posting.PFlashReinforced == 0 {
		b.Posting.PFlashReinforced = 0.80
	}
	if b.Posting.PMoodBurst == 0 {
		b.Posting.PMoodBurst = 0.30
	}
	if b.Posting.PRandomRecall == 0 {
		b.Posting.PRandomRecall = 0.05
	}

	if b.ModeWeights == (ModeWeights{}) {
		b.ModeWeights = ModeWeights{Social: 0.97, Casual: 0.02, Series: 0.01}
	}
	if b.PNotifications == 0 {
		b.PNotifications = 0.60
	}
	if b.ConsolidateEveryNSessions == 0 {
		b.ConsolidateEveryNSessions = 10
	}

	if b.ContentReview.MaxPatternOccurrences == 0 {
		b.ContentReview.MaxPatternOccurrences = 2
	}

	pf := &p.Platform
	if pf.Fetch.NotificationFetch == 0 {
		pf.Fetch.NotificationFetch = 20
	}
	if pf.Fetch.ProcessLimit == 0 {
		pf.Fetch.ProcessLimit = 1
	}
	if pf.Fetch.FeedFetch == 0 {
		pf.Fetch.FeedFetch = 20
	}
	if pf.Fetch.Locale == "" {
		pf.Fetch.Locale = "en-US"
	}
	if pf.Modes == nil {
		pf.Modes = map[string]ModeConfig{}
	}
	for _, name := range []string{"normal", "test", "aggressive"} {
		if _, ok := pf.Modes[name]; !ok {
			pf.Modes[name] = defaultModeConfig(name)
		}
	}
}

// defaultModeConfig is the built-in mode table. The normal row defers to the
// persona's own step/action probabilities (zero values mean "use persona").
func defaultModeConfig(name string) ModeConfig {
	switch name {
	case "test":
		return ModeConfig{
			SessionIntervalMinSeconds: 5,
			SessionIntervalMaxSeconds: 15,
			WarmupSteps:               0,
			HonorSleep:                false,
			HonorBreaks:               false,
			StepProbabilities:         StepProbabilities{Scout: 0.5, Mentions: 0.9, ReplyCheck: 0.9, Post: 0.5},
			ActionProbabilities:       ActionRatios{Like: 0.9, Repost: 0.5, Comment: 0.9},
			DailyActionCap:            1000,
		}
	case "aggressive":
		return ModeConfig{
			SessionIntervalMinSeconds: 60,
			SessionIntervalMaxSeconds: 180,
			WarmupSteps:               1,
			HonorSleep:                true,
			HonorBreaks:               false,
			StepProbabilities:         StepProbabilities{Scout: 0.8, Mentions: 0.8, ReplyCheck: 0.8, Post: 0.4},
			ActionProbabilities:       ActionRatios{Like: 0.7, Repost: 0.4, Comment: 0.6},
			DailyActionCap:            200,
		}
	default: // normal
		return ModeConfig{
			SessionIntervalMinSeconds: 300,
			SessionIntervalMaxSeconds: 900,
			WarmupSteps:               3,
			HonorSleep:                true,
			HonorBreaks:               true,
			DailyActionCap:            80,
		}
	}
}
