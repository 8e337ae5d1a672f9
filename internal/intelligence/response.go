package intelligence

// SampleResponseType runs the two-stage response-type selection: base
// probabilities from config, a tweet-length override for short inputs, then
// domain-relevance adjustments, renormalised and sampled.
func (i *Intelligence) SampleResponseType(tweetLength int, relevance float64) ResponseType {
	strategy := i.persona.Behavior.ResponseStrategy

	weights := make(map[string]float64, len(strategy.BaseProbabilities))
	for k, v := range strategy.BaseProbabilities {
		weights[k] = v
	}

	if tweetLength > 0 && tweetLength < strategy.TweetLengthModifiers.ShortThreshold {
		for k, v := range strategy.TweetLengthModifiers.Overrides {
			weights[k] = v
		}
	}

	if relevance >= strategy.DomainModifiers.HighRelevance {
		for k, delta := range strategy.DomainModifiers.Adjustments {
			weights[k] += delta
			if weights[k] < 0 {
				weights[k] = 0
			}
		}
	}

	total := 0.0
	for _, v := range weights {
		total += v
	}
	if total <= 0 {
		return ResponseShort
	}

	// Fixed iteration order so a seeded rng is reproducible.
	order := []string{"quip", "short", "normal", "long", "personal"}
	r := i.rng.Float64() * total
	for _, k := range order {
		r -= weights[k]
		if r < 0 {
			return ResponseType(k)
		}
	}
	return ResponseShort
}
