package intelligence

// PickQuip selects a templated micro-response from the persona's quip pool
// without an LLM call. The platform subtree's pool takes precedence over the
// speech-style pool; an unknown or empty category falls back to "casual",
// then to any non-empty category. Returns "" when the persona has no quips.
func (i *Intelligence) PickQuip(category string) string {
	if q := i.pickFrom(i.persona.Platform.QuipPool, category); q != "" {
		return q
	}
	return i.pickFrom(i.persona.Speech.QuipPool, category)
}

func (i *Intelligence) pickFrom(pool map[string][]string, category string) string {
	if len(pool) == 0 {
		return ""
	}
	if quips := pool[category]; len(quips) > 0 {
		return quips[i.rng.Intn(len(quips))]
	}
	if quips := pool["casual"]; len(quips) > 0 {
		return quips[i.rng.Intn(len(quips))]
	}
	for _, quips := range pool {
		if len(quips) > 0 {
			return quips[i.rng.Intn(len(quips))]
		}
	}
	return ""
}
