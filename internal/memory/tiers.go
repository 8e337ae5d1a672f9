// Package memory implements the inspiration lifecycle: tier dynamics with
// reinforcement-slowed decay, the inspiration pool that distils episodes into
// candidate ideas, and the periodic consolidator that sweeps the whole pool.
package memory

import (
	"math"
	"strings"
	"time"

	"personad/internal/store"
)

// TierPolicy holds the lifecycle parameters for one tier.
type TierPolicy struct {
	DecayPerDay float64
	// Promotion condition: ephemeral promotes on strength, the others on
	// reinforcement count. Zero means the condition does not apply.
	PromoteStrength       float64
	PromoteReinforcements int
	// Below DemoteBelow the inspiration drops a tier; from ephemeral it is
	// deleted instead.
	DemoteBelow float64
	// MaxPopulation of 0 means unbounded.
	MaxPopulation int
}

var tierPolicies = map[store.Tier]TierPolicy{
	store.TierEphemeral: {DecayPerDay: 0.70, PromoteStrength: 0.3, DemoteBelow: 0.05},
	store.TierShortTerm: {DecayPerDay: 0.90, PromoteReinforcements: 3, DemoteBelow: 0.10, MaxPopulation: 100},
	store.TierLongTerm:  {DecayPerDay: 0.98, PromoteReinforcements: 10, DemoteBelow: 0.20, MaxPopulation: 50},
	store.TierCore:      {DecayPerDay: 1.00, MaxPopulation: 20},
}

// PolicyFor returns the lifecycle parameters for a tier.
func PolicyFor(t store.Tier) TierPolicy {
	return tierPolicies[t]
}

// EffectiveStrength computes the decayed strength of an inspiration at time
// now. High emotional impact and many reinforcements both slow the decay.
func EffectiveStrength(insp *store.Inspiration, now time.Time) float64 {
	policy := tierPolicies[insp.Tier]
	if policy.DecayPerDay >= 1.0 {
		return insp.Strength
	}
	hours := now.Sub(insp.LastReinforcedAt).Hours()
	if hours <= 0 {
		return insp.Strength
	}
	days := hours / 24
	base := math.Pow(policy.DecayPerDay, days)
	emotionalF := 1 - insp.EmotionalImpact*0.3
	reinforceF := 1 / (1 + float64(insp.ReinforcementCount)*0.1)
	return insp.Strength * math.Pow(base, emotionalF*reinforceF)
}

// PromotionTarget reports the tier an inspiration qualifies to enter, or
// false when it stays put.
func PromotionTarget(insp *store.Inspiration) (store.Tier, bool) {
	switch insp.Tier {
	case store.TierEphemeral:
		if insp.Strength >= tierPolicies[store.TierEphemeral].PromoteStrength {
			return store.TierShortTerm, true
		}
	case store.TierShortTerm:
		if insp.ReinforcementCount >= tierPolicies[store.TierShortTerm].PromoteReinforcements {
			return store.TierLongTerm, true
		}
	case store.TierLongTerm:
		if insp.ReinforcementCount >= tierPolicies[store.TierLongTerm].PromoteReinforcements {
			return store.TierCore, true
		}
	}
	return "", false
}

// DemotionTarget reports where an inspiration below the floor goes. The
// second result is false for a deletion (ephemeral floor) and the first is
// empty when the tier has no floor at all.
func DemotionTarget(tier store.Tier) (store.Tier, bool) {
	switch tier {
	case store.TierEphemeral:
		return "", false // delete
	case store.TierShortTerm:
		return store.TierEphemeral, true
	case store.TierLongTerm:
		return store.TierShortTerm, true
	}
	return tier, true // core never demotes on strength
}

var opinionMarkers = []string{
	"i think", "i believe", "in my opinion", "should", "overrated",
	"underrated", "the best", "the worst", "honestly", "actually",
}

// DeriveCoreType classifies the core memory an inspiration crystallises into.
func DeriveCoreType(insp *store.Inspiration) store.CoreMemoryType {
	if insp.ReinforcementCount >= 15 {
		return store.CoreObsession
	}
	if insp.UsedCount >= 3 {
		return store.CoreTheme
	}
	angle := strings.ToLower(insp.MyAngle)
	for _, marker := range opinionMarkers {
		if strings.Contains(angle, marker) {
			return store.CoreOpinion
		}
	}
	return store.CoreTheme
}
