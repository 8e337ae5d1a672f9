package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"personad/internal/store"
)

func newInspirationID() string {
	return uuid.NewString()
}

// ConsolidationReport summarises one sweep for logs and tests.
type ConsolidationReport struct {
	Swept    int
	Promoted int
	Demoted  int
	Deleted  int
}

// Consolidator periodically sweeps the whole pool: decay write-back, tier
// transitions, capacity enforcement, and a batched vector metadata sync.
type Consolidator struct {
	store  *store.Store
	pool   *Pool
	logger *zap.Logger

	interval time.Duration
	lastRun  time.Time
}

// NewConsolidator builds a consolidator running at most once per interval.
func NewConsolidator(st *store.Store, pool *Pool, interval time.Duration, logger *zap.Logger) *Consolidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &Consolidator{store: st, pool: pool, logger: logger, interval: interval}
}

// Due reports whether enough time has passed since the last sweep.
func (c *Consolidator) Due(now time.Time) bool {
	return c.lastRun.IsZero() || now.Sub(c.lastRun) >= c.interval
}

// Run performs one full sweep.
func (c *Consolidator) Run(ctx context.Context, now time.Time) (*ConsolidationReport, error) {
	c.lastRun = now
	report := &ConsolidationReport{}

	all, err := c.store.AllInspirations()
	if err != nil {
		return nil, err
	}
	report.Swept = len(all)

	metaSync := make(map[string]store.VectorMeta)
	var deleted []string

	for _, insp := range all {
		eff := EffectiveStrength(insp, now)
		if eff != insp.Strength {
			if err := c.store.RebaseStrength(insp.ID, eff, now); err != nil {
				return nil, err
			}
			insp.Strength = eff
			insp.LastReinforcedAt = now
		}

		if target, ok := PromotionTarget(insp); ok {
			if err := c.store.SetInspirationTier(insp.ID, target, insp.Strength); err != nil {
				return nil, err
			}
			prev := insp.Tier
			insp.Tier = target
			report.Promoted++
			if target == store.TierCore && prev != store.TierCore {
				if err := c.pool.crystallise(insp, now); err != nil {
					return nil, err
				}
			}
			metaSync[insp.ID] = metaFor(insp)
			continue
		}

		policy := PolicyFor(insp.Tier)
		if policy.DemoteBelow > 0 && insp.Strength < policy.DemoteBelow {
			if removed, err := c.demoteOrDelete(insp); err != nil {
				return nil, err
			} else if removed {
				report.Deleted++
				deleted = append(deleted, insp.ID)
				continue
			}
			report.Demoted++
		}
		metaSync[insp.ID] = metaFor(insp)
	}

	demoted, removed, err := c.enforceCapacity(metaSync)
	if err != nil {
		return nil, err
	}
	report.Demoted += demoted
	report.Deleted += len(removed)
	deleted = append(deleted, removed...)

	if err := c.store.Vectors().UpdateMetaBatch(store.KindInspiration, metaSync); err != nil {
		c.logger.Warn("vector meta sync failed, will retry next pass", zap.Error(err))
	}
	if err := c.store.Vectors().DeleteBatch(store.KindInspiration, deleted); err != nil {
		c.logger.Warn("vector delete failed, will retry next pass", zap.Error(err))
	}

	c.logger.Info("consolidation complete",
		zap.Int("swept", report.Swept), zap.Int("promoted", report.Promoted),
		zap.Int("demoted", report.Demoted), zap.Int("deleted", report.Deleted))
	return report, nil
}

// demoteOrDelete drops an inspiration below its floor one tier down, or
// deletes it from ephemeral. Returns true when deleted.
func (c *Consolidator) demoteOrDelete(insp *store.Inspiration) (bool, error) {
	target, ok := DemotionTarget(insp.Tier)
	if !ok {
		if err := c.store.DeleteInspiration(insp.ID); err != nil {
			return false, err
		}
		c.logger.Debug("inspiration faded out", zap.String("topic", insp.Topic))
		return true, nil
	}
	if target == insp.Tier {
		return false, nil // core holds on strength
	}
	if err := c.store.SetInspirationTier(insp.ID, target, insp.Strength); err != nil {
		return false, err
	}
	insp.Tier = target
	return false, nil
}

// enforceCapacity trims overful tiers from the weakest upward. Overflow from
// a bounded tier demotes one tier down; ephemeral overflow is impossible
// (unbounded) so nothing is deleted here except via the demotion chain.
func (c *Consolidator) enforceCapacity(metaSync map[string]store.VectorMeta) (demoted int, deleted []string, err error) {
	// Highest tier first so demotions cascade downward in one pass.
	order := []store.Tier{store.TierCore, store.TierLongTerm, store.TierShortTerm}
	for _, tier := range order {
		policy := PolicyFor(tier)
		if policy.MaxPopulation <= 0 {
			continue
		}
		members, err := c.store.InspirationsByTier(tier) // weakest first
		if err != nil {
			return demoted, deleted, err
		}
		overflow := len(members) - policy.MaxPopulation
		for i := 0; i < overflow; i++ {
			insp := members[i]
			target, ok := DemotionTarget(tier)
			if !ok || target == tier {
				// Core capacity overflow demotes to long_term; only the
				// strength floor is exempt from demotion there.
				target, ok = store.TierLongTerm, true
				if tier != store.TierCore {
					ok = false
				}
			}
			if !ok {
				if err := c.store.DeleteInspiration(insp.ID); err != nil {
					return demoted, deleted, err
				}
				deleted = append(deleted, insp.ID)
				delete(metaSync, insp.ID)
				continue
			}
			if err := c.store.SetInspirationTier(insp.ID, target, insp.Strength); err != nil {
				return demoted, deleted, err
			}
			insp.Tier = target
			demoted++
			metaSync[insp.ID] = metaFor(insp)
		}
	}
	return demoted, deleted, nil
}
