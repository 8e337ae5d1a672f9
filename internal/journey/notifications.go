package journey

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"personad/internal/config"
	"personad/internal/platform"
	"personad/internal/store"
)

// NotificationJourney drains the inbox: fetch, dedup against the processed
// set, order by priority, and run a scenario for the top few. Likes, reposts
// and follow events are acknowledged without a scenario.
type NotificationJourney struct {
	cfg      config.FetchConfig
	client   platform.Client
	store    *store.Store
	scenario *Scenario
	logger   *zap.Logger
	now      func() time.Time
}

// NewNotificationJourney builds the inbound journey.
func NewNotificationJourney(cfg config.FetchConfig, client platform.Client, st *store.Store, sc *Scenario, logger *zap.Logger, now func() time.Time) *NotificationJourney {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &NotificationJourney{cfg: cfg, client: client, store: st, scenario: sc, logger: logger, now: now}
}

// JourneyReport summarises one journey run.
type JourneyReport struct {
	Fetched   int
	Processed int
	Replied   int
	Liked     int
	Skipped   int
}

// Run executes the notification journey once. Account-class errors propagate;
// everything else is absorbed per notification.
func (j *NotificationJourney) Run(ctx context.Context) (*JourneyReport, error) {
	report := &JourneyReport{}

	notifs, err := j.client.GetAllNotifications(ctx, j.cfg.NotificationFetch)
	if err != nil {
		if platform.IsAccountError(err) {
			return report, err
		}
		j.logger.Warn("notification fetch failed", zap.Error(err))
		return report, nil
	}
	report.Fetched = len(notifs)

	fresh := notifs[:0]
	for _, n := range notifs {
		done, derr := j.store.IsNotificationProcessed(n.ID)
		if derr != nil {
			return report, derr
		}
		if !done {
			fresh = append(fresh, n)
		}
	}
	sort.SliceStable(fresh, func(a, b int) bool {
		return fresh[a].Type.Priority() < fresh[b].Type.Priority()
	})

	limit := j.cfg.ProcessLimit
	if limit <= 0 || limit > len(fresh) {
		limit = len(fresh)
	}
	for _, n := range fresh[:limit] {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err := j.process(ctx, n, report); err != nil {
			if platform.IsAccountError(err) {
				return report, err
			}
			j.logger.Warn("notification scenario failed",
				zap.String("id", n.ID), zap.String("type", string(n.Type)), zap.Error(err))
		}
		if err := j.store.MarkNotificationProcessed(n.ID, j.now()); err != nil {
			return report, err
		}
		report.Processed++
	}
	return report, nil
}

func (j *NotificationJourney) process(ctx context.Context, n platform.Notification, report *JourneyReport) error {
	switch n.Type {
	case platform.NotifReply, platform.NotifMention, platform.NotifQuote:
		if n.Post == nil {
			return nil
		}
		res, err := j.scenario.Run(ctx, *n.Post, string(n.Type))
		if err != nil {
			return err
		}
		if res.Replied {
			report.Replied++
		}
		if res.Liked {
			report.Liked++
		}
		if res.Skipped {
			report.Skipped++
		}
	case platform.NotifFollow:
		// Remember the follower; the follow engine decides about following
		// back on its own schedule.
		if _, err := j.store.GetOrCreatePerson(n.User.ID, n.User.ScreenName, j.now()); err != nil {
			return err
		}
	default:
		// Likes and reposts are acknowledged only.
	}
	return nil
}
