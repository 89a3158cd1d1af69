package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/lock"
)

// LockKey is the claim a ticker holds while working a campaign.
func LockKey(campaignID string) string {
	return "pulse:campaign:" + campaignID
}

// Ticker is the background driver: it finds due campaigns, ticks each under
// a claim, then relays outbox rows earlier dispatches left behind.
type Ticker struct {
	Clock        *CampaignClock
	Dispatcher   *Dispatcher
	Locker       lock.Locker
	Logger       *zap.Logger
	PollInterval time.Duration
	BatchSize    int
	LockTTL      time.Duration
}

type TickerReport struct {
	Due       int             `json:"due"`
	Ticked    int             `json:"ticked"`
	Contended int             `json:"contended"`
	Errors    int             `json:"errors"`
	Relay     *DispatchReport `json:"relay,omitempty"`
}

// RunOnce performs one polling pass. A failing campaign is logged and the
// pass moves on; only failing to list due campaigns is returned.
func (t *Ticker) RunOnce(ctx context.Context) (*TickerReport, error) {
	ids, err := t.Clock.DueCampaigns(ctx, t.BatchSize)
	if err != nil {
		return nil, err
	}
	report := &TickerReport{Due: len(ids)}

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		log := t.Logger.With(zap.String("campaign_id", id))

		lease, ok, err := t.Locker.Acquire(ctx, LockKey(id), t.LockTTL)
		if err != nil {
			report.Errors++
			log.Error("failed to claim campaign", zap.Error(err))
			continue
		}
		if !ok {
			report.Contended++
			log.Debug("campaign claimed elsewhere")
			continue
		}

		_, err = t.Clock.Tick(ctx, id)
		if rerr := lease.Release(context.WithoutCancel(ctx)); rerr != nil {
			log.Warn("failed to release claim", zap.Error(rerr))
		}
		if err != nil {
			report.Errors++
			log.Error("tick failed", zap.Error(err))
			continue
		}
		report.Ticked++
	}

	relay, err := t.Dispatcher.RelayPending(ctx, t.BatchSize)
	if err != nil {
		report.Errors++
		t.Logger.Error("outbox relay failed", zap.Error(err))
	} else {
		report.Relay = relay
	}
	return report, nil
}

// Run polls every PollInterval until ctx is done.
func (t *Ticker) Run(ctx context.Context) error {
	interval := t.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	t.Logger.Info("ticker started", zap.Duration("poll_interval", interval))
	for {
		if report, err := t.RunOnce(ctx); err != nil {
			t.Logger.Error("polling pass failed", zap.Error(err))
		} else if report.Due > 0 {
			t.Logger.Info("polling pass done",
				zap.Int("due", report.Due),
				zap.Int("ticked", report.Ticked),
				zap.Int("contended", report.Contended),
				zap.Int("errors", report.Errors),
			)
		}

		select {
		case <-ctx.Done():
			t.Logger.Info("ticker stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
