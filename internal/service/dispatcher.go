package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/unclebandit/pulse-scheduler/internal/model"
	"github.com/unclebandit/pulse-scheduler/internal/notify"
	"github.com/unclebandit/pulse-scheduler/internal/repository"
)

const (
	DefaultDispatchConcurrency = 5
	DefaultMaxAttempts         = 3
	// DefaultRelayGrace keeps the relay away from rows whose first dispatch
	// may still be in flight.
	DefaultRelayGrace = time.Minute
)

// Dispatcher delivers committed outbox rows through the gateway and records
// the outcome on each row.
type Dispatcher struct {
	Store       repository.Store
	Gateway     notify.Gateway
	Logger      *zap.Logger
	Concurrency int
	MaxAttempts int
	RelayGrace  time.Duration
	Now         func() time.Time
}

func NewDispatcher(store repository.Store, gateway notify.Gateway, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		Store:       store,
		Gateway:     gateway,
		Logger:      logger,
		Concurrency: DefaultDispatchConcurrency,
		MaxAttempts: DefaultMaxAttempts,
		RelayGrace:  DefaultRelayGrace,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

type DispatchReport struct {
	Sent      int      `json:"sent"`
	Failed    int      `json:"failed"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// Dispatch sends msgs with bounded concurrency. A failed message is logged
// and counted; it never stops the rest of the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, msgs []*model.OutboundMessage) *DispatchReport {
	report := &DispatchReport{}
	if len(msgs) == 0 {
		return report
	}

	limit := d.Concurrency
	if limit <= 0 {
		limit = DefaultDispatchConcurrency
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)

	for _, msg := range msgs {
		g.Go(func() error {
			err := d.send(ctx, msg)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.FailedIDs = append(report.FailedIDs, msg.ID)
				return nil
			}
			report.Sent++
			return nil
		})
	}
	_ = g.Wait()
	return report
}

func (d *Dispatcher) send(ctx context.Context, msg *model.OutboundMessage) error {
	log := d.Logger.With(
		zap.String("message_id", msg.ID),
		zap.String("campaign_id", msg.CampaignID),
		zap.String("kind", string(msg.Kind)),
	)

	data, err := msg.Data()
	if err == nil {
		err = d.Gateway.Notify(ctx, msg.Kind, msg.Address, data)
	}

	status, lastError := model.MessageStatusSent, ""
	if err != nil {
		status, lastError = model.MessageStatusFailed, err.Error()
		log.Warn("notification failed", zap.Error(err))
	}
	if uerr := d.Store.Outbox().UpdateStatus(ctx, msg.ID, status, lastError); uerr != nil {
		log.Error("failed to record notification status", zap.String("status", status), zap.Error(uerr))
	}
	return err
}

// RelayPending re-dispatches rows left pending by an interrupted dispatch and
// failed rows that still have attempts left.
func (d *Dispatcher) RelayPending(ctx context.Context, limit int) (*DispatchReport, error) {
	maxAttempts := d.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	before := d.Now().Add(-d.RelayGrace)

	msgs, err := d.Store.Outbox().ListRetryable(ctx, before, maxAttempts, limit)
	if err != nil {
		return nil, err
	}
	if len(msgs) > 0 {
		d.Logger.Info("relaying outbox", zap.Int("count", len(msgs)))
	}
	return d.Dispatch(ctx, msgs), nil
}
