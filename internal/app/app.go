// Package app wires the scheduler services from configuration. Both the
// server and the worker build on it.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/config"
	"github.com/unclebandit/pulse-scheduler/internal/db"
	"github.com/unclebandit/pulse-scheduler/internal/lock"
	"github.com/unclebandit/pulse-scheduler/internal/notify"
	"github.com/unclebandit/pulse-scheduler/internal/queue"
	"github.com/unclebandit/pulse-scheduler/internal/repository"
	"github.com/unclebandit/pulse-scheduler/internal/selector"
	"github.com/unclebandit/pulse-scheduler/internal/service"
)

type App struct {
	Config *config.Config
	Logger *zap.Logger
	Store  repository.Store

	Gateway    notify.Gateway
	Dispatcher *service.Dispatcher
	Builder    *service.RoundBuilder
	Clock      *service.CampaignClock
	Reminders  *service.ReminderEscalator
	Campaigns  *service.CampaignService

	closers []func() error
}

// Open connects to Postgres and builds the services on top of it.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	conn, err := db.Open(ctx, cfg.DSN(), logger)
	if err != nil {
		return nil, err
	}
	a, err := New(cfg, repository.NewPostgresStore(conn), logger)
	if err != nil {
		conn.Close()
		return nil, err
	}
	a.closers = append(a.closers, conn.Close)
	return a, nil
}

// New builds the services over an existing store.
func New(cfg *config.Config, store repository.Store, logger *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger, Store: store}

	gw, err := a.gateway()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Gateway = gw

	a.Dispatcher = service.NewDispatcher(store, gw, logger)
	a.Dispatcher.Concurrency = cfg.DispatchConcurrency
	a.Dispatcher.MaxAttempts = cfg.DispatchMaxAttempts
	a.Builder = service.NewRoundBuilder(store, selector.NewSeeded(), a.Dispatcher, logger)
	a.Clock = service.NewCampaignClock(store, a.Builder, a.Dispatcher, logger)
	a.Reminders = service.NewReminderEscalator(store, a.Dispatcher, logger, nil)
	a.Campaigns = &service.CampaignService{Store: store, Logger: logger}
	return a, nil
}

func (a *App) gateway() (notify.Gateway, error) {
	switch a.Config.Gateway {
	case "http":
		return notify.NewHTTPGateway(a.Config.MailerURL, a.Logger), nil
	case "queue":
		q, err := a.queue()
		if err != nil {
			return nil, err
		}
		return &notify.QueueGateway{Queue: q}, nil
	default:
		return &notify.LogGateway{Logger: a.Logger}, nil
	}
}

// queue dials RabbitMQ when AMQP_URL is set. Without a broker the in-memory
// queue is drained in process into the mailer, or the log when no mailer is
// configured.
func (a *App) queue() (queue.Queue, error) {
	if a.Config.AMQPURL != "" {
		q, err := queue.DialAMQP(a.Config.AMQPURL, a.Logger)
		if err != nil {
			return nil, fmt.Errorf("dial amqp: %w", err)
		}
		a.closers = append(a.closers, q.Close)
		return q, nil
	}

	q := queue.NewInMemoryQueue(a.Logger)
	if err := notify.Forward(q, a.Sink(), a.Logger); err != nil {
		return nil, err
	}
	return q, nil
}

// Sink is where consumed envelopes end up.
func (a *App) Sink() notify.Gateway {
	if a.Config.MailerURL != "" {
		return notify.NewHTTPGateway(a.Config.MailerURL, a.Logger)
	}
	return &notify.LogGateway{Logger: a.Logger}
}

// Ticker builds the polling loop. Claims go through Redis when REDIS_ADDR is
// set, otherwise they are only exclusive within this process.
func (a *App) Ticker() *service.Ticker {
	var locker lock.Locker = lock.NewLocalLocker()
	if a.Config.RedisAddr != "" {
		client := lock.NewRedisClient(a.Config.RedisAddr, a.Config.RedisPassword, a.Config.RedisDB)
		a.closers = append(a.closers, client.Close)
		locker = &lock.RedisLocker{Client: client}
	}
	return &service.Ticker{
		Clock:        a.Clock,
		Dispatcher:   a.Dispatcher,
		Locker:       locker,
		Logger:       a.Logger,
		PollInterval: a.Config.PollInterval,
		BatchSize:    a.Config.TickBatchSize,
		LockTTL:      a.Config.LockTTL,
	}
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
