// cmd/worker/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/app"
	"github.com/unclebandit/pulse-scheduler/internal/config"
	"github.com/unclebandit/pulse-scheduler/internal/logger"
	"github.com/unclebandit/pulse-scheduler/internal/notify"
	"github.com/unclebandit/pulse-scheduler/internal/queue"
)

// The worker drives the campaign clock. With a broker configured it also
// consumes the notification topics and hands them to the mailer.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "pulse-worker")
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to start", zap.Error(err))
	}
	defer a.Close()

	if cfg.Gateway == "queue" && cfg.AMQPURL != "" {
		consumer, err := queue.DialAMQP(cfg.AMQPURL, log)
		if err != nil {
			log.Fatal("failed to connect to RabbitMQ", zap.Error(err))
		}
		defer consumer.Close()
		if err := notify.Forward(consumer, a.Sink(), log); err != nil {
			log.Fatal("failed to register consumer", zap.Error(err))
		}
		log.Info("consuming notifications")
	}

	if err := a.Ticker().Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("worker stopped", zap.Error(err))
	}
	log.Info("worker stopped")
}
