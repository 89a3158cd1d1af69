// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/unclebandit/pulse-scheduler/internal/app"
	"github.com/unclebandit/pulse-scheduler/internal/config"
	"github.com/unclebandit/pulse-scheduler/internal/controller"
	"github.com/unclebandit/pulse-scheduler/internal/handler"
	"github.com/unclebandit/pulse-scheduler/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "pulse-server")
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

	campaignController := &controller.CampaignController{
		Clock:     a.Clock,
		Builder:   a.Builder,
		Reminders: a.Reminders,
		Logger:    log,
	}
	campaignHandler := handler.NewCampaignHandler(a.Campaigns, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	campaignHandler.Mount(r)
	campaignController.Mount(r)

	srv := &http.Server{Addr: cfg.Addr(), Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", zap.Error(err))
		}
	}()

	log.Info("server running", zap.String("addr", cfg.Addr()), zap.String("gateway", cfg.Gateway))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", zap.Error(err))
	}
	log.Info("server stopped")
}
