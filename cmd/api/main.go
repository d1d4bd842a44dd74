package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/api"
	"github.com/AbhigyanPie/product-impoter/internal/config"
	"github.com/AbhigyanPie/product-impoter/internal/ratelimit"
	"github.com/AbhigyanPie/product-impoter/internal/runner"
	"github.com/AbhigyanPie/product-impoter/internal/store"
	"github.com/AbhigyanPie/product-impoter/internal/webhook"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger, err := newLogger(cfg.Env)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		<-ch
		cancel()
	}()

	st, err := store.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}

	events := webhook.NewDispatcher(st, cfg.WebhookTimeout)
	backend, err := runner.Select(ctx, cfg, st, events)
	if err != nil {
		logger.Fatal("select execution backend", zap.Error(err))
	}
	limiter := ratelimit.NewTokenBucket(cfg.UploadRateCapacity, cfg.UploadRateRefill, time.Hour)

	server := api.New(cfg, st, backend, events, limiter)
	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	logger.Info("api listening",
		zap.String("port", cfg.HTTPPort),
		zap.String("backend", backend.Runner.Mode()))
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(shutdownCtx)
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
