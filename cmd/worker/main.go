package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/config"
	"github.com/AbhigyanPie/product-impoter/internal/importer"
	"github.com/AbhigyanPie/product-impoter/internal/progress"
	"github.com/AbhigyanPie/product-impoter/internal/queue"
	"github.com/AbhigyanPie/product-impoter/internal/runner"
	"github.com/AbhigyanPie/product-impoter/internal/store"
	"github.com/AbhigyanPie/product-impoter/internal/telemetry"
	"github.com/AbhigyanPie/product-impoter/internal/webhook"
	workerproc "github.com/AbhigyanPie/product-impoter/internal/worker"
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

	q := queue.NewRedisQueue(cfg)
	if err := q.Ping(ctx); err != nil {
		logger.Fatal("connect redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
	}
	tracker := progress.NewRedisTracker(q.Client(), cfg.TaskTTL)

	sp, err := runner.BuildSpool(ctx, cfg)
	if err != nil {
		logger.Fatal("init spool", zap.Error(err))
	}

	events := webhook.NewDispatcher(st, cfg.WebhookTimeout)
	imp := importer.New(sp, tracker, st, events, cfg.ChunkSize)

	workerID := os.Getenv("WORKER_ID")
	if workerID == "" {
		hostname, _ := os.Hostname()
		if hostname != "" {
			workerID = hostname
		} else {
			workerID = fmt.Sprintf("worker-%d", os.Getpid())
		}
	}
	processor := workerproc.NewProcessorWithID(cfg, q, tracker, imp, sp, workerID)

	go func() {
		if err := http.ListenAndServe(cfg.MetricsAddr, telemetry.Handler()); err != nil {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()

	logger.Info("worker started",
		zap.String("worker_id", workerID),
		zap.Duration("visibility", cfg.VisibilityTimeout),
		zap.Int("chunk_size", cfg.ChunkSize))
	if err := processor.Run(ctx); err != nil {
		logger.Info("worker stopped", zap.Error(err))
	}
}

func newLogger(env string) (*zap.Logger, error) {
	if env == "dev" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
