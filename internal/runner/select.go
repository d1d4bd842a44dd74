package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/config"
	"github.com/AbhigyanPie/product-impoter/internal/importer"
	"github.com/AbhigyanPie/product-impoter/internal/progress"
	"github.com/AbhigyanPie/product-impoter/internal/queue"
	"github.com/AbhigyanPie/product-impoter/internal/spool"
)

// Backend bundles the execution mode picked at startup. The choice is
// immutable for the life of the process; handlers receive these
// dependencies by injection and never re-probe.
type Backend struct {
	Runner  Runner
	Tracker progress.Tracker
	Spool   spool.Spool
}

// Select probes the Redis broker once and wires the matching backend.
// Reachable broker: imports run on separate worker processes with shared
// progress state in Redis. Unreachable or unconfigured: imports run on
// background goroutines with in-process progress state.
func Select(ctx context.Context, cfg config.Config, store importer.BatchWriter, events importer.Publisher) (Backend, error) {
	if cfg.RedisAddr != "" {
		q := queue.NewRedisQueue(cfg)
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := q.Ping(probeCtx)
		cancel()
		if err == nil {
			sp, err := BuildSpool(ctx, cfg)
			if err != nil {
				return Backend{}, err
			}
			zap.L().Info("redis reachable, using distributed import backend",
				zap.String("addr", cfg.RedisAddr))
			return Backend{
				Runner:  NewDistributed(q),
				Tracker: progress.NewRedisTracker(q.Client(), cfg.TaskTTL),
				Spool:   sp,
			}, nil
		}
		zap.L().Info("redis unreachable, falling back to inline import backend",
			zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = q.Client().Close()
	}

	sp, err := spool.NewLocal(cfg.SpoolDir)
	if err != nil {
		return Backend{}, err
	}
	tracker := progress.NewMemoryTracker(cfg.TaskTTL)
	tracker.StartJanitor(ctx, time.Minute)
	imp := importer.New(sp, tracker, store, events, cfg.ChunkSize)
	return Backend{
		Runner:  NewInline(ctx, imp, cfg.InlineWorkers, cfg.InlineQueueDepth),
		Tracker: tracker,
		Spool:   sp,
	}, nil
}

// BuildSpool picks the S3 spool when a bucket is configured, otherwise a
// local directory. The worker process uses the same selection so both
// sides of the queue read the same staging area.
func BuildSpool(ctx context.Context, cfg config.Config) (spool.Spool, error) {
	if cfg.SpoolS3Bucket != "" {
		return spool.NewS3(ctx, cfg)
	}
	return spool.NewLocal(cfg.SpoolDir)
}
