package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/config"
	"github.com/AbhigyanPie/product-impoter/internal/importer"
	"github.com/AbhigyanPie/product-impoter/internal/progress"
	"github.com/AbhigyanPie/product-impoter/internal/queue"
	"github.com/AbhigyanPie/product-impoter/internal/spool"
	"github.com/AbhigyanPie/product-impoter/internal/telemetry"
)

// Processor drives the worker execution loop in distributed mode. Each
// iteration reclaims expired leases, then leases one task and runs the
// import to a terminal state before acking.
type Processor struct {
	cfg      config.Config
	queue    *queue.RedisQueue
	tracker  progress.Tracker
	imp      *importer.Importer
	spool    spool.Spool
	workerID string
	log      *zap.Logger
}

func NewProcessor(cfg config.Config, q *queue.RedisQueue, tracker progress.Tracker, imp *importer.Importer, sp spool.Spool) *Processor {
	return NewProcessorWithID(cfg, q, tracker, imp, sp, "")
}

// NewProcessorWithID creates a processor with a specific worker ID for logging.
func NewProcessorWithID(cfg config.Config, q *queue.RedisQueue, tracker progress.Tracker, imp *importer.Importer, sp spool.Spool, workerID string) *Processor {
	return &Processor{
		cfg:      cfg,
		queue:    q,
		tracker:  tracker,
		imp:      imp,
		spool:    sp,
		workerID: workerID,
		log:      zap.L().Named("worker"),
	}
}

// Run starts the main worker loop until context cancellation.
func (p *Processor) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if reclaimed, err := p.queue.RequeueExpired(ctx, time.Now(), 100); err == nil && len(reclaimed) > 0 {
			p.log.Warn("requeued expired leases", zap.Strings("task_ids", reclaimed))
		}
		if depth, err := p.queue.Depth(ctx); err == nil {
			telemetry.QueueDepthGauge.Set(float64(depth))
		}

		task, err := p.queue.DequeueWithLease(ctx)
		if err != nil {
			time.Sleep(p.cfg.WorkerPollInterval)
			continue
		}
		if task.ID == "" {
			time.Sleep(p.cfg.WorkerPollInterval)
			continue
		}

		p.process(ctx, task)
	}
}

// process runs one import under a lease. The lease is extended while the
// import runs and the task is acked once it reaches a terminal state, so
// a crash mid-import leaves the lease to expire and the task to be
// redelivered to another worker.
func (p *Processor) process(ctx context.Context, task importer.TaskRef) {
	log := p.log.With(zap.String("task_id", task.ID), zap.String("worker_id", p.workerID))

	// A crash between finalize and ack redelivers a finished task.
	if rec, err := p.tracker.Get(ctx, task.ID); err == nil && rec.Status.Terminal() {
		log.Info("task already terminal, acking redelivery", zap.String("status", string(rec.Status)))
		_ = p.queue.Ack(ctx, task.ID)
		return
	} else if errors.Is(err, progress.ErrNotFound) {
		log.Warn("task record expired before processing, dropping")
		_ = p.queue.Ack(ctx, task.ID)
		if task.SpoolKey != "" {
			_ = p.spool.Remove(context.WithoutCancel(ctx), task.SpoolKey)
		}
		return
	}

	if task.SpoolKey == "" {
		log.Warn("task carries no spool key, dropping")
		_ = p.queue.Ack(ctx, task.ID)
		return
	}

	leaseCtx, stopLease := context.WithCancel(ctx)
	go p.keepLease(leaseCtx, task.ID)

	err := p.imp.Run(ctx, task)
	stopLease()
	if err != nil {
		log.Warn("import failed", zap.Error(err))
	}
	_ = p.queue.Ack(ctx, task.ID)
}

// keepLease extends the visibility deadline at half the timeout cadence
// so long imports are not reclaimed mid-run.
func (p *Processor) keepLease(ctx context.Context, taskID string) {
	interval := p.cfg.VisibilityTimeout / 2
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.queue.ExtendLease(ctx, taskID, p.cfg.VisibilityTimeout)
		}
	}
}
