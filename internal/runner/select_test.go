package runner

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/AbhigyanPie/product-impoter/internal/config"
	"github.com/AbhigyanPie/product-impoter/internal/importer"
	"github.com/AbhigyanPie/product-impoter/internal/progress"
	"github.com/AbhigyanPie/product-impoter/internal/queue"
)

func TestSelectDistributedWhenRedisReachable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	cfg := config.Config{
		RedisAddr: mr.Addr(),
		SpoolDir:  t.TempDir(),
		TaskTTL:   time.Hour,
	}
	backend, err := Select(ctx, cfg, nil, nil)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if backend.Runner.Mode() != "distributed" {
		t.Fatalf("mode = %q, want distributed", backend.Runner.Mode())
	}
	if _, ok := backend.Tracker.(*progress.RedisTracker); !ok {
		t.Fatalf("tracker type = %T, want *progress.RedisTracker", backend.Tracker)
	}

	// Submissions must land on the broker where workers pick them up.
	task := importer.TaskRef{ID: "t1", FileName: "products.csv", SpoolKey: "uploads/t1.csv"}
	if err := backend.Runner.Submit(ctx, task); err != nil {
		t.Fatalf("submit: %v", err)
	}
	q := queue.NewRedisQueue(cfg)
	t.Cleanup(func() { _ = q.Client().Close() })
	got, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got != task {
		t.Fatalf("dequeued %+v, want %+v", got, task)
	}
}

func TestSelectFallsBackToInline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Config{
		RedisAddr:        "127.0.0.1:1",
		SpoolDir:         t.TempDir(),
		TaskTTL:          time.Hour,
		ChunkSize:        100,
		InlineWorkers:    1,
		InlineQueueDepth: 4,
	}
	backend, err := Select(ctx, cfg, &countingWriter{}, nil)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if backend.Runner.Mode() != "inline" {
		t.Fatalf("mode = %q, want inline", backend.Runner.Mode())
	}
	if _, ok := backend.Tracker.(*progress.MemoryTracker); !ok {
		t.Fatalf("tracker type = %T, want *progress.MemoryTracker", backend.Tracker)
	}
}

func TestSelectSkipsProbeWithoutAddr(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Config{SpoolDir: t.TempDir(), TaskTTL: time.Hour}
	backend, err := Select(ctx, cfg, &countingWriter{}, nil)
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if backend.Runner.Mode() != "inline" {
		t.Fatalf("mode = %q, want inline", backend.Runner.Mode())
	}
}
