package queue

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/AbhigyanPie/product-impoter/internal/config"
	"github.com/AbhigyanPie/product-impoter/internal/importer"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	q := NewRedisQueue(config.Config{RedisAddr: mr.Addr(), VisibilityTimeout: time.Minute})
	t.Cleanup(func() { _ = q.Client().Close() })
	return q, mr
}

func TestQueueRoundTrip(t *testing.T) {
	ctx := context.Background()
	q, mr := newTestQueue(t)

	task := importer.TaskRef{ID: "t1", FileName: "products.csv", SpoolKey: "uploads/t1.csv"}
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if depth, _ := q.Depth(ctx); depth != 1 {
		t.Fatalf("expected depth 1, got %d", depth)
	}

	got, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got != task {
		t.Fatalf("got %+v, want %+v", got, task)
	}
	if depth, _ := q.Depth(ctx); depth != 0 {
		t.Fatalf("expected empty ready list, got %d", depth)
	}

	// Leased but unacked: not visible to another dequeue.
	if again, _ := q.DequeueWithLease(ctx); again.ID != "" {
		t.Fatalf("leased task must not be redelivered, got %+v", again)
	}

	if err := q.Ack(ctx, task.ID); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if mr.Exists("import:meta:t1") {
		t.Fatalf("meta should be dropped on ack")
	}
}

func TestQueueEmptyDequeue(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	got, err := q.DequeueWithLease(ctx)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if got.ID != "" {
		t.Fatalf("expected empty task, got %+v", got)
	}
}

func TestQueueRequeueExpired(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	task := importer.TaskRef{ID: "t1", FileName: "products.csv", SpoolKey: "uploads/t1.csv"}
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	// Before the deadline nothing is reclaimed.
	ids, err := q.RequeueExpired(ctx, time.Now(), 10)
	if err != nil || len(ids) != 0 {
		t.Fatalf("premature requeue: ids=%v err=%v", ids, err)
	}

	// A crashed worker shows up as an expired lease.
	ids, err = q.RequeueExpired(ctx, time.Now().Add(2*time.Minute), 10)
	if err != nil || len(ids) != 1 || ids[0] != "t1" {
		t.Fatalf("requeue: ids=%v err=%v", ids, err)
	}

	got, err := q.DequeueWithLease(ctx)
	if err != nil || got.ID != "t1" || got.SpoolKey != task.SpoolKey {
		t.Fatalf("redelivery kept meta: got=%+v err=%v", got, err)
	}
}

func TestQueueExtendLease(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	task := importer.TaskRef{ID: "t1", SpoolKey: "uploads/t1.csv"}
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if _, err := q.DequeueWithLease(ctx); err != nil {
		t.Fatalf("dequeue: %v", err)
	}

	if err := q.ExtendLease(ctx, "t1", 10*time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}
	// The original deadline has passed but the extension holds the lease.
	ids, err := q.RequeueExpired(ctx, time.Now().Add(2*time.Minute), 10)
	if err != nil || len(ids) != 0 {
		t.Fatalf("extended lease reclaimed early: ids=%v err=%v", ids, err)
	}
	ids, err = q.RequeueExpired(ctx, time.Now().Add(20*time.Minute), 10)
	if err != nil || len(ids) != 1 {
		t.Fatalf("extended lease never expired: ids=%v err=%v", ids, err)
	}
}
