package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AbhigyanPie/product-impoter/internal/config"
	"github.com/AbhigyanPie/product-impoter/internal/importer"
)

// RedisQueue coordinates ready and in-flight import tasks in Redis so a
// separate worker process can run imports the API accepted. A meta hash
// per task carries the spool key, which is the durable handle to the
// uploaded content.
type RedisQueue struct {
	client        *redis.Client
	readyKey      string
	inflightKey   string
	metaPrefix    string
	visibilityTTL time.Duration
}

// NewRedisQueue builds a queue client from config.
func NewRedisQueue(cfg config.Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	visibility := cfg.VisibilityTimeout
	if visibility == 0 {
		visibility = 60 * time.Second
	}
	return &RedisQueue{
		client:        client,
		readyKey:      "import:ready",
		inflightKey:   "import:inflight",
		metaPrefix:    "import:meta:",
		visibilityTTL: visibility,
	}
}

// Client exposes the underlying connection so components that share the
// broker (the progress tracker) can reuse it.
func (q *RedisQueue) Client() *redis.Client {
	return q.client
}

// Ping verifies broker reachability. The backend selector probes it once
// at startup.
func (q *RedisQueue) Ping(ctx context.Context) error {
	return q.client.Ping(ctx).Err()
}

func (q *RedisQueue) metaKey(taskID string) string {
	return q.metaPrefix + taskID
}

// Enqueue records the task payload and pushes the id onto the ready list.
func (q *RedisQueue) Enqueue(ctx context.Context, task importer.TaskRef) error {
	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.metaKey(task.ID), "file_name", task.FileName, "spool_key", task.SpoolKey)
	pipe.RPush(ctx, q.readyKey, task.ID)
	_, err := pipe.Exec(ctx)
	return err
}

// DequeueWithLease pops a task from the ready list and places it into
// inflight with a visibility timeout. An empty task id means nothing was
// ready.
func (q *RedisQueue) DequeueWithLease(ctx context.Context) (importer.TaskRef, error) {
	res, err := dequeueScript.Run(ctx, q.client,
		[]string{q.readyKey, q.inflightKey},
		time.Now().Add(q.visibilityTTL).UnixMilli()).Result()
	if err == redis.Nil {
		return importer.TaskRef{}, nil
	}
	if err != nil {
		return importer.TaskRef{}, err
	}
	taskID, ok := res.(string)
	if !ok {
		return importer.TaskRef{}, fmt.Errorf("unexpected type from dequeue script: %T", res)
	}

	meta, err := q.client.HGetAll(ctx, q.metaKey(taskID)).Result()
	if err != nil {
		return importer.TaskRef{}, err
	}
	return importer.TaskRef{ID: taskID, FileName: meta["file_name"], SpoolKey: meta["spool_key"]}, nil
}

// ExtendLease pushes the visibility deadline forward for a long import.
func (q *RedisQueue) ExtendLease(ctx context.Context, taskID string, extension time.Duration) error {
	return q.client.ZAdd(ctx, q.inflightKey, redis.Z{
		Score:  float64(time.Now().Add(extension).UnixMilli()),
		Member: taskID,
	}).Err()
}

// Ack removes a task from in-flight tracking and drops its meta record.
func (q *RedisQueue) Ack(ctx context.Context, taskID string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey, taskID)
	pipe.Del(ctx, q.metaKey(taskID))
	_, err := pipe.Exec(ctx)
	return err
}

// RequeueExpired reclaims leases that timed out, re-enqueuing the ids so
// a crashed worker's tasks get picked up again.
func (q *RedisQueue) RequeueExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.inflightKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.inflightKey, id)
		pipe.RPush(ctx, q.readyKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// Depth returns the ready list length.
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.readyKey).Result()
}

var dequeueScript = redis.NewScript(`
local task = redis.call('LPOP', KEYS[1])
if task then
  redis.call('ZADD', KEYS[2], ARGV[1], task)
  return task
end
return nil
`)
