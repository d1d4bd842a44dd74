package progress

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AbhigyanPie/product-impoter/internal/models"
)

// RedisTracker keeps task state in a shared Redis hash so the API process
// and any worker process observe the same counters. Scripts keep the
// terminal-state check and the mutation atomic; every write refreshes the
// TTL so live tasks outlast idle ones.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisTracker{client: client, ttl: ttl}
}

func (r *RedisTracker) key(id string) string {
	return "import:task:" + id
}

func (r *RedisTracker) Create(ctx context.Context, id, fileName string) error {
	now := time.Now().UnixMilli()
	res, err := createScript.Run(ctx, r.client, []string{r.key(id)},
		fileName, "Upload received", now, r.ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return fmt.Errorf("task %s already exists", id)
	}
	return nil
}

func (r *RedisTracker) Begin(ctx context.Context, id, message string) error {
	return r.run(ctx, beginScript, id, message, time.Now().UnixMilli(), r.ttl.Milliseconds())
}

func (r *RedisTracker) SetTotal(ctx context.Context, id string, total int) error {
	return r.run(ctx, setTotalScript, id, total, time.Now().UnixMilli(), r.ttl.Milliseconds())
}

func (r *RedisTracker) Advance(ctx context.Context, id string, rows, errored int, message string) error {
	return r.run(ctx, advanceScript, id, rows, errored, message, time.Now().UnixMilli(), r.ttl.Milliseconds())
}

func (r *RedisTracker) Finalize(ctx context.Context, id string, status models.TaskStatus, message string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	return r.run(ctx, finalizeScript, id, string(status), message, time.Now().UnixMilli(), r.ttl.Milliseconds())
}

func (r *RedisTracker) Get(ctx context.Context, id string) (models.ImportTask, error) {
	vals, err := r.client.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return models.ImportTask{}, err
	}
	if len(vals) == 0 {
		return models.ImportTask{}, ErrNotFound
	}
	task := models.ImportTask{
		ID:            id,
		FileName:      vals["file_name"],
		Status:        models.TaskStatus(vals["status"]),
		TotalRows:     atoi(vals["total_rows"]),
		ProcessedRows: atoi(vals["processed_rows"]),
		ErrorRows:     atoi(vals["error_rows"]),
		Message:       vals["message"],
		CreatedAt:     msTime(vals["created_at"]),
		UpdatedAt:     msTime(vals["updated_at"]),
	}
	task.Percent = percent(task.ProcessedRows, task.TotalRows)
	return task, nil
}

func (r *RedisTracker) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, r.key(id)).Err()
}

func (r *RedisTracker) run(ctx context.Context, script *redis.Script, id string, args ...any) error {
	res, err := script.Run(ctx, r.client, []string{r.key(id)}, args...).Int()
	if err != nil {
		return err
	}
	switch res {
	case 1:
		return nil
	case -1:
		return ErrFinalized
	default:
		return ErrNotFound
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func msTime(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1],
  'file_name', ARGV[1], 'status', 'pending',
  'total_rows', 0, 'processed_rows', 0, 'error_rows', 0,
  'message', ARGV[2], 'created_at', ARGV[3], 'updated_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)

var beginScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'completed' or status == 'failed' then
  return -1
end
redis.call('HSET', KEYS[1],
  'status', 'processing', 'total_rows', 0, 'processed_rows', 0,
  'error_rows', 0, 'message', ARGV[1], 'updated_at', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

var setTotalScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'completed' or status == 'failed' then
  return -1
end
redis.call('HSET', KEYS[1], 'total_rows', ARGV[1], 'updated_at', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

var advanceScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'completed' or status == 'failed' then
  return -1
end
redis.call('HINCRBY', KEYS[1], 'processed_rows', ARGV[1])
redis.call('HINCRBY', KEYS[1], 'error_rows', ARGV[2])
redis.call('HSET', KEYS[1], 'message', ARGV[3], 'updated_at', ARGV[4])
redis.call('PEXPIRE', KEYS[1], ARGV[5])
return 1
`)

var finalizeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'completed' or status == 'failed' then
  return -1
end
redis.call('HSET', KEYS[1], 'status', ARGV[1], 'message', ARGV[2], 'updated_at', ARGV[3])
redis.call('PEXPIRE', KEYS[1], ARGV[4])
return 1
`)
