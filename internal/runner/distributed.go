package runner

import (
	"context"
	"fmt"

	"github.com/AbhigyanPie/product-impoter/internal/importer"
	"github.com/AbhigyanPie/product-impoter/internal/queue"
)

// Distributed hands imports to separate worker processes through the
// Redis queue.
type Distributed struct {
	queue *queue.RedisQueue
}

func NewDistributed(q *queue.RedisQueue) *Distributed {
	return &Distributed{queue: q}
}

func (r *Distributed) Submit(ctx context.Context, task importer.TaskRef) error {
	if err := r.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue import: %w", err)
	}
	return nil
}

func (r *Distributed) Mode() string {
	return "distributed"
}
