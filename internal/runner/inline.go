package runner

import (
	"context"

	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/importer"
)

// Inline runs imports on a fixed pool of goroutines inside the API
// process. Submissions beyond the buffered backlog fail fast with ErrBusy.
type Inline struct {
	imp   *importer.Importer
	tasks chan importer.TaskRef
	log   *zap.Logger
}

func NewInline(ctx context.Context, imp *importer.Importer, workers, depth int) *Inline {
	if workers < 1 {
		workers = 2
	}
	if depth < 1 {
		depth = 32
	}
	r := &Inline{
		imp:   imp,
		tasks: make(chan importer.TaskRef, depth),
		log:   zap.L().Named("runner"),
	}
	for i := 0; i < workers; i++ {
		go r.work(ctx)
	}
	return r
}

func (r *Inline) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-r.tasks:
			if err := r.imp.Run(ctx, task); err != nil {
				r.log.Warn("import ended in failure", zap.String("task_id", task.ID), zap.Error(err))
			}
		}
	}
}

func (r *Inline) Submit(_ context.Context, task importer.TaskRef) error {
	select {
	case r.tasks <- task:
		return nil
	default:
		return ErrBusy
	}
}

func (r *Inline) Mode() string {
	return "inline"
}
