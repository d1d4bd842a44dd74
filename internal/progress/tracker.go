package progress

import (
	"context"
	"errors"
	"math"

	"github.com/AbhigyanPie/product-impoter/internal/models"
)

// ErrNotFound reports an unknown or expired task id.
var ErrNotFound = errors.New("task not found")

// ErrFinalized reports a write against a task already in a terminal state.
var ErrFinalized = errors.New("task already finalized")

// Tracker maintains one mutable progress record per import task. The same
// record is written by whichever backend runs the import and read by the
// HTTP-serving path, so every write must be atomic and every read a
// consistent snapshot.
type Tracker interface {
	// Create registers a new pending task. Fails when the id is taken.
	Create(ctx context.Context, id, fileName string) error
	// Begin moves the task to processing and zeroes its counters, so a
	// redelivered task restarts from a clean slate. Returns ErrFinalized
	// when the task already reached a terminal state.
	Begin(ctx context.Context, id, message string) error
	// SetTotal records the row count discovered for the upload.
	SetTotal(ctx context.Context, id string, total int) error
	// Advance adds processed and errored rows and replaces the message.
	Advance(ctx context.Context, id string, rows, errored int, message string) error
	// Finalize moves the task to a terminal status. All later writes are
	// rejected with ErrFinalized.
	Finalize(ctx context.Context, id string, status models.TaskStatus, message string) error
	// Get returns a snapshot of the task, ErrNotFound when unknown.
	Get(ctx context.Context, id string) (models.ImportTask, error)
	// Delete discards the task record. Intake uses it to roll back a task
	// whose submission failed.
	Delete(ctx context.Context, id string) error
}

// percent derives the progress percentage, clamped to [0,100] and defined
// as 0 while the total is unknown.
func percent(processed, total int) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(processed) / float64(total) * 100))
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	return p
}
