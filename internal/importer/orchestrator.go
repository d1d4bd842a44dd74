package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/models"
	"github.com/AbhigyanPie/product-impoter/internal/progress"
	"github.com/AbhigyanPie/product-impoter/internal/spool"
	"github.com/AbhigyanPie/product-impoter/internal/telemetry"
)

// TaskRef carries everything a backend needs to run one import. SpoolKey
// is the durable handle to the uploaded content.
type TaskRef struct {
	ID       string `json:"task_id"`
	FileName string `json:"file_name"`
	SpoolKey string `json:"spool_key"`
}

// BatchWriter persists one chunk of normalized records. Records are keyed
// on lowercase sku, so retrying a chunk is safe.
type BatchWriter interface {
	UpsertProducts(ctx context.Context, records []models.Product) (inserted, updated int, err error)
}

// Publisher delivers terminal events to webhook subscribers, best effort.
type Publisher interface {
	Publish(event string, payload map[string]any)
}

// Importer drives one upload through read, normalize, upsert, and progress
// in strict chunk order. Both execution backends run the same Importer;
// only the injected tracker and spool differ.
type Importer struct {
	spool   spool.Spool
	tracker progress.Tracker
	store   BatchWriter
	events  Publisher
	chunk   int
	log     *zap.Logger
}

func New(sp spool.Spool, tracker progress.Tracker, store BatchWriter, events Publisher, chunkSize int) *Importer {
	if chunkSize < 1 {
		chunkSize = DefaultChunkSize
	}
	return &Importer{
		spool:   sp,
		tracker: tracker,
		store:   store,
		events:  events,
		chunk:   chunkSize,
		log:     zap.L().Named("importer"),
	}
}

// Run executes the whole import for task and always leaves it in a
// terminal state. The returned error reports why a failed state was
// reached; a nil return means the task completed.
func (imp *Importer) Run(ctx context.Context, task TaskRef) error {
	if err := imp.tracker.Begin(ctx, task.ID, "Starting import"); err != nil {
		if errors.Is(err, progress.ErrFinalized) {
			// Redelivered after a terminal state was reached; the spooled
			// payload is an orphan at this point.
			imp.cleanup(ctx, task)
			return nil
		}
		return fmt.Errorf("begin task %s: %w", task.ID, err)
	}
	telemetry.ImportsStarted.Inc()
	telemetry.ImportsInflight.Inc()
	defer telemetry.ImportsInflight.Dec()

	total, err := imp.countTotal(ctx, task)
	if err != nil {
		return imp.fail(ctx, task, err)
	}
	if err := imp.tracker.SetTotal(ctx, task.ID, total); err != nil {
		return imp.fail(ctx, task, fmt.Errorf("record total: %w", err))
	}

	src, err := imp.spool.Open(ctx, task.SpoolKey)
	if err != nil {
		return imp.fail(ctx, task, fmt.Errorf("open upload: %w", err))
	}
	defer src.Close()

	reader, err := NewChunkReader(src, imp.chunk)
	if err != nil {
		return imp.fail(ctx, task, err)
	}

	processed, errored := 0, 0
	for {
		if err := ctx.Err(); err != nil {
			return imp.fail(ctx, task, fmt.Errorf("import interrupted: %w", err))
		}
		chunk, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imp.fail(ctx, task, err)
		}

		valid := make([]models.Product, 0, len(chunk.Rows))
		rowErrs := append([]models.RowValidationError(nil), chunk.Bad...)
		for _, row := range chunk.Rows {
			product, err := NormalizeRow(row.Number, row.Fields)
			if err != nil {
				var rve models.RowValidationError
				if errors.As(err, &rve) {
					rowErrs = append(rowErrs, rve)
				} else {
					rowErrs = append(rowErrs, models.RowValidationError{RowNumber: row.Number, Message: err.Error()})
				}
				continue
			}
			valid = append(valid, product)
		}

		if len(valid) > 0 {
			if _, _, err := imp.store.UpsertProducts(ctx, valid); err != nil {
				return imp.fail(ctx, task, fmt.Errorf("upsert chunk %d: %w", chunk.Index, err))
			}
		}

		rows := len(chunk.Rows) + len(chunk.Bad)
		processed += rows
		errored += len(rowErrs)
		for _, rve := range rowErrs {
			imp.log.Debug("row rejected",
				zap.String("task_id", task.ID),
				zap.Int("row", rve.RowNumber),
				zap.String("field", rve.Field),
				zap.String("reason", rve.Message))
		}
		telemetry.ImportRows.Add(float64(rows))
		telemetry.ImportRowErrors.Add(float64(len(rowErrs)))

		msg := fmt.Sprintf("Processing chunk %d: %d/%d rows", chunk.Index, processed, total)
		if err := imp.tracker.Advance(ctx, task.ID, rows, len(rowErrs), msg); err != nil {
			return imp.fail(ctx, task, fmt.Errorf("advance progress: %w", err))
		}
	}

	msg := fmt.Sprintf("Import complete: %d/%d rows processed, %d errors", processed, total, errored)
	if err := imp.tracker.Finalize(ctx, task.ID, models.StatusCompleted, msg); err != nil {
		return fmt.Errorf("finalize task %s: %w", task.ID, err)
	}
	telemetry.ImportsCompleted.Inc()
	imp.log.Info("import complete",
		zap.String("task_id", task.ID),
		zap.String("file", task.FileName),
		zap.Int("total_rows", total),
		zap.Int("error_rows", errored))
	imp.cleanup(ctx, task)

	if imp.events != nil {
		imp.events.Publish(models.EventBulkImported, map[string]any{
			"task_id":        task.ID,
			"file_name":      task.FileName,
			"total_rows":     total,
			"processed_rows": processed,
			"error_rows":     errored,
		})
	}
	return nil
}

// countTotal learns the row count in a dedicated streaming pass so percent
// is meaningful from the first chunk.
func (imp *Importer) countTotal(ctx context.Context, task TaskRef) (int, error) {
	src, err := imp.spool.Open(ctx, task.SpoolKey)
	if err != nil {
		return 0, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()
	return CountRows(src)
}

// fail moves the task to its failed terminal state. The finalize write
// must land even when ctx is already cancelled.
func (imp *Importer) fail(ctx context.Context, task TaskRef, cause error) error {
	fctx := context.WithoutCancel(ctx)
	msg := "Import failed: " + cause.Error()
	if err := imp.tracker.Finalize(fctx, task.ID, models.StatusFailed, msg); err != nil && !errors.Is(err, progress.ErrFinalized) {
		imp.log.Warn("finalize failed task", zap.String("task_id", task.ID), zap.Error(err))
	}
	telemetry.ImportsFailed.Inc()
	imp.log.Error("import failed", zap.String("task_id", task.ID), zap.Error(cause))
	imp.cleanup(ctx, task)
	return cause
}

func (imp *Importer) cleanup(ctx context.Context, task TaskRef) {
	if err := imp.spool.Remove(context.WithoutCancel(ctx), task.SpoolKey); err != nil {
		imp.log.Warn("remove spooled upload", zap.String("task_id", task.ID), zap.Error(err))
	}
}
