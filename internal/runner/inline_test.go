package runner

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/importer"
	"github.com/AbhigyanPie/product-impoter/internal/models"
	"github.com/AbhigyanPie/product-impoter/internal/progress"
	"github.com/AbhigyanPie/product-impoter/internal/spool"
)

type countingWriter struct {
	mu   sync.Mutex
	rows int
}

func (c *countingWriter) UpsertProducts(_ context.Context, records []models.Product) (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows += len(records)
	return len(records), 0, nil
}

func (c *countingWriter) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rows
}

func TestInlineRunsSubmittedImport(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sp, err := spool.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("local spool: %v", err)
	}
	csv := "sku,name\na-1,Widget\na-2,Gadget\n"
	if _, err := sp.Put(ctx, "uploads/t1.csv", strings.NewReader(csv), 0); err != nil {
		t.Fatalf("put: %v", err)
	}
	tracker := progress.NewMemoryTracker(time.Hour)
	if err := tracker.Create(ctx, "t1", "products.csv"); err != nil {
		t.Fatalf("create: %v", err)
	}
	st := &countingWriter{}
	imp := importer.New(sp, tracker, st, nil, 100)

	r := NewInline(ctx, imp, 1, 4)
	if r.Mode() != "inline" {
		t.Fatalf("mode = %q, want inline", r.Mode())
	}
	task := importer.TaskRef{ID: "t1", FileName: "products.csv", SpoolKey: "uploads/t1.csv"}
	if err := r.Submit(ctx, task); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		rec, err := tracker.Get(ctx, "t1")
		if err == nil && rec.Status.Terminal() {
			if rec.Status != models.StatusCompleted {
				t.Fatalf("status = %s (%s)", rec.Status, rec.Message)
			}
			if rec.ProcessedRows != 2 || rec.TotalRows != 2 {
				t.Fatalf("progress = %d/%d, want 2/2", rec.ProcessedRows, rec.TotalRows)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("import never reached a terminal status")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if st.total() != 2 {
		t.Fatalf("rows written = %d, want 2", st.total())
	}
	// The status flips to completed just before cleanup, so give the
	// worker a moment to finish removing the spooled file.
	for {
		rc, err := sp.Open(ctx, "uploads/t1.csv")
		if err != nil {
			break
		}
		_ = rc.Close()
		if time.Now().After(deadline) {
			t.Fatal("spooled file still present after a completed import")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInlineRejectsWhenBacklogFull(t *testing.T) {
	// No workers drain the channel, so the second submit hits a full buffer.
	r := &Inline{tasks: make(chan importer.TaskRef, 1), log: zap.NewNop()}

	if err := r.Submit(context.Background(), importer.TaskRef{ID: "t1"}); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if err := r.Submit(context.Background(), importer.TaskRef{ID: "t2"}); !errors.Is(err, ErrBusy) {
		t.Fatalf("second submit: got %v, want ErrBusy", err)
	}
}
