package progress

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AbhigyanPie/product-impoter/internal/models"
)

// MemoryTracker keeps task state in-process for the inline execution
// backend. A TTL sweep keeps the map from growing without bound.
type MemoryTracker struct {
	mu    sync.RWMutex
	tasks map[string]*models.ImportTask
	ttl   time.Duration
}

func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &MemoryTracker{tasks: make(map[string]*models.ImportTask), ttl: ttl}
}

// StartJanitor evicts expired entries every interval until ctx is done.
func (m *MemoryTracker) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Sweep(time.Now())
			}
		}
	}()
}

// Sweep removes tasks whose last update is older than the TTL and returns
// how many were evicted.
func (m *MemoryTracker) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for id, t := range m.tasks {
		if now.Sub(t.UpdatedAt) > m.ttl {
			delete(m.tasks, id)
			evicted++
		}
	}
	return evicted
}

func (m *MemoryTracker) Create(_ context.Context, id, fileName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; ok {
		return fmt.Errorf("task %s already exists", id)
	}
	now := time.Now()
	m.tasks[id] = &models.ImportTask{
		ID:        id,
		FileName:  fileName,
		Status:    models.StatusPending,
		Message:   "Upload received",
		CreatedAt: now,
		UpdatedAt: now,
	}
	return nil
}

func (m *MemoryTracker) Begin(_ context.Context, id, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status.Terminal() {
		return ErrFinalized
	}
	t.Status = models.StatusProcessing
	t.TotalRows = 0
	t.ProcessedRows = 0
	t.ErrorRows = 0
	t.Message = message
	t.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryTracker) SetTotal(_ context.Context, id string, total int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status.Terminal() {
		return ErrFinalized
	}
	t.TotalRows = total
	t.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryTracker) Advance(_ context.Context, id string, rows, errored int, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status.Terminal() {
		return ErrFinalized
	}
	t.ProcessedRows += rows
	t.ErrorRows += errored
	t.Message = message
	t.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryTracker) Finalize(_ context.Context, id string, status models.TaskStatus, message string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	if t.Status.Terminal() {
		return ErrFinalized
	}
	t.Status = status
	t.Message = message
	t.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryTracker) Get(_ context.Context, id string) (models.ImportTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return models.ImportTask{}, ErrNotFound
	}
	snap := *t
	snap.Percent = percent(snap.ProcessedRows, snap.TotalRows)
	return snap, nil
}

func (m *MemoryTracker) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}
