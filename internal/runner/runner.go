package runner

import (
	"context"
	"errors"

	"github.com/AbhigyanPie/product-impoter/internal/importer"
)

// ErrBusy reports that the inline backend's buffer is full. Intake rejects
// the upload rather than blocking the request on import capacity.
var ErrBusy = errors.New("import backlog is full")

// Runner schedules an accepted upload for import off the request path.
// Both backends drive the same Importer; only where it runs differs.
type Runner interface {
	Submit(ctx context.Context, task importer.TaskRef) error
	Mode() string
}
