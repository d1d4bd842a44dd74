package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	ImportsStarted   = prometheus.NewCounter(prometheus.CounterOpts{Name: "imports_started_total", Help: "Import tasks that began processing"})
	ImportsCompleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "imports_completed_total", Help: "Import tasks that finished successfully"})
	ImportsFailed    = prometheus.NewCounter(prometheus.CounterOpts{Name: "imports_failed_total", Help: "Import tasks that ended in failure"})
	ImportRows       = prometheus.NewCounter(prometheus.CounterOpts{Name: "import_rows_total", Help: "Rows processed across all imports"})
	ImportRowErrors  = prometheus.NewCounter(prometheus.CounterOpts{Name: "import_row_errors_total", Help: "Rows rejected by validation"})
	UploadRejects    = prometheus.NewCounter(prometheus.CounterOpts{Name: "upload_rejects_total", Help: "Uploads rejected at intake"})
	RateLimitRejects = prometheus.NewCounter(prometheus.CounterOpts{Name: "rate_limit_rejects_total", Help: "Uploads rejected by the rate limiter"})
	QueueDepthGauge  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "import_queue_depth", Help: "Import tasks waiting in the ready queue"})
	ImportsInflight  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "imports_inflight", Help: "Import tasks currently running"})
	WebhookDelivery  = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook delivery attempts by result"}, []string{"result"})
)

// Handler exposes /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			ImportsStarted,
			ImportsCompleted,
			ImportsFailed,
			ImportRows,
			ImportRowErrors,
			UploadRejects,
			RateLimitRejects,
			QueueDepthGauge,
			ImportsInflight,
			WebhookDelivery,
		)
	})
	return promhttp.Handler()
}
