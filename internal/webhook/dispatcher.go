package webhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/AbhigyanPie/product-impoter/internal/models"
	"github.com/AbhigyanPie/product-impoter/internal/telemetry"
)

// Subscribers looks up enabled webhooks for an event.
type Subscribers interface {
	WebhooksForEvent(ctx context.Context, event string) ([]models.Webhook, error)
}

// Dispatcher fans events out to webhook subscribers. Delivery is best
// effort: one attempt per subscriber per event, outcomes logged and
// counted, failures never surfaced to the caller. Downstream retries are
// the subscriber's business.
type Dispatcher struct {
	subs   Subscribers
	client *resty.Client
	log    *zap.Logger
}

func NewDispatcher(subs Subscribers, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		subs:   subs,
		client: resty.New().SetTimeout(timeout),
		log:    zap.L().Named("webhook"),
	}
}

type envelope struct {
	Event     string         `json:"event"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Publish delivers the event to every enabled subscriber in the
// background. The wire envelope is {event, timestamp, data}.
func (d *Dispatcher) Publish(event string, payload map[string]any) {
	go d.deliverAll(context.Background(), event, payload)
}

func (d *Dispatcher) deliverAll(ctx context.Context, event string, payload map[string]any) {
	hooks, err := d.subs.WebhooksForEvent(ctx, event)
	if err != nil {
		d.log.Warn("lookup subscribers", zap.String("event", event), zap.Error(err))
		return
	}
	if len(hooks) == 0 {
		return
	}

	body, err := json.Marshal(envelope{
		Event:     event,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      payload,
	})
	if err != nil {
		d.log.Warn("encode event", zap.String("event", event), zap.Error(err))
		return
	}

	for _, hook := range hooks {
		d.deliver(ctx, hook, event, body)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, hook models.Webhook, event string, body []byte) {
	req := d.client.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Webhook-Event", event).
		SetBody(body)
	if hook.Secret != nil && *hook.Secret != "" {
		req.SetHeader("X-Webhook-Signature", Sign(body, *hook.Secret))
	}

	resp, err := req.Post(hook.URL)
	if err != nil {
		telemetry.WebhookDelivery.WithLabelValues("error").Inc()
		d.log.Warn("webhook delivery failed",
			zap.String("event", event), zap.String("url", hook.URL), zap.Error(err))
		return
	}
	if resp.IsError() {
		telemetry.WebhookDelivery.WithLabelValues("error").Inc()
		d.log.Warn("webhook delivery rejected",
			zap.String("event", event), zap.String("url", hook.URL), zap.Int("status", resp.StatusCode()))
		return
	}
	telemetry.WebhookDelivery.WithLabelValues("ok").Inc()
	d.log.Debug("webhook delivered",
		zap.String("event", event), zap.String("url", hook.URL), zap.Int("status", resp.StatusCode()))
}

// TestResult reports one synchronous delivery probe.
type TestResult struct {
	Success        bool   `json:"success"`
	StatusCode     int    `json:"status_code,omitempty"`
	ResponseTimeMS int64  `json:"response_time_ms"`
	Error          string `json:"error,omitempty"`
}

// Test sends a canned payload to the webhook synchronously so operators
// can verify connectivity before relying on real events.
func (d *Dispatcher) Test(ctx context.Context, hook models.Webhook) TestResult {
	body, err := json.Marshal(envelope{
		Event:     "webhook.test",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Data:      map[string]any{"message": "test delivery"},
	})
	if err != nil {
		return TestResult{Success: false, Error: err.Error()}
	}
	req := d.client.R().SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Webhook-Event", "webhook.test").
		SetBody(body)
	if hook.Secret != nil && *hook.Secret != "" {
		req.SetHeader("X-Webhook-Signature", Sign(body, *hook.Secret))
	}

	start := time.Now()
	resp, err := req.Post(hook.URL)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return TestResult{Success: false, ResponseTimeMS: elapsed, Error: err.Error()}
	}
	return TestResult{Success: !resp.IsError(), StatusCode: resp.StatusCode(), ResponseTimeMS: elapsed}
}
