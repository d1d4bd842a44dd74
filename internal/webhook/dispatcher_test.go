package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/AbhigyanPie/product-impoter/internal/models"
)

type staticSubs struct {
	hooks []models.Webhook
}

func (s *staticSubs) WebhooksForEvent(_ context.Context, event string) ([]models.Webhook, error) {
	var out []models.Webhook
	for _, h := range s.hooks {
		for _, e := range h.Events {
			if e == event {
				out = append(out, h)
				break
			}
		}
	}
	return out, nil
}

func TestDispatcherDeliversSignedEvent(t *testing.T) {
	var mu sync.Mutex
	var gotBody []byte
	var gotSig, gotEvent string
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		gotBody = body
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotEvent = r.Header.Get("X-Webhook-Event")
		mu.Unlock()
		close(done)
	}))
	defer srv.Close()

	secret := "s3cret"
	subs := &staticSubs{hooks: []models.Webhook{{
		ID:      1,
		URL:     srv.URL,
		Events:  []string{models.EventProductCreated},
		Enabled: true,
		Secret:  &secret,
	}}}
	d := NewDispatcher(subs, time.Second)

	d.Publish(models.EventProductCreated, map[string]any{"sku": "a-1"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("delivery never arrived")
	}

	mu.Lock()
	defer mu.Unlock()
	if gotEvent != models.EventProductCreated {
		t.Fatalf("event header %q", gotEvent)
	}
	if !Verify(gotBody, secret, gotSig) {
		t.Fatalf("signature did not verify")
	}
	var env struct {
		Event     string         `json:"event"`
		Timestamp string         `json:"timestamp"`
		Data      map[string]any `json:"data"`
	}
	if err := json.Unmarshal(gotBody, &env); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if env.Event != models.EventProductCreated || env.Data["sku"] != "a-1" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
	if env.Timestamp == "" {
		t.Fatalf("envelope missing timestamp")
	}
}

func TestDispatcherOnlyDeliversSubscribedEvents(t *testing.T) {
	var mu sync.Mutex
	count := 0
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		count++
		mu.Unlock()
		close(done)
	}))
	defer srv.Close()

	subs := &staticSubs{hooks: []models.Webhook{{
		ID:      1,
		URL:     srv.URL,
		Events:  []string{models.EventProductCreated},
		Enabled: true,
	}}}
	d := NewDispatcher(subs, time.Second)

	d.Publish(models.EventProductDeleted, map[string]any{"sku": "a-1"})
	d.Publish(models.EventProductCreated, map[string]any{"sku": "a-1"})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("subscribed delivery never arrived")
	}
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Fatalf("expected exactly one delivery, got %d", count)
	}
}

func TestDispatcherTestProbe(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(&staticSubs{}, time.Second)

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ok.Close()
	res := d.Test(ctx, models.Webhook{URL: ok.URL})
	if !res.Success || res.StatusCode != http.StatusNoContent {
		t.Fatalf("unexpected result: %+v", res)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer failing.Close()
	res = d.Test(ctx, models.Webhook{URL: failing.URL})
	if res.Success || res.StatusCode != http.StatusInternalServerError {
		t.Fatalf("unexpected result: %+v", res)
	}

	res = d.Test(ctx, models.Webhook{URL: "http://127.0.0.1:1"})
	if res.Success || res.Error == "" {
		t.Fatalf("unreachable endpoint should fail: %+v", res)
	}
}
