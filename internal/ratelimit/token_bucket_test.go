package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucketAllow(t *testing.T) {
	tb := NewTokenBucket(2, 0.001, time.Hour)

	allowed, _ := tb.Allow("client-a")
	if !allowed {
		t.Fatalf("first request should be allowed")
	}
	allowed, _ = tb.Allow("client-a")
	if !allowed {
		t.Fatalf("second request should be allowed")
	}
	allowed, tokens := tb.Allow("client-a")
	if allowed {
		t.Fatalf("third request should be rejected, tokens=%f", tokens)
	}
}

func TestTokenBucketKeysIsolated(t *testing.T) {
	tb := NewTokenBucket(1, 0.001, time.Hour)

	if allowed, _ := tb.Allow("client-a"); !allowed {
		t.Fatalf("client-a first request should be allowed")
	}
	if allowed, _ := tb.Allow("client-a"); allowed {
		t.Fatalf("client-a second request should be rejected")
	}
	if allowed, _ := tb.Allow("client-b"); !allowed {
		t.Fatalf("client-b should have its own bucket")
	}
}

func TestTokenBucketRefill(t *testing.T) {
	tb := NewTokenBucket(1, 100, time.Hour)

	if allowed, _ := tb.Allow("client-a"); !allowed {
		t.Fatalf("first request should be allowed")
	}
	if allowed, _ := tb.Allow("client-a"); allowed {
		t.Fatalf("bucket should be empty immediately after drain")
	}
	time.Sleep(30 * time.Millisecond)
	if allowed, _ := tb.Allow("client-a"); !allowed {
		t.Fatalf("bucket should refill at 100 tokens/sec")
	}
}
