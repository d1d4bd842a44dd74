package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TokenBucket applies a per-key token bucket in process. Upload intake
// uses it with the client address as the key; it has to work whether or
// not a broker is configured, so the buckets live in memory.
type TokenBucket struct {
	mu        sync.Mutex
	buckets   map[string]*entry
	capacity  int
	refill    float64 // tokens per second
	ttl       time.Duration
	lastSweep time.Time
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewTokenBucket constructs a bucket map with the provided capacity/refill.
// Buckets idle longer than ttl are dropped.
func NewTokenBucket(capacity int, refillPerSecond float64, ttl time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	if refillPerSecond <= 0 {
		refillPerSecond = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenBucket{
		buckets:  make(map[string]*entry),
		capacity: capacity,
		refill:   refillPerSecond,
		ttl:      ttl,
	}
}

// Allow consumes a single token for the given key if available.
// Returns the allowed flag and the remaining token count.
func (b *TokenBucket) Allow(key string) (bool, float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	if now.Sub(b.lastSweep) > time.Minute {
		for k, e := range b.buckets {
			if now.Sub(e.seen) > b.ttl {
				delete(b.buckets, k)
			}
		}
		b.lastSweep = now
	}

	e, ok := b.buckets[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(rate.Limit(b.refill), b.capacity)}
		b.buckets[key] = e
	}
	e.seen = now
	return e.lim.Allow(), e.lim.Tokens()
}
