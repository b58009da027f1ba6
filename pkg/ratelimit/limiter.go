package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/thejerf/abtime"
)

// TokenBucket implements the token bucket algorithm for rate limiting
type TokenBucket struct {
	capacity   int       // Maximum number of tokens
	tokens     float64   // Current number of tokens
	refillRate float64   // Tokens added per second
	lastRefill time.Time // Last time tokens were refilled
	mu         sync.Mutex
}

func newTokenBucket(capacity int, refillRate float64, now time.Time) *TokenBucket {
	return &TokenBucket{
		capacity:   capacity,
		tokens:     float64(capacity),
		refillRate: refillRate,
		lastRefill: now,
	}
}

// allow takes one token if available. When it is not, wait is how long until
// the next token.
func (tb *TokenBucket) allow(now time.Time) (ok bool, wait time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed > 0 {
		tb.tokens = math.Min(float64(tb.capacity), tb.tokens+elapsed*tb.refillRate)
		tb.lastRefill = now
	}

	if tb.tokens >= 1.0 {
		tb.tokens -= 1.0
		return true, 0
	}
	if tb.refillRate <= 0 {
		return false, time.Hour
	}
	return false, time.Duration((1.0 - tb.tokens) / tb.refillRate * float64(time.Second))
}

func (tb *TokenBucket) idleSince() time.Time {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.lastRefill
}

// RateLimiter keeps one token bucket per key
type RateLimiter struct {
	buckets    map[string]*TokenBucket
	capacity   int
	refillRate float64
	ttl        time.Duration // Time to keep inactive buckets (0 = forever)
	clock      abtime.AbstractTime
	lastSweep  time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter
// capacity: Maximum number of requests allowed in a burst per key
// refillRate: Number of requests allowed per second per key
// ttl: Time to keep inactive buckets in memory (0 = forever)
func NewRateLimiter(capacity int, refillRate float64, ttl time.Duration, clock abtime.AbstractTime) *RateLimiter {
	if clock == nil {
		clock = abtime.NewRealTime()
	}
	return &RateLimiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		ttl:        ttl,
		clock:      clock,
		lastSweep:  clock.Now(),
	}
}

// Allow checks if a request for the given key should be allowed
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	now := rl.clock.Now()

	rl.mu.Lock()
	rl.sweep(now)
	bucket, exists := rl.buckets[key]
	if !exists {
		bucket = newTokenBucket(rl.capacity, rl.refillRate, now)
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	return bucket.allow(now)
}

// sweep drops buckets idle longer than ttl, at most once per ttl. Caller
// holds mu.
func (rl *RateLimiter) sweep(now time.Time) {
	if rl.ttl <= 0 || now.Sub(rl.lastSweep) < rl.ttl {
		return
	}
	for key, bucket := range rl.buckets {
		if now.Sub(bucket.idleSince()) > rl.ttl {
			delete(rl.buckets, key)
		}
	}
	rl.lastSweep = now
}

// Len returns the number of tracked keys
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}
