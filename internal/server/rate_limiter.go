package server

import (
	"sync"
	"time"
)

// rateLimiter is the per-connection token bucket the read pump consults
// before dispatching each inbound envelope. The bucket starts full, so a
// client may burst up to its capacity and is then held to the refill rate.
type rateLimiter struct {
	mu     sync.Mutex
	tokens float64
	burst  float64
	refill float64 // tokens per second
	last   time.Time
}

// newRateLimiter builds a bucket that admits up to capacity envelopes per
// interval. Non-positive arguments fall back to one envelope per second.
func newRateLimiter(capacity int, interval time.Duration) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}
	refill := float64(capacity) / interval.Seconds()
	if refill <= 0 {
		refill = float64(capacity)
	}
	return &rateLimiter{
		tokens: float64(capacity),
		burst:  float64(capacity),
		refill: refill,
		last:   time.Now(),
	}
}

// allow credits the bucket for the time elapsed since the last call, then
// spends one token. It reports false when the bucket is empty, in which case
// the caller drops the envelope.
func (rl *rateLimiter) allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if elapsed := now.Sub(rl.last).Seconds(); elapsed > 0 {
		rl.tokens += elapsed * rl.refill
		if rl.tokens > rl.burst {
			rl.tokens = rl.burst
		}
	}
	rl.last = now

	if rl.tokens < 1 {
		return false
	}
	rl.tokens--
	return true
}
