// Package httpclient provides a rate-limited, retrying HTTP client for
// feed collection, grounded on original_source's feedspine/http/client.py
// and rate_limiter.py.
package httpclient

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter with burst capacity, the Go
// equivalent of the original's BurstRateLimiter (the simpler
// single-slot RateLimiter is just BurstRateLimiter with burst=1).
type RateLimiter struct {
	mu         sync.Mutex
	rate       float64 // tokens added per second
	burst      float64
	tokens     float64
	lastUpdate time.Time
	now        func() time.Time
}

// NewRateLimiter builds a limiter refilling at rate tokens/second up
// to burst tokens of capacity. A burst of 1 behaves like the
// original's plain RateLimiter.
func NewRateLimiter(rate float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		rate:       rate,
		burst:      float64(burst),
		tokens:     float64(burst),
		lastUpdate: time.Now(),
		now:        time.Now,
	}
}

func (r *RateLimiter) refill() {
	now := r.now()
	elapsed := now.Sub(r.lastUpdate).Seconds()
	r.tokens = minFloat(r.burst, r.tokens+elapsed*r.rate)
	r.lastUpdate = now
}

// Acquire blocks until one token is available or ctx is cancelled,
// returning how long it waited.
func (r *RateLimiter) Acquire(ctx context.Context) (time.Duration, error) {
	for {
		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return 0, nil
		}
		wait := time.Duration((1 - r.tokens) / r.rate * float64(time.Second))
		r.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return 0, ctx.Err()
		case <-timer.C:
		}

		r.mu.Lock()
		r.refill()
		if r.tokens >= 1 {
			r.tokens--
			r.mu.Unlock()
			return wait, nil
		}
		r.mu.Unlock()
	}
}

// Reset restores the limiter to full burst capacity.
func (r *RateLimiter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens = r.burst
	r.lastUpdate = r.now()
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
