package httpclient

import (
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff with jitter for transient
// HTTP failures (5xx, timeouts, connection errors), grounded on the
// teacher's graph/policy.go RetryPolicy/computeBackoff.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries including the first,
	// so MaxAttempts=1 means no retries.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy mirrors the original client's max_retries=3 (four
// attempts in all): exponential backoff starting at 1s, doubling, capped
// at 30s, plus jitter (see backoff).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 4, BaseDelay: time.Second, MaxDelay: 30 * time.Second}
}

// backoff computes the delay before retry attempt (0-indexed: 0 is the
// delay before the second try), following base*2^attempt capped at
// MaxDelay, plus jitter in [0, BaseDelay).
func (p RetryPolicy) backoff(attempt int, rng *rand.Rand) time.Duration {
	delay := p.BaseDelay * time.Duration(1<<uint(attempt))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.BaseDelay <= 0 {
		return delay
	}
	var jitter time.Duration
	if rng != nil {
		jitter = time.Duration(rng.Int63n(int64(p.BaseDelay)))
	} else {
		jitter = time.Duration(rand.Int63n(int64(p.BaseDelay))) // #nosec G404 -- retry jitter, not security-sensitive
	}
	return delay + jitter
}

// retryableStatus reports whether an HTTP status code warrants a retry:
// server errors, matching the original client's (500, 502, 503, 504) set.
func retryableStatus(status int) bool {
	switch status {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
