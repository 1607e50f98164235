package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(WithRateLimit(1000, 1000))
	text, err := c.GetText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if text != "ok" {
		t.Fatalf("text = %q, want %q", text, "ok")
	}
}

func TestRetryAfterHonoredOn429(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(WithRateLimit(1000, 1000), WithRetryPolicy(RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}))
	text, err := c.GetText(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("GetText: %v", err)
	}
	if text != "ok" {
		t.Fatalf("text = %q, want %q", text, "ok")
	}
	if atomic.LoadInt32(&attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", atomic.LoadInt32(&attempts))
	}
}

func TestServerErrorRetriedThenFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(WithRateLimit(1000, 1000), WithRetryPolicy(RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}))
	_, err := c.Get(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected error after exhausting retries on persistent 503")
	}
}

func TestRateLimiterBlocksUntilTokenAvailable(t *testing.T) {
	limiter := NewRateLimiter(100, 1)
	ctx := context.Background()

	if _, err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}

	start := time.Now()
	if _, err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Fatalf("expected second Acquire to wait for refill, elapsed=%v", elapsed)
	}
}

func TestRateLimiterRespectsCancellation(t *testing.T) {
	limiter := NewRateLimiter(1, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := limiter.Acquire(ctx); err != nil {
		t.Fatalf("first Acquire: %v", err)
	}
	if _, err := limiter.Acquire(ctx); err == nil {
		t.Fatal("expected context deadline to cancel the blocked Acquire")
	}
}

func TestDownloadAtomicRename(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	dest := dir + "/out.bin"

	c := New(WithRateLimit(1000, 1000))
	if err := c.Download(context.Background(), srv.URL, dest); err != nil {
		t.Fatalf("Download: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("downloaded content = %q, want %q", data, "payload")
	}
	if _, err := os.ReadFile(dest + ".tmp"); err == nil {
		t.Fatal("expected temp file to be renamed away, not left behind")
	}
}

func TestParseRetryAfterSeconds(t *testing.T) {
	d := parseRetryAfter(strconv.Itoa(5))
	if d != 5*time.Second {
		t.Fatalf("parseRetryAfter(5) = %v, want 5s", d)
	}
}

func TestParseRetryAfterEmptyDefaultsTo10s(t *testing.T) {
	if d := parseRetryAfter(""); d != 10*time.Second {
		t.Fatalf("parseRetryAfter(\"\") = %v, want 10s", d)
	}
}
