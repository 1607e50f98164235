// Package orchestrator wires adapters, a Pipeline, Storage, and the
// ambient emit/metrics/notifier stack together into
// collection runs, grounded on the teacher's Engine wiring style
// (graph/engine.go's New/Add/Run) adapted from a generic workflow
// engine to FeedSpine's concrete feed-collection domain.
package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/ryansmccoy/feedspine"
	"github.com/ryansmccoy/feedspine/adapter"
	"github.com/ryansmccoy/feedspine/emit"
	"github.com/ryansmccoy/feedspine/metrics"
	"github.com/ryansmccoy/feedspine/notifier"
)

// config holds an Orchestrator's dependencies, assembled via Option.
type config struct {
	emitter     emit.Emitter
	metrics     metrics.Metrics
	notifier    notifier.Notifier
	concurrency int64
	now         func() time.Time
}

// Option configures an Orchestrator.
type Option func(*config) error

// WithEmitter installs the ambient progress/log sink. Default emit.Null().
func WithEmitter(e emit.Emitter) Option {
	return func(c *config) error {
		if e == nil {
			return fmt.Errorf("feedspine/orchestrator: WithEmitter: emitter must not be nil")
		}
		c.emitter = e
		return nil
	}
}

// WithMetrics installs the ambient metrics sink. Default metrics.Null().
func WithMetrics(m metrics.Metrics) Option {
	return func(c *config) error {
		if m == nil {
			return fmt.Errorf("feedspine/orchestrator: WithMetrics: metrics must not be nil")
		}
		c.metrics = m
		return nil
	}
}

// WithNotifier installs the ambient notification sink. Default notifier.Null().
func WithNotifier(n notifier.Notifier) Option {
	return func(c *config) error {
		if n == nil {
			return fmt.Errorf("feedspine/orchestrator: WithNotifier: notifier must not be nil")
		}
		c.notifier = n
		return nil
	}
}

// WithConcurrency bounds how many feeds RunAll collects simultaneously.
// Default 1 (sequential), matching §5's conservative default so a
// single misbehaving adapter can't starve every other feed's share of
// outbound rate limits.
func WithConcurrency(n int) Option {
	return func(c *config) error {
		if n < 1 {
			return fmt.Errorf("feedspine/orchestrator: WithConcurrency: n must be >= 1, got %d", n)
		}
		c.concurrency = int64(n)
		return nil
	}
}

// WithClock overrides the time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(c *config) error {
		if now == nil {
			return fmt.Errorf("feedspine/orchestrator: WithClock: now must not be nil")
		}
		c.now = now
		return nil
	}
}

// Orchestrator drives collection runs across every adapter in a
// Registry, feeding each adapter's candidates through a per-feed
// Pipeline and recording the aggregate CollectionResult.
type Orchestrator struct {
	registry *adapter.Registry
	storage  feedspine.Storage
	cfg      config

	pipelineOpts []feedspine.Option
}

// New builds an Orchestrator storing candidates in storage and
// dispatching through the adapters registered in registry.
// pipelineOpts are passed through to every per-feed Pipeline this
// Orchestrator creates (e.g. WithOperations for shared filter/transform
// chains).
func New(registry *adapter.Registry, storage feedspine.Storage, opts []Option, pipelineOpts ...feedspine.Option) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("feedspine/orchestrator: registry must not be nil")
	}
	if storage == nil {
		return nil, fmt.Errorf("feedspine/orchestrator: storage must not be nil")
	}

	cfg := config{
		emitter:     emit.Null(),
		metrics:     metrics.Null(),
		notifier:    notifier.Null(),
		concurrency: 1,
		now:         time.Now,
	}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	return &Orchestrator{registry: registry, storage: storage, cfg: cfg, pipelineOpts: pipelineOpts}, nil
}

// Collect runs the named adapter's Fetch through a fresh Pipeline,
// recording its PipelineStats into a single-feed CollectionResult.
func (o *Orchestrator) Collect(ctx context.Context, feedName string) (feedspine.CollectionResult, error) {
	result := feedspine.CollectionResult{
		StartedAt: o.cfg.now(),
		Stats:     make(map[string]feedspine.PipelineStats),
	}

	a, err := o.registry.Get(feedName)
	if err != nil {
		result.CompletedAt = o.cfg.now()
		result.Errors = append(result.Errors, feedspine.FeedError{Adapter: feedName, Cause: err})
		return result, err
	}

	stats, err := o.collectOne(ctx, a)
	result.Stats[feedName] = stats
	if err != nil {
		o.cfg.metrics.RecordError(feedName, "feed_error")
		result.Errors = append(result.Errors, feedspine.FeedError{Adapter: feedName, Cause: err})
	}
	result.CompletedAt = o.cfg.now()
	return result, nil
}

// RunAll collects every registered adapter, running up to
// WithConcurrency feeds at once, and returns the aggregate
// CollectionResult. Per-feed errors are recorded in the result, not
// returned, so one feed's failure never prevents the others from
// running (§7 "User-visible failure" isolation).
func (o *Orchestrator) RunAll(ctx context.Context) feedspine.CollectionResult {
	result := feedspine.CollectionResult{
		StartedAt: o.cfg.now(),
		Stats:     make(map[string]feedspine.PipelineStats),
	}

	adapters := o.registry.All()
	sem := semaphore.NewWeighted(o.cfg.concurrency)
	var inflight int64

	type outcome struct {
		name  string
		stats feedspine.PipelineStats
		err   error
	}
	results := make(chan outcome, len(adapters))

	for _, a := range adapters {
		a := a
		if err := sem.Acquire(ctx, 1); err != nil {
			results <- outcome{name: a.Name(), err: err}
			continue
		}
		go func() {
			defer sem.Release(1)
			n := atomic.AddInt64(&inflight, 1)
			o.cfg.metrics.SetInflightFeeds(int(n))
			defer func() {
				n := atomic.AddInt64(&inflight, -1)
				o.cfg.metrics.SetInflightFeeds(int(n))
			}()
			stats, err := o.collectOne(ctx, a)
			results <- outcome{name: a.Name(), stats: stats, err: err}
		}()
	}

	for range adapters {
		out := <-results
		result.Stats[out.name] = out.stats
		if out.err != nil {
			o.cfg.metrics.RecordError(out.name, "feed_error")
			result.Errors = append(result.Errors, feedspine.FeedError{Adapter: out.name, Cause: out.err})
		}
	}

	result.CompletedAt = o.cfg.now()
	return result
}

func (o *Orchestrator) collectOne(ctx context.Context, a feedspine.FeedAdapter) (feedspine.PipelineStats, error) {
	if err := a.Initialize(ctx); err != nil {
		return feedspine.PipelineStats{FeedName: a.Name(), StartedAt: o.cfg.now()}, fmt.Errorf("feedspine/orchestrator: initialize %q: %w", a.Name(), err)
	}
	defer a.Close(ctx)

	opts := append([]feedspine.Option{
		feedspine.WithEmitter(o.cfg.emitter),
		feedspine.WithMetrics(o.cfg.metrics),
		feedspine.WithNotifier(o.cfg.notifier),
	}, o.pipelineOpts...)

	pipeline, err := feedspine.NewPipeline(a.Name(), o.storage, opts...)
	if err != nil {
		return feedspine.PipelineStats{FeedName: a.Name(), StartedAt: o.cfg.now()}, fmt.Errorf("feedspine/orchestrator: build pipeline for %q: %w", a.Name(), err)
	}

	start := time.Now()
	stats, err := pipeline.Run(ctx, a.Fetch(ctx))
	o.cfg.metrics.RecordFetchLatency(a.Name(), time.Since(start))
	return stats, err
}
