package adapter

import (
	"context"
	"fmt"
	"iter"
	"sync"

	"github.com/ryansmccoy/feedspine"
)

// Func adapts a plain fetch function into a feedspine.FeedAdapter,
// mirroring the teacher's NodeFunc function-adapter idiom (graph/node.go)
// for feeds simple enough not to need their own named type.
type Func struct {
	FeedName  string
	FetchFunc func(ctx context.Context) iter.Seq2[*feedspine.RecordCandidate, error]
	InitFunc  func(ctx context.Context) error
	CloseFunc func(ctx context.Context) error

	mu   sync.Mutex
	info feedspine.AdapterInfo
}

var _ feedspine.FeedAdapter = (*Func)(nil)

func (f *Func) Name() string { return f.FeedName }

func (f *Func) Initialize(ctx context.Context) error {
	if f.InitFunc == nil {
		return nil
	}
	return f.InitFunc(ctx)
}

func (f *Func) Close(ctx context.Context) error {
	if f.CloseFunc == nil {
		return nil
	}
	return f.CloseFunc(ctx)
}

func (f *Func) Fetch(ctx context.Context) iter.Seq2[*feedspine.RecordCandidate, error] {
	return func(yield func(*feedspine.RecordCandidate, error) bool) {
		for candidate, err := range f.FetchFunc(ctx) {
			f.mu.Lock()
			if err != nil {
				f.info.ErrorCount++
			} else {
				f.info.ItemCount++
			}
			f.mu.Unlock()
			if !yield(candidate, err) {
				return
			}
		}
	}
}

func (f *Func) Info() feedspine.AdapterInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.info
}

// Registry holds every adapter an Orchestrator knows about, keyed by
// Name(). Grounded on original_source's discovery.py module-scanning
// registry, simplified to an explicit Register call since Go has no
// runtime package-scanning equivalent to Python's import machinery.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]feedspine.FeedAdapter
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]feedspine.FeedAdapter)}
}

// Register adds adapter under its own Name(). Returns
// feedspine.ErrAlreadyRegistered if that name is taken.
func (r *Registry) Register(adapter feedspine.FeedAdapter) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := adapter.Name()
	if _, exists := r.adapters[name]; exists {
		return fmt.Errorf("feedspine/adapter: register %q: %w", name, feedspine.ErrAlreadyRegistered)
	}
	r.adapters[name] = adapter
	return nil
}

// Unregister removes name. Returns feedspine.ErrNotRegistered if absent.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.adapters[name]; !exists {
		return fmt.Errorf("feedspine/adapter: unregister %q: %w", name, feedspine.ErrNotRegistered)
	}
	delete(r.adapters, name)
	return nil
}

// Get returns the adapter registered under name, or
// feedspine.ErrNotRegistered.
func (r *Registry) Get(name string) (feedspine.FeedAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, exists := r.adapters[name]
	if !exists {
		return nil, fmt.Errorf("feedspine/adapter: get %q: %w", name, feedspine.ErrNotRegistered)
	}
	return a, nil
}

// All returns every registered adapter in no particular order.
func (r *Registry) All() []feedspine.FeedAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]feedspine.FeedAdapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		out = append(out, a)
	}
	return out
}

// Clear removes every registered adapter, for test teardown between
// cases.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = make(map[string]feedspine.FeedAdapter)
}
