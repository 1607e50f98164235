// Package scheduler tracks per-feed collection intervals and reports
// which feeds are due to run, grounded on original_source's
// feedspine/scheduler/memory.py MemoryScheduler.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ryansmccoy/feedspine"
)

// ScheduleInfo is the point-in-time state of one feed's schedule.
type ScheduleInfo struct {
	FeedName            string
	Interval             time.Duration
	LastRun              time.Time // zero if never run
	NextRun              time.Time // zero if never run
	Enabled              bool
	RunCount             int
	ConsecutiveFailures  int
	Metadata             map[string]interface{}
}

// IsDue reports whether info is enabled and its NextRun has passed,
// mirroring the original ScheduleInfo.is_due property. A schedule that
// has never run (zero NextRun) is always due once enabled.
func (info ScheduleInfo) IsDue(now time.Time) bool {
	if !info.Enabled {
		return false
	}
	if info.NextRun.IsZero() {
		return true
	}
	return !now.Before(info.NextRun)
}

// Scheduler stores schedule state for every registered feed and
// reports which are due for collection. Safe for concurrent use.
type Scheduler struct {
	mu            sync.RWMutex
	schedules     map[string]ScheduleInfo
	cronSchedules map[string]*CronSchedule
	now           func() time.Time
}

// New builds an empty Scheduler.
func New() *Scheduler {
	return &Scheduler{
		schedules:     make(map[string]ScheduleInfo),
		cronSchedules: make(map[string]*CronSchedule),
		now:           time.Now,
	}
}

// Register adds feedName on interval, enabled or disabled as the enabled
// argument says.
// Returns an error if feedName is already registered.
func (s *Scheduler) Register(ctx context.Context, feedName string, interval time.Duration, enabled bool, metadata map[string]interface{}) (ScheduleInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[feedName]; exists {
		return ScheduleInfo{}, fmt.Errorf("feedspine/scheduler: register %q: %w", feedName, feedspine.ErrAlreadyRegistered)
	}
	if metadata == nil {
		metadata = map[string]interface{}{}
	}

	info := ScheduleInfo{FeedName: feedName, Interval: interval, Enabled: enabled, Metadata: metadata}
	s.schedules[feedName] = info
	return info, nil
}

// Unregister removes feedName, reporting whether it was present.
func (s *Scheduler) Unregister(ctx context.Context, feedName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[feedName]; !exists {
		return false
	}
	delete(s.schedules, feedName)
	delete(s.cronSchedules, feedName)
	return true
}

// Get returns feedName's schedule, or ok=false if unregistered.
func (s *Scheduler) Get(ctx context.Context, feedName string) (info ScheduleInfo, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok = s.schedules[feedName]
	return info, ok
}

// GetDue returns every enabled, registered feed whose NextRun has
// passed, in no particular order.
func (s *Scheduler) GetDue(ctx context.Context) []ScheduleInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	var due []ScheduleInfo
	for _, info := range s.schedules {
		if info.IsDue(now) {
			due = append(due, info)
		}
	}
	return due
}

// GetAll returns every registered schedule, in no particular order.
func (s *Scheduler) GetAll(ctx context.Context) []ScheduleInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ScheduleInfo, 0, len(s.schedules))
	for _, info := range s.schedules {
		out = append(out, info)
	}
	return out
}

func (s *Scheduler) mutate(feedName string, fn func(ScheduleInfo) ScheduleInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, exists := s.schedules[feedName]
	if !exists {
		return fmt.Errorf("feedspine/scheduler: %q: %w", feedName, feedspine.ErrNotRegistered)
	}
	s.schedules[feedName] = fn(info)
	return nil
}

// MarkSuccess records a successful collection: updates LastRun,
// advances NextRun by Interval, increments RunCount, and resets
// ConsecutiveFailures to zero.
func (s *Scheduler) MarkSuccess(ctx context.Context, feedName string) error {
	now := s.now()
	return s.mutate(feedName, func(info ScheduleInfo) ScheduleInfo {
		info.LastRun = now
		if cron, ok := s.cronSchedules[feedName]; ok {
			info.NextRun = cron.Next(now)
			info.Interval = info.NextRun.Sub(now)
		} else {
			info.NextRun = now.Add(info.Interval)
		}
		info.RunCount++
		info.ConsecutiveFailures = 0
		return info
	})
}

// MarkFailure increments ConsecutiveFailures without touching NextRun,
// so a failing feed is retried at the same cadence rather than backed
// off by the scheduler itself (retry/backoff is httpclient's concern).
func (s *Scheduler) MarkFailure(ctx context.Context, feedName string) error {
	return s.mutate(feedName, func(info ScheduleInfo) ScheduleInfo {
		info.ConsecutiveFailures++
		return info
	})
}

// Enable marks feedName eligible to be returned by GetDue.
func (s *Scheduler) Enable(ctx context.Context, feedName string) error {
	return s.mutate(feedName, func(info ScheduleInfo) ScheduleInfo {
		info.Enabled = true
		return info
	})
}

// Disable excludes feedName from GetDue until re-enabled.
func (s *Scheduler) Disable(ctx context.Context, feedName string) error {
	return s.mutate(feedName, func(info ScheduleInfo) ScheduleInfo {
		info.Enabled = false
		return info
	})
}

// UpdateInterval changes feedName's collection interval, recomputing
// NextRun from LastRun when a LastRun is on record.
func (s *Scheduler) UpdateInterval(ctx context.Context, feedName string, interval time.Duration) error {
	return s.mutate(feedName, func(info ScheduleInfo) ScheduleInfo {
		info.Interval = interval
		if !info.LastRun.IsZero() {
			info.NextRun = info.LastRun.Add(interval)
		}
		return info
	})
}
