// Package ratelimit provides per-client fixed-window admission control.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Window is the fixed interval over which per-client counts are bounded.
const Window = time.Minute

// pruneThreshold bounds the local counter map before stale entries are swept.
const pruneThreshold = 1024

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// Local is an in-process fixed-window limiter. Counter updates are atomic
// with respect to concurrent requests for the same key. For multi-process
// deployments use the Redis limiter instead; local counters do not survive
// or coordinate across instances.
type Local struct {
	mu       sync.Mutex
	limit    int
	counters map[string]*windowCounter
	now      func() time.Time
}

type windowCounter struct {
	start time.Time
	count int
}

// NewLocal creates a limiter allowing perMinute requests per key per window.
func NewLocal(perMinute int) *Local {
	return &Local{
		limit:    perMinute,
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
}

// Allow counts one request against key's current window.
func (l *Local) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Truncate(Window)

	c, ok := l.counters[key]
	if !ok || c.start.Before(windowStart) {
		if len(l.counters) > pruneThreshold {
			l.prune(windowStart)
		}
		c = &windowCounter{start: windowStart}
		l.counters[key] = c
	}
	c.count++

	remaining := l.limit - c.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   c.count <= l.limit,
		Limit:     l.limit,
		Remaining: remaining,
		Reset:     windowStart.Add(Window),
	}, nil
}

// prune drops counters from past windows. Caller holds the lock.
func (l *Local) prune(windowStart time.Time) {
	for key, c := range l.counters {
		if c.start.Before(windowStart) {
			delete(l.counters, key)
		}
	}
}
