package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestLocalAllowsUpToLimit(t *testing.T) {
	l := NewLocal(3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.Allow(ctx, "client-a")
		if err != nil {
			t.Fatalf("Allow returned error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}

	d, _ := l.Allow(ctx, "client-a")
	if d.Allowed {
		t.Error("request 4 allowed, want denied")
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
	if d.Limit != 3 {
		t.Errorf("Limit = %d, want 3", d.Limit)
	}
}

func TestLocalKeysAreIndependent(t *testing.T) {
	l := NewLocal(1)
	ctx := context.Background()

	if d, _ := l.Allow(ctx, "client-a"); !d.Allowed {
		t.Fatal("first request for client-a denied")
	}
	if d, _ := l.Allow(ctx, "client-a"); d.Allowed {
		t.Error("second request for client-a allowed, want denied")
	}
	if d, _ := l.Allow(ctx, "client-b"); !d.Allowed {
		t.Error("first request for client-b denied, want allowed")
	}
}

func TestLocalWindowResets(t *testing.T) {
	l := NewLocal(1)
	now := time.Date(2024, 1, 1, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if d, _ := l.Allow(ctx, "client-a"); !d.Allowed {
		t.Fatal("first request denied")
	}
	if d, _ := l.Allow(ctx, "client-a"); d.Allowed {
		t.Fatal("second request in same window allowed")
	}

	// Cross into the next minute window.
	now = now.Add(time.Minute)
	d, _ := l.Allow(ctx, "client-a")
	if !d.Allowed {
		t.Error("request in fresh window denied, want allowed")
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0 with limit 1", d.Remaining)
	}
}

func TestLocalDecisionReset(t *testing.T) {
	l := NewLocal(10)
	now := time.Date(2024, 1, 1, 12, 0, 30, 0, time.UTC)
	l.now = func() time.Time { return now }

	d, _ := l.Allow(context.Background(), "client-a")
	want := time.Date(2024, 1, 1, 12, 1, 0, 0, time.UTC)
	if !d.Reset.Equal(want) {
		t.Errorf("Reset = %v, want %v", d.Reset, want)
	}
}

func TestLocalConcurrentCountingIsExact(t *testing.T) {
	const limit = 50
	const requests = 200

	l := NewLocal(limit)
	ctx := context.Background()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(ctx, "client-a")
			if err != nil {
				t.Errorf("Allow returned error: %v", err)
				return
			}
			if d.Allowed {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load(); got != limit {
		t.Errorf("allowed = %d, want exactly %d", got, limit)
	}
}

func TestLocalPrunesStaleCounters(t *testing.T) {
	l := NewLocal(10)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < pruneThreshold+10; i++ {
		l.Allow(ctx, "client-"+strconv.Itoa(i))
	}

	now = now.Add(2 * time.Minute)
	l.Allow(ctx, "fresh-client")

	l.mu.Lock()
	size := len(l.counters)
	l.mu.Unlock()
	if size > 2 {
		t.Errorf("counter map holds %d entries after window rollover, want stale entries pruned", size)
	}
}
