package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter decides whether a request keyed by client address is admitted.
type Limiter interface {
	Admit(key string, now time.Time) bool
}

type bucket struct {
	count   int
	resetAt time.Time
}

// FixedWindow is a per-key fixed-window counter. A window starts at the first
// request for a key after the previous window expired; within a window the
// request is rejected once the count exceeds max. No smoothing: bursts at
// window boundaries are accepted behavior.
//
// Buckets live for the life of the process and are never persisted. Without a
// sweeper the map grows with the number of distinct keys seen.
type FixedWindow struct {
	window time.Duration
	max    int

	mu      sync.Mutex
	buckets map[string]*bucket
}

func NewFixedWindow(window time.Duration, max int) *FixedWindow {
	return &FixedWindow{
		window:  window,
		max:     max,
		buckets: make(map[string]*bucket),
	}
}

// Admit reports whether the request is within the window limit. The counter
// increments even when the request is rejected.
func (f *FixedWindow) Admit(key string, now time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, ok := f.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{resetAt: now.Add(f.window)}
		f.buckets[key] = b
	}
	b.count++
	return b.count <= f.max
}

// StartSweeper periodically drops expired buckets so long-running processes
// do not accumulate one bucket per client address forever. Stops when ctx is
// done.
func (f *FixedWindow) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * f.window
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				f.sweep(now)
			}
		}
	}()
}

func (f *FixedWindow) sweep(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key, b := range f.buckets {
		if !now.Before(b.resetAt) {
			delete(f.buckets, key)
		}
	}
}
