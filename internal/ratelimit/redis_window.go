package ratelimit

import (
	"context"
	"log"
	"time"
)

// windowCounter is the single counter operation the shared window needs.
// *redis.Client satisfies it.
type windowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisWindow is the shared-counter variant of the fixed window, for
// deployments running several relay instances behind one address. Counters
// are INCR'd under a key that expires with the window.
//
// A lost or failed update only weakens rate limiting, so errors admit the
// request rather than failing it.
type RedisWindow struct {
	counter windowCounter
	window  time.Duration
	max     int
}

func NewRedisWindow(counter windowCounter, window time.Duration, max int) *RedisWindow {
	return &RedisWindow{counter: counter, window: window, max: max}
}

func (r *RedisWindow) Admit(key string, now time.Time) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	count, err := r.counter.IncrWindow(ctx, "ratelimit:"+key, r.window)
	if err != nil {
		log.Printf("rate limit incr failed, admitting: %v", err)
		return true
	}
	return count <= int64(r.max)
}
