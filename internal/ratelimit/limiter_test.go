package ratelimit

import (
	"testing"
	"time"
)

func TestFixedWindowAdmitSequence(t *testing.T) {
	limiter := NewFixedWindow(1000*time.Millisecond, 3)
	now := time.Now()

	want := []bool{true, true, true, false, false}
	for i, expected := range want {
		if got := limiter.Admit("10.0.0.1", now); got != expected {
			t.Fatalf("call %d: got %v, want %v", i+1, got, expected)
		}
	}

	// a fresh window admits again
	if !limiter.Admit("10.0.0.1", now.Add(1001*time.Millisecond)) {
		t.Fatalf("expected admit after window elapsed")
	}
}

func TestFixedWindowKeysIndependent(t *testing.T) {
	limiter := NewFixedWindow(time.Second, 1)
	now := time.Now()

	if !limiter.Admit("a", now) {
		t.Fatalf("first request for key a should be admitted")
	}
	if limiter.Admit("a", now) {
		t.Fatalf("second request for key a should be rejected")
	}
	if !limiter.Admit("b", now) {
		t.Fatalf("key b has its own window")
	}
}

func TestFixedWindowCountsRejections(t *testing.T) {
	limiter := NewFixedWindow(time.Second, 2)
	now := time.Now()

	for i := 0; i < 5; i++ {
		limiter.Admit("k", now)
	}
	// counter kept incrementing on rejection, so the bucket is far over max
	if limiter.Admit("k", now.Add(500*time.Millisecond)) {
		t.Fatalf("expected rejection mid-window")
	}
}

func TestFixedWindowSweepDropsExpired(t *testing.T) {
	limiter := NewFixedWindow(10*time.Millisecond, 1)
	now := time.Now()

	limiter.Admit("gone", now)
	limiter.Admit("kept", now.Add(5*time.Millisecond))
	limiter.sweep(now.Add(12 * time.Millisecond))

	limiter.mu.Lock()
	_, goneOK := limiter.buckets["gone"]
	_, keptOK := limiter.buckets["kept"]
	limiter.mu.Unlock()
	if goneOK {
		t.Fatalf("expired bucket not swept")
	}
	if !keptOK {
		t.Fatalf("live bucket swept")
	}
}
