package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock { return &fakeClock{t: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)} }

func TestTokenBucketBurstThenRefill(t *testing.T) {
	clock := newClock()
	tb := newTokenBucket(10, 5, clock.now)

	for i := 0; i < 10; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d should be allowed (burst)", i)
		}
	}
	if tb.Allow() {
		t.Fatal("11th request should be denied")
	}

	clock.advance(time.Second)
	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Fatalf("request %d after refill should be allowed", i)
		}
	}
	if tb.Allow() {
		t.Fatal("refill should only add 5 tokens")
	}
}

func TestTokenBucketCapsAtCapacity(t *testing.T) {
	clock := newClock()
	tb := newTokenBucket(3, 1, clock.now)
	tb.AllowN(3)
	clock.advance(time.Hour)
	if got := tb.Remaining(); got != 3 {
		t.Fatalf("remaining = %v, want 3", got)
	}
	if !tb.Full() {
		t.Fatal("bucket should be full")
	}
}

func TestTokenBucketAllowN(t *testing.T) {
	tb := newTokenBucket(100, 10, newClock().now)
	if !tb.AllowN(50) {
		t.Fatal("should allow 50 tokens")
	}
	if tb.AllowN(60) {
		t.Fatal("should deny 60 tokens when only 50 remain")
	}
	if got := tb.Remaining(); got != 50 {
		t.Fatalf("remaining = %v, want 50", got)
	}
}

func TestTokenBucketWaitTime(t *testing.T) {
	tb := newTokenBucket(1, 2, newClock().now)
	if w := tb.WaitTime(); w != 0 {
		t.Fatalf("wait = %v, want 0", w)
	}
	tb.Allow()
	if w := tb.WaitTime(); w != 500*time.Millisecond {
		t.Fatalf("wait = %v, want 500ms", w)
	}
}
