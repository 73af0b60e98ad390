package ratelimit

import (
	"testing"
	"time"
)

// fakeClock lets tests advance the limiter's view of time directly
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*FixedWindowLimiter, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewFixedWindowLimiter(limit, window)
	l.now = clock.now
	return l, clock
}

func TestFixedWindowLimiter_Allow(t *testing.T) {
	l, _ := newTestLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		if ok, _ := l.Allow("key1"); !ok {
			t.Errorf("Attempt %d should be allowed", i+1)
		}
	}

	ok, retryAfter := l.Allow("key1")
	if ok {
		t.Error("4th attempt should be denied")
	}
	if retryAfter <= 0 || retryAfter > time.Minute {
		t.Errorf("Unexpected retry-after: %v", retryAfter)
	}

	// Separate keys have separate windows
	if ok, _ := l.Allow("key2"); !ok {
		t.Error("First attempt for key2 should be allowed")
	}
}

func TestFixedWindowLimiter_WindowReset(t *testing.T) {
	l, clock := newTestLimiter(2, time.Minute)

	l.Allow("key1")
	l.Allow("key1")
	if ok, _ := l.Allow("key1"); ok {
		t.Error("3rd attempt inside window should be denied")
	}

	clock.advance(time.Minute)

	if ok, _ := l.Allow("key1"); !ok {
		t.Error("Attempt after window expiry should be allowed")
	}
}

func TestFixedWindowLimiter_Reset(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	l.Allow("key1")
	if ok, _ := l.Allow("key1"); ok {
		t.Error("2nd attempt should be denied")
	}

	l.Reset("key1")

	if ok, _ := l.Allow("key1"); !ok {
		t.Error("Attempt after reset should be allowed")
	}
}

func TestFixedWindowLimiter_Evict(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)

	l.Allow("stale")
	clock.advance(2 * time.Minute)
	l.Allow("fresh")

	if n := l.Evict(); n != 1 {
		t.Errorf("Expected 1 evicted window, got %d", n)
	}
	if l.Len() != 1 {
		t.Errorf("Expected 1 tracked key after eviction, got %d", l.Len())
	}
}

func TestFixedWindowLimiter_RetryAfterShrinks(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)

	l.Allow("key1")
	_, first := l.Allow("key1")

	clock.advance(30 * time.Second)
	_, second := l.Allow("key1")

	if second >= first {
		t.Errorf("Retry-after should shrink as the window ages: first=%v second=%v", first, second)
	}
}
