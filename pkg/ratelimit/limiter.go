package ratelimit

import (
	"sync"
	"time"
)

// window tracks attempts for one key inside the current wall-clock window
type window struct {
	start time.Time
	count int
}

// FixedWindowLimiter counts attempts per key within a fixed wall-clock
// window. The window resets lazily on the next attempt after expiry, so
// no background sweep is needed for correctness; Evict bounds memory by
// dropping stale keys.
type FixedWindowLimiter struct {
	limit    int
	duration time.Duration

	mu      sync.Mutex
	windows map[string]*window

	// now is swappable for tests
	now func() time.Time
}

// NewFixedWindowLimiter creates a limiter allowing limit attempts per
// key per duration.
func NewFixedWindowLimiter(limit int, duration time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		limit:    limit,
		duration: duration,
		windows:  make(map[string]*window),
		now:      time.Now,
	}
}

// Allow records an attempt for key and reports whether it is within the
// limit. When denied it also returns how long until the window resets.
func (l *FixedWindowLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, exists := l.windows[key]
	if !exists || now.Sub(w.start) >= l.duration {
		l.windows[key] = &window{start: now, count: 1}
		return true, 0
	}

	w.count++
	if w.count > l.limit {
		return false, w.start.Add(l.duration).Sub(now)
	}
	return true, 0
}

// Reset clears the window for a specific key
func (l *FixedWindowLimiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.windows, key)
}

// Evict drops windows that expired before the current one. Call it
// periodically to bound memory under many distinct keys.
func (l *FixedWindowLimiter) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	evicted := 0
	for key, w := range l.windows {
		if now.Sub(w.start) >= l.duration {
			delete(l.windows, key)
			evicted++
		}
	}
	return evicted
}

// Len returns the number of tracked keys
func (l *FixedWindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// StartEviction runs Evict on the given interval until stop is closed
func (l *FixedWindowLimiter) StartEviction(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Evict()
			case <-stop:
				return
			}
		}
	}()
}
