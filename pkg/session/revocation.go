package session

import (
	"sync"
	"time"
)

// RevocationList is an in-memory denylist of session token ids. Entries
// carry the token's own expiry, so the list stays bounded: a revoked token
// that has expired anyway is evicted.
type RevocationList struct {
	mu      sync.RWMutex
	revoked map[string]time.Time // jti -> token expiry

	stop     chan struct{}
	stopOnce sync.Once
}

// NewRevocationList creates a revocation list. If evictInterval is positive
// a janitor goroutine periodically drops entries for tokens that have
// expired on their own; Close stops it.
func NewRevocationList(evictInterval time.Duration) *RevocationList {
	rl := &RevocationList{
		revoked: make(map[string]time.Time),
		stop:    make(chan struct{}),
	}
	if evictInterval > 0 {
		go rl.janitor(evictInterval)
	}
	return rl
}

// Revoke marks a token id as unusable until its natural expiry
func (rl *RevocationList) Revoke(jti string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.revoked[jti] = expiresAt
}

// IsRevoked reports whether a token id has been revoked
func (rl *RevocationList) IsRevoked(jti string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	_, ok := rl.revoked[jti]
	return ok
}

// Len returns the number of live revocation records
func (rl *RevocationList) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.revoked)
}

// Evict drops records for tokens that have expired on their own
func (rl *RevocationList) Evict() int {
	now := time.Now()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	evicted := 0
	for jti, expiresAt := range rl.revoked {
		if now.After(expiresAt) {
			delete(rl.revoked, jti)
			evicted++
		}
	}
	return evicted
}

// Close stops the janitor goroutine. Safe to call more than once.
func (rl *RevocationList) Close() {
	rl.stopOnce.Do(func() {
		close(rl.stop)
	})
}

func (rl *RevocationList) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.Evict()
		case <-rl.stop:
			return
		}
	}
}
