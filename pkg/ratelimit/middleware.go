package ratelimit

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"log/slog"
)

// Config holds rate limiting configuration for the login surface
type Config struct {
	// Per-IP limiting across all guarded endpoints
	PerIPEnabled bool
	PerIPLimit   int
	PerIPWindow  time.Duration

	// Per-identifier limiting, keyed by the account identifier a login
	// attempt names. Slower than the IP limit so a distributed guesser
	// cannot spread attempts across source addresses.
	PerIdentifierEnabled bool
	PerIdentifierLimit   int
	PerIdentifierWindow  time.Duration

	// EvictInterval bounds memory used by stale windows
	EvictInterval time.Duration

	// Include X-RateLimit headers in responses
	IncludeHeaders bool
}

// DefaultConfig returns the default login-surface limits
func DefaultConfig() *Config {
	return &Config{
		PerIPEnabled: true,
		PerIPLimit:   20,
		PerIPWindow:  time.Minute,

		PerIdentifierEnabled: true,
		PerIdentifierLimit:   5,
		PerIdentifierWindow:  5 * time.Minute,

		EvictInterval:  10 * time.Minute,
		IncludeHeaders: true,
	}
}

// Middleware guards authentication endpoints with fixed-window limits
type Middleware struct {
	config            *Config
	ipLimiter         *FixedWindowLimiter
	identifierLimiter *FixedWindowLimiter
	stop              chan struct{}
}

// NewMiddleware creates the rate limiting middleware and starts the
// background eviction of stale windows. Close releases it.
func NewMiddleware(config *Config) *Middleware {
	if config == nil {
		config = DefaultConfig()
	}

	m := &Middleware{config: config, stop: make(chan struct{})}

	if config.PerIPEnabled {
		m.ipLimiter = NewFixedWindowLimiter(config.PerIPLimit, config.PerIPWindow)
		if config.EvictInterval > 0 {
			m.ipLimiter.StartEviction(config.EvictInterval, m.stop)
		}
	}
	if config.PerIdentifierEnabled {
		m.identifierLimiter = NewFixedWindowLimiter(config.PerIdentifierLimit, config.PerIdentifierWindow)
		if config.EvictInterval > 0 {
			m.identifierLimiter.StartEviction(config.EvictInterval, m.stop)
		}
	}

	return m
}

// Close stops the background eviction goroutines
func (m *Middleware) Close() {
	close(m.stop)
}

// Handler applies the per-IP limit to every request passing through
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := getClientIP(r)
		if m.ipLimiter != nil && ip != "" {
			if ok, retryAfter := m.ipLimiter.Allow(ip); !ok {
				m.rateLimitExceeded(w, r, "ip", retryAfter)
				return
			}
		}

		if m.config.IncludeHeaders && m.ipLimiter != nil {
			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", m.config.PerIPLimit))
		}

		next.ServeHTTP(w, r)
	})
}

// AllowIdentifier records a login attempt against the named account
// identifier. The caller checks this inside the handler, after the body
// is parsed. When denied it returns the time until the window resets.
func (m *Middleware) AllowIdentifier(identifier string) (bool, time.Duration) {
	if m.identifierLimiter == nil || identifier == "" {
		return true, 0
	}
	return m.identifierLimiter.Allow(strings.ToLower(strings.TrimSpace(identifier)))
}

// ResetIdentifier clears the window for an identifier, called after a
// successful login so a legitimate user is not penalized for earlier
// typos.
func (m *Middleware) ResetIdentifier(identifier string) {
	if m.identifierLimiter != nil {
		m.identifierLimiter.Reset(strings.ToLower(strings.TrimSpace(identifier)))
	}
}

func (m *Middleware) rateLimitExceeded(w http.ResponseWriter, r *http.Request, limitType string, retryAfter time.Duration) {
	slog.Warn("Rate limit exceeded",
		"type", limitType,
		"ip", getClientIP(r),
		"path", r.URL.Path,
		"method", r.Method,
	)

	seconds := int(math.Ceil(retryAfter.Seconds()))
	if seconds < 1 {
		seconds = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error":"rate_limit_exceeded","message":"Too many requests. Please try again later.","retry_after":%d}`, seconds)
}

// getClientIP extracts the client IP address from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// RemoteAddr is "IP:port"
	addr := r.RemoteAddr
	if idx := strings.LastIndex(addr, ":"); idx != -1 {
		return addr[:idx]
	}
	return addr
}
