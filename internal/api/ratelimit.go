// Rate limiting for endpoints that consume narrator tokens.
// Fixed-window counter per client IP, kept in memory.
package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter allows a fixed number of requests per window per IP.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	span    time.Duration

	lastSweep time.Time
}

type window struct {
	count    int
	openedAt time.Time
}

// NewRateLimiter creates a limiter allowing limit requests per span.
func NewRateLimiter(limit int, span time.Duration) *RateLimiter {
	return &RateLimiter{
		windows:   make(map[string]*window),
		limit:     limit,
		span:      span,
		lastSweep: time.Now(),
	}
}

// Allow records a request from ip and reports whether it is within limits.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	rl.sweep(now)

	wd, ok := rl.windows[ip]
	if !ok || now.Sub(wd.openedAt) >= rl.span {
		rl.windows[ip] = &window{count: 1, openedAt: now}
		return true
	}

	if wd.count < rl.limit {
		wd.count++
		return true
	}
	return false
}

// RetryAfter returns seconds until the window resets for this IP.
func (rl *RateLimiter) RetryAfter(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	wd, ok := rl.windows[ip]
	if !ok {
		return 0
	}
	remaining := rl.span - time.Since(wd.openedAt)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Seconds()) + 1
}

// sweep drops expired windows. Runs opportunistically under the lock,
// at most once per span.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.span {
		return
	}
	for ip, wd := range rl.windows {
		if now.Sub(wd.openedAt) >= rl.span {
			delete(rl.windows, ip)
		}
	}
	rl.lastSweep = now
}

// clientIP extracts the caller's address, preferring X-Forwarded-For
// when the request came through a proxy.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimitMiddleware wraps a handler with rate limiting. Returns 429 when exceeded.
func RateLimitMiddleware(rl *RateLimiter, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter(ip)))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
