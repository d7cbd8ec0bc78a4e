// Package ratelimit implements the fixed-window request limiter guarding the
// mutating API endpoints. A window admits at most max requests; counters
// reset at discrete window boundaries, so a burst straddling a boundary can
// see up to 2x the quota. That tradeoff is intentional and relied upon by
// the callers.
package ratelimit

import (
	"sync"
	"time"
)

// Result is the outcome of one admission check. When Allowed is false the
// caller derives retry-after from ResetAt.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type counter struct {
	count   int
	resetAt time.Time
}

// Limiter owns the counter map. All access goes through Check and Sweep;
// the map is never exposed.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*counter
	now     func() time.Time
}

func New() *Limiter {
	return &Limiter{
		entries: make(map[string]*counter),
		now:     time.Now,
	}
}

// NewWithClock is test-only for deterministic windows.
func NewWithClock(now func() time.Time) *Limiter {
	l := New()
	l.now = now
	return l
}

// Check admits or rejects one request for key. A first request, or one
// arriving at or after the stored reset instant, starts a fresh window.
func (l *Limiter) Check(key string, window time.Duration, max int) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok || !entry.resetAt.After(now) {
		resetAt := now.Add(window)
		l.entries[key] = &counter{count: 1, resetAt: resetAt}
		return Result{Allowed: true, Remaining: max - 1, ResetAt: resetAt}
	}

	if entry.count >= max {
		return Result{Allowed: false, Remaining: 0, ResetAt: entry.resetAt}
	}

	entry.count++
	return Result{Allowed: true, Remaining: max - entry.count, ResetAt: entry.resetAt}
}

// Sweep drops every counter whose window has already expired. It runs on a
// fixed schedule independent of request traffic, bounding the map to keys
// active within roughly one sweep period.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, entry := range l.entries {
		if !entry.resetAt.After(now) {
			delete(l.entries, key)
		}
	}
}

// Len reports the number of live counters. Used by tests and the sweep log.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ClientKey derives the client identity from the originating address and the
// reported agent string. Distinct users behind one proxy share a quota; that
// collision is accepted.
func ClientKey(ip, userAgent string) string {
	if ip == "" {
		ip = "unknown"
	}
	if userAgent == "" {
		userAgent = "unknown"
	}
	return ip + "-" + userAgent
}
