// Package limiter provides in-memory fixed-window rate limiting for the
// auth endpoints. The limiter is process-local and non-durable; the engine
// binds to loopback in its primary deployment, so surviving restarts is not
// a goal.
package limiter

import (
	"sync"
	"time"
)

// Window is a fixed-window counter keyed by an opaque string.
type Window struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	attempts int
	resetAt  time.Time
}

// NewWindow constructs a fixed-window limiter allowing limit requests per
// period for each key.
func NewWindow(limit int, period time.Duration) *Window {
	return &Window{
		limit:   limit,
		period:  period,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow records an attempt for key and reports whether it may proceed.
// When rejected, the returned duration is the time until the window resets.
// Stale buckets are lazily evicted on each call.
func (w *Window) Allow(key string) (bool, time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	for k, b := range w.buckets {
		if !b.resetAt.After(now) {
			delete(w.buckets, k)
		}
	}

	b, ok := w.buckets[key]
	if !ok {
		b = &bucket{resetAt: now.Add(w.period)}
		w.buckets[key] = b
	}
	b.attempts++
	if b.attempts <= w.limit {
		return true, 0
	}
	return false, b.resetAt.Sub(now)
}

// Reset clears all buckets. Exposed for tests.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buckets = make(map[string]*bucket)
}

// Limits bundles the three independent keyspaces protecting the auth
// endpoints: client address and login identifier for register/login, user id
// for refresh.
type Limits struct {
	Addr  *Window
	Login *Window
	User  *Window
}

// Default keyspace configuration.
const (
	addrLimit  = 5
	addrWindow = 60 * time.Second

	loginLimit  = 5
	loginWindow = 60 * time.Second

	userLimit  = 30
	userWindow = 300 * time.Second
)

// NewLimits constructs the default limiter set.
func NewLimits() *Limits {
	return &Limits{
		Addr:  NewWindow(addrLimit, addrWindow),
		Login: NewWindow(loginLimit, loginWindow),
		User:  NewWindow(userLimit, userWindow),
	}
}

// Reset clears every keyspace. Exposed for tests.
func (l *Limits) Reset() {
	l.Addr.Reset()
	l.Login.Reset()
	l.User.Reset()
}
