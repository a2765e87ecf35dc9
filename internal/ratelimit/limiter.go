// Package ratelimit implements the admission limiter: per-identity fixed
// window counters that gate login attempts and general API calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Bucket names an independent counter family.
type Bucket string

const (
	// BucketLogin counts authentication attempts.
	BucketLogin Bucket = "login"
	// BucketAPI counts general API calls.
	BucketAPI Bucket = "api"
)

// Policy is the capacity granted to one identity per window.
type Policy struct {
	Capacity int
	Window   time.Duration
}

// DefaultPolicies returns 5 logins and 100 API calls per minute.
func DefaultPolicies() map[Bucket]Policy {
	return map[Bucket]Policy{
		BucketLogin: {Capacity: 5, Window: time.Minute},
		BucketAPI:   {Capacity: 100, Window: time.Minute},
	}
}

type windowKey struct {
	bucket   Bucket
	identity string
}

// window is the counter state of one identity+bucket pair.
type window struct {
	mu        sync.Mutex
	remaining int
	start     time.Time
	active    bool
	// dead is set by the sweeper once the window has been unlinked from the map.
	dead bool
}

// Limiter holds all windows in memory for the lifetime of the process.
// Windows of different identities never share a lock.
type Limiter struct {
	policies map[Bucket]Policy
	windows  sync.Map
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter for the given policies. A nil map means DefaultPolicies.
func New(policies map[Bucket]Policy, opts ...Option) *Limiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	l := &Limiter{
		policies: make(map[Bucket]Policy, len(policies)),
		now:      time.Now,
	}
	for b, p := range policies {
		l.policies[b] = p
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// TryConsume takes one point from identity's window in bucket and reports
// whether the call is admitted. The first consumption after a window has
// elapsed opens a new window with full capacity. Unknown buckets deny.
func (l *Limiter) TryConsume(identity string, bucket Bucket) bool {
	p, ok := l.policies[bucket]
	if !ok || p.Capacity <= 0 {
		return false
	}

	key := windowKey{bucket: bucket, identity: identity}
	for {
		v, _ := l.windows.LoadOrStore(key, &window{})
		w := v.(*window)

		w.mu.Lock()
		if w.dead {
			w.mu.Unlock()
			continue
		}

		now := l.now()
		if !w.active || !now.Before(w.start.Add(p.Window)) {
			w.active = true
			w.start = now
			w.remaining = p.Capacity
		}

		allowed := w.remaining > 0
		if allowed {
			w.remaining--
		}
		w.mu.Unlock()
		return allowed
	}
}

// Sweep drops windows that have fully elapsed. It returns how many were removed.
func (l *Limiter) Sweep() int {
	now := l.now()
	removed := 0

	l.windows.Range(func(k, v any) bool {
		key := k.(windowKey)
		w := v.(*window)
		p := l.policies[key.bucket]

		w.mu.Lock()
		if !w.active || !now.Before(w.start.Add(p.Window)) {
			w.dead = true
			l.windows.Delete(key)
			removed++
		}
		w.mu.Unlock()
		return true
	})

	return removed
}

// Run sweeps elapsed windows every interval until ctx is done.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep()
		}
	}
}
