package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Advisory keeps one token bucket per key.
type Advisory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// NewAdvisory allows burst events at once and refills at limit per second.
func NewAdvisory(limit rate.Limit, burst int) *Advisory {
	return &Advisory{
		buckets: make(map[string]*bucket),
		limit:   limit,
		burst:   burst,
		now:     time.Now,
	}
}

// PerWindow allows n events per window with a burst of n.
func PerWindow(n int, window time.Duration) *Advisory {
	return NewAdvisory(rate.Every(window/time.Duration(n)), n)
}

// WithClock replaces the time source. Meant for tests.
func (a *Advisory) WithClock(now func() time.Time) *Advisory {
	a.now = now
	return a
}

// Allow takes one token for key if available.
func (a *Advisory) Allow(key string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()

	b, ok := a.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(a.limit, a.burst)}
		a.buckets[key] = b
	}

	b.lastSeen = now

	return b.lim.AllowN(now, 1)
}

// Cleanup drops buckets idle for longer than idle and returns how many went.
func (a *Advisory) Cleanup(idle time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.now().Add(-idle)
	n := 0

	for key, b := range a.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(a.buckets, key)
			n++
		}
	}

	return n
}

// Len reports the number of tracked keys.
func (a *Advisory) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.buckets)
}
