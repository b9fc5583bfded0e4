// Package ratelimit throttles chat requests per client address so a single
// caller cannot drain the upstream provider quota.
package ratelimit

import (
	"sync"
	"time"
)

// Config sets the per-client budget. A zero RequestsPerSecond disables limiting.
type Config struct {
	RequestsPerSecond float64
	Burst             float64
	// PruneInterval controls how often idle buckets are dropped (default 5m).
	PruneInterval time.Duration
}

// Limiter keeps one token bucket per client key.
type Limiter struct {
	capacity      float64
	refillRate    float64
	pruneInterval time.Duration
	now           func() time.Time

	mu        sync.Mutex
	buckets   map[string]*TokenBucket
	lastPrune time.Time
}

// New returns a limiter, or nil when cfg disables limiting. A nil *Limiter
// allows everything.
func New(cfg Config) *Limiter {
	return newLimiter(cfg, time.Now)
}

func newLimiter(cfg Config, now func() time.Time) *Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.PruneInterval <= 0 {
		cfg.PruneInterval = 5 * time.Minute
	}
	return &Limiter{
		capacity:      cfg.Burst,
		refillRate:    cfg.RequestsPerSecond,
		pruneInterval: cfg.PruneInterval,
		now:           now,
		buckets:       make(map[string]*TokenBucket),
		lastPrune:     now(),
	}
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Limit      float64
	Remaining  float64
	RetryAfter time.Duration
}

// Allow spends one token from key's bucket.
func (l *Limiter) Allow(key string) Decision {
	if l == nil {
		return Decision{Allowed: true}
	}
	bucket := l.bucket(key)
	d := Decision{Allowed: bucket.Allow(), Limit: l.capacity}
	d.Remaining = bucket.Remaining()
	if !d.Allowed {
		d.RetryAfter = bucket.WaitTime()
	}
	return d
}

// Len returns the number of tracked clients.
func (l *Limiter) Len() int {
	if l == nil {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) bucket(key string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.now().Sub(l.lastPrune) >= l.pruneInterval {
		l.pruneLocked()
	}
	b, ok := l.buckets[key]
	if !ok {
		b = newTokenBucket(l.capacity, l.refillRate, l.now)
		l.buckets[key] = b
	}
	return b
}

// pruneLocked drops buckets that have refilled, i.e. clients that went quiet.
func (l *Limiter) pruneLocked() {
	for key, b := range l.buckets {
		if b.Full() {
			delete(l.buckets, key)
		}
	}
	l.lastPrune = l.now()
}
