package rate

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"
)

// Config holds limiter tuning parameters.
type Config struct {
	RPS   float64
	Burst int
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// New creates a [Limiter]. Non-positive values disable throttling: every
// Wait returns immediately.
func New(cfg Config) *Limiter {
	l := &Limiter{
		limit:   rate.Limit(cfg.RPS),
		burst:   cfg.Burst,
		buckets: make(map[string]*rate.Limiter),
	}
	if cfg.RPS <= 0 || cfg.Burst <= 0 {
		l.limit = rate.Inf
		l.burst = 0
	}
	return l
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		return b
	}
	b := rate.NewLimiter(l.limit, l.burst)
	l.buckets[key] = b
	return b
}

// Wait blocks until key has a token. It fails with ErrRateLimited when ctx
// ends first or the wait would exceed the ctx deadline.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	if l == nil {
		return nil
	}
	if err := l.bucket(key).Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	return nil
}

// Allow reports whether key has a token right now, consuming it.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	return l.bucket(key).Allow()
}
