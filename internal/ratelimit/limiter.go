package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config describes the per-user token bucket
type Config struct {
	// Tokens refilled per Window
	Rate   float64
	Window time.Duration
	// Bucket capacity
	Burst int
}

// DefaultConfig allows 10 actions per minute with bursts of 15
func DefaultConfig() Config {
	return Config{Rate: 10, Window: time.Minute, Burst: 15}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per user. Buckets start full.
type Limiter struct {
	cfg   Config
	limit rate.Limit
	now   func() time.Time

	mu      sync.Mutex
	buckets map[int64]*bucket
}

// New creates a limiter
func New(cfg Config) *Limiter {
	return &Limiter{
		cfg:     cfg,
		limit:   rate.Limit(cfg.Rate / cfg.Window.Seconds()),
		now:     time.Now,
		buckets: make(map[int64]*bucket),
	}
}

// Allow consumes one token of the user's bucket if available
func (l *Limiter) Allow(userID int64) bool {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[userID]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit, l.cfg.Burst)}
		l.buckets[userID] = b
	}
	b.lastSeen = now
	return b.lim.AllowN(now, 1)
}

// Remaining returns the tokens the user could spend right now without consuming any
func (l *Limiter) Remaining(userID int64) float64 {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[userID]
	if !ok {
		return float64(l.cfg.Burst)
	}
	return math.Max(0, b.lim.TokensAt(now))
}

// Wait blocks until the user gets a token, the timeout passes or ctx ends.
// It reports whether a token was taken.
func (l *Limiter) Wait(ctx context.Context, userID int64, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for {
		if l.Allow(userID) {
			return true
		}

		// Re-check at most once per second
		wait := time.Second
		if missing := 1 - l.Remaining(userID); l.limit > 0 && missing > 0 {
			if d := time.Duration(missing / float64(l.limit) * float64(time.Second)); d < wait {
				wait = d
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

// Sweep drops buckets untouched for more than two windows and returns how many went
func (l *Limiter) Sweep() int {
	cutoff := l.now().Add(-2 * l.cfg.Window)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, b := range l.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(l.buckets, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked users
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
