// Package ratelimit provides the per-provider token bucket used to pace
// outbound API calls.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrExhausted means no token became available within the acquire timeout.
var ErrExhausted = errors.New("rate limit exhausted")

// Config is the sustained rate and burst for one provider.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// Limiter is a token bucket with an upstream backoff window.
type Limiter struct {
	name    string
	limiter *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time
	now     func() time.Time
}

// New creates a limiter for the named provider.
func New(name string, cfg Config) *Limiter {
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	return &Limiter{
		name:    name,
		limiter: rate.NewLimiter(limit, burst),
		now:     time.Now,
	}
}

// Name returns the provider name.
func (l *Limiter) Name() string {
	return l.name
}

// Acquire takes one token, waiting at most timeout. When the bucket (or an
// upstream backoff) cannot yield a token in time it returns ErrExhausted
// without waiting. Context cancellation returns the context error.
func (l *Limiter) Acquire(ctx context.Context, timeout time.Duration) error {
	now := l.now()

	l.mu.Lock()
	retryAt := l.retryAt
	l.mu.Unlock()

	var backoff time.Duration
	if now.Before(retryAt) {
		backoff = retryAt.Sub(now)
	}

	res := l.limiter.ReserveN(now.Add(backoff), 1)
	if !res.OK() {
		return fmt.Errorf("%s: %w", l.name, ErrExhausted)
	}
	delay := backoff + res.DelayFrom(now.Add(backoff))
	if delay > timeout {
		res.CancelAt(now)
		return fmt.Errorf("%s: %w", l.name, ErrExhausted)
	}
	if delay <= 0 {
		return nil
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		res.Cancel()
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Backoff blocks the limiter until retryAfter has elapsed. Call it when the
// upstream answers 429. A non-positive value falls back to one minute.
func (l *Limiter) Backoff(retryAfter time.Duration) {
	if retryAfter <= 0 {
		retryAfter = time.Minute
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	until := l.now().Add(retryAfter)
	if until.After(l.retryAt) {
		l.retryAt = until
	}
}
