package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mailscout/internal/platform/ratelimit"
	"mailscout/internal/verification/metrics"
	"mailscout/pkg/platform/circuit"
)

// Guard wraps every call to one provider with its token bucket and circuit
// breaker. Once the breaker opens it stays open for the rest of the run.
type Guard struct {
	name           string
	limiter        *ratelimit.Limiter
	breaker        *circuit.Breaker
	acquireTimeout time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithAcquireTimeout bounds the wait for a rate-limit token.
func WithAcquireTimeout(d time.Duration) GuardOption {
	return func(g *Guard) { g.acquireTimeout = d }
}

// WithGuardMetrics attaches call metrics.
func WithGuardMetrics(m *metrics.Metrics) GuardOption {
	return func(g *Guard) { g.metrics = m }
}

// NewGuard builds a guard. breakerThreshold is the consecutive-failure count that opens the breaker.
func NewGuard(name string, limiter *ratelimit.Limiter, breakerThreshold int, logger *slog.Logger, opts ...GuardOption) *Guard {
	g := &Guard{
		name:           name,
		limiter:        limiter,
		breaker:        circuit.New(name, circuit.WithFailureThreshold(breakerThreshold)),
		acquireTimeout: 5 * time.Second,
		logger:         logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Name returns the provider name.
func (g *Guard) Name() string {
	return g.name
}

// Open reports whether the provider has been cut off for this run.
func (g *Guard) Open() bool {
	return g.breaker.IsOpen()
}

// Do acquires a token and runs fn, feeding the outcome to the breaker.
//
// Returns ErrProviderUnavailable without calling fn while the breaker is open,
// and a CategoryRateLimited *Error wrapping ratelimit.ErrExhausted when no
// token arrives within the acquire timeout.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if g.breaker.IsOpen() {
		g.metrics.IncrementProviderCall(g.name, "skipped")
		return fmt.Errorf("%s: %w", g.name, ErrProviderUnavailable)
	}

	if err := g.limiter.Acquire(ctx, g.acquireTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		g.metrics.IncrementProviderCall(g.name, string(CategoryRateLimited))
		return NewError(CategoryRateLimited, g.name, "no rate limit token", err)
	}

	err := fn(ctx)
	if err == nil {
		g.breaker.RecordSuccess()
		g.metrics.IncrementProviderCall(g.name, "ok")
		return nil
	}

	g.metrics.IncrementProviderCall(g.name, ErrorClass(err))

	var pe *Error
	if errors.As(err, &pe) && pe.Category == CategoryRateLimited {
		g.limiter.Backoff(pe.RetryAfter)
	}

	switch {
	case IsQuotaExceeded(err):
		if change := g.breaker.Trip(); change.Opened {
			g.opened(ctx, err)
		}
	case countsAgainstBreaker(err):
		if _, change := g.breaker.RecordFailure(); change.Opened {
			g.opened(ctx, err)
		}
	}
	return err
}

func (g *Guard) opened(ctx context.Context, cause error) {
	g.metrics.SetBreakerOpen(g.name, true)
	g.logger.WarnContext(ctx, "provider circuit opened, skipping for the rest of the run",
		"provider", g.name,
		"error_class", ErrorClass(cause),
		"error", cause,
	)
}
