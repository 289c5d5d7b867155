package providers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"mailscout/internal/platform/logger"
	"mailscout/internal/platform/ratelimit"
	"mailscout/internal/verification/metrics"
	"mailscout/pkg/platform/sentinel"
)

type GuardSuite struct {
	suite.Suite
	ctx context.Context
}

func TestGuardSuite(t *testing.T) {
	suite.Run(t, new(GuardSuite))
}

func (s *GuardSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *GuardSuite) newGuard(threshold int, cfg ratelimit.Config) *Guard {
	return NewGuard("hunter", ratelimit.New("hunter", cfg), threshold, logger.Discard(),
		WithAcquireTimeout(10*time.Millisecond),
		WithGuardMetrics(metrics.New(prometheus.NewRegistry())),
	)
}

func (s *GuardSuite) TestBreakerOpensAfterConsecutiveFailures() {
	g := s.newGuard(3, ratelimit.Config{})
	calls := 0
	outage := func(context.Context) error {
		calls++
		return NewError(CategoryProviderOutage, "hunter", "502", nil)
	}

	for range 3 {
		s.Error(g.Do(s.ctx, outage))
	}
	s.True(g.Open())

	err := g.Do(s.ctx, outage)
	s.ErrorIs(err, ErrProviderUnavailable)
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Equal(3, calls, "open breaker must not reach the provider")
	s.Equal("circuit_open", ErrorClass(err))
}

func (s *GuardSuite) TestSuccessResetsFailureRun() {
	g := s.newGuard(2, ratelimit.Config{})
	fail := func(context.Context) error { return NewError(CategoryTimeout, "hunter", "slow", nil) }
	ok := func(context.Context) error { return nil }

	s.Error(g.Do(s.ctx, fail))
	s.NoError(g.Do(s.ctx, ok))
	s.Error(g.Do(s.ctx, fail))
	s.False(g.Open())
}

func (s *GuardSuite) TestQuotaExceededTripsImmediately() {
	g := s.newGuard(10, ratelimit.Config{})
	err := g.Do(s.ctx, func(context.Context) error {
		return NewError(CategoryQuotaExceeded, "hunter", "402", nil)
	})
	s.True(IsQuotaExceeded(err))
	s.True(g.Open())
}

func (s *GuardSuite) TestNotFoundDoesNotCount() {
	g := s.newGuard(1, ratelimit.Config{})
	for range 5 {
		err := g.Do(s.ctx, func(context.Context) error {
			return NewError(CategoryNotFound, "hunter", "no pattern", nil)
		})
		s.Equal(CategoryNotFound, GetCategory(err))
	}
	s.False(g.Open())
}

func (s *GuardSuite) TestExhaustedBucketIsRateLimited() {
	g := s.newGuard(1, ratelimit.Config{RequestsPerSecond: 0.001, Burst: 1})
	noop := func(context.Context) error { return nil }

	s.NoError(g.Do(s.ctx, noop))
	err := g.Do(s.ctx, noop)
	s.True(IsRateLimited(err))
	s.True(errors.Is(err, ratelimit.ErrExhausted))
	s.False(g.Open(), "local throttling is not a provider failure")
}

func (s *GuardSuite) TestUpstream429BacksOff() {
	g := s.newGuard(5, ratelimit.Config{RequestsPerSecond: 100, Burst: 10})
	err := g.Do(s.ctx, func(context.Context) error {
		e := NewError(CategoryRateLimited, "hunter", "429", nil)
		e.RetryAfter = time.Minute
		return e
	})
	s.True(IsRateLimited(err))

	called := false
	err = g.Do(s.ctx, func(context.Context) error { called = true; return nil })
	s.True(errors.Is(err, ratelimit.ErrExhausted))
	s.False(called)
}

func (s *GuardSuite) TestCancelledContext() {
	g := s.newGuard(1, ratelimit.Config{})
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	err := g.Do(ctx, func(ctx context.Context) error { return ctx.Err() })
	s.ErrorIs(err, context.Canceled)
	s.False(g.Open())
}
