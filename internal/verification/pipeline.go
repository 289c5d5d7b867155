// Package verification resolves a contact's work email by running an ordered
// chain of tiers, from free cache lookups to paid deliverability checks.
package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"mailscout/internal/pattern"
	"mailscout/internal/verification/metrics"
	"mailscout/internal/verification/providers"
)

var tracer = otel.Tracer("mailscout/verification")

// Config bounds the pipeline.
type Config struct {
	// Threshold is the confidence at which a candidate counts as verified.
	Threshold float64
	// ContactDeadline caps the whole chain for one contact. Zero disables it.
	ContactDeadline time.Duration
	// TierTimeout caps each tier. Zero disables it.
	TierTimeout time.Duration
}

// Pipeline runs tiers in order until one yields a qualifying candidate.
type Pipeline struct {
	cfg     Config
	tiers   []Tier
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithClock overrides time.Now for outcome timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline builds a pipeline over tiers, which run in the given order.
func NewPipeline(cfg Config, tiers []Tier, logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:    cfg,
		tiers:  tiers,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Verify resolves one contact.
//
// Invalid names or domain return a *pattern.InvalidInputError. Cancelling ctx
// returns ctx's error and discards the attempt. Running out of ContactDeadline
// is not an error: the result is ResolutionUnresolved.
func (p *Pipeline) Verify(ctx context.Context, c Contact) (Result, error) {
	generated, err := pattern.Generate(c.FirstName, c.LastName, c.Domain)
	if err != nil {
		return Result{Contact: c}, err
	}
	a := newAttempt(c, pattern.NormalizeDomain(c.Domain), generated, p.now)

	cctx := ctx
	if p.cfg.ContactDeadline > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, p.cfg.ContactDeadline)
		defer cancel()
	}

	for _, t := range p.tiers {
		if err := ctx.Err(); err != nil {
			return Result{Contact: c}, err
		}
		if cctx.Err() != nil {
			return p.finish(ctx, a, ResolutionUnresolved), nil
		}

		p.runTier(cctx, a, t)

		if err := ctx.Err(); err != nil {
			return Result{Contact: c}, err
		}
		if best, ok := p.qualifying(a); ok {
			return p.result(ctx, a, best, true, ResolutionVerified), nil
		}
	}

	if cctx.Err() != nil {
		return p.finish(ctx, a, ResolutionUnresolved), nil
	}
	return p.finish(ctx, a, ResolutionUnverified), nil
}

func (p *Pipeline) runTier(ctx context.Context, a *Attempt, t Tier) {
	name := string(t.Name())
	ctx, span := tracer.Start(ctx, "verification.tier",
		trace.WithAttributes(
			attribute.String("tier", name),
			attribute.String("domain", a.Domain),
		),
	)
	defer span.End()

	if p.cfg.TierTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TierTimeout)
		defer cancel()
	}

	start := time.Now()
	err := t.Try(ctx, a)
	elapsed := time.Since(start)

	result := "ok"
	if err != nil {
		result = providers.ErrorClass(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
		p.logTierError(ctx, a, name, err)
	}
	if best, ok := a.Best(); ok {
		span.SetAttributes(
			attribute.String("best_pattern", string(best.Pattern)),
			attribute.Float64("best_confidence", best.Confidence),
		)
	}
	p.metrics.ObserveTier(name, result, elapsed)
}

func (p *Pipeline) logTierError(ctx context.Context, a *Attempt, tier string, err error) {
	var pe *providers.Error
	provider := ""
	if errors.As(err, &pe) {
		provider = pe.Provider
	}
	level := slog.LevelWarn
	if errors.Is(err, providers.ErrProviderUnavailable) || providers.GetCategory(err) == providers.CategoryRateLimited {
		level = slog.LevelInfo
	}
	p.logger.Log(ctx, level, "verification tier failed, moving on",
		"domain", a.Domain,
		"tier", tier,
		"provider", provider,
		"error_class", providers.ErrorClass(err),
		"error", err,
	)
}

// qualifying returns the best candidate when it ends the chain: confirmed by a
// validator, or at or above threshold on evidence stronger than search hints.
func (p *Pipeline) qualifying(a *Attempt) (EmailCandidate, bool) {
	best, ok := a.Best()
	if !ok {
		return EmailCandidate{}, false
	}
	if best.Verified {
		return best, true
	}
	if best.Tier == TierSearchProbe {
		return EmailCandidate{}, false
	}
	return best, best.Confidence >= p.cfg.Threshold
}

// finish builds an unverified result around the first candidate not proven
// undeliverable.
func (p *Pipeline) finish(ctx context.Context, a *Attempt, res Resolution) Result {
	return p.result(ctx, a, a.Fallback(), false, res)
}

func (p *Pipeline) result(ctx context.Context, a *Attempt, chosen EmailCandidate, verified bool, res Resolution) Result {
	p.metrics.IncrementResolution(string(res))
	p.logger.DebugContext(ctx, "contact resolved",
		"domain", a.Domain,
		"pattern", chosen.Pattern,
		"confidence", chosen.Confidence,
		"resolution", res,
	)
	return Result{
		Contact:     a.Contact,
		Email:       chosen,
		Verified:    verified,
		Resolution:  res,
		Tier:        chosen.Tier,
		Outcomes:    a.Outcomes,
		RateLimited: a.RateLimited,
	}
}

// String renders a result for logs.
func (r Result) String() string {
	return fmt.Sprintf("%s <%s> %s", r.Contact.ID, r.Email.Address, r.Resolution)
}
