package verification

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"mailscout/internal/pattern"
)

// Verifier resolves one contact.
type Verifier interface {
	Verify(ctx context.Context, c Contact) (Result, error)
}

// Summary counts a run's contacts by fate.
type Summary struct {
	Total      int `json:"total"`
	Verified   int `json:"verified"`
	Unverified int `json:"unverified"`
	Unresolved int `json:"unresolved"`
	// Skipped contacts had unusable names or domain.
	Skipped int `json:"skipped"`
	// Deferred contacts were rate limited on the first pass and retried once.
	Deferred int `json:"deferred"`
}

func (s *Summary) add(r Result) {
	switch r.Resolution {
	case ResolutionVerified:
		s.Verified++
	case ResolutionUnresolved:
		s.Unresolved++
	default:
		s.Unverified++
	}
}

// Runner processes contacts with bounded parallelism. Tiers within a contact
// stay sequential.
type Runner struct {
	verifier         Verifier
	concurrency      int
	deferRateLimited bool
	logger           *slog.Logger
}

// NewRunner builds a runner. With deferRateLimited, contacts whose validation
// was rate limited and that stayed unverified get a second pass after the rest.
func NewRunner(v Verifier, concurrency int, deferRateLimited bool, logger *slog.Logger) *Runner {
	return &Runner{
		verifier:         v,
		concurrency:      max(concurrency, 1),
		deferRateLimited: deferRateLimited,
		logger:           logger,
	}
}

// Run verifies contacts and calls emit once per contact that was not skipped.
// emit is never called concurrently. Cancelling ctx stops the run and returns
// ctx's error; results already emitted stand.
func (r *Runner) Run(ctx context.Context, contacts []Contact, emit func(Result)) (Summary, error) {
	sum := Summary{Total: len(contacts)}
	var mu sync.Mutex
	var deferred []Contact

	pass := func(batch []Contact, final bool) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.concurrency)
		for _, c := range batch {
			g.Go(func() error {
				res, err := r.verifier.Verify(gctx, c)
				if err != nil {
					var invalid *pattern.InvalidInputError
					if errors.As(err, &invalid) {
						r.logger.WarnContext(gctx, "skipping contact",
							"contact_id", c.ID,
							"domain", c.Domain,
							"error", err,
						)
						mu.Lock()
						sum.Skipped++
						mu.Unlock()
						return nil
					}
					return err
				}

				mu.Lock()
				defer mu.Unlock()
				if !final && r.deferRateLimited && res.RateLimited && !res.Verified {
					deferred = append(deferred, c)
					return nil
				}
				sum.add(res)
				emit(res)
				return nil
			})
		}
		return g.Wait()
	}

	if err := pass(contacts, false); err != nil {
		return sum, err
	}
	if len(deferred) == 0 {
		return sum, nil
	}

	sum.Deferred = len(deferred)
	r.logger.InfoContext(ctx, "retrying rate limited contacts", "count", len(deferred))
	if err := pass(deferred, true); err != nil {
		return sum, err
	}
	return sum, nil
}
