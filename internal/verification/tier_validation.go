package verification

import (
	"context"
	"log/slog"

	"mailscout/internal/confidence"
	"mailscout/internal/verification/ports"
	"mailscout/internal/verification/providers"
)

// CandidateValidation probes individual addresses with a deliverability
// validator, strongest candidate first, and stops at the first valid one.
type CandidateValidation struct {
	validator     ports.Validator
	provider      string
	store         PatternStore
	scorer        *confidence.Scorer
	cache         *VerifyCache
	maxCandidates int
	logger        *slog.Logger
}

// NewCandidateValidation builds the validation tier. provider names the
// validator in outcomes and logs; maxCandidates bounds paid checks per contact.
func NewCandidateValidation(validator ports.Validator, provider string, store PatternStore, scorer *confidence.Scorer, cache *VerifyCache, maxCandidates int, logger *slog.Logger) *CandidateValidation {
	if cache == nil {
		cache = NewVerifyCache()
	}
	return &CandidateValidation{
		validator:     validator,
		provider:      provider,
		store:         store,
		scorer:        scorer,
		cache:         cache,
		maxCandidates: max(maxCandidates, 1),
		logger:        logger,
	}
}

func (t *CandidateValidation) Name() TierName { return TierCandidateValidation }

// Try validates up to maxCandidates addresses. Local or upstream rate
// limiting is recorded as a rate_limited outcome and ends the tier.
func (t *CandidateValidation) Try(ctx context.Context, a *Attempt) error {
	order := a.ByConfidence()
	if len(order) > t.maxCandidates {
		order = order[:t.maxCandidates]
	}

	for _, c := range order {
		result, err := t.check(ctx, c.Address)
		if err != nil {
			if providers.IsRateLimited(err) {
				a.Record(c, OutcomeRateLimited, t.provider)
			}
			return err
		}

		status := outcomeFor(result)
		a.Record(c, status, t.provider)

		switch result {
		case ports.ResultValid:
			conf := t.scorer.Score(confidence.Evidence{Source: confidence.SourceValidation, Direct: true})
			a.Confirm(c.Pattern, TierCandidateValidation, conf)
			writeBack(ctx, t.store, t.logger, a.Domain, c.Pattern, confidence.SourceValidation, 1)
			return nil
		case ports.ResultInvalid:
			a.Reject(c.Pattern)
		}
	}
	return nil
}

func (t *CandidateValidation) check(ctx context.Context, address string) (ports.ValidationResult, error) {
	if r, ok := t.cache.Get(address); ok {
		return r, nil
	}
	r, err := t.validator.Validate(ctx, address)
	if err != nil {
		return "", err
	}
	t.cache.Put(address, r)
	return r, nil
}
