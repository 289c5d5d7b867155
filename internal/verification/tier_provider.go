package verification

import (
	"context"
	"log/slog"

	"mailscout/internal/confidence"
	"mailscout/internal/pattern"
	"mailscout/internal/verification/ports"
	"mailscout/internal/verification/providers"
)

// ProviderAPILookup asks a pattern provider for the domain's convention.
type ProviderAPILookup struct {
	provider ports.PatternProvider
	store    PatternStore
	scorer   *confidence.Scorer
	logger   *slog.Logger
	// defaultSamples stands in when the provider does not say how many addresses it saw.
	defaultSamples int
}

// NewProviderAPILookup builds the provider tier.
func NewProviderAPILookup(provider ports.PatternProvider, store PatternStore, scorer *confidence.Scorer, defaultSamples int, logger *slog.Logger) *ProviderAPILookup {
	return &ProviderAPILookup{
		provider:       provider,
		store:          store,
		scorer:         scorer,
		logger:         logger,
		defaultSamples: max(defaultSamples, 1),
	}
}

func (t *ProviderAPILookup) Name() TierName { return TierProviderAPI }

func (t *ProviderAPILookup) Try(ctx context.Context, a *Attempt) error {
	info, err := t.provider.DomainPattern(ctx, a.Domain)
	if err != nil {
		if providers.GetCategory(err) == providers.CategoryNotFound {
			return nil
		}
		return err
	}
	if !pattern.Known(info.Pattern) {
		return nil
	}

	share := 1.0
	if info.PercentageOfContacts > 0 {
		share = info.PercentageOfContacts / 100
	}
	samples := info.Samples
	if samples <= 0 {
		samples = t.defaultSamples
	}

	conf := t.scorer.Score(confidence.Evidence{
		Source:      confidence.SourceProvider,
		SampleCount: samples,
		Share:       share,
	})
	a.Raise(info.Pattern, TierProviderAPI, conf)

	writeBack(ctx, t.store, t.logger, a.Domain, info.Pattern, confidence.SourceProvider, samples)
	return nil
}

// writeBack records a finding in the knowledge store. Failures only cost a
// future cache hit, so they are logged and dropped. Nothing is written once
// the contact has been abandoned.
func writeBack(ctx context.Context, store PatternStore, logger *slog.Logger, domain string, p pattern.Name, src confidence.Source, samples int) {
	if ctx.Err() != nil {
		return
	}
	if _, err := store.Record(ctx, domain, p, src, samples); err != nil {
		logger.WarnContext(ctx, "pattern write-back failed",
			"domain", domain,
			"pattern", p,
			"source", src,
			"error", err,
		)
	}
}
