package verification

import (
	"context"
	"errors"
	"log/slog"

	"mailscout/internal/confidence"
	"mailscout/internal/knowledge/models"
)

// KnownPatternLookup answers from the pattern knowledge store. It never
// touches the network.
type KnownPatternLookup struct {
	store  PatternStore
	scorer *confidence.Scorer
	logger *slog.Logger
}

// NewKnownPatternLookup builds the cache tier.
func NewKnownPatternLookup(store PatternStore, scorer *confidence.Scorer, logger *slog.Logger) *KnownPatternLookup {
	return &KnownPatternLookup{store: store, scorer: scorer, logger: logger}
}

func (t *KnownPatternLookup) Name() TierName { return TierKnownPattern }

// Try raises every cached pattern to its stored confidence weighted by cache trust.
// A corrupted cache is treated as empty.
func (t *KnownPatternLookup) Try(ctx context.Context, a *Attempt) error {
	recs, err := t.store.Get(ctx, a.Domain)
	if errors.Is(err, models.ErrCacheCorrupted) {
		return nil
	}
	if err != nil {
		return err
	}

	trust := t.scorer.SourceTrust(confidence.SourceCache)
	for _, rec := range recs {
		a.Raise(rec.Pattern, TierKnownPattern, trust*rec.Confidence)
	}
	return nil
}
