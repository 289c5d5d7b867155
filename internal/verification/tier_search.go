package verification

import (
	"context"
	"log/slog"

	"mailscout/internal/confidence"
	"mailscout/internal/pattern"
	"mailscout/internal/verification/ports"
)

// SearchEngineProbe turns addresses seen in public search results into weak
// pattern evidence. Its confidence alone never verifies a contact.
type SearchEngineProbe struct {
	probe  ports.SearchProbe
	store  PatternStore
	scorer *confidence.Scorer
	logger *slog.Logger
}

// NewSearchEngineProbe builds the search tier.
func NewSearchEngineProbe(probe ports.SearchProbe, store PatternStore, scorer *confidence.Scorer, logger *slog.Logger) *SearchEngineProbe {
	return &SearchEngineProbe{probe: probe, store: store, scorer: scorer, logger: logger}
}

func (t *SearchEngineProbe) Name() TierName { return TierSearchProbe }

func (t *SearchEngineProbe) Try(ctx context.Context, a *Attempt) error {
	hints, err := t.probe.PatternHints(ctx, a.Domain)
	if err != nil {
		return err
	}

	counts := make(map[pattern.Name]int)
	total := 0
	for _, h := range hints {
		if !pattern.Known(h.Pattern) {
			continue
		}
		n := max(h.Samples, 1)
		counts[h.Pattern] += n
		total += n
	}

	for _, p := range pattern.Order {
		n, ok := counts[p]
		if !ok {
			continue
		}
		conf := t.scorer.Score(confidence.Evidence{
			Source:      confidence.SourceSearch,
			SampleCount: n,
			Share:       float64(n) / float64(total),
		})
		a.Raise(p, TierSearchProbe, conf)
		writeBack(ctx, t.store, t.logger, a.Domain, p, confidence.SourceSearch, n)
	}
	return nil
}
