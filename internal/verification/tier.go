package verification

import (
	"context"

	"mailscout/internal/confidence"
	"mailscout/internal/knowledge/models"
	"mailscout/internal/pattern"
)

// Tier is one stage of the verification chain. Try reads and updates the
// attempt; an error is logged and the pipeline moves on.
type Tier interface {
	Name() TierName
	Try(ctx context.Context, a *Attempt) error
}

// PatternStore is the slice of the knowledge store the tiers use.
type PatternStore interface {
	Get(ctx context.Context, domain string) ([]models.DomainPatternRecord, error)
	Record(ctx context.Context, domain string, p pattern.Name, source confidence.Source, samples int) (models.DomainPatternRecord, error)
}
