package models

import (
	"errors"
	"fmt"
	"math"
	"time"

	"mailscout/internal/confidence"
	"mailscout/internal/pattern"
)

// ErrCacheCorrupted reports undecodable or out-of-range stored data.
// Callers treat it as a cold cache.
var ErrCacheCorrupted = errors.New("pattern cache corrupted")

// DomainPatternRecord is the accumulated evidence for one (domain, pattern) pair.
type DomainPatternRecord struct {
	Domain         string
	Pattern        pattern.Name
	Source         confidence.Source
	SampleCount    int
	Confidence     float64
	LastVerifiedAt time.Time
}

// ScoringInput returns the fields the scorer reads.
func (r DomainPatternRecord) ScoringInput() confidence.Record {
	return confidence.Record{
		Source:         r.Source,
		SampleCount:    r.SampleCount,
		LastVerifiedAt: r.LastVerifiedAt,
	}
}

// Validate returns ErrCacheCorrupted when a decoded record is not usable.
func (r DomainPatternRecord) Validate() error {
	switch {
	case r.Domain == "":
		return fmt.Errorf("%w: empty domain", ErrCacheCorrupted)
	case !pattern.Known(r.Pattern):
		return fmt.Errorf("%w: unknown pattern %q for %s", ErrCacheCorrupted, r.Pattern, r.Domain)
	case !r.Source.Valid():
		return fmt.Errorf("%w: unknown source %q for %s", ErrCacheCorrupted, r.Source, r.Domain)
	case r.SampleCount < 0:
		return fmt.Errorf("%w: negative sample count for %s/%s", ErrCacheCorrupted, r.Domain, r.Pattern)
	case math.IsNaN(r.Confidence) || r.Confidence < 0 || r.Confidence > 1:
		return fmt.Errorf("%w: confidence %v out of range for %s/%s", ErrCacheCorrupted, r.Confidence, r.Domain, r.Pattern)
	}
	return nil
}

// Observation is one write: samples of a pattern seen at a domain.
type Observation struct {
	Domain  string
	Pattern pattern.Name
	Source  confidence.Source
	Samples int
	At      time.Time
}

// ScoreFunc computes the confidence to persist for rec given the domain's total samples.
type ScoreFunc func(rec DomainPatternRecord, domainTotal int) float64

// TotalSamples sums sample counts.
func TotalSamples(recs []DomainPatternRecord) int {
	total := 0
	for _, r := range recs {
		total += r.SampleCount
	}
	return total
}
