// Package knowledge is the pattern knowledge store: per-domain evidence about
// which email template a company uses, scored for confidence.
//
// The store is a rebuildable cache. Losing it costs provider calls, never data.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"mailscout/internal/confidence"
	"mailscout/internal/knowledge/metrics"
	"mailscout/internal/knowledge/models"
	"mailscout/internal/pattern"
)

// ErrCacheCorrupted reports undecodable stored data; callers treat it as a cold cache.
var ErrCacheCorrupted = models.ErrCacheCorrupted

// Backend persists records. Upsert must be atomic per (domain, pattern):
// concurrent observations accumulate and never clobber each other.
// DeleteDomain is how corrupt records are dropped.
type Backend interface {
	Upsert(ctx context.Context, obs models.Observation, score models.ScoreFunc) (models.DomainPatternRecord, error)
	ListByDomain(ctx context.Context, domain string) ([]models.DomainPatternRecord, error)
	DeleteDomain(ctx context.Context, domain string) error
	Close() error
}

// Store scores backend records on the way in and on the way out.
type Store struct {
	backend Backend
	scorer  *confidence.Scorer
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMetrics attaches Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New builds a Store over backend.
func New(backend Backend, scorer *confidence.Scorer, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		scorer:  scorer,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Get returns the domain's records ranked by confidence (re-scored as of now),
// then sample count, then pattern name. An unknown domain yields an empty slice.
func (s *Store) Get(ctx context.Context, domain string) ([]models.DomainPatternRecord, error) {
	start := time.Now()
	d := pattern.NormalizeDomain(domain)
	if d == "" {
		return nil, nil
	}

	recs, err := s.backend.ListByDomain(ctx, d)
	if err == nil {
		err = validateAll(recs)
	}
	if err != nil {
		if errors.Is(err, ErrCacheCorrupted) {
			s.metrics.IncrementCorruptions()
			s.logger.WarnContext(ctx, "pattern cache corrupted, treating as cold",
				"domain", d,
				"error", err,
			)
			s.purge(ctx, d)
		}
		s.metrics.RecordLookup("error", time.Since(start))
		return nil, fmt.Errorf("get patterns for %s: %w", d, err)
	}

	if len(recs) == 0 {
		s.metrics.RecordLookup("miss", time.Since(start))
		return nil, nil
	}

	now := s.now()
	total := models.TotalSamples(recs)
	for i := range recs {
		recs[i].Confidence = s.scorer.ScoreRecord(recs[i].ScoringInput(), total, now)
	}
	Rank(recs)

	s.metrics.RecordLookup("hit", time.Since(start))
	return recs, nil
}

// Record adds samples observations of p at domain from source.
func (s *Store) Record(ctx context.Context, domain string, p pattern.Name, source confidence.Source, samples int) (models.DomainPatternRecord, error) {
	start := time.Now()
	d := pattern.NormalizeDomain(domain)
	switch {
	case d == "":
		return models.DomainPatternRecord{}, &pattern.InvalidInputError{Field: "domain", Reason: "empty"}
	case !pattern.Known(p):
		return models.DomainPatternRecord{}, &pattern.InvalidInputError{Field: "pattern", Reason: "unknown pattern " + string(p)}
	case !source.Valid():
		return models.DomainPatternRecord{}, &pattern.InvalidInputError{Field: "source", Reason: "unknown source " + string(source)}
	case samples < 1:
		return models.DomainPatternRecord{}, &pattern.InvalidInputError{Field: "samples", Reason: "must be at least 1"}
	}

	now := s.now()
	obs := models.Observation{Domain: d, Pattern: p, Source: source, Samples: samples, At: now}
	score := func(rec models.DomainPatternRecord, domainTotal int) float64 {
		return s.scorer.ScoreRecord(rec.ScoringInput(), domainTotal, now)
	}

	rec, err := s.backend.Upsert(ctx, obs, score)
	if errors.Is(err, ErrCacheCorrupted) {
		s.metrics.IncrementCorruptions()
		s.logger.WarnContext(ctx, "pattern cache corrupted, rewriting domain",
			"domain", d,
			"error", err,
		)
		if s.purge(ctx, d) {
			rec, err = s.backend.Upsert(ctx, obs, score)
		}
	}
	if err != nil {
		return models.DomainPatternRecord{}, fmt.Errorf("record pattern %s for %s: %w", p, d, err)
	}

	s.metrics.RecordWrite(string(source), time.Since(start))
	s.logger.DebugContext(ctx, "pattern recorded",
		"domain", d,
		"pattern", p,
		"source", rec.Source,
		"samples", rec.SampleCount,
		"confidence", rec.Confidence,
	)
	return rec, nil
}

// purge drops the domain's records so the next write starts clean. It
// reports whether the records are gone.
func (s *Store) purge(ctx context.Context, domain string) bool {
	if err := s.backend.DeleteDomain(ctx, domain); err != nil {
		s.logger.ErrorContext(ctx, "corrupt patterns not dropped",
			"domain", domain,
			"error", err,
		)
		return false
	}
	s.logger.InfoContext(ctx, "corrupt patterns dropped", "domain", domain)
	return true
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Rank sorts records by confidence desc, sample count desc, pattern name asc.
func Rank(recs []models.DomainPatternRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.SampleCount != b.SampleCount {
			return a.SampleCount > b.SampleCount
		}
		return a.Pattern < b.Pattern
	})
}

func validateAll(recs []models.DomainPatternRecord) error {
	for _, r := range recs {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}
