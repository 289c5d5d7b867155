// Package store holds the pattern knowledge backends.
package store

import (
	"context"
	"sync"

	"mailscout/internal/confidence"
	"mailscout/internal/knowledge/models"
	"mailscout/internal/pattern"
)

// InMemoryStore keeps pattern records in process memory. It is the backend
// for tests and throwaway runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	domains map[string]map[pattern.Name]models.DomainPatternRecord
}

// NewInMemoryStore creates an empty in-memory backend.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		domains: make(map[string]map[pattern.Name]models.DomainPatternRecord),
	}
}

// Upsert accumulates obs under the write lock.
func (s *InMemoryStore) Upsert(_ context.Context, obs models.Observation, score models.ScoreFunc) (models.DomainPatternRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, ok := s.domains[obs.Domain]
	if !ok {
		recs = make(map[pattern.Name]models.DomainPatternRecord)
		s.domains[obs.Domain] = recs
	}

	rec, exists := recs[obs.Pattern]
	if !exists {
		rec = models.DomainPatternRecord{
			Domain:  obs.Domain,
			Pattern: obs.Pattern,
			Source:  obs.Source,
		}
	}
	rec.SampleCount += obs.Samples
	rec.Source = confidence.MoreTrusted(rec.Source, obs.Source)
	if obs.At.After(rec.LastVerifiedAt) {
		rec.LastVerifiedAt = obs.At
	}

	total := rec.SampleCount
	for p, r := range recs {
		if p != obs.Pattern {
			total += r.SampleCount
		}
	}
	rec.Confidence = score(rec, total)
	recs[obs.Pattern] = rec
	return rec, nil
}

// ListByDomain returns a copy of the domain's records in no particular order.
func (s *InMemoryStore) ListByDomain(_ context.Context, domain string) ([]models.DomainPatternRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	recs := s.domains[domain]
	out := make([]models.DomainPatternRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, r)
	}
	return out, nil
}

// DeleteDomain drops every record for domain.
func (s *InMemoryStore) DeleteDomain(_ context.Context, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.domains, domain)
	return nil
}

// Close is a no-op.
func (s *InMemoryStore) Close() error {
	return nil
}
