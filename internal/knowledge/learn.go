package knowledge

import (
	"context"
	"fmt"
	"strings"

	"mailscout/internal/confidence"
	"mailscout/internal/knowledge/models"
	"mailscout/internal/pattern"
)

// DefaultMinHits is how many matching addresses a domain needs before Learn
// trusts a pattern.
const DefaultMinHits = 2

// Example is an address known to belong to a named person.
type Example struct {
	FirstName string
	LastName  string
	Email     string
}

// LearnSummary reports what Learn did with a set of examples.
type LearnSummary struct {
	Examples   int `json:"examples"`
	Classified int `json:"classified"`
	Domains    int `json:"domains"`
	Learned    int `json:"learned"`
	// Ambiguous counts domains whose best pattern had fewer than minHits matches.
	Ambiguous int `json:"ambiguous"`
}

// Learn infers each domain's template from known addresses and records the
// most common one as evidence from source. A domain needs at least minHits
// addresses matching one template; ties go to the template listed first in
// pattern.Order. Addresses that match no template are ignored.
func (s *Store) Learn(ctx context.Context, examples []Example, minHits int, source confidence.Source) ([]models.DomainPatternRecord, LearnSummary, error) {
	if minHits < 1 {
		minHits = DefaultMinHits
	}
	sum := LearnSummary{Examples: len(examples)}

	hits := make(map[string]map[pattern.Name]int)
	var domains []string
	for _, ex := range examples {
		local, domain, ok := splitAddress(ex.Email)
		if !ok {
			continue
		}
		n, ok := pattern.Classify(local, ex.FirstName, ex.LastName)
		if !ok {
			continue
		}
		sum.Classified++
		if hits[domain] == nil {
			hits[domain] = make(map[pattern.Name]int)
			domains = append(domains, domain)
		}
		hits[domain][n]++
	}
	sum.Domains = len(domains)

	var learned []models.DomainPatternRecord
	for _, domain := range domains {
		if err := ctx.Err(); err != nil {
			return learned, sum, err
		}
		best, count := bestPattern(hits[domain])
		if count < minHits {
			sum.Ambiguous++
			s.logger.DebugContext(ctx, "pattern not learned",
				"domain", domain,
				"pattern", best,
				"hits", count,
			)
			continue
		}
		rec, err := s.Record(ctx, domain, best, source, count)
		if err != nil {
			return learned, sum, fmt.Errorf("learn %s: %w", domain, err)
		}
		learned = append(learned, rec)
		sum.Learned++
	}

	s.logger.InfoContext(ctx, "patterns learned",
		"examples", sum.Examples,
		"classified", sum.Classified,
		"domains", sum.Domains,
		"learned", sum.Learned,
	)
	return learned, sum, nil
}

func bestPattern(counts map[pattern.Name]int) (pattern.Name, int) {
	var (
		best  pattern.Name
		count int
	)
	for _, n := range pattern.Order {
		if c := counts[n]; c > count {
			best, count = n, c
		}
	}
	return best, count
}

func splitAddress(email string) (local, domain string, ok bool) {
	local, domain, ok = strings.Cut(strings.ToLower(strings.TrimSpace(email)), "@")
	domain = pattern.NormalizeDomain(domain)
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") {
		return "", "", false
	}
	return local, domain, true
}
