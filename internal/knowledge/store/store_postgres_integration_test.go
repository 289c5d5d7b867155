//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mailscout/internal/confidence"
	"mailscout/internal/knowledge/models"
	"mailscout/internal/knowledge/store"
	"mailscout/internal/pattern"
	"mailscout/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())

	var err error
	s.store, err = store.NewPostgresStore(context.Background(), s.postgres.DB)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "domain_patterns"))
}

func scoreBySamples(rec models.DomainPatternRecord, total int) float64 {
	return confidence.Default().ScoreRecord(rec.ScoringInput(), total, rec.LastVerifiedAt)
}

// TestConcurrentUpsertsAccumulate verifies that racing writers on one key
// add their samples instead of overwriting each other.
func (s *PostgresStoreSuite) TestConcurrentUpsertsAccumulate() {
	ctx := context.Background()
	const goroutines = 50

	var wg sync.WaitGroup
	for i := range goroutines {
		wg.Go(func() {
			src := confidence.SourceSearch
			if i%10 == 0 {
				src = confidence.SourceProvider
			}
			_, err := s.store.Upsert(ctx, models.Observation{
				Domain:  "race.io",
				Pattern: pattern.FirstDotLast,
				Source:  src,
				Samples: 2,
				At:      time.Now(),
			}, scoreBySamples)
			s.NoError(err)
		})
	}
	wg.Wait()

	recs, err := s.store.ListByDomain(ctx, "race.io")
	s.Require().NoError(err)
	s.Require().Len(recs, 1)
	s.Equal(2*goroutines, recs[0].SampleCount)
	s.Equal(confidence.SourceProvider, recs[0].Source)
	s.NoError(recs[0].Validate())
}

func (s *PostgresStoreSuite) TestConfidenceUsesDomainTotal() {
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := s.store.Upsert(ctx, models.Observation{Domain: "acme.io", Pattern: pattern.FLast, Source: confidence.SourceProvider, Samples: 3, At: at}, scoreBySamples)
	s.Require().NoError(err)
	rec, err := s.store.Upsert(ctx, models.Observation{Domain: "acme.io", Pattern: pattern.FirstDotLast, Source: confidence.SourceProvider, Samples: 9, At: at}, scoreBySamples)
	s.Require().NoError(err)

	want := confidence.Default().ScoreRecord(confidence.Record{Source: confidence.SourceProvider, SampleCount: 9, LastVerifiedAt: at}, 12, at)
	s.InDelta(want, rec.Confidence, 1e-9)
}
