package confidence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScore_Monotonic(t *testing.T) {
	s := Default()

	t.Run("increasing in sample count with diminishing returns", func(t *testing.T) {
		prev, prevGain := 0.0, 1.0
		for n := 0; n <= 20; n++ {
			v := s.Score(Evidence{Source: SourceProvider, SampleCount: n, Share: 1})
			if n > 0 {
				gain := v - prev
				assert.Greater(t, v, prev, "n=%d", n)
				assert.LessOrEqual(t, gain, prevGain+1e-12, "n=%d", n)
				prevGain = gain
			}
			prev = v
		}
	})

	t.Run("decreasing in staleness", func(t *testing.T) {
		prev := 2.0
		for days := 0; days <= 720; days += 30 {
			v := s.Score(Evidence{Source: SourceProvider, SampleCount: 5, Share: 1, Staleness: time.Duration(days) * 24 * time.Hour})
			assert.Less(t, v, prev, "days=%d", days)
			prev = v
		}
	})

	t.Run("half-life halves the score", func(t *testing.T) {
		fresh := s.Score(Evidence{Source: SourceSearch, SampleCount: 3, Share: 0.5})
		old := s.Score(Evidence{Source: SourceSearch, SampleCount: 3, Share: 0.5, Staleness: 180 * 24 * time.Hour})
		assert.InDelta(t, fresh/2, old, 1e-9)
	})
}

func TestScore_Bounds(t *testing.T) {
	s := Default()
	cases := []Evidence{
		{Source: SourceValidation, SampleCount: 1 << 20, Share: 5},
		{Source: SourceProvider, SampleCount: -3, Share: -1},
		{Source: SourceSearch, Staleness: -time.Hour, Share: 1},
		{Source: "unknown", SampleCount: 10, Share: 1},
	}
	for _, e := range cases {
		v := s.Score(e)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Zero(t, s.Score(Evidence{Source: "unknown", SampleCount: 10, Share: 1}))
}

func TestScore_Direct(t *testing.T) {
	s := Default()
	assert.InDelta(t, 1.0, s.Score(Evidence{Source: SourceValidation, Direct: true}), 1e-9)
	assert.InDelta(t, 0.5, s.Score(Evidence{Source: SourceValidation, Direct: true, Staleness: 180 * 24 * time.Hour}), 1e-9)
}

func TestScore_ProviderEightyPercentClearsDefaultThreshold(t *testing.T) {
	s := Default()
	v := s.Score(Evidence{Source: SourceProvider, SampleCount: 10, Share: 0.8})
	assert.GreaterOrEqual(t, v, 0.8)
	assert.Less(t, v, 0.9)
}

func TestScore_SearchHintAloneStaysBelowThreshold(t *testing.T) {
	s := Default()
	v := s.Score(Evidence{Source: SourceSearch, SampleCount: 100, Share: 1})
	assert.LessOrEqual(t, v, 0.5)
}

func TestScoreRecord(t *testing.T) {
	s := Default()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	rec := Record{Source: SourceProvider, SampleCount: 8, LastVerifiedAt: now}
	full := s.ScoreRecord(rec, 8, now)
	half := s.ScoreRecord(rec, 16, now)
	assert.Greater(t, full, half)

	zeroTotal := s.ScoreRecord(rec, 0, now)
	assert.InDelta(t, full, zeroTotal, 1e-9)

	stale := s.ScoreRecord(rec, 8, now.Add(365*24*time.Hour))
	assert.Less(t, stale, full)
}

func TestNew_Validates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinDamping = 2
	cfg.HalfLife = 0
	delete(cfg.Trust, SourceSearch)

	_, err := New(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "min damping")
	assert.Contains(t, err.Error(), "half-life")
	assert.Contains(t, err.Error(), "search")
}

func TestMoreTrusted(t *testing.T) {
	assert.Equal(t, SourceProvider, MoreTrusted(SourceSearch, SourceProvider))
	assert.Equal(t, SourceValidation, MoreTrusted(SourceValidation, SourceProvider))
	assert.Equal(t, SourceProvider, MoreTrusted(SourceProvider, SourceProvider))
	assert.True(t, SourceSearch.Valid())
	assert.False(t, SourceCache.Valid())
}
