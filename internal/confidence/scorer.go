// Package confidence scores how likely a pattern is to be a domain's real
// email convention.
package confidence

import (
	"fmt"
	"math"
	"time"
)

// Evidence is one observation to score.
type Evidence struct {
	Source      Source
	SampleCount int
	// Share is the fraction of the domain's observed addresses that follow the pattern.
	Share     float64
	Staleness time.Duration
	// Direct marks a deliverability confirmation of this exact address.
	Direct bool
}

// Record is the part of a stored pattern record the scorer reads.
type Record struct {
	Source         Source
	SampleCount    int
	LastVerifiedAt time.Time
}

// Scorer applies a validated Config.
type Scorer struct {
	cfg Config
}

// New validates cfg and returns a Scorer.
func New(cfg Config) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("confidence config: %w", err)
	}
	trust := make(map[Source]float64, len(cfg.Trust))
	for k, v := range cfg.Trust {
		trust[k] = v
	}
	cfg.Trust = trust
	return &Scorer{cfg: cfg}, nil
}

// Default returns a Scorer on DefaultConfig.
func Default() *Scorer {
	s, err := New(DefaultConfig())
	if err != nil {
		panic(err)
	}
	return s
}

// SourceTrust returns the base weight for a source, 0 when unknown.
func (s *Scorer) SourceTrust(src Source) float64 {
	return s.cfg.Trust[src]
}

// Score computes
//
//	trust * share^exp * (1 - (1-minDamping)*e^(-n/saturation)) * 0.5^(staleness/halfLife)
//
// clipped to [0,1]. Direct evidence skips the share and damping terms.
func (s *Scorer) Score(e Evidence) float64 {
	trust := s.cfg.Trust[e.Source]

	freq, damp := 1.0, 1.0
	if !e.Direct {
		freq = math.Pow(clip01(e.Share), s.cfg.FrequencyExponent)
		n := float64(max(e.SampleCount, 0))
		damp = 1 - (1-s.cfg.MinDamping)*math.Exp(-n/s.cfg.SampleSaturation)
	}

	staleness := max(e.Staleness, 0)
	decay := math.Pow(0.5, staleness.Hours()/s.cfg.HalfLife.Hours())

	return clip01(trust * freq * damp * decay)
}

// ScoreRecord scores a stored record as of now. domainTotal is the sum of
// sample counts across the domain's records.
func (s *Scorer) ScoreRecord(rec Record, domainTotal int, now time.Time) float64 {
	share := 1.0
	if domainTotal > 0 {
		share = float64(rec.SampleCount) / float64(domainTotal)
	}
	var staleness time.Duration
	if !rec.LastVerifiedAt.IsZero() {
		staleness = now.Sub(rec.LastVerifiedAt)
	}
	return s.Score(Evidence{
		Source:      rec.Source,
		SampleCount: rec.SampleCount,
		Share:       share,
		Staleness:   staleness,
	})
}

func clip01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
