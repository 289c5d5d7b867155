package confidence

import (
	"errors"
	"fmt"
	"time"
)

// Source identifies where pattern evidence came from.
type Source string

const (
	// SourceCache is evidence read back from the knowledge store.
	SourceCache      Source = "cache"
	SourceProvider   Source = "provider"
	SourceSearch     Source = "search"
	SourceValidation Source = "validation"
)

// Valid reports whether s is a storable source. Cache is a read-time tier, not a store value.
func (s Source) Valid() bool {
	switch s {
	case SourceProvider, SourceSearch, SourceValidation:
		return true
	}
	return false
}

// Rank orders storable sources by trust; higher wins when observations merge.
func Rank(s Source) int {
	switch s {
	case SourceSearch:
		return 1
	case SourceProvider:
		return 2
	case SourceValidation:
		return 3
	default:
		return 0
	}
}

// MoreTrusted returns whichever of a and b ranks higher, preferring a on ties.
func MoreTrusted(a, b Source) Source {
	if Rank(b) > Rank(a) {
		return b
	}
	return a
}

// Config holds the scoring curve.
type Config struct {
	// Trust is the base weight per evidence source.
	Trust map[Source]float64
	// FrequencyExponent flattens the share curve; 1 is linear, smaller is more forgiving.
	FrequencyExponent float64
	// MinDamping is the multiplier applied at zero samples.
	MinDamping float64
	// SampleSaturation is the sample count at which damping has closed ~63% of its gap.
	SampleSaturation float64
	// HalfLife halves confidence for each period since the last verification.
	HalfLife time.Duration
}

// DefaultConfig returns the production curve.
//
//	trust:              cache 1.0, provider 0.9, search 0.5, validation 1.0
//	frequency exponent: 0.25
//	min damping:        0.5
//	sample saturation:  3
//	half-life:          180 days
func DefaultConfig() Config {
	return Config{
		Trust: map[Source]float64{
			SourceCache:      1.0,
			SourceProvider:   0.9,
			SourceSearch:     0.5,
			SourceValidation: 1.0,
		},
		FrequencyExponent: 0.25,
		MinDamping:        0.5,
		SampleSaturation:  3,
		HalfLife:          180 * 24 * time.Hour,
	}
}

// Validate rejects curves that would break monotonicity or the [0,1] range.
func (c Config) Validate() error {
	var errs []error
	for _, s := range []Source{SourceCache, SourceProvider, SourceSearch, SourceValidation} {
		t, ok := c.Trust[s]
		if !ok {
			errs = append(errs, fmt.Errorf("trust for %s is required", s))
			continue
		}
		if t < 0 || t > 1 {
			errs = append(errs, fmt.Errorf("trust for %s must be in [0,1], got %v", s, t))
		}
	}
	if c.FrequencyExponent <= 0 {
		errs = append(errs, errors.New("frequency exponent must be positive"))
	}
	if c.MinDamping < 0 || c.MinDamping > 1 {
		errs = append(errs, fmt.Errorf("min damping must be in [0,1], got %v", c.MinDamping))
	}
	if c.SampleSaturation <= 0 {
		errs = append(errs, errors.New("sample saturation must be positive"))
	}
	if c.HalfLife <= 0 {
		errs = append(errs, errors.New("half-life must be positive"))
	}
	return errors.Join(errs...)
}
