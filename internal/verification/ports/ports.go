// Package ports declares the external collaborators the verification tiers call.
package ports

//go:generate mockgen -source=ports.go -destination=../mocks/ports_mock.go -package=mocks

import (
	"context"

	"mailscout/internal/pattern"
)

// PatternInfo is a provider's view of a domain's email convention.
type PatternInfo struct {
	Pattern pattern.Name
	// PercentageOfContacts is the share (0-100) of known addresses using Pattern; 0 when unknown.
	PercentageOfContacts float64
	// Samples is how many addresses back the claim; 0 when unknown.
	Samples int
}

// PatternProvider looks up a domain's dominant pattern.
// Returns a not_found provider error when the provider knows nothing.
type PatternProvider interface {
	DomainPattern(ctx context.Context, domain string) (PatternInfo, error)
}

// PatternHint is weak evidence that a pattern is in use at a domain.
type PatternHint struct {
	Pattern pattern.Name
	Samples int
}

// SearchProbe mines public search results for addresses at a domain.
type SearchProbe interface {
	PatternHints(ctx context.Context, domain string) ([]PatternHint, error)
}

// ValidationResult is a deliverability verdict.
type ValidationResult string

const (
	ResultValid   ValidationResult = "valid"
	ResultInvalid ValidationResult = "invalid"
	ResultRisky   ValidationResult = "risky"
	ResultUnknown ValidationResult = "unknown"
)

// Validator checks a single address for deliverability.
type Validator interface {
	Validate(ctx context.Context, address string) (ValidationResult, error)
}
