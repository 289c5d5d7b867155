package verification

import (
	"time"

	"mailscout/internal/pattern"
	"mailscout/internal/verification/ports"
)

// Contact is one person to resolve.
type Contact struct {
	ID        string
	FirstName string
	LastName  string
	Domain    string
}

// TierName identifies a verification tier.
type TierName string

const (
	TierKnownPattern        TierName = "known_pattern"
	TierProviderAPI         TierName = "provider_api"
	TierSearchProbe         TierName = "search_probe"
	TierCandidateValidation TierName = "candidate_validation"
)

// EmailCandidate is a generated address with the best evidence gathered so far.
type EmailCandidate struct {
	Pattern    pattern.Name
	Address    string
	Tier       TierName
	Confidence float64
	// Verified means a validator confirmed this exact address.
	Verified bool
	// Rejected means a validator reported it undeliverable.
	Rejected bool
}

// OutcomeStatus is the result of one provider check.
type OutcomeStatus string

const (
	OutcomeVerified    OutcomeStatus = "verified"
	OutcomeInvalid     OutcomeStatus = "invalid"
	OutcomeUnknown     OutcomeStatus = "unknown"
	OutcomeRateLimited OutcomeStatus = "rate_limited"
)

// VerificationOutcome records one provider check against a candidate.
type VerificationOutcome struct {
	Candidate EmailCandidate
	Status    OutcomeStatus
	Provider  string
	Timestamp time.Time
}

// Resolution is how a contact ended.
type Resolution string

const (
	ResolutionVerified   Resolution = "verified"
	ResolutionUnverified Resolution = "unverified"
	ResolutionUnresolved Resolution = "unresolved"
)

// Result is the pipeline's answer for one contact.
type Result struct {
	Contact    Contact
	Email      EmailCandidate
	Verified   bool
	Resolution Resolution
	// Tier is the tier that produced the chosen candidate's confidence.
	Tier     TierName
	Outcomes []VerificationOutcome
	// RateLimited is set when the validation tier could not get a token.
	RateLimited bool
}

func outcomeFor(r ports.ValidationResult) OutcomeStatus {
	switch r {
	case ports.ResultValid:
		return OutcomeVerified
	case ports.ResultInvalid:
		return OutcomeInvalid
	default:
		return OutcomeUnknown
	}
}
