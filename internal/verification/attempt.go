package verification

import (
	"sort"
	"time"

	"mailscout/internal/pattern"
)

// Attempt is the per-contact state that tiers read and update. It is owned by
// a single goroutine.
type Attempt struct {
	Contact Contact
	Domain  string
	// Candidates stay in generation order.
	Candidates  []EmailCandidate
	Outcomes    []VerificationOutcome
	RateLimited bool

	now func() time.Time
}

func newAttempt(c Contact, domain string, generated []pattern.Candidate, now func() time.Time) *Attempt {
	cands := make([]EmailCandidate, len(generated))
	for i, g := range generated {
		cands[i] = EmailCandidate{Pattern: g.Pattern, Address: g.Address}
	}
	return &Attempt{Contact: c, Domain: domain, Candidates: cands, now: now}
}

// Candidate returns the candidate for p.
func (a *Attempt) Candidate(p pattern.Name) (*EmailCandidate, bool) {
	for i := range a.Candidates {
		if a.Candidates[i].Pattern == p {
			return &a.Candidates[i], true
		}
	}
	return nil, false
}

// Raise lifts p's confidence to conf if that is higher than what it has,
// crediting tier.
func (a *Attempt) Raise(p pattern.Name, tier TierName, conf float64) {
	c, ok := a.Candidate(p)
	if !ok || conf <= c.Confidence {
		return
	}
	c.Confidence = conf
	c.Tier = tier
}

// Confirm marks p as validated deliverable.
func (a *Attempt) Confirm(p pattern.Name, tier TierName, conf float64) {
	c, ok := a.Candidate(p)
	if !ok {
		return
	}
	c.Verified = true
	c.Rejected = false
	c.Tier = tier
	if conf > c.Confidence {
		c.Confidence = conf
	}
}

// Reject marks p as undeliverable. A rejected candidate can no longer win.
func (a *Attempt) Reject(p pattern.Name) {
	if c, ok := a.Candidate(p); ok && !c.Verified {
		c.Rejected = true
	}
}

// Record appends an outcome stamped with the current time.
func (a *Attempt) Record(c EmailCandidate, status OutcomeStatus, provider string) {
	a.Outcomes = append(a.Outcomes, VerificationOutcome{
		Candidate: c,
		Status:    status,
		Provider:  provider,
		Timestamp: a.now(),
	})
	if status == OutcomeRateLimited {
		a.RateLimited = true
	}
}

// Best returns the strongest candidate: a confirmed one first, then the
// highest confidence, ties broken by generation order. Rejected candidates are
// skipped. ok is false when nothing has confidence.
func (a *Attempt) Best() (EmailCandidate, bool) {
	var best *EmailCandidate
	for i := range a.Candidates {
		c := &a.Candidates[i]
		if c.Rejected {
			continue
		}
		if c.Verified {
			return *c, true
		}
		if c.Confidence > 0 && (best == nil || c.Confidence > best.Confidence) {
			best = c
		}
	}
	if best == nil {
		return EmailCandidate{}, false
	}
	return *best, true
}

// Fallback is the first candidate in generation order that was not rejected,
// or first.last when every candidate was.
func (a *Attempt) Fallback() EmailCandidate {
	for _, c := range a.Candidates {
		if !c.Rejected {
			return c
		}
	}
	return a.Candidates[0]
}

// ByConfidence returns candidates ordered for validation: by confidence when
// any is known, otherwise generation order. Rejected candidates are left out.
func (a *Attempt) ByConfidence() []EmailCandidate {
	out := make([]EmailCandidate, 0, len(a.Candidates))
	for _, c := range a.Candidates {
		if !c.Rejected {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}
