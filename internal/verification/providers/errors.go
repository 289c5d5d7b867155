package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailscout/internal/platform/ratelimit"
	"mailscout/pkg/platform/sentinel"
)

// ErrorCategory defines the normalized failure taxonomy
type ErrorCategory string

const (
	// CategoryTimeout indicates the provider took too long to respond
	CategoryTimeout ErrorCategory = "timeout"

	// CategoryBadData indicates the provider returned invalid/malformed data
	CategoryBadData ErrorCategory = "bad_data"

	// CategoryAuthentication indicates credential or permission issues
	CategoryAuthentication ErrorCategory = "authentication"

	// CategoryProviderOutage indicates the provider is unavailable
	CategoryProviderOutage ErrorCategory = "provider_outage"

	// CategoryNotFound indicates the provider has no data for the request
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryRateLimited indicates too many requests, locally or upstream
	CategoryRateLimited ErrorCategory = "rate_limited"

	// CategoryQuotaExceeded indicates the account's credits are spent
	CategoryQuotaExceeded ErrorCategory = "quota_exceeded"

	// CategoryInternal indicates an unexpected internal error
	CategoryInternal ErrorCategory = "internal"
)

// ErrProviderUnavailable is returned without calling a provider whose breaker is open.
var ErrProviderUnavailable = fmt.Errorf("provider circuit open: %w", sentinel.ErrUnavailable)

// Error wraps provider failures with normalized categorization
type Error struct {
	Category   ErrorCategory
	Provider   string
	Message    string
	Underlying error
	Retryable  bool
	// RetryAfter is the upstream's requested backoff, when it sent one.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("provider %s [%s]: %s: %v", e.Provider, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("provider %s [%s]: %s", e.Provider, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError creates a normalized provider error. Without an underlying error,
// not_found and provider_outage wrap the matching sentinel.
func NewError(category ErrorCategory, provider, message string, underlying error) *Error {
	if underlying == nil {
		switch category {
		case CategoryNotFound:
			underlying = sentinel.ErrNotFound
		case CategoryProviderOutage:
			underlying = sentinel.ErrUnavailable
		}
	}
	retryable := category == CategoryTimeout ||
		category == CategoryProviderOutage ||
		category == CategoryRateLimited

	return &Error{
		Category:   category,
		Provider:   provider,
		Message:    message,
		Underlying: underlying,
		Retryable:  retryable,
	}
}

// IsRetryable checks if an error is worth retrying
func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error
func GetCategory(err error) ErrorCategory {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	switch {
	case errors.Is(err, ratelimit.ErrExhausted):
		return CategoryRateLimited
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	}
	return CategoryInternal
}

// IsTimeout reports a provider timeout.
func IsTimeout(err error) bool {
	return GetCategory(err) == CategoryTimeout
}

// IsQuotaExceeded reports an exhausted account quota.
func IsQuotaExceeded(err error) bool {
	return GetCategory(err) == CategoryQuotaExceeded
}

// IsRateLimited reports local token exhaustion or an upstream 429.
func IsRateLimited(err error) bool {
	return GetCategory(err) == CategoryRateLimited
}

// ErrorClass is the log label for err.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrProviderUnavailable):
		return "circuit_open"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return string(GetCategory(err))
}

// countsAgainstBreaker reports failures that suggest the provider is unhealthy.
func countsAgainstBreaker(err error) bool {
	switch GetCategory(err) {
	case CategoryNotFound, CategoryRateLimited:
		return false
	}
	return !errors.Is(err, context.Canceled)
}
