package pattern

import (
	"errors"
	"fmt"
)

// ErrInvalidInput matches every *InvalidInputError.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError rejects a contact that cannot produce seven distinct candidates.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, reason string) error {
	return &InvalidInputError{Field: field, Reason: reason}
}
