package ingest

import (
	"context"
	"errors"
	"fmt"
)

// Record is one enrichment result as delivered by the upstream service.
type Record struct {
	ItemID   string
	Status   string
	FullName string
	Emails   []string
	Phones   []string
	LinkedIn string
	// Invalid is set when the delivered element could not be decoded. Such
	// records are skipped.
	Invalid string
}

// Summary reports what a batch did.
type Summary struct {
	Accepted int `json:"accepted"`
	Skipped  int `json:"skipped"`
	// Merged counts accepted records whose item already existed.
	Merged int `json:"merged"`
}

// ErrMalformedRecord marks a record that cannot be stored.
var ErrMalformedRecord = errors.New("malformed record")

// MalformedRecordError describes a skipped record.
type MalformedRecordError struct {
	Index  int
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d: %s", e.Index, e.Reason)
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

type batchIDKey struct{}

// WithBatchID tags ctx with the delivery's batch ID.
func WithBatchID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, batchIDKey{}, id)
}

// BatchID returns the batch ID set by WithBatchID.
func BatchID(ctx context.Context) string {
	id, _ := ctx.Value(batchIDKey{}).(string)
	return id
}
