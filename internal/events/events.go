// Package events announces stored enrichment results to downstream consumers.
// Publishing is best-effort: the result store stays the source of truth.
package events

import (
	"context"
	"time"
)

// TypeItemIngested is emitted after an item is committed to the result store.
const TypeItemIngested = "item.ingested"

// Event is one announcement.
type Event struct {
	Type       string    `json:"type"`
	ItemID     string    `json:"itemId"`
	Status     string    `json:"status,omitempty"`
	BatchID    string    `json:"batchId,omitempty"`
	Merged     bool      `json:"merged"`
	Emails     []string  `json:"emails,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops everything.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func (NopPublisher) Close() error { return nil }
