// Package ingest merges asynchronous enrichment callbacks into the result
// store. A malformed record is skipped without holding up its siblings.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"mailscout/internal/events"
	"mailscout/internal/ingest/metrics"
	"mailscout/internal/resultstore"
)

// Store is the durable side of ingestion. UpsertBatch applies items in order
// and commits them together.
type Store interface {
	UpsertBatch(ctx context.Context, batchID string, items []resultstore.Item) ([]resultstore.Result, error)
}

// Service ingests webhook batches.
type Service struct {
	store       Store
	publisher   events.Publisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time
}

// Option configures a Service.
type Option func(*Service)

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithConcurrency bounds parallel event publishing within a batch.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:       store,
		publisher:   events.NopPublisher{},
		logger:      logger,
		concurrency: 8,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Ingest stores every well-formed record with one store commit. Records are
// applied in delivery order, so a later record for an item wins over an
// earlier one in the same batch. Records without an item ID, or that could
// not be decoded, are skipped with a warning. A store failure stores nothing
// and is returned; the summary is valid either way.
func (s *Service) Ingest(ctx context.Context, records []Record) (Summary, error) {
	s.metrics.ObserveBatch(len(records))
	receivedAt := s.now().UTC()
	batchID := BatchID(ctx)

	var sum Summary
	items := make([]resultstore.Item, 0, len(records))
	for i, rec := range records {
		id := strings.TrimSpace(rec.ItemID)
		reason := rec.Invalid
		if reason == "" && id == "" {
			reason = "missing itemId"
		}
		if reason != "" {
			s.logger.WarnContext(ctx, "skipping webhook record",
				"batch_id", batchID,
				"error", &MalformedRecordError{Index: i, Reason: reason},
			)
			s.metrics.IncrementRecord("skipped")
			sum.Skipped++
			continue
		}
		items = append(items, resultstore.Item{
			ItemID:     id,
			Status:     rec.Status,
			FullName:   rec.FullName,
			Emails:     rec.Emails,
			Phones:     rec.Phones,
			LinkedIn:   rec.LinkedIn,
			ReceivedAt: receivedAt,
		})
	}

	results, err := s.upsert(ctx, batchID, items)
	if err != nil {
		for range items {
			s.metrics.IncrementRecord("failed")
		}
		s.logger.ErrorContext(ctx, "webhook batch not stored",
			"batch_id", batchID,
			"records", len(items),
			"error", err,
		)
		return sum, fmt.Errorf("%d of %d records not stored: %w", len(items), len(records), err)
	}

	for _, r := range results {
		sum.Accepted++
		if r.Merged {
			sum.Merged++
			s.metrics.IncrementRecord("merged")
		} else {
			s.metrics.IncrementRecord("created")
		}
	}
	s.publishAll(ctx, batchID, results)

	s.logger.InfoContext(ctx, "webhook batch ingested",
		"batch_id", batchID,
		"accepted", sum.Accepted,
		"skipped", sum.Skipped,
		"merged", sum.Merged,
	)
	return sum, nil
}

func (s *Service) upsert(ctx context.Context, batchID string, items []resultstore.Item) ([]resultstore.Result, error) {
	if len(items) == 0 {
		return nil, nil
	}
	start := time.Now()
	defer func() { s.metrics.ObserveUpsert(time.Since(start)) }()
	return s.store.UpsertBatch(ctx, batchID, items)
}

// publishAll emits one event per stored record. Publishers never fail a
// batch, so workers always return nil.
func (s *Service) publishAll(ctx context.Context, batchID string, results []resultstore.Result) {
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, r := range results {
		g.Go(func() error {
			s.publish(ctx, batchID, r.Merged, r.Item)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Service) publish(ctx context.Context, batchID string, merged bool, it resultstore.Item) {
	err := s.publisher.Publish(ctx, events.Event{
		Type:       events.TypeItemIngested,
		ItemID:     it.ItemID,
		Status:     it.Status,
		BatchID:    batchID,
		Merged:     merged,
		Emails:     it.Emails,
		OccurredAt: s.now().UTC(),
	})
	if err != nil {
		s.metrics.IncrementPublishFailure()
		s.logger.WarnContext(ctx, "item event not published",
			"batch_id", batchID,
			"item_id", it.ItemID,
			"error", err,
		)
	}
}
