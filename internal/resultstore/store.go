// Package resultstore is the durable record of enrichment results: one CSV
// file, merged in place, rewritten crash-safely once per committed batch.
package resultstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// snapshot is an immutable view of the last committed file.
type snapshot struct {
	items   map[string]Item
	order   []string
	raw     []byte
	stats   Stats
	batches []Batch
}

// CSVStore holds every result in memory and mirrors it to a CSV file.
// Writes are serialized; reads use the last committed snapshot and never wait
// on a writer. A second file next to the results records which items each
// batch touched.
type CSVStore struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
	// writeFile is swapped in tests to simulate disk failures.
	writeFile func(path string, data []byte) error

	mu   sync.Mutex
	snap atomic.Pointer[snapshot]
}

// Option configures a CSVStore.
type Option func(*CSVStore)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *CSVStore) {
		if now != nil {
			s.now = now
		}
	}
}

// BatchIndexPath is where the batch index for the results file at path lives.
func BatchIndexPath(path string) string {
	return path + ".batches"
}

// Open loads path, creating an empty store when the file does not exist.
func Open(path string, logger *slog.Logger, opts ...Option) (*CSVStore, error) {
	s := &CSVStore{
		path:      path,
		logger:    logger,
		now:       time.Now,
		writeFile: writeFileAtomic,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		snap, err := build(map[string]Item{}, nil, time.Time{})
		if err != nil {
			return nil, err
		}
		s.snap.Store(snap)
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("open result store: %w", err)
	}

	items, order, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("load result store %s: %w", path, err)
	}
	var modTime time.Time
	if fi, err := os.Stat(path); err == nil {
		modTime = fi.ModTime().UTC()
	}
	snap, err := build(items, order, modTime)
	if err != nil {
		return nil, err
	}
	snap.batches = s.loadBatches(items)
	s.snap.Store(snap)

	logger.Info("result store loaded", "path", path, "records", len(order), "batches", len(snap.batches))
	return s, nil
}

// loadBatches reads the batch index. The index is secondary to the results
// file, so an unreadable one is logged and dropped.
func (s *CSVStore) loadBatches(items map[string]Item) []Batch {
	idx := BatchIndexPath(s.path)
	data, err := os.ReadFile(idx)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err == nil {
		var batches []Batch
		if batches, err = parseBatches(data, items); err == nil {
			return batches
		}
	}
	s.logger.Warn("batch index ignored", "path", idx, "error", err)
	return nil
}

// Path returns the backing file.
func (s *CSVStore) Path() string {
	return s.path
}

// Upsert merges it into the stored item with the same ItemID, or creates it.
// The change is on disk before Upsert returns. merged reports whether an item
// already existed. On a *WriteError nothing changes, on disk or in memory.
func (s *CSVStore) Upsert(ctx context.Context, it Item) (bool, Item, error) {
	res, err := s.UpsertBatch(ctx, "", []Item{it})
	if err != nil {
		return false, Item{}, err
	}
	return res[0].Merged, res[0].Item, nil
}

// UpsertBatch merges items in order, so a later item wins over an earlier one
// with the same ItemID, and commits them with a single file write. The batch
// is all or nothing: on error no item is applied. A non-empty batchID is added
// to the batch index.
func (s *CSVStore) UpsertBatch(ctx context.Context, batchID string, items []Item) ([]Result, error) {
	if len(items) == 0 {
		return nil, nil
	}
	now := s.now().UTC()
	in := make([]Item, len(items))
	for i, it := range items {
		it.ItemID = strings.TrimSpace(it.ItemID)
		if it.ItemID == "" {
			return nil, fmt.Errorf("item %d: item id is required", i)
		}
		if it.ReceivedAt.IsZero() {
			it.ReceivedAt = now
		}
		in[i] = it
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cur := s.snap.Load()
	next := make(map[string]Item, len(cur.items)+len(in))
	for k, v := range cur.items {
		next[k] = v
	}
	order := slices.Clip(cur.order)
	results := make([]Result, len(in))
	touched := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for i, it := range in {
		prev, merged := next[it.ItemID]
		if !merged {
			prev = Item{ItemID: it.ItemID}
			order = append(order, it.ItemID)
		}
		m := prev.Merge(it)
		next[it.ItemID] = m
		results[i] = Result{Item: m, Merged: merged}
		if !seen[it.ItemID] {
			seen[it.ItemID] = true
			touched = append(touched, it.ItemID)
		}
	}

	snap, err := build(next, order, now)
	if err != nil {
		return nil, &WriteError{Path: s.path, Op: "encode", Err: err}
	}
	snap.batches = cur.batches
	if batchID != "" {
		snap.batches = addBatch(cur.batches, Batch{ID: batchID, ReceivedAt: now, Items: touched})
	}

	if err := s.writeFile(s.path, snap.raw); err != nil {
		s.logger.ErrorContext(ctx, "result store write failed",
			"path", s.path,
			"batch_id", batchID,
			"items", len(in),
			"error", err,
		)
		return nil, &WriteError{Path: s.path, Op: "commit", Err: err}
	}
	if batchID != "" {
		s.writeBatches(ctx, snap.batches)
	}
	s.snap.Store(snap)
	return results, nil
}

// writeBatches persists the batch index after the results file committed.
// A failure only loses lookup by batch, so it is logged and not returned.
func (s *CSVStore) writeBatches(ctx context.Context, batches []Batch) {
	idx := BatchIndexPath(s.path)
	data, err := encodeBatches(batches)
	if err == nil {
		err = s.writeFile(idx, data)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "batch index write failed",
			"path", idx,
			"error", err,
		)
	}
}

// Get returns the committed item for id.
func (s *CSVStore) Get(id string) (Item, bool) {
	it, ok := s.snap.Load().items[strings.TrimSpace(id)]
	return it, ok
}

// List returns all committed items in first-seen order.
func (s *CSVStore) List() []Item {
	snap := s.snap.Load()
	out := make([]Item, 0, len(snap.order))
	for _, id := range snap.order {
		out = append(out, snap.items[id])
	}
	return out
}

// Batches returns the indexed batches, newest first.
func (s *CSVStore) Batches() []Batch {
	batches := s.snap.Load().batches
	out := make([]Batch, len(batches))
	for i, b := range batches {
		out[len(batches)-1-i] = b
	}
	return out
}

// Batch returns the batch with id and the current state of its items.
func (s *CSVStore) Batch(id string) (Batch, []Item, bool) {
	snap := s.snap.Load()
	for _, b := range snap.batches {
		if b.ID != id {
			continue
		}
		items := make([]Item, 0, len(b.Items))
		for _, itemID := range b.Items {
			if it, ok := snap.items[itemID]; ok {
				items = append(items, it)
			}
		}
		return b, items, true
	}
	return Batch{}, nil, false
}

// Stats summarizes the committed items.
func (s *CSVStore) Stats() Stats {
	return s.snap.Load().stats
}

// WriteTo streams the committed file, header included.
func (s *CSVStore) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.snap.Load().raw)
	return int64(n), err
}

// Close is a no-op; every Upsert is already durable.
func (s *CSVStore) Close() error {
	return nil
}

// WriteCSV writes items in the results file format, header included.
func WriteCSV(w io.Writer, items []Item) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, it := range items {
		if err := cw.Write(it.row()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// addBatch returns batches with b applied. A repeated ID extends the earlier
// entry instead of adding a second one.
func addBatch(batches []Batch, b Batch) []Batch {
	out := slices.Clone(batches)
	for i := range out {
		if out[i].ID != b.ID {
			continue
		}
		items := slices.Clone(out[i].Items)
		for _, id := range b.Items {
			if !slices.Contains(items, id) {
				items = append(items, id)
			}
		}
		out[i].Items = items
		return out
	}
	return append(out, b)
}

func encodeBatches(batches []Batch) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(batchHeader); err != nil {
		return nil, err
	}
	for _, b := range batches {
		received := b.ReceivedAt.UTC().Format(time.RFC3339)
		for _, id := range b.Items {
			if err := w.Write([]string{b.ID, id, received}); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// parseBatches reads the batch index, keeping only items the results file
// still has.
func parseBatches(data []byte, items map[string]Item) ([]Batch, error) {
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	if !slices.Equal(rows[0], batchHeader) {
		return nil, fmt.Errorf("unexpected header %q", rows[0])
	}
	var batches []Batch
	pos := map[string]int{}
	for i, row := range rows[1:] {
		received, err := time.Parse(time.RFC3339, row[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: received_at: %w", i+2, err)
		}
		if _, ok := items[row[1]]; !ok {
			continue
		}
		j, ok := pos[row[0]]
		if !ok {
			j = len(batches)
			pos[row[0]] = j
			batches = append(batches, Batch{ID: row[0], ReceivedAt: received.UTC()})
		}
		batches[j].Items = append(batches[j].Items, row[1])
	}
	return batches, nil
}

func build(items map[string]Item, order []string, updatedAt time.Time) (*snapshot, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	stats := Stats{Records: len(order), UpdatedAt: updatedAt}
	for _, id := range order {
		it := items[id]
		switch it.Status {
		case StatusSuccess:
			stats.Successful++
		case StatusFailed:
			stats.Failed++
		}
		if err := w.Write(it.row()); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return &snapshot{items: items, order: order, raw: buf.Bytes(), stats: stats}, nil
}

// parse reads a committed file. Duplicate item rows, which a hand-edited
// file may contain, are merged in file order.
func parse(data []byte) (map[string]Item, []string, error) {
	items := make(map[string]Item)
	var order []string
	if len(bytes.TrimSpace(data)) == 0 {
		return items, order, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return items, order, nil
	}
	if !sameHeader(rows[0]) {
		return nil, nil, fmt.Errorf("unexpected header %q", rows[0])
	}
	for i, row := range rows[1:] {
		it, err := itemFromRow(row)
		if err != nil {
			return nil, nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		if prev, ok := items[it.ItemID]; ok {
			items[it.ItemID] = prev.Merge(it)
			continue
		}
		items[it.ItemID] = Item{ItemID: it.ItemID}.Merge(it)
		order = append(order, it.ItemID)
	}
	return items, order, nil
}

func sameHeader(row []string) bool {
	if len(row) != len(Header) {
		return false
	}
	for i := range row {
		if strings.TrimPrefix(strings.TrimSpace(row[i]), "\ufeff") != Header[i] {
			return false
		}
	}
	return true
}

// writeFileAtomic replaces path with data: temp file in the same directory,
// fsync, rename, fsync the directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return syncDir(dir)
}

func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}
