package resultstore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	platformstrings "mailscout/pkg/platform/strings"
)

// ListDelimiter joins multi-valued cells.
const ListDelimiter = ";"

// Header is the file's column order.
var Header = []string{"item", "status", "fullName", "emails", "phones", "linkedin", "received_at"}

// Status values counted by Stats.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Item is one enrichment result, keyed by ItemID.
type Item struct {
	ItemID     string    `json:"itemId"`
	Status     string    `json:"status"`
	FullName   string    `json:"fullName,omitempty"`
	Emails     []string  `json:"emails,omitempty"`
	Phones     []string  `json:"phones,omitempty"`
	LinkedIn   string    `json:"linkedin,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Merge folds a later delivery into i. Non-empty scalars in next overwrite;
// empty ones keep what i had. Emails and phones are unioned with i's values
// first. ReceivedAt keeps the later of the two.
func (i Item) Merge(next Item) Item {
	out := i
	if s := strings.TrimSpace(next.Status); s != "" {
		out.Status = s
	}
	if s := strings.TrimSpace(next.FullName); s != "" {
		out.FullName = s
	}
	if s := strings.TrimSpace(next.LinkedIn); s != "" {
		out.LinkedIn = s
	}
	out.Emails = platformstrings.UnionFold(i.Emails, next.Emails)
	out.Phones = platformstrings.Union(i.Phones, next.Phones)
	if next.ReceivedAt.After(out.ReceivedAt) {
		out.ReceivedAt = next.ReceivedAt
	}
	return out
}

func (i Item) row() []string {
	received := ""
	if !i.ReceivedAt.IsZero() {
		received = i.ReceivedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		i.ItemID,
		i.Status,
		i.FullName,
		strings.Join(i.Emails, ListDelimiter),
		strings.Join(i.Phones, ListDelimiter),
		i.LinkedIn,
		received,
	}
}

func itemFromRow(row []string) (Item, error) {
	if len(row) != len(Header) {
		return Item{}, fmt.Errorf("expected %d columns, got %d", len(Header), len(row))
	}
	it := Item{
		ItemID:   strings.TrimSpace(row[0]),
		Status:   row[1],
		FullName: row[2],
		Emails:   platformstrings.Split(row[3], ListDelimiter),
		Phones:   platformstrings.Split(row[4], ListDelimiter),
		LinkedIn: row[5],
	}
	if it.ItemID == "" {
		return Item{}, errors.New("empty item id")
	}
	if row[6] != "" {
		t, err := time.Parse(time.RFC3339, row[6])
		if err != nil {
			return Item{}, fmt.Errorf("received_at: %w", err)
		}
		it.ReceivedAt = t.UTC()
	}
	return it, nil
}

// Result is the outcome for one item passed to UpsertBatch.
type Result struct {
	Item Item
	// Merged reports whether the item existed before this item was applied,
	// including from an earlier item of the same batch.
	Merged bool
}

// Batch is one webhook delivery in the batch index.
type Batch struct {
	ID         string    `json:"batch_id"`
	ReceivedAt time.Time `json:"received_at"`
	// Items lists the item IDs the delivery touched, in delivery order.
	Items []string `json:"items"`
}

// batchHeader is the column order of the batch index file.
var batchHeader = []string{"batch_id", "item", "received_at"}

// Stats summarizes the committed file.
type Stats struct {
	Records    int       `json:"records"`
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ErrWrite marks a failed durable write. The previous file is intact.
var ErrWrite = errors.New("result store write failed")

// WriteError is a durable write failure.
type WriteError struct {
	Path string
	Op   string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s (%s): %v", e.Path, e.Op, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func (e *WriteError) Is(target error) bool { return target == ErrWrite }
