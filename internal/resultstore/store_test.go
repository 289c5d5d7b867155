package resultstore

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"mailscout/internal/platform/logger"
)

type CSVStoreSuite struct {
	suite.Suite
	path  string
	store *CSVStore
	now   time.Time
}

func TestCSVStoreSuite(t *testing.T) {
	suite.Run(t, new(CSVStoreSuite))
}

func (s *CSVStoreSuite) SetupTest() {
	s.path = filepath.Join(s.T().TempDir(), "results.csv")
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = s.open()
}

func (s *CSVStoreSuite) open() *CSVStore {
	st, err := Open(s.path, logger.Discard(), WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
	return st
}

func (s *CSVStoreSuite) rows() [][]string {
	data, err := os.ReadFile(s.path)
	s.Require().NoError(err)
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	s.Require().NoError(err)
	return rows
}

func (s *CSVStoreSuite) TestSparseDeliveryPreservesFields() {
	ctx := context.Background()
	merged, _, err := s.store.Upsert(ctx, Item{
		ItemID:   "c1",
		Status:   "success",
		FullName: "Jane Doe",
		Emails:   []string{"jane@x.com"},
	})
	s.Require().NoError(err)
	s.False(merged)

	s.now = s.now.Add(time.Hour)
	merged, got, err := s.store.Upsert(ctx, Item{ItemID: "c1", LinkedIn: "https://linkedin.com/in/janedoe"})
	s.Require().NoError(err)
	s.True(merged)

	s.Equal("success", got.Status)
	s.Equal("Jane Doe", got.FullName)
	s.Equal([]string{"jane@x.com"}, got.Emails)
	s.Equal("https://linkedin.com/in/janedoe", got.LinkedIn)
	s.Equal(s.now, got.ReceivedAt)

	rows := s.rows()
	s.Require().Len(rows, 2)
	s.Equal(Header, rows[0])
	s.Equal([]string{"c1", "success", "Jane Doe", "jane@x.com", "", "https://linkedin.com/in/janedoe", "2026-03-01T13:00:00Z"}, rows[1])
}

func (s *CSVStoreSuite) TestListsAreUnioned() {
	ctx := context.Background()
	_, _, err := s.store.Upsert(ctx, Item{ItemID: "c1", Emails: []string{"a@x.com"}, Phones: []string{"+1 555 0100"}})
	s.Require().NoError(err)
	_, got, err := s.store.Upsert(ctx, Item{ItemID: "c1", Emails: []string{" A@x.com", "b@x.com"}, Phones: []string{"+1 555 0101"}})
	s.Require().NoError(err)

	s.Equal([]string{"a@x.com", "b@x.com"}, got.Emails)
	s.Equal([]string{"+1 555 0100", "+1 555 0101"}, got.Phones)
	s.Equal("a@x.com;b@x.com", s.rows()[1][3])
}

func (s *CSVStoreSuite) TestIdenticalDeliveriesYieldOneRow() {
	ctx := context.Background()
	for range 5 {
		_, _, err := s.store.Upsert(ctx, Item{ItemID: "c1", Status: "success", Emails: []string{"john@x.com"}})
		s.Require().NoError(err)
	}
	s.Len(s.rows(), 2)
	s.Len(s.store.List(), 1)
}

func (s *CSVStoreSuite) TestStatusLastDeliveryWins() {
	ctx := context.Background()
	_, _, err := s.store.Upsert(ctx, Item{ItemID: "c1", Status: "success"})
	s.Require().NoError(err)
	_, got, err := s.store.Upsert(ctx, Item{ItemID: "c1", Status: "failed"})
	s.Require().NoError(err)
	s.Equal("failed", got.Status)
}

func (s *CSVStoreSuite) TestReopenRestoresState() {
	ctx := context.Background()
	_, _, err := s.store.Upsert(ctx, Item{ItemID: "c1", Status: "success", Emails: []string{"a@x.com", "b@x.com"}})
	s.Require().NoError(err)
	_, _, err = s.store.Upsert(ctx, Item{ItemID: "c2", Status: "failed", FullName: "Smith, John \"JJ\""})
	s.Require().NoError(err)

	reopened := s.open()
	s.Equal(s.store.List(), reopened.List())
	s.Equal(Stats{Records: 2, Successful: 1, Failed: 1, UpdatedAt: reopened.Stats().UpdatedAt}, reopened.Stats())

	it, ok := reopened.Get("c2")
	s.True(ok)
	s.Equal("Smith, John \"JJ\"", it.FullName)
}

func (s *CSVStoreSuite) TestFailedWriteLeavesStateIntact() {
	ctx := context.Background()
	_, _, err := s.store.Upsert(ctx, Item{ItemID: "c1", Status: "success"})
	s.Require().NoError(err)
	before, err := os.ReadFile(s.path)
	s.Require().NoError(err)

	s.store.writeFile = func(string, []byte) error { return errors.New("disk full") }
	_, _, err = s.store.Upsert(ctx, Item{ItemID: "c2", Status: "success"})

	s.Require().Error(err)
	s.ErrorIs(err, ErrWrite)
	var we *WriteError
	s.Require().ErrorAs(err, &we)
	s.Equal(s.path, we.Path)

	_, ok := s.store.Get("c2")
	s.False(ok)
	after, err := os.ReadFile(s.path)
	s.Require().NoError(err)
	s.Equal(before, after)
}

func (s *CSVStoreSuite) TestConcurrentUpsertsAllLand() {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Go(func() {
			_, _, err := s.store.Upsert(ctx, Item{ItemID: fmt.Sprintf("c%d", i%5), Emails: []string{fmt.Sprintf("u%d@x.com", i)}})
			s.NoError(err)
		})
	}
	wg.Wait()

	s.Len(s.store.List(), 5)
	total := 0
	for _, it := range s.store.List() {
		total += len(it.Emails)
	}
	s.Equal(20, total)
	s.Len(s.rows(), 6)
}

func (s *CSVStoreSuite) TestWriteToStreamsCommittedFile() {
	_, _, err := s.store.Upsert(context.Background(), Item{ItemID: "c1", Status: "success"})
	s.Require().NoError(err)

	var buf bytes.Buffer
	_, err = s.store.WriteTo(&buf)
	s.Require().NoError(err)

	disk, err := os.ReadFile(s.path)
	s.Require().NoError(err)
	s.Equal(disk, buf.Bytes())
}

func (s *CSVStoreSuite) TestOpenRejectsForeignFile() {
	s.Require().NoError(os.WriteFile(s.path, []byte("name,email\na,b\n"), 0o644))
	_, err := Open(s.path, logger.Discard())
	s.Error(err)
}

func (s *CSVStoreSuite) TestEmptyStoreStreamsHeader() {
	var buf bytes.Buffer
	_, err := s.store.WriteTo(&buf)
	s.Require().NoError(err)
	s.Equal("item,status,fullName,emails,phones,linkedin,received_at\n", buf.String())
}

func (s *CSVStoreSuite) TestMissingItemID() {
	_, _, err := s.store.Upsert(context.Background(), Item{Status: "success"})
	s.Error(err)
}

func (s *CSVStoreSuite) TestBatchAppliesItemsInOrder() {
	res, err := s.store.UpsertBatch(context.Background(), "b-1", []Item{
		{ItemID: "c1", Status: "in_progress", FullName: "J. Doe"},
		{ItemID: "c1", Status: "success", FullName: "Jane Doe", Emails: []string{"jane@x.com"}},
		{ItemID: "c2", Status: "failed"},
	})
	s.Require().NoError(err)
	s.Require().Len(res, 3)
	s.False(res[0].Merged)
	s.True(res[1].Merged)
	s.False(res[2].Merged)

	got, ok := s.store.Get("c1")
	s.Require().True(ok)
	s.Equal("success", got.Status)
	s.Equal("Jane Doe", got.FullName)
	s.Equal(got, res[1].Item)
	s.Equal([]string{"c1", "c2"}, []string{s.rows()[1][0], s.rows()[2][0]})
}

func (s *CSVStoreSuite) TestBatchCommitsOnce() {
	var writes []string
	s.store.writeFile = func(path string, data []byte) error {
		writes = append(writes, filepath.Base(path))
		return writeFileAtomic(path, data)
	}

	items := make([]Item, 0, 50)
	for i := range 50 {
		items = append(items, Item{ItemID: fmt.Sprintf("c%d", i), Status: "success"})
	}
	_, err := s.store.UpsertBatch(context.Background(), "b-1", items)
	s.Require().NoError(err)

	s.Equal([]string{"results.csv", "results.csv.batches"}, writes)
	s.Len(s.rows(), 51)
}

func (s *CSVStoreSuite) TestBatchFailureAppliesNothing() {
	s.store.writeFile = func(string, []byte) error { return errors.New("disk full") }
	_, err := s.store.UpsertBatch(context.Background(), "b-1", []Item{{ItemID: "c1"}, {ItemID: "c2"}})
	s.Require().ErrorIs(err, ErrWrite)

	s.Empty(s.store.List())
	s.Empty(s.store.Batches())
	_, statErr := os.Stat(s.path)
	s.True(errors.Is(statErr, os.ErrNotExist))
}

func (s *CSVStoreSuite) TestBatchRejectsMissingItemID() {
	_, err := s.store.UpsertBatch(context.Background(), "b-1", []Item{{ItemID: "c1"}, {ItemID: " "}})
	s.Error(err)
	s.Empty(s.store.List())
}

func (s *CSVStoreSuite) TestBatchIndex() {
	ctx := context.Background()
	_, err := s.store.UpsertBatch(ctx, "b-1", []Item{{ItemID: "c1", Status: "success"}, {ItemID: "c2"}})
	s.Require().NoError(err)
	s.now = s.now.Add(time.Minute)
	_, err = s.store.UpsertBatch(ctx, "b-2", []Item{{ItemID: "c2", Status: "failed"}, {ItemID: "c2", Emails: []string{"x@y.com"}}})
	s.Require().NoError(err)
	_, _, err = s.store.Upsert(ctx, Item{ItemID: "c3"})
	s.Require().NoError(err)

	batches := s.store.Batches()
	s.Require().Len(batches, 2)
	s.Equal("b-2", batches[0].ID)
	s.Equal([]string{"c2"}, batches[0].Items)
	s.Equal(s.now, batches[0].ReceivedAt)
	s.Equal([]string{"c1", "c2"}, batches[1].Items)

	b, items, ok := s.store.Batch("b-1")
	s.Require().True(ok)
	s.Equal("b-1", b.ID)
	s.Require().Len(items, 2)
	s.Equal("failed", items[1].Status)

	_, _, ok = s.store.Batch("nope")
	s.False(ok)

	reopened := s.open()
	s.Equal(s.store.Batches(), reopened.Batches())
}

func (s *CSVStoreSuite) TestUnreadableBatchIndexIsIgnored() {
	_, err := s.store.UpsertBatch(context.Background(), "b-1", []Item{{ItemID: "c1"}})
	s.Require().NoError(err)
	s.Require().NoError(os.WriteFile(BatchIndexPath(s.path), []byte("garbage\n"), 0o644))

	reopened := s.open()
	s.Len(reopened.List(), 1)
	s.Empty(reopened.Batches())
}

func (s *CSVStoreSuite) TestWriteCSV() {
	var buf bytes.Buffer
	s.Require().NoError(WriteCSV(&buf, []Item{{ItemID: "c1", Status: "success", Emails: []string{"a@x.com", "b@x.com"}}}))
	s.Equal("item,status,fullName,emails,phones,linkedin,received_at\nc1,success,,a@x.com;b@x.com,,,\n", buf.String())
}
