package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"trademcp/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStoreRecordAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := &domain.JournalEntry{
		Reference: "grp-1",
		Tool:      "place_bracket_order",
		Class:     domain.OrderClassBracket,
		Symbol:    "AAPL",
		Request:   `{"legs":[]}`,
	}
	if err := s.RecordSubmission(ctx, e); err != nil {
		t.Fatalf("RecordSubmission: %v", err)
	}
	if e.ID == 0 || e.Status != domain.JournalPending {
		t.Errorf("entry after insert = %+v, want an id and pending status", e)
	}

	if err := s.RecordOutcome(ctx, e.ID, domain.JournalPartialFailure, []string{"o-1", "o-2"}, "stop_loss rejected"); err != nil {
		t.Fatalf("RecordOutcome: %v", err)
	}

	got, err := s.GetEntry(ctx, "grp-1")
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Status != domain.JournalPartialFailure || got.Detail != "stop_loss rejected" {
		t.Errorf("GetEntry() = %+v, want partial_failure with detail", got)
	}
	if len(got.OrderIDs) != 2 || got.OrderIDs[1] != "o-2" {
		t.Errorf("OrderIDs = %v, want [o-1 o-2]", got.OrderIDs)
	}
	if got.Class != domain.OrderClassBracket || got.Tool != "place_bracket_order" {
		t.Errorf("GetEntry() lost fields: %+v", got)
	}
}

func TestSQLiteStoreNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetEntry(ctx, "missing"); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("GetEntry(missing) = %v, want ErrEntryNotFound", err)
	}
	if err := s.RecordOutcome(ctx, 42, domain.JournalAccepted, nil, ""); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("RecordOutcome(42) = %v, want ErrEntryNotFound", err)
	}
}

func TestSQLiteStoreDuplicateReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	e := domain.JournalEntry{Reference: "c-1", Tool: "place_market_order", Class: domain.OrderClassSimple, Request: "{}"}
	if err := s.RecordSubmission(ctx, &e); err != nil {
		t.Fatal(err)
	}
	dup := e
	if err := s.RecordSubmission(ctx, &dup); err == nil {
		t.Error("RecordSubmission accepted a duplicate reference")
	}
}

func TestSQLiteStoreListEntries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC)
	for i, ref := range []string{"a", "b", "c"} {
		e := &domain.JournalEntry{
			Reference: ref,
			Tool:      "place_limit_order",
			Class:     domain.OrderClassSimple,
			Request:   "{}",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		}
		if err := s.RecordSubmission(ctx, e); err != nil {
			t.Fatal(err)
		}
		if ref == "b" {
			if err := s.RecordOutcome(ctx, e.ID, domain.JournalRejected, nil, "no"); err != nil {
				t.Fatal(err)
			}
		}
	}

	all, err := s.ListEntries(ctx, domain.JournalQuery{})
	if err != nil {
		t.Fatalf("ListEntries: %v", err)
	}
	if len(all) != 3 || all[0].Reference != "c" || all[2].Reference != "a" {
		t.Errorf("ListEntries() order = %v, want newest first", refs(all))
	}

	since, _ := s.ListEntries(ctx, domain.JournalQuery{Since: base.Add(30 * time.Minute)})
	if len(since) != 2 {
		t.Errorf("ListEntries(since) = %v, want b and c", refs(since))
	}

	rejected, _ := s.ListEntries(ctx, domain.JournalQuery{Status: domain.JournalRejected})
	if len(rejected) != 1 || rejected[0].Reference != "b" {
		t.Errorf("ListEntries(rejected) = %v, want [b]", refs(rejected))
	}

	limited, _ := s.ListEntries(ctx, domain.JournalQuery{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("ListEntries(limit 1) returned %d entries", len(limited))
	}
}

func TestSQLiteStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	e := &domain.JournalEntry{Reference: "keep", Tool: "place_market_order", Class: domain.OrderClassSimple, Request: "{}"}
	if err := s.RecordSubmission(context.Background(), e); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Migrations are idempotent and data survives.
	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetEntry(context.Background(), "keep"); err != nil {
		t.Errorf("GetEntry after reopen: %v", err)
	}
}

func TestParquetStorePath(t *testing.T) {
	ps := NewParquetStore("/data")
	ts := time.Date(2024, 6, 15, 23, 0, 0, 0, time.UTC)

	want := filepath.Join("/data", "journal", "2024-06-15.parquet")
	if got := ps.journalPath(ts); got != want {
		t.Errorf("journalPath mismatch:\n  got  %s\n  want %s", got, want)
	}
}

func TestParquetStoreWriteReadEntries(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	ctx := context.Background()

	day1 := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 3, 15, 0, 0, 0, time.UTC)
	entries := []domain.JournalEntry{
		{ID: 1, Reference: "a", Tool: "place_market_order", Class: domain.OrderClassSimple, Symbol: "AAPL",
			Request: "{}", Status: domain.JournalAccepted, OrderIDs: []string{"o-1"}, CreatedAt: day1, UpdatedAt: day1},
		{ID: 2, Reference: "b", Tool: "place_oco_order", Class: domain.OrderClassOCO, Symbol: "MSFT",
			Request: "{}", Status: domain.JournalPending, CreatedAt: day2, UpdatedAt: day2},
	}
	if err := ps.WriteEntries(ctx, entries); err != nil {
		t.Fatalf("WriteEntries: %v", err)
	}

	// Re-export with an updated status replaces the record.
	entries[1].Status = domain.JournalAccepted
	entries[1].OrderIDs = []string{"o-2", "o-3"}
	if err := ps.WriteEntries(ctx, entries[1:]); err != nil {
		t.Fatalf("WriteEntries (merge): %v", err)
	}

	got, err := ps.ReadEntries(ctx, day1.Add(-time.Hour), day2.Add(time.Hour))
	if err != nil {
		t.Fatalf("ReadEntries: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ReadEntries returned %d entries, want 2", len(got))
	}
	if got[0].Reference != "a" || len(got[0].OrderIDs) != 1 {
		t.Errorf("first entry = %+v", got[0])
	}
	if got[1].Status != domain.JournalAccepted || len(got[1].OrderIDs) != 2 {
		t.Errorf("merged entry = %+v, want accepted with two order ids", got[1])
	}
	if !got[1].CreatedAt.Equal(day2) {
		t.Errorf("CreatedAt = %v, want %v", got[1].CreatedAt, day2)
	}

	days, err := ps.ListDays()
	if err != nil {
		t.Fatal(err)
	}
	if len(days) != 2 || days[0] != "2024-01-02" {
		t.Errorf("ListDays() = %v", days)
	}
}

func TestParquetStoreEmptyRange(t *testing.T) {
	ps := NewParquetStore(t.TempDir())
	got, err := ps.ReadEntries(context.Background(), time.Now().Add(-48*time.Hour), time.Now())
	if err != nil || len(got) != 0 {
		t.Errorf("ReadEntries on empty archive = %v, %v", got, err)
	}
	if days, err := ps.ListDays(); err != nil || days != nil {
		t.Errorf("ListDays on empty archive = %v, %v", days, err)
	}
}

func refs(entries []domain.JournalEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Reference
	}
	return out
}
