package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"trademcp/internal/domain"
)

// Compile-time interface check.
var _ JournalArchive = (*ParquetStore)(nil)

// ParquetStore implements JournalArchive using one Parquet file per UTC day.
type ParquetStore struct {
	DataDir string
}

// NewParquetStore creates a new ParquetStore rooted at the given data directory.
func NewParquetStore(dataDir string) *ParquetStore {
	return &ParquetStore{DataDir: dataDir}
}

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// JournalRecord is the Parquet schema for journal entries.
type JournalRecord struct {
	ID         int64  `parquet:"id"`
	Reference  string `parquet:"reference"`
	Tool       string `parquet:"tool"`
	OrderClass string `parquet:"order_class"`
	Symbol     string `parquet:"symbol"`
	Request    string `parquet:"request"`
	Status     string `parquet:"status"`
	OrderIDs   string `parquet:"order_ids"`
	Detail     string `parquet:"detail"`
	CreatedAt  int64  `parquet:"created_at,timestamp(millisecond)"` // Unix ms
	UpdatedAt  int64  `parquet:"updated_at,timestamp(millisecond)"` // Unix ms
}

func toRecord(e domain.JournalEntry) JournalRecord {
	return JournalRecord{
		ID:         e.ID,
		Reference:  e.Reference,
		Tool:       e.Tool,
		OrderClass: string(e.Class),
		Symbol:     e.Symbol,
		Request:    e.Request,
		Status:     string(e.Status),
		OrderIDs:   strings.Join(e.OrderIDs, ","),
		Detail:     e.Detail,
		CreatedAt:  e.CreatedAt.UnixMilli(),
		UpdatedAt:  e.UpdatedAt.UnixMilli(),
	}
}

func fromRecord(r JournalRecord) domain.JournalEntry {
	e := domain.JournalEntry{
		ID:        r.ID,
		Reference: r.Reference,
		Tool:      r.Tool,
		Class:     domain.OrderClass(r.OrderClass),
		Symbol:    r.Symbol,
		Request:   r.Request,
		Status:    domain.JournalStatus(r.Status),
		Detail:    r.Detail,
		CreatedAt: time.UnixMilli(r.CreatedAt).UTC(),
		UpdatedAt: time.UnixMilli(r.UpdatedAt).UTC(),
	}
	if r.OrderIDs != "" {
		e.OrderIDs = strings.Split(r.OrderIDs, ",")
	}
	return e
}

// ---------------------------------------------------------------------------
// JournalArchive implementation
// ---------------------------------------------------------------------------

// WriteEntries writes entries to Parquet files organized by creation date:
//
//	<DataDir>/journal/<YYYY-MM-DD>.parquet
//
// Entries already archived are replaced by id, so re-exporting is safe.
func (s *ParquetStore) WriteEntries(_ context.Context, entries []domain.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}

	groups := make(map[string][]JournalRecord)
	for _, e := range entries {
		date := e.CreatedAt.UTC().Format(time.DateOnly)
		groups[date] = append(groups[date], toRecord(e))
	}

	for date, records := range groups {
		t, _ := time.Parse(time.DateOnly, date)
		path := s.journalPath(t)

		// Read existing records to merge.
		existing, _ := readParquetFile[JournalRecord](path)
		merged := mergeJournalRecords(existing, records)

		if err := writeParquetFile(path, merged); err != nil {
			return fmt.Errorf("writing journal for %s: %w", date, err)
		}
	}
	return nil
}

// ReadEntries reads archived entries created within [start, end].
func (s *ParquetStore) ReadEntries(_ context.Context, start, end time.Time) ([]domain.JournalEntry, error) {
	var entries []domain.JournalEntry
	first := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	for d := first; !d.After(end); d = d.AddDate(0, 0, 1) {
		records, err := readParquetFile[JournalRecord](s.journalPath(d))
		if err != nil {
			// No file for this day.
			continue
		}
		for _, r := range records {
			ts := time.UnixMilli(r.CreatedAt)
			if (ts.Equal(start) || ts.After(start)) && (ts.Equal(end) || ts.Before(end)) {
				entries = append(entries, fromRecord(r))
			}
		}
	}
	return entries, nil
}

// ListDays returns the dates that have an archive file, oldest first.
func (s *ParquetStore) ListDays() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "journal"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var days []string
	for _, e := range entries {
		if name, ok := strings.CutSuffix(e.Name(), ".parquet"); ok && !e.IsDir() {
			days = append(days, name)
		}
	}
	sort.Strings(days)
	return days, nil
}

// ---------------------------------------------------------------------------
// Path helpers
// ---------------------------------------------------------------------------

// journalPath returns the filesystem path for one day's archive.
// Layout: <dataDir>/journal/<YYYY-MM-DD>.parquet
func (s *ParquetStore) journalPath(t time.Time) string {
	return filepath.Join(s.DataDir, "journal", t.UTC().Format(time.DateOnly)+".parquet")
}

// ---------------------------------------------------------------------------
// Parquet file helpers
// ---------------------------------------------------------------------------

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// mergeJournalRecords deduplicates records by id, preferring incoming
// records over existing ones. Results are sorted by creation time.
func mergeJournalRecords(existing, incoming []JournalRecord) []JournalRecord {
	seen := make(map[int64]JournalRecord, len(existing)+len(incoming))
	for _, r := range existing {
		seen[r.ID] = r
	}
	for _, r := range incoming {
		seen[r.ID] = r
	}

	merged := make([]JournalRecord, 0, len(seen))
	for _, r := range seen {
		merged = append(merged, r)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt != merged[j].CreatedAt {
			return merged[i].CreatedAt < merged[j].CreatedAt
		}
		return merged[i].ID < merged[j].ID
	})
	return merged
}
