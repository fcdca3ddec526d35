// Package store persists the submission journal: every order the server is
// about to send, and what the brokerage answered.
package store

import (
	"context"
	"fmt"
	"time"

	"trademcp/internal/domain"
)

// ErrEntryNotFound is returned when no journal entry matches a lookup.
var ErrEntryNotFound = fmt.Errorf("journal entry %w", domain.ErrNotFound)

// JournalStore persists and retrieves submission journal entries.
type JournalStore interface {
	// RecordSubmission inserts e before it is sent and sets e.ID.
	RecordSubmission(ctx context.Context, e *domain.JournalEntry) error

	// RecordOutcome stores the brokerage's answer for entry id.
	RecordOutcome(ctx context.Context, id int64, status domain.JournalStatus, orderIDs []string, detail string) error

	// GetEntry retrieves the entry with the given client order id or linked
	// group id.
	GetEntry(ctx context.Context, reference string) (*domain.JournalEntry, error)

	// ListEntries returns entries matching q, newest first.
	ListEntries(ctx context.Context, q domain.JournalQuery) ([]domain.JournalEntry, error)
}

// JournalArchive writes and reads journal entries in bulk.
type JournalArchive interface {
	// WriteEntries merges entries into the archive.
	WriteEntries(ctx context.Context, entries []domain.JournalEntry) error

	// ReadEntries returns archived entries created within [start, end].
	ReadEntries(ctx context.Context, start, end time.Time) ([]domain.JournalEntry, error)
}
