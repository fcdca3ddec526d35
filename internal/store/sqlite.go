package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"trademcp/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ JournalStore = (*SQLiteStore)(nil)

// migrations run in order; the index of the last applied statement is kept
// in PRAGMA user_version.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS journal (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		reference   TEXT    NOT NULL,
		tool        TEXT    NOT NULL,
		order_class TEXT    NOT NULL,
		symbol      TEXT    NOT NULL DEFAULT '',
		request     TEXT    NOT NULL,
		status      TEXT    NOT NULL,
		order_ids   TEXT    NOT NULL DEFAULT '',
		detail      TEXT    NOT NULL DEFAULT '',
		created_at  INTEGER NOT NULL,
		updated_at  INTEGER NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS journal_reference ON journal (reference)`,
	`CREATE INDEX IF NOT EXISTS journal_created_at ON journal (created_at)`,
}

// SQLiteStore implements JournalStore backed by a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies
// pending migrations and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection also keeps an
	// in-memory database alive across calls.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, `PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	for i := version; i < len(migrations); i++ {
		if _, err := s.db.ExecContext(ctx, migrations[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, i+1)); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// JournalStore implementation
// ---------------------------------------------------------------------------

// RecordSubmission inserts a pending entry.
func (s *SQLiteStore) RecordSubmission(ctx context.Context, e *domain.JournalEntry) error {
	now := s.now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Status == "" {
		e.Status = domain.JournalPending
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO journal (reference, tool, order_class, symbol, request, status, order_ids, detail, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Reference, e.Tool, string(e.Class), e.Symbol, e.Request, string(e.Status),
		strings.Join(e.OrderIDs, ","), e.Detail, e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("recording submission %s: %w", e.Reference, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("recording submission %s: %w", e.Reference, err)
	}
	e.ID = id
	return nil
}

// RecordOutcome updates the status of entry id.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, id int64, status domain.JournalStatus, orderIDs []string, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE journal SET status = ?, order_ids = ?, detail = ?, updated_at = ? WHERE id = ?`,
		string(status), strings.Join(orderIDs, ","), detail, s.now().UTC().UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("recording outcome of entry %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("recording outcome of entry %d: %w", id, ErrEntryNotFound)
	}
	return nil
}

// GetEntry retrieves a single entry by reference.
func (s *SQLiteStore) GetEntry(ctx context.Context, reference string) (*domain.JournalEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+journalColumns+` FROM journal WHERE reference = ?`, reference)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", reference, ErrEntryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading entry %s: %w", reference, err)
	}
	return e, nil
}

// ListEntries returns entries matching q, newest first.
func (s *SQLiteStore) ListEntries(ctx context.Context, q domain.JournalQuery) ([]domain.JournalEntry, error) {
	var (
		where []string
		args  []any
	)
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UnixMilli())
	}
	if !q.Until.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, q.Until.UnixMilli())
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}
	query := `SELECT ` + journalColumns + ` FROM journal`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing journal: %w", err)
	}
	defer rows.Close()

	var entries []domain.JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("listing journal: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// ---------------------------------------------------------------------------
// Row helpers
// ---------------------------------------------------------------------------

const journalColumns = `id, reference, tool, order_class, symbol, request, status, order_ids, detail, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*domain.JournalEntry, error) {
	var (
		e                  domain.JournalEntry
		class, status, ids string
		created, updated   int64
	)
	err := sc.Scan(&e.ID, &e.Reference, &e.Tool, &class, &e.Symbol, &e.Request,
		&status, &ids, &e.Detail, &created, &updated)
	if err != nil {
		return nil, err
	}
	e.Class = domain.OrderClass(class)
	e.Status = domain.JournalStatus(status)
	if ids != "" {
		e.OrderIDs = strings.Split(ids, ",")
	}
	e.CreatedAt = time.UnixMilli(created).UTC()
	e.UpdatedAt = time.UnixMilli(updated).UTC()
	return &e, nil
}
