package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"

	_ "modernc.org/sqlite"
)

// Duplicate is an entry id that was appended more than once to the same sheet.
type Duplicate struct {
	DocumentID       string
	Region           string
	EntryID          int
	FirstEventID     string
	DuplicateEventID string
	DetectedAt       time.Time
}

// JournalRepository records successful appends in a local SQLite database.
type JournalRepository struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewJournalRepository opens (creating if needed) the database at dbPath and migrates it.
func NewJournalRepository(dbPath string, clock clockwork.Clock) (*JournalRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	if err := RunMigrations(dsn); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JournalRepository{db: db, clock: clock}, nil
}

func (r *JournalRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *JournalRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Record stores rec. Recording the same event twice is a no-op. When another
// event already holds the same document, region and entry id, the pair is
// stored in duplicate_ids and reported as a duplicate.
func (r *JournalRepository) Record(ctx context.Context, rec core.AppendRecord) (core.RecordOutcome, error) {
	var outcome core.RecordOutcome
	status := "error"
	defer func() { metrics.JournalRecords.WithLabelValues(status).Inc() }()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return outcome, fmt.Errorf("begin journal transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.clock.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx, insertJournalEntry,
		rec.EventID, rec.DocumentID, rec.Region, rec.EntryID, rec.SessionID,
		rec.AppendedAt.UTC().Format(time.RFC3339Nano), now)
	if err != nil {
		return outcome, fmt.Errorf("insert journal entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return outcome, fmt.Errorf("insert journal entry: %w", err)
	}
	if n == 0 {
		status = "replayed"
		return outcome, tx.Commit()
	}
	outcome.Inserted = true

	var firstEventID string
	err = tx.QueryRowContext(ctx, selectFirstHolder, rec.DocumentID, rec.Region, rec.EntryID, rec.EventID).Scan(&firstEventID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return core.RecordOutcome{}, fmt.Errorf("look up entry id: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, insertDuplicate,
			rec.DocumentID, rec.Region, rec.EntryID, firstEventID, rec.EventID, now); err != nil {
			return core.RecordOutcome{}, fmt.Errorf("insert duplicate: %w", err)
		}
		outcome.Duplicate = true
	}

	if err := tx.Commit(); err != nil {
		return core.RecordOutcome{}, fmt.Errorf("commit journal transaction: %w", err)
	}
	status = "recorded"
	if outcome.Duplicate {
		status = "duplicate"
	}
	slog.DebugContext(ctx, "Journalled entry",
		log.NewFields().
			WithComponent(log.ComponentStorage).
			WithOperation(log.OpRecord).
			WithTarget(rec.DocumentID, rec.Region).
			WithEntryID(rec.EntryID).
			ToSlice()...)
	return outcome, nil
}

// ListDuplicates returns the most recent duplicates first.
func (r *JournalRepository) ListDuplicates(ctx context.Context, limit int) ([]Duplicate, error) {
	rows, err := r.db.QueryContext(ctx, selectDuplicates, limit)
	if err != nil {
		return nil, fmt.Errorf("list duplicates: %w", err)
	}
	defer rows.Close()

	var out []Duplicate
	for rows.Next() {
		var d Duplicate
		var detectedAt string
		if err := rows.Scan(&d.DocumentID, &d.Region, &d.EntryID, &d.FirstEventID, &d.DuplicateEventID, &detectedAt); err != nil {
			return nil, fmt.Errorf("scan duplicate: %w", err)
		}
		d.DetectedAt, _ = time.Parse(time.RFC3339Nano, detectedAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// CountEntries returns how many appends are journalled for one sheet.
func (r *JournalRepository) CountEntries(ctx context.Context, documentID, region string) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, countEntries, documentID, region).Scan(&n); err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return n, nil
}

const (
	insertJournalEntry = `INSERT OR IGNORE INTO entry_journal
    (event_id, document_id, region, entry_id, session_id, appended_at, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`

	selectFirstHolder = `SELECT event_id FROM entry_journal
WHERE document_id = ? AND region = ? AND entry_id = ? AND event_id <> ?
ORDER BY id LIMIT 1`

	insertDuplicate = `INSERT OR IGNORE INTO duplicate_ids
    (document_id, region, entry_id, first_event_id, duplicate_event_id, detected_at)
VALUES (?, ?, ?, ?, ?, ?)`

	selectDuplicates = `SELECT document_id, region, entry_id, first_event_id, duplicate_event_id, detected_at
FROM duplicate_ids ORDER BY id DESC LIMIT ?`

	countEntries = `SELECT COUNT(*) FROM entry_journal WHERE document_id = ? AND region = ?`
)
