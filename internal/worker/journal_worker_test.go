package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/metrics"
	"kakeibo/internal/storage"
)

func newJournal(t *testing.T) *storage.JournalRepository {
	t.Helper()
	repo, err := storage.NewJournalRepository(filepath.Join(t.TempDir(), "journal.db"), clockwork.NewFakeClock())
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func event(eventID string, entryID int) *amqp.EntryAppendedMessage {
	return amqp.NewEntryAppendedMessage(core.AppendRecord{
		EventID:    eventID,
		DocumentID: "doc-1",
		Region:     "2月",
		EntryID:    entryID,
		AppendedAt: time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
	})
}

func TestHandleEntryAppendedFlagsReusedID(t *testing.T) {
	repo := newJournal(t)
	w := NewJournalWorker(repo)
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.DuplicateIDs)

	require.NoError(t, w.HandleEntryAppended(ctx, event("a", 4)))
	require.NoError(t, w.HandleEntryAppended(ctx, event("b", 5)))
	require.NoError(t, w.HandleEntryAppended(ctx, event("c", 4)))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.DuplicateIDs))
	dups, err := repo.ListDuplicates(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dups, 1)
	assert.Equal(t, 4, dups[0].EntryID)
}

func TestHandleEntryAppendedIgnoresReplays(t *testing.T) {
	repo := newJournal(t)
	w := NewJournalWorker(repo)
	ctx := context.Background()

	require.NoError(t, w.HandleEntryAppended(ctx, event("a", 4)))
	before := testutil.ToFloat64(metrics.DuplicateIDs)
	require.NoError(t, w.HandleEntryAppended(ctx, event("a", 4)))

	assert.Equal(t, before, testutil.ToFloat64(metrics.DuplicateIDs))
	n, err := repo.CountEntries(ctx, "doc-1", "2月")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

type failingJournal struct{}

func (failingJournal) Record(context.Context, core.AppendRecord) (core.RecordOutcome, error) {
	return core.RecordOutcome{}, errors.New("database is locked")
}

func TestHandleEntryAppendedReturnsJournalError(t *testing.T) {
	err := NewJournalWorker(failingJournal{}).HandleEntryAppended(context.Background(), event("a", 1))
	assert.ErrorContains(t, err, "database is locked")
}
