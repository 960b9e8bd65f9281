package services

import (
	"context"
	"errors"
	"sync"

	"kakeibo/internal/core"
	"kakeibo/internal/sheets/memory"
)

var errRemote = errors.New("remote unavailable")

// fakeLedger wraps the in-memory workbook and counts or fails remote calls.
type fakeLedger struct {
	*memory.Workbook

	mu         sync.Mutex
	reads      int
	appends    int
	failRead   bool
	failAppend bool
	// readBarrier, when set, holds every read until the group is released.
	readBarrier *sync.WaitGroup
}

func newFakeLedger(ids ...any) *fakeLedger {
	w := memory.New()
	w.AddDocument("doc-1", "Ledger", "Sheet1")
	_ = w.AppendRow(context.Background(), "doc-1", "Sheet1", []any{"ID", "日付", "収入", "支出", "勘定科目", "備考"})
	for _, id := range ids {
		_ = w.AppendRow(context.Background(), "doc-1", "Sheet1", []any{id})
	}
	return &fakeLedger{Workbook: w}
}

func (f *fakeLedger) ReadColumn(ctx context.Context, documentID, regionName string) ([][]any, error) {
	f.mu.Lock()
	f.reads++
	fail := f.failRead
	barrier := f.readBarrier
	f.mu.Unlock()
	if fail {
		return nil, errRemote
	}
	col, err := f.Workbook.ReadColumn(ctx, documentID, regionName)
	if barrier != nil {
		barrier.Done()
		barrier.Wait()
	}
	return col, err
}

func (f *fakeLedger) AppendRow(ctx context.Context, documentID, regionName string, row []any) error {
	f.mu.Lock()
	f.appends++
	fail := f.failAppend
	f.mu.Unlock()
	if fail {
		return errRemote
	}
	return f.Workbook.AppendRow(ctx, documentID, regionName, row)
}

func (f *fakeLedger) calls() (reads, appends int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads, f.appends
}

func (f *fakeLedger) entryIDs() []any {
	rows := f.Rows("doc-1", "Sheet1")
	ids := make([]any, 0, len(rows))
	for _, r := range rows[1:] {
		ids = append(ids, r[0])
	}
	return ids
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []core.AppendRecord
	outcome core.RecordOutcome
	err     error
}

func (r *fakeRecorder) Record(_ context.Context, rec core.AppendRecord) (core.RecordOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return r.outcome, r.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []core.AppendRecord
	err    error
}

func (p *fakePublisher) PublishEntryAppended(_ context.Context, rec core.AppendRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, rec)
	return p.err
}
