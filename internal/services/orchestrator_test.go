package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/core"
)

var lunch = core.FormValues{Date: "2024-05-01", Expense: "1200", Account: "食費", Note: "lunch"}

func TestSubmitRequiresSelection(t *testing.T) {
	tests := []struct {
		name, doc, region string
	}{
		{"no document", "", "Sheet1"},
		{"no region", "doc-1", ""},
		{"nothing", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ledger := newFakeLedger(1)
			res := NewOrchestrator(ledger).Submit(context.Background(), tt.doc, tt.region, lunch)

			assert.Equal(t, core.MsgSelectionRequired, res.Message)
			assert.False(t, res.OK)
			reads, appends := ledger.calls()
			assert.Zero(t, reads)
			assert.Zero(t, appends)
		})
	}
}

func TestSubmitAppendsRow(t *testing.T) {
	ledger := newFakeLedger(1, 2, 3)
	res := NewOrchestrator(ledger).Submit(context.Background(), "doc-1", "Sheet1", lunch)

	require.True(t, res.OK)
	assert.Equal(t, core.MsgSubmitSucceeded, res.Message)
	assert.Equal(t, 4, res.Entry.ID)

	rows := ledger.Rows("doc-1", "Sheet1")
	assert.Equal(t, []any{4, "2024-05-01", "", "1200", "食費", "lunch"}, rows[len(rows)-1])
}

func TestSubmitFirstEntry(t *testing.T) {
	ledger := newFakeLedger()
	res := NewOrchestrator(ledger).Submit(context.Background(), "doc-1", "Sheet1", core.FormValues{Income: "300000", Account: "家賃"})

	require.True(t, res.OK)
	assert.Equal(t, 1, res.Entry.ID)
}

func TestSubmitAppendFailure(t *testing.T) {
	ledger := newFakeLedger(1, 2, 3)
	ledger.failAppend = true
	rec := &fakeRecorder{}
	pub := &fakePublisher{}

	res := NewOrchestrator(ledger, WithRecorder(rec), WithPublisher(pub)).Submit(context.Background(), "doc-1", "Sheet1", lunch)

	assert.False(t, res.OK)
	assert.Equal(t, core.MsgSubmitFailed, res.Message)
	assert.Equal(t, []any{1, 2, 3}, ledger.entryIDs())
	assert.Empty(t, rec.records)
	assert.Empty(t, pub.events)
}

func TestSubmitReadFailureStillAppendsWithIDOne(t *testing.T) {
	ledger := newFakeLedger(1, 2, 3)
	ledger.failRead = true

	res := NewOrchestrator(ledger).Submit(context.Background(), "doc-1", "Sheet1", lunch)

	require.True(t, res.OK)
	assert.Equal(t, 1, res.Entry.ID)
	assert.Equal(t, []any{1, 2, 3, 1}, ledger.entryIDs())
}

func TestSubmitIgnoresCancelledRequest(t *testing.T) {
	ledger := newFakeLedger(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewOrchestrator(ledger).Submit(ctx, "doc-1", "Sheet1", lunch)
	assert.True(t, res.OK)
}

func TestSubmitNotifiesJournalAndBus(t *testing.T) {
	ledger := newFakeLedger(1, 2, 3)
	rec := &fakeRecorder{outcome: core.RecordOutcome{Inserted: true}}
	pub := &fakePublisher{}
	clock := clockwork.NewFakeClockAt(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	res := NewOrchestrator(ledger,
		WithRecorder(rec),
		WithPublisher(pub),
		WithSessionID("sess-1"),
		WithClock(clock),
	).Submit(context.Background(), "doc-1", "Sheet1", lunch)

	require.True(t, res.OK)
	require.Len(t, rec.records, 1)
	require.Len(t, pub.events, 1)
	got := rec.records[0]
	assert.Equal(t, "doc-1", got.DocumentID)
	assert.Equal(t, "Sheet1", got.Region)
	assert.Equal(t, 4, got.EntryID)
	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, clock.Now(), got.AppendedAt)
	assert.NotEmpty(t, got.EventID)
	assert.Equal(t, got, pub.events[0])
}

func TestSubmitSucceedsWhenNotifiersFail(t *testing.T) {
	ledger := newFakeLedger(1)
	rec := &fakeRecorder{err: errRemote}
	pub := &fakePublisher{err: errRemote}

	res := NewOrchestrator(ledger, WithRecorder(rec), WithPublisher(pub)).Submit(context.Background(), "doc-1", "Sheet1", lunch)

	assert.True(t, res.OK)
	assert.Equal(t, core.MsgSubmitSucceeded, res.Message)
}

// Two overlapping submissions both read the column before either appends, so
// both allocate the same id.
func TestRacySubmissionsCollide(t *testing.T) {
	ledger := newFakeLedger(1, 2, 3)
	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	ledger.readBarrier = barrier
	o := NewOrchestrator(ledger)

	results := make([]Result, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.Submit(context.Background(), "doc-1", "Sheet1", lunch)
		}(i)
	}
	wg.Wait()

	assert.True(t, results[0].OK)
	assert.True(t, results[1].OK)
	assert.Equal(t, 4, results[0].Entry.ID)
	assert.Equal(t, 4, results[1].Entry.ID)
	assert.Equal(t, []any{1, 2, 3, 4, 4}, ledger.entryIDs())
}

func TestSerializedSubmissionsDoNotCollide(t *testing.T) {
	ledger := newFakeLedger(1, 2, 3)
	q := NewWriteQueue(4)
	require.NoError(t, q.Start(context.Background()))
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	o := NewOrchestrator(ledger, WithWriteQueue(q))

	ids := make(chan int, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := o.Submit(context.Background(), "doc-1", "Sheet1", lunch)
			assert.True(t, res.OK)
			ids <- res.Entry.ID
		}()
	}
	wg.Wait()
	close(ids)

	var got []int
	for id := range ids {
		got = append(got, id)
	}
	assert.ElementsMatch(t, []int{4, 5}, got)
	assert.Equal(t, []any{1, 2, 3, 4, 5}, ledger.entryIDs())
}

func TestSubmitWithStoppedQueueFails(t *testing.T) {
	ledger := newFakeLedger(1)
	res := NewOrchestrator(ledger, WithWriteQueue(NewWriteQueue(1))).Submit(context.Background(), "doc-1", "Sheet1", lunch)

	assert.False(t, res.OK)
	assert.Equal(t, core.MsgSubmitFailed, res.Message)
	reads, _ := ledger.calls()
	assert.Zero(t, reads)
}
