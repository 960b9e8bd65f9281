package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
	"kakeibo/internal/sheets"
)

// EntryRecorder journals successful appends.
type EntryRecorder interface {
	Record(ctx context.Context, rec core.AppendRecord) (core.RecordOutcome, error)
}

// EventPublisher announces successful appends to other processes.
type EventPublisher interface {
	PublishEntryAppended(ctx context.Context, rec core.AppendRecord) error
}

// Result is what the entry form shows after a submission.
type Result struct {
	Message string
	OK      bool
	Entry   core.LedgerEntry
}

// Submission results as counted in metrics.
const (
	ResultSucceeded         = "succeeded"
	ResultFailed            = "failed"
	ResultSelectionRequired = "selection_required"
)

// Orchestrator validates a submission, allocates its identifier and appends it.
type Orchestrator struct {
	allocator *Allocator
	appender  *Appender
	queue     *WriteQueue
	recorder  EntryRecorder
	publisher EventPublisher
	sessionID string
	clock     clockwork.Clock
}

type OrchestratorOption func(*Orchestrator)

// WithWriteQueue routes allocate+append through q instead of running inline.
func WithWriteQueue(q *WriteQueue) OrchestratorOption {
	return func(o *Orchestrator) { o.queue = q }
}

func WithRecorder(r EntryRecorder) OrchestratorOption {
	return func(o *Orchestrator) { o.recorder = r }
}

func WithPublisher(p EventPublisher) OrchestratorOption {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithSessionID(id string) OrchestratorOption {
	return func(o *Orchestrator) { o.sessionID = id }
}

func WithClock(c clockwork.Clock) OrchestratorOption {
	return func(o *Orchestrator) { o.clock = c }
}

type ledgerBackend interface {
	sheets.ColumnReader
	sheets.RowAppender
}

func NewOrchestrator(backend ledgerBackend, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		allocator: NewAllocator(backend),
		appender:  NewAppender(backend),
		clock:     clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit never returns an error: every outcome is a message for the user. A
// missing selection short-circuits before any remote call.
func (o *Orchestrator) Submit(ctx context.Context, documentID, regionName string, form core.FormValues) Result {
	if err := core.ValidateSelection(documentID, regionName); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(ResultSelectionRequired).Inc()
		return Result{Message: core.MsgSelectionRequired}
	}

	entry, err := o.write(ctx, documentID, regionName, form)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(ResultFailed).Inc()
		slog.ErrorContext(ctx, "Entry submission failed",
			log.NewFields().
				WithComponent(log.ComponentLedger).
				WithOperation(log.OpSubmit).
				WithTarget(documentID, regionName).
				WithError(err).
				ToSlice()...)
		return Result{Message: core.MsgSubmitFailed}
	}

	metrics.SubmissionsTotal.WithLabelValues(ResultSucceeded).Inc()
	slog.InfoContext(ctx, "Entry appended",
		log.NewFields().
			WithComponent(log.ComponentLedger).
			WithOperation(log.OpSubmit).
			WithTarget(documentID, regionName).
			WithEntryID(entry.ID).
			ToSlice()...)
	o.notify(ctx, documentID, regionName, entry)
	return Result{Message: core.MsgSubmitSucceeded, OK: true, Entry: entry}
}

func (o *Orchestrator) write(ctx context.Context, documentID, regionName string, form core.FormValues) (core.LedgerEntry, error) {
	job := func(ctx context.Context) (core.LedgerEntry, error) {
		entry := core.NewEntry(o.allocator.NextID(ctx, documentID, regionName), form)
		if err := o.appender.Append(ctx, documentID, regionName, entry); err != nil {
			return core.LedgerEntry{}, err
		}
		return entry, nil
	}
	if o.queue != nil {
		return o.queue.Do(ctx, job)
	}
	return job(context.WithoutCancel(ctx))
}

// notify hands the append to the journal and the event bus. Neither can turn a
// successful submission into a failure.
func (o *Orchestrator) notify(ctx context.Context, documentID, regionName string, entry core.LedgerEntry) {
	if o.recorder == nil && o.publisher == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	rec := core.AppendRecord{
		EventID:    uuid.NewString(),
		DocumentID: documentID,
		Region:     regionName,
		EntryID:    entry.ID,
		SessionID:  o.sessionID,
		AppendedAt: o.clock.Now().UTC(),
	}
	fields := log.NewFields().WithTarget(documentID, regionName).WithEntryID(entry.ID)

	if o.recorder != nil {
		outcome, err := o.recorder.Record(ctx, rec)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "Failed to journal entry", fields.WithComponent(log.ComponentStorage).WithError(err).ToSlice()...)
		case outcome.Inserted && outcome.Duplicate:
			metrics.DuplicateIDs.Inc()
			slog.WarnContext(ctx, "Entry id already used in this sheet", fields.WithComponent(log.ComponentStorage).ToSlice()...)
		}
	}
	if o.publisher != nil {
		if err := o.publisher.PublishEntryAppended(ctx, rec); err != nil {
			slog.WarnContext(ctx, "Failed to publish entry event", fields.WithComponent(log.ComponentAMQP).WithError(err).ToSlice()...)
		}
	}
}
