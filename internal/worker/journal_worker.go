package worker

import (
	"context"
	"fmt"
	"log/slog"

	"kakeibo/internal/amqp"
	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
)

// Journal is the storage the worker writes entry events to.
type Journal interface {
	Record(ctx context.Context, rec core.AppendRecord) (core.RecordOutcome, error)
}

// JournalWorker records entry events published by the web server and flags
// identifiers that were handed out twice in the same sheet.
type JournalWorker struct {
	journal Journal
}

func NewJournalWorker(journal Journal) *JournalWorker {
	return &JournalWorker{journal: journal}
}

// HandleEntryAppended records one event. Events the web server already
// journalled itself come back as replays and are not counted again.
func (w *JournalWorker) HandleEntryAppended(ctx context.Context, msg *amqp.EntryAppendedMessage) error {
	fields := log.NewFields().
		WithComponent(log.ComponentWorker).
		WithOperation(log.OpRecord).
		WithTarget(msg.DocumentID, msg.Region).
		WithEntryID(msg.EntryID)

	outcome, err := w.journal.Record(ctx, msg.AppendRecord)
	if err != nil {
		return fmt.Errorf("record entry event %s: %w", msg.EventID, err)
	}

	switch {
	case !outcome.Inserted:
		slog.DebugContext(ctx, "Entry event already journalled", append(fields.ToSlice(), log.FieldEventID, msg.EventID)...)
	case outcome.Duplicate:
		metrics.DuplicateIDs.Inc()
		slog.WarnContext(ctx, "Entry id already used in this sheet", append(fields.ToSlice(), log.FieldEventID, msg.EventID)...)
	default:
		slog.InfoContext(ctx, "Entry event journalled", append(fields.ToSlice(), log.FieldEventID, msg.EventID)...)
	}
	return nil
}
