package services

import (
	"context"
	"log/slog"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
	"kakeibo/internal/sheets"
)

// Allocator derives the next entry identifier from a sheet's column A.
type Allocator struct {
	reader sheets.ColumnReader
}

func NewAllocator(reader sheets.ColumnReader) *Allocator {
	return &Allocator{reader: reader}
}

// NextID never fails. When the column cannot be read, or its last value cannot
// be incremented to a positive id, it returns 1, which may collide with an
// existing row; the fallback is logged and counted.
func (a *Allocator) NextID(ctx context.Context, documentID, regionName string) int {
	start := time.Now()
	column, err := a.reader.ReadColumn(ctx, documentID, regionName)
	metrics.RemoteCallDuration.WithLabelValues(log.OpRead).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AllocationFallbacks.Inc()
		slog.WarnContext(ctx, "Failed to read identifier column, falling back to 1",
			log.NewFields().
				WithComponent(log.ComponentLedger).
				WithOperation(log.OpAllocate).
				WithTarget(documentID, regionName).
				WithError(err).
				ToSlice()...)
		return 1
	}
	id, err := core.NextIDChecked(column)
	if err != nil {
		metrics.AllocationFallbacks.Inc()
		slog.WarnContext(ctx, "Last identifier out of range, falling back to 1",
			log.NewFields().
				WithComponent(log.ComponentLedger).
				WithOperation(log.OpAllocate).
				WithTarget(documentID, regionName).
				WithError(err).
				ToSlice()...)
		return id
	}
	slog.DebugContext(ctx, "Allocated entry id", log.FieldRegion, regionName, log.FieldEntryID, id, "rows", len(column))
	return id
}
