package services

import (
	"context"
	"fmt"
	"time"

	"kakeibo/internal/core"
	"kakeibo/internal/log"
	"kakeibo/internal/metrics"
	"kakeibo/internal/sheets"
)

// Appender writes ledger entries as new rows.
type Appender struct {
	writer sheets.RowAppender
}

func NewAppender(writer sheets.RowAppender) *Appender {
	return &Appender{writer: writer}
}

// Append sends exactly one row. Values are not validated and failures are not retried.
func (a *Appender) Append(ctx context.Context, documentID, regionName string, entry core.LedgerEntry) error {
	start := time.Now()
	err := a.writer.AppendRow(ctx, documentID, regionName, entry.Row())
	metrics.RemoteCallDuration.WithLabelValues(log.OpAppend).Observe(time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("append entry %d: %w", entry.ID, err)
	}
	return nil
}
