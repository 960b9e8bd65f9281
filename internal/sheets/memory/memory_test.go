package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kakeibo/internal/core"
)

func TestWorkbookDirectory(t *testing.T) {
	w := New()
	w.AddDocument("a", "Ledger A", "Sheet1", "Sheet2")
	w.AddDocument("b", "Ledger B")
	ctx := context.Background()

	docs, err := w.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []core.DocumentRef{{ID: "a", Name: "Ledger A"}, {ID: "b", Name: "Ledger B"}}, docs)

	sp, err := w.GetSpreadsheet(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "Ledger A", sp.Title)
	assert.Equal(t, []string{"Sheet1", "Sheet2"}, sp.RegionNames())

	_, err = w.GetSpreadsheet(ctx, "missing")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestWorkbookAppendAndReadColumn(t *testing.T) {
	w := New()
	w.AddDocument("a", "Ledger", "Sheet1")
	ctx := context.Background()

	col, err := w.ReadColumn(ctx, "a", "Sheet1")
	require.NoError(t, err)
	assert.Empty(t, col)

	require.NoError(t, w.AppendRow(ctx, "a", "Sheet1", []any{"ID", "日付"}))
	require.NoError(t, w.AppendRow(ctx, "a", "Sheet1", []any{1, "2024-01-01", "", "500"}))
	require.NoError(t, w.AppendRow(ctx, "a", "Sheet1", []any{"", "note only"}))

	col, err = w.ReadColumn(ctx, "a", "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"ID"}, {1}}, col)
	assert.Equal(t, 2, core.NextID(col))
	assert.Len(t, w.Rows("a", "Sheet1"), 3)
}

func TestWorkbookUnknownRegion(t *testing.T) {
	w := New()
	w.AddDocument("a", "Ledger", "Sheet1")
	ctx := context.Background()

	_, err := w.ReadColumn(ctx, "a", "Other")
	assert.ErrorIs(t, err, ErrRegionNotFound)
	assert.ErrorIs(t, w.AppendRow(ctx, "a", "Other", []any{1}), ErrRegionNotFound)
	assert.ErrorIs(t, w.AppendRow(ctx, "zzz", "Sheet1", []any{1}), ErrDocumentNotFound)
}

func TestNewDemoStartsAtOne(t *testing.T) {
	w := NewDemo()
	col, err := w.ReadColumn(context.Background(), "demo-ledger", "1月")
	require.NoError(t, err)
	assert.Equal(t, 1, core.NextID(col))
}
