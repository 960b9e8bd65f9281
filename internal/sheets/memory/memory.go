package memory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"kakeibo/internal/core"
	ports "kakeibo/internal/sheets"
)

var (
	ErrDocumentNotFound = errors.New("spreadsheet not found")
	ErrRegionNotFound   = errors.New("sheet not found")
)

type document struct {
	name    string
	regions []string
	rows    map[string][][]any
}

// Workbook is an in-memory stand-in for the Drive and Sheets APIs.
type Workbook struct {
	mu    sync.Mutex
	order []string
	docs  map[string]*document
}

var _ ports.Workbook = (*Workbook)(nil)

func New() *Workbook {
	return &Workbook{docs: map[string]*document{}}
}

// NewDemo returns a workbook with one ledger spreadsheet that has a header row
// in each monthly sheet.
func NewDemo() *Workbook {
	w := New()
	w.AddDocument("demo-ledger", "家計簿 (demo)", "1月", "2月", "3月")
	for _, region := range []string{"1月", "2月", "3月"} {
		_ = w.AppendRow(context.Background(), "demo-ledger", region, []any{"ID", "日付", "収入", "支出", "勘定科目", "備考"})
	}
	return w
}

// AddDocument registers a spreadsheet with empty sheets, replacing any existing one.
func (w *Workbook) AddDocument(id, name string, regions ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.docs[id]; !ok {
		w.order = append(w.order, id)
	}
	doc := &document{name: name, regions: slices.Clone(regions), rows: map[string][][]any{}}
	for _, r := range regions {
		doc.rows[r] = nil
	}
	w.docs[id] = doc
}

func (w *Workbook) ListDocuments(_ context.Context) ([]core.DocumentRef, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]core.DocumentRef, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, core.DocumentRef{ID: id, Name: w.docs[id].name})
	}
	return out, nil
}

func (w *Workbook) GetSpreadsheet(_ context.Context, documentID string) (core.Spreadsheet, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	doc, ok := w.docs[documentID]
	if !ok {
		return core.Spreadsheet{}, fmt.Errorf("get spreadsheet %s: %w", documentID, ErrDocumentNotFound)
	}
	sp := core.Spreadsheet{ID: documentID, Title: doc.name}
	for _, r := range doc.regions {
		sp.Regions = append(sp.Regions, core.RegionRef{Name: r})
	}
	return sp, nil
}

// ReadColumn mirrors values.get on A:A: trailing rows with an empty first cell are
// not returned and each row holds at most one value.
func (w *Workbook) ReadColumn(_ context.Context, documentID, regionName string) ([][]any, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.region(documentID, regionName)
	if err != nil {
		return nil, err
	}
	end := len(rows)
	for end > 0 && isBlank(rows[end-1]) {
		end--
	}
	out := make([][]any, end)
	for i, row := range rows[:end] {
		if !isBlank(row) {
			out[i] = []any{row[0]}
		} else {
			out[i] = []any{}
		}
	}
	return out, nil
}

func (w *Workbook) AppendRow(_ context.Context, documentID, regionName string, row []any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.region(documentID, regionName); err != nil {
		return err
	}
	w.docs[documentID].rows[regionName] = append(w.docs[documentID].rows[regionName], slices.Clone(row))
	return nil
}

// Rows returns a copy of every row in a sheet, header included.
func (w *Workbook) Rows(documentID, regionName string) [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	rows, err := w.region(documentID, regionName)
	if err != nil {
		return nil
	}
	out := make([][]any, len(rows))
	for i, r := range rows {
		out[i] = slices.Clone(r)
	}
	return out
}

func (w *Workbook) region(documentID, regionName string) ([][]any, error) {
	doc, ok := w.docs[documentID]
	if !ok {
		return nil, fmt.Errorf("%s: %w", documentID, ErrDocumentNotFound)
	}
	rows, ok := doc.rows[regionName]
	if !ok {
		return nil, fmt.Errorf("%s in %s: %w", ports.QuoteRegion(regionName), documentID, ErrRegionNotFound)
	}
	return rows, nil
}

func isBlank(row []any) bool {
	return len(row) == 0 || row[0] == nil || row[0] == ""
}
