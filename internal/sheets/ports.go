package sheets

import (
	"context"

	"kakeibo/internal/core"
)

// Ports for outbound adapters.
type (
	// DocumentDirectory lists spreadsheets owned by the signed-in identity.
	DocumentDirectory interface {
		ListDocuments(ctx context.Context) ([]core.DocumentRef, error)
	}

	// RegionDirectory returns the title and ordered sheet names of one spreadsheet.
	RegionDirectory interface {
		GetSpreadsheet(ctx context.Context, documentID string) (core.Spreadsheet, error)
	}

	// ColumnReader reads the populated values of column A of a region, one slice per row.
	ColumnReader interface {
		ReadColumn(ctx context.Context, documentID, regionName string) ([][]any, error)
	}

	// RowAppender inserts one row after the existing data of a region.
	RowAppender interface {
		AppendRow(ctx context.Context, documentID, regionName string, row []any) error
	}

	// Workbook is everything the application needs from one signed-in identity.
	Workbook interface {
		DocumentDirectory
		RegionDirectory
		ColumnReader
		RowAppender
	}
)
