package core

import (
	"errors"
)

type (
	// DocumentRef identifies a remote spreadsheet owned by the signed-in user.
	DocumentRef struct {
		ID   string
		Name string
	}

	// RegionRef is a named sheet (tab) inside one spreadsheet.
	RegionRef struct {
		Name string
	}

	// Spreadsheet is what the region directory returns for one document.
	Spreadsheet struct {
		ID      string
		Title   string
		Regions []RegionRef
	}

	// FormValues are the user-editable fields of an entry.
	FormValues struct {
		Date    string
		Income  string
		Expense string
		Account string // 勘定科目
		Note    string
	}

	// LedgerEntry is one appended row. ID is always allocated, never user supplied.
	LedgerEntry struct {
		ID      int
		Date    string
		Income  string
		Expense string
		Account string
		Note    string
	}
)

// Form field names as posted by the entry form.
const (
	FieldDate    = "date"
	FieldIncome  = "income"
	FieldExpense = "expense"
	FieldAccount = "account"
	FieldNote    = "note"
)

var (
	ErrUnknownField  = errors.New("unknown form field")
	ErrEmptyDocument = errors.New("empty document id")
	ErrEmptyRegion   = errors.New("empty region name")
)

// DefaultAccounts is the account list offered by the entry form.
var DefaultAccounts = []string{"食費", "交際費", "交通費", "雑費", "趣味費", "家賃", "光熱費", "保険料"}

// FormFields lists the editable fields in display order.
func FormFields() []string {
	return []string{FieldDate, FieldIncome, FieldExpense, FieldAccount, FieldNote}
}

// Set updates a single field by its form name.
func (f *FormValues) Set(field, value string) error {
	switch field {
	case FieldDate:
		f.Date = value
	case FieldIncome:
		f.Income = value
	case FieldExpense:
		f.Expense = value
	case FieldAccount:
		f.Account = value
	case FieldNote:
		f.Note = value
	default:
		return ErrUnknownField
	}
	return nil
}

// Get returns a single field by its form name.
func (f FormValues) Get(field string) string {
	switch field {
	case FieldDate:
		return f.Date
	case FieldIncome:
		return f.Income
	case FieldExpense:
		return f.Expense
	case FieldAccount:
		return f.Account
	case FieldNote:
		return f.Note
	}
	return ""
}

// IsZero reports whether every field is empty.
func (f FormValues) IsZero() bool {
	return f == FormValues{}
}

// NewEntry builds the entry for an allocated id. Field values are copied as-is.
func NewEntry(id int, f FormValues) LedgerEntry {
	return LedgerEntry{
		ID:      id,
		Date:    f.Date,
		Income:  f.Income,
		Expense: f.Expense,
		Account: f.Account,
		Note:    f.Note,
	}
}

// Row returns the six cells written to the sheet: id, date, income, expense, account, note.
func (e LedgerEntry) Row() []any {
	return []any{e.ID, e.Date, e.Income, e.Expense, e.Account, e.Note}
}

// ValidateSelection checks that both a document and a region are chosen. Only
// an empty value counts as missing; a name made of spaces is still a name.
func ValidateSelection(documentID, regionName string) error {
	if documentID == "" {
		return ErrEmptyDocument
	}
	if regionName == "" {
		return ErrEmptyRegion
	}
	return nil
}

// HasRegion reports whether the spreadsheet lists a region with the given name.
func (s Spreadsheet) HasRegion(name string) bool {
	for _, r := range s.Regions {
		if r.Name == name {
			return true
		}
	}
	return false
}

// RegionNames returns the region names in sheet order.
func (s Spreadsheet) RegionNames() []string {
	out := make([]string, len(s.Regions))
	for i, r := range s.Regions {
		out[i] = r.Name
	}
	return out
}
