package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntryRow(t *testing.T) {
	f := FormValues{Date: "5", Income: "0", Expense: "1000", Account: "食費", Note: "lunch"}
	e := NewEntry(1, f)

	assert.Equal(t, []any{1, "5", "0", "1000", "食費", "lunch"}, e.Row())
}

func TestFormValuesSetGet(t *testing.T) {
	var f FormValues
	for _, name := range FormFields() {
		require.NoError(t, f.Set(name, name+"-v"))
	}
	for _, name := range FormFields() {
		assert.Equal(t, name+"-v", f.Get(name))
	}
	assert.False(t, f.IsZero())

	err := f.Set("amount", "1")
	assert.True(t, errors.Is(err, ErrUnknownField))
	assert.Equal(t, "", f.Get("amount"))
}

func TestValidateSelection(t *testing.T) {
	cases := []struct {
		doc, region string
		want        error
	}{
		{"doc", "Sheet1", nil},
		{"", "Sheet1", ErrEmptyDocument},
		{"doc", "", ErrEmptyRegion},
		{"  ", "Sheet1", nil},
		{"doc", " ", nil},
	}
	for i, tc := range cases {
		err := ValidateSelection(tc.doc, tc.region)
		if tc.want == nil {
			assert.NoError(t, err, "case %d", i)
			continue
		}
		assert.ErrorIs(t, err, tc.want, "case %d", i)
	}
}

func TestSpreadsheetRegions(t *testing.T) {
	sp := Spreadsheet{ID: "d", Title: "2025", Regions: []RegionRef{{Name: "1月_in"}, {Name: "1月_out"}}}

	assert.True(t, sp.HasRegion("1月_in"))
	assert.False(t, sp.HasRegion("2月_in"))
	assert.Equal(t, []string{"1月_in", "1月_out"}, sp.RegionNames())
}

func TestSpreadsheetURL(t *testing.T) {
	assert.Equal(t, "https://docs.google.com/spreadsheets/d/abc123", SpreadsheetURL("abc123"))
}
