package sheets

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteRegion(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Sheet1", "'Sheet1'"},
		{"my_sheet", "'my_sheet'"},
		{"My Sheet", "'My Sheet'"},
		{"1月_in", "'1月_in'"},
		{"Bob's", "'Bob''s'"},
		{"", "''"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, QuoteRegion(tt.in), tt.in)
	}
}

func TestRanges(t *testing.T) {
	assert.Equal(t, "'Sheet1'!A:A", ColumnRange("Sheet1"))
	assert.Equal(t, "'1月_in'!A1", AppendAnchor("1月_in"))
}

func TestRangesForNamesThatLookLikeReferences(t *testing.T) {
	for _, name := range []string{"A1", "R1C1", "2024", "AB12"} {
		assert.Equal(t, "'"+name+"'!A:A", ColumnRange(name), name)
		assert.Equal(t, "'"+name+"'!A1", AppendAnchor(name), name)
	}
}
