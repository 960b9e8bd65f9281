package sheets

import "strings"

// QuoteRegion returns the sheet name as used in A1 notation: always wrapped in
// single quotes with inner quotes doubled. Unquoted names such as "A1", "R1C1"
// or "2024" would be read as cell references.
func QuoteRegion(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// ColumnRange is the whole-column range of the identifier column.
func ColumnRange(regionName string) string {
	return QuoteRegion(regionName) + "!A:A"
}

// AppendAnchor is the starting cell used for appends.
func AppendAnchor(regionName string) string {
	return QuoteRegion(regionName) + "!A1"
}
