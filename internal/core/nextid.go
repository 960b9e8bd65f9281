package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrIDOutOfRange reports a last identifier whose successor is not a positive int.
var ErrIDOutOfRange = errors.New("last identifier out of range")

// NextID computes the identifier for a new row from the values of column A.
//
// The first row is a header. With at most one row the sequence starts at 1.
// Otherwise the value in the last physical row is coerced to a number and
// incremented; empty or non-numeric values count as 0. The column is not
// scanned for its maximum, so rows that were deleted or reordered by hand make
// the sequence continue from whatever the last row holds.
func NextID(column [][]any) int {
	id, _ := NextIDChecked(column)
	return id
}

// NextIDChecked is NextID that also reports ErrIDOutOfRange when the last
// value is negative or too large to be incremented. The returned id is then 1,
// as if the cell held 0.
func NextIDChecked(column [][]any) (int, error) {
	if len(column) <= 1 {
		return 1, nil
	}
	last := column[len(column)-1]
	if len(last) == 0 {
		return 1, nil
	}
	n, ok := coerce(last[0])
	if !ok || n < 0 || n >= math.MaxInt {
		return 1, fmt.Errorf("%w: %v", ErrIDOutOfRange, last[0])
	}
	return int(n) + 1, nil
}

// CoerceNumber converts a cell value to a number the way a loose numeric cast
// would: surrounding whitespace is ignored, 0x/0o/0b prefixes select the base,
// anything unparsable becomes 0 and fractions are truncated toward zero.
// Values outside the int64 range also become 0.
func CoerceNumber(v any) int64 {
	n, _ := coerce(v)
	return n
}

// coerce reports false when v is numeric but does not fit in an int64.
func coerce(v any) (int64, bool) {
	var f float64
	switch n := v.(type) {
	case nil:
		return 0, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		f = parseLoose(n.String())
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f = parseLoose(n)
	default:
		f = parseLoose(fmt.Sprint(n))
	}
	switch {
	case math.IsNaN(f):
		return 0, true
	case f >= math.MaxInt64 || f < math.MinInt64 || math.IsInf(f, 0):
		return 0, false
	}
	return int64(f), true
}

// parseLoose returns NaN for text that is not a number.
func parseLoose(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if base := radixPrefix(s); base != 0 {
		u, err := strconv.ParseUint(s[2:], base, 64)
		if errors.Is(err, strconv.ErrRange) {
			return math.Inf(1)
		}
		if err != nil {
			return math.NaN()
		}
		return float64(u)
	}
	f, err := strconv.ParseFloat(s, 64)
	if errors.Is(err, strconv.ErrRange) {
		return f
	}
	if err != nil {
		return math.NaN()
	}
	// ParseFloat also takes "inf" and "nan" in any case; only "Infinity" is a number here.
	if (math.IsInf(f, 0) || math.IsNaN(f)) && strings.TrimLeft(s, "+-") != "Infinity" {
		return math.NaN()
	}
	return f
}

func radixPrefix(s string) int {
	if len(s) < 3 || s[0] != '0' {
		return 0
	}
	switch s[1] {
	case 'x', 'X':
		return 16
	case 'o', 'O':
		return 8
	case 'b', 'B':
		return 2
	}
	return 0
}
