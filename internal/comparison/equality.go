package comparison

import (
	"math"
	"strconv"
	"strings"
)

// ParseNumber interprets a cell as a float64. Surrounding spaces are
// ignored; empty cells, NaN and infinities do not parse.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NumericColumn reports whether every value parses as a number.
// An empty column is not numeric.
func NumericColumn(values []string) bool {
	if len(values) == 0 {
		return false
	}
	for _, v := range values {
		if _, ok := ParseNumber(v); !ok {
			return false
		}
	}
	return true
}

// Comparator decides equality for the cells of one column.
type Comparator struct {
	numeric bool
}

// ColumnComparator builds the comparator for a column from the aligned
// values of both sides. The column is numeric only when both sides are.
func ColumnComparator(a, b []string) Comparator {
	return Comparator{numeric: NumericColumn(a) && NumericColumn(b)}
}

// Numeric reports whether cells are compared as numbers.
func (c Comparator) Numeric() bool {
	return c.numeric
}

// Equal reports whether x and y hold the same logical value.
func (c Comparator) Equal(x, y string) bool {
	if !c.numeric {
		return x == y
	}
	fx, okx := ParseNumber(x)
	fy, oky := ParseNumber(y)
	if !okx || !oky {
		return x == y
	}
	return fx == fy
}
