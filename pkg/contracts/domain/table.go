package domain

import (
	"sort"
	"strings"
)

// Record is a single row of a table. Every cell is kept as the string the
// source presented; numeric interpretation happens later, per column.
type Record map[string]string

// Get returns the cell for column, or "" when the record has no such cell.
func (r Record) Get(column string) string {
	return r[column]
}

// Table is one version of a keyed dataset.
// Name identifies the source (file, sheet or tab) in errors and reports.
type Table struct {
	Name    string   `json:"name" validate:"max=256"`
	Columns []string `json:"columns"`
	Records []Record `json:"records" validate:"dive"`
}

// NewTable builds a table from a header row and data rows. Short rows are
// padded with empty strings and cells beyond the header are dropped.
func NewTable(name string, header []string, rows [][]string) *Table {
	t := &Table{
		Name:    name,
		Columns: append([]string(nil), header...),
		Records: make([]Record, 0, len(rows)),
	}
	for _, row := range rows {
		rec := make(Record, len(header))
		for i, col := range header {
			if i < len(row) {
				rec[col] = row[i]
			} else {
				rec[col] = ""
			}
		}
		t.Records = append(t.Records, rec)
	}
	return t
}

// HasColumn reports whether the table declares column. Tables built from
// JSON without a header fall back to the cells of their records.
func (t *Table) HasColumn(column string) bool {
	for _, c := range t.ColumnNames() {
		if c == column {
			return true
		}
	}
	return false
}

// ColumnNames returns the header. When Columns is empty the union of record
// cells is returned in sorted order.
func (t *Table) ColumnNames() []string {
	if len(t.Columns) > 0 {
		return t.Columns
	}
	seen := make(map[string]struct{})
	for _, rec := range t.Records {
		for col := range rec {
			seen[col] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for col := range seen {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}

// MissingColumns returns the entries of required the table does not have,
// in the order given.
func (t *Table) MissingColumns(required []string) []string {
	var missing []string
	for _, col := range required {
		if !t.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	return missing
}

// Key is the tuple of key-column values that identifies a record.
type Key []string

// KeyOf extracts the key of rec for the given key columns.
func KeyOf(rec Record, keyColumns []string) Key {
	k := make(Key, len(keyColumns))
	for i, col := range keyColumns {
		k[i] = rec.Get(col)
	}
	return k
}

// ID returns a collision-free map key for the tuple.
func (k Key) ID() string {
	var b strings.Builder
	for _, v := range k {
		b.WriteString(v)
		b.WriteByte(0)
	}
	return b.String()
}

// Format renders the key as "col: 'value', col2: 'value2'".
func (k Key) Format(keyColumns []string) string {
	parts := make([]string, len(k))
	for i, v := range k {
		col := ""
		if i < len(keyColumns) {
			col = keyColumns[i]
		}
		parts[i] = col + ": '" + v + "'"
	}
	return strings.Join(parts, ", ")
}

// Less orders keys column by column, lexicographically.
func (k Key) Less(other Key) bool {
	for i := 0; i < len(k) && i < len(other); i++ {
		if k[i] != other[i] {
			return k[i] < other[i]
		}
	}
	return len(k) < len(other)
}
