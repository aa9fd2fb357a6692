package comparison

import (
	"fmt"
	"sort"

	"verdiff/internal/errors"
	"verdiff/pkg/contracts/domain"
)

// Default source names used in report text when a table carries none.
const (
	DefaultNameA = "previous version"
	DefaultNameB = "latest version"
)

type diffOptions struct {
	nameA   string
	nameB   string
	columns []string
}

// Option configures Diff.
type Option func(*diffOptions)

// WithNames overrides the source names shown in deleted and added entries.
func WithNames(nameA, nameB string) Option {
	return func(o *diffOptions) {
		o.nameA = nameA
		o.nameB = nameB
	}
}

// WithColumns restricts the comparison to the given value columns, in the
// given order. Without it every non-key column of the first table is
// checked in lexicographic order.
func WithColumns(columns ...string) Option {
	return func(o *diffOptions) {
		o.columns = append([]string(nil), columns...)
	}
}

// joinRow is one key of the full outer join with its provenance.
type joinRow struct {
	key     domain.Key
	left    domain.Record
	right   domain.Record
	inLeft  bool
	inRight bool
}

// Diff compares a (the older version) with b on keyColumns.
//
// Keys only in a are deleted, keys only in b are added, and keys in both
// yield one modified entry per value column whose cells differ. Key columns
// must be present in both tables and unique within each; violations are
// returned as schema errors.
func Diff(a, b *domain.Table, keyColumns []string, opts ...Option) (*domain.DiffReport, error) {
	o := diffOptions{nameA: a.Name, nameB: b.Name}
	if o.nameA == "" {
		o.nameA = DefaultNameA
	}
	if o.nameB == "" {
		o.nameB = DefaultNameB
	}
	for _, opt := range opts {
		opt(&o)
	}

	if err := checkKeys(a, o.nameA, keyColumns); err != nil {
		return nil, err
	}
	if err := checkKeys(b, o.nameB, keyColumns); err != nil {
		return nil, err
	}

	valueColumns := o.columns
	if valueColumns == nil {
		valueColumns = defaultValueColumns(a, keyColumns)
	}

	rows, err := outerJoin(a, b, keyColumns, o.nameA, o.nameB)
	if err != nil {
		return nil, err
	}

	report := &domain.DiffReport{
		NameA:      o.nameA,
		NameB:      o.nameB,
		KeyColumns: append([]string(nil), keyColumns...),
		Entries:    []domain.DiffEntry{},
	}

	var both []joinRow
	for _, row := range rows {
		switch {
		case !row.inRight:
			report.Deleted++
			report.Entries = append(report.Entries, domain.DiffEntry{Kind: domain.ChangeDeleted, Key: row.key})
		case !row.inLeft:
			report.Added++
			report.Entries = append(report.Entries, domain.DiffEntry{Kind: domain.ChangeAdded, Key: row.key})
		default:
			both = append(both, row)
		}
	}

	modified := make(map[string]struct{})
	for _, col := range valueColumns {
		left := make([]string, len(both))
		right := make([]string, len(both))
		for i, row := range both {
			left[i] = row.left.Get(col)
			right[i] = row.right.Get(col)
		}

		cmp := ColumnComparator(left, right)
		for i, row := range both {
			if cmp.Equal(left[i], right[i]) {
				continue
			}
			modified[row.key.ID()] = struct{}{}
			report.Entries = append(report.Entries, domain.DiffEntry{
				Kind:   domain.ChangeModified,
				Key:    row.key,
				Column: col,
				From:   left[i],
				To:     right[i],
			})
		}
	}
	report.Modified = len(modified)

	lines := make([]string, len(report.Entries))
	for i, e := range report.Entries {
		lines[i] = FormatEntry(e, keyColumns, o.nameA, o.nameB)
	}
	sort.Sort(byLine{lines: lines, entries: report.Entries})
	report.Lines = lines

	return report, nil
}

// FormatEntry renders the human-readable line for one entry.
func FormatEntry(e domain.DiffEntry, keyColumns []string, nameA, nameB string) string {
	key := e.Key.Format(keyColumns)
	switch e.Kind {
	case domain.ChangeDeleted:
		return fmt.Sprintf("[DELETED] Record from %s was removed. Key: [%s]", nameA, key)
	case domain.ChangeAdded:
		return fmt.Sprintf("[ADDED] New record found in %s. Key: [%s]", nameB, key)
	default:
		return fmt.Sprintf("[MODIFIED] Key: [%s] | Column '%s': changed from '%s' to '%s'", key, e.Column, e.From, e.To)
	}
}

func checkKeys(t *domain.Table, name string, keyColumns []string) error {
	if len(keyColumns) == 0 {
		return errors.NewSchemaError(name, []string{"<key columns>"})
	}
	if missing := t.MissingColumns(keyColumns); len(missing) > 0 {
		return errors.NewSchemaError(name, missing)
	}
	return nil
}

func defaultValueColumns(t *domain.Table, keyColumns []string) []string {
	isKey := make(map[string]bool, len(keyColumns))
	for _, k := range keyColumns {
		isKey[k] = true
	}
	var cols []string
	for _, c := range t.ColumnNames() {
		if !isKey[c] {
			cols = append(cols, c)
		}
	}
	sort.Strings(cols)
	return cols
}

// outerJoin aligns both tables by key. Rows keep the order of first
// appearance: a's keys, then keys only present in b.
func outerJoin(a, b *domain.Table, keyColumns []string, nameA, nameB string) ([]joinRow, error) {
	index := make(map[string]int, len(a.Records)+len(b.Records))
	rows := make([]joinRow, 0, len(a.Records)+len(b.Records))

	for _, rec := range a.Records {
		key := domain.KeyOf(rec, keyColumns)
		id := key.ID()
		if _, dup := index[id]; dup {
			return nil, errors.NewDuplicateKeyError(nameA, key.Format(keyColumns))
		}
		index[id] = len(rows)
		rows = append(rows, joinRow{key: key, left: rec, inLeft: true})
	}

	seen := make(map[string]struct{}, len(b.Records))
	for _, rec := range b.Records {
		key := domain.KeyOf(rec, keyColumns)
		id := key.ID()
		if _, dup := seen[id]; dup {
			return nil, errors.NewDuplicateKeyError(nameB, key.Format(keyColumns))
		}
		seen[id] = struct{}{}

		if i, ok := index[id]; ok {
			rows[i].right = rec
			rows[i].inRight = true
			continue
		}
		rows = append(rows, joinRow{key: key, right: rec, inRight: true})
	}
	return rows, nil
}

// byLine sorts entries together with their rendered lines.
type byLine struct {
	lines   []string
	entries []domain.DiffEntry
}

func (s byLine) Len() int           { return len(s.lines) }
func (s byLine) Less(i, j int) bool { return s.lines[i] < s.lines[j] }
func (s byLine) Swap(i, j int) {
	s.lines[i], s.lines[j] = s.lines[j], s.lines[i]
	s.entries[i], s.entries[j] = s.entries[j], s.entries[i]
}
