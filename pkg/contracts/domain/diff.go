package domain

import (
	"fmt"
	"strings"
)

// ChangeKind classifies a keyed record between two versions.
type ChangeKind string

const (
	ChangeAdded    ChangeKind = "added"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeModified ChangeKind = "modified"
)

// DiffDetailsHeading separates the summary line from the entry list.
const DiffDetailsHeading = "--- Change Details ---"

// DiffEntry is one observed change. Column, From and To are only set for
// modified entries and always hold the raw cell strings.
type DiffEntry struct {
	Kind   ChangeKind `json:"kind"`
	Key    Key        `json:"key"`
	Column string     `json:"column,omitempty"`
	From   string     `json:"from,omitempty"`
	To     string     `json:"to,omitempty"`
}

// DiffReport is the classified result of comparing two versions.
// Modified counts distinct keys, not entries.
type DiffReport struct {
	NameA      string      `json:"name_a"`
	NameB      string      `json:"name_b"`
	KeyColumns []string    `json:"key_columns"`
	Added      int         `json:"added"`
	Deleted    int         `json:"deleted"`
	Modified   int         `json:"modified"`
	Entries    []DiffEntry `json:"entries"`
	Lines      []string    `json:"lines"`
}

// Summary returns the one-line count summary.
func (r *DiffReport) Summary() string {
	return fmt.Sprintf("Summary: [ADDED] %d records, [DELETED] %d records, [MODIFIED] %d records.",
		r.Added, r.Deleted, r.Modified)
}

// IsEmpty reports whether no change was found.
func (r *DiffReport) IsEmpty() bool {
	return len(r.Lines) == 0
}

// String renders the full text report: the summary, then the sorted entry
// lines under DiffDetailsHeading. Without entries only the summary is
// returned.
func (r *DiffReport) String() string {
	if r.IsEmpty() {
		return r.Summary()
	}
	var b strings.Builder
	b.WriteString(r.Summary())
	b.WriteString("\n\n")
	b.WriteString(DiffDetailsHeading)
	b.WriteString("\n")
	b.WriteString(strings.Join(r.Lines, "\n"))
	return b.String()
}
