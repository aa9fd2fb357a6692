package llm

import (
	"fmt"
	"strings"
)

// ComparisonPrompt builds the user prompt for a two-version comparison.
// report is the full text diff report.
func ComparisonPrompt(report, nameA, nameB string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Two versions of the same table were compared record by record.\n\n")
	fmt.Fprintf(&b, "- Previous version: %s\n", nameA)
	fmt.Fprintf(&b, "- Latest version: %s\n\n", nameB)
	b.WriteString("The change log below is exact: every added, deleted and modified record is listed ")
	b.WriteString("with its key, and every modified cell shows the old and the new value.\n\n")
	b.WriteString("```text\n")
	b.WriteString(report)
	b.WriteString("\n```\n\n")
	b.WriteString("Please write a report in Markdown with these sections:\n")
	b.WriteString("1. **Overview**: the scale of change between the two versions.\n")
	b.WriteString("2. **Key changes**: the most significant additions, deletions and modifications, grouped where they are related.\n")
	b.WriteString("3. **Anomalies**: values that look like entry errors or unexpected business events.\n")
	b.WriteString("4. **Recommendations**: what should be verified next.\n")
	b.WriteString("Cite record keys exactly as they appear in the log.")
	return b.String()
}

// HistoricalPrompt builds the user prompt for a multi-version trace.
// table is the markdown trace table, summary the first-vs-last summary
// line, sources the ordered source names and rows the number of table rows.
func HistoricalPrompt(table, summary string, sources []string, valueColumn string, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The column '%s' was tracked across %d versions of the same table, oldest first:\n", valueColumn, len(sources))
	fmt.Fprintf(&b, "%s\n\n", strings.Join(sources, " -> "))
	fmt.Fprintf(&b, "Comparing only the first and the last version: %s\n\n", summary)
	fmt.Fprintf(&b, "The table below lists the %d records whose '%s' changed, ranked by anomaly score. ", rows, valueColumn)
	b.WriteString("The score weighs how often a record changed against its largest percent change; ")
	b.WriteString("a change away from zero shows as ∞ and does not count toward the score.\n\n")
	b.WriteString(table)
	b.WriteString("\n\nPlease write a report in Markdown with these sections:\n")
	b.WriteString("1. **Overview**: how stable the tracked value was over the period.\n")
	b.WriteString("2. **Most volatile records**: the top-ranked records and what their trajectories show.\n")
	b.WriteString("3. **Trends**: sustained increases or decreases and sudden jumps.\n")
	b.WriteString("4. **Recommendations**: which records deserve follow-up and why.\n")
	b.WriteString("Cite record keys and values exactly as they appear in the table.")
	return b.String()
}
