package historical

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"verdiff/pkg/contracts/domain"
)

// NoChangesMessage replaces the table when no key changed.
const NoChangesMessage = "No record's tracked value changed across any of the data versions."

// NoChangeMarker stands in for an empty delta or percent trajectory.
const NoChangeMarker = "no change"

// TraceHeaders returns the column headers for the given key columns.
func TraceHeaders(keyColumns []string) []string {
	headers := append([]string(nil), keyColumns...)
	return append(headers,
		"Value Trajectory",
		"Latest Value",
		"Delta Trajectory",
		"Percent Change Trajectory (%)",
		"Total Modifications",
		"Anomaly Score",
	)
}

// TraceRow returns the formatted cells of one trajectory in header order.
func TraceRow(t domain.Trajectory) []string {
	row := append([]string(nil), t.Key...)
	return append(row,
		FormatValues(t.Values),
		FormatFloat(t.Latest),
		FormatDeltas(t.Deltas),
		FormatPercentChanges(t.PercentChanges),
		strconv.Itoa(t.ModificationCount),
		FormatFloat(t.AnomalyScore),
	)
}

// RenderMarkdown renders the ranked trajectories as a pipe table.
func RenderMarkdown(result *domain.TraceResult) string {
	if result.Len() == 0 {
		return NoChangesMessage
	}

	headers := TraceHeaders(result.KeyColumns)
	sep := make([]string, len(headers))
	for i := range sep {
		sep[i] = "---"
	}

	lines := make([]string, 0, len(result.Trajectories)+2)
	lines = append(lines, markdownRow(headers), markdownRow(sep))
	for _, t := range result.Trajectories {
		lines = append(lines, markdownRow(TraceRow(t)))
	}
	return strings.Join(lines, "\n")
}

func markdownRow(cells []string) string {
	return "| " + strings.Join(cells, " | ") + " |"
}

// FormatFloat formats v with two decimals.
func FormatFloat(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// FormatValues joins values with two decimals each.
func FormatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = FormatFloat(v)
	}
	return strings.Join(parts, " -> ")
}

// FormatDeltas joins signed deltas, or returns NoChangeMarker.
func FormatDeltas(deltas []float64) string {
	if len(deltas) == 0 {
		return NoChangeMarker
	}
	parts := make([]string, len(deltas))
	for i, d := range deltas {
		parts[i] = fmt.Sprintf("%+.2f", d)
	}
	return strings.Join(parts, " -> ")
}

// FormatPercentChanges joins signed percentages; infinities render as ∞.
func FormatPercentChanges(pcts []float64) string {
	if len(pcts) == 0 {
		return NoChangeMarker
	}
	parts := make([]string, len(pcts))
	for i, p := range pcts {
		if math.IsInf(p, 0) {
			parts[i] = "∞"
			continue
		}
		parts[i] = fmt.Sprintf("%+.2f%%", p)
	}
	return strings.Join(parts, " -> ")
}
