package exporter

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"verdiff/internal/errors"
	"verdiff/internal/historical"
	"verdiff/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Exporter writes results into a report directory. File names get a
// timestamp suffix so repeated runs never overwrite each other.
type Exporter struct {
	csv    *CSVWriter
	dir    string
	logger *slog.Logger
	now    func() time.Time
}

// New creates an exporter writing below dir.
func New(dir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "exporter"))
	return &Exporter{
		csv:    NewCSVWriter(dir, logger),
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

func (e *Exporter) fileName(prefix, ext string) string {
	return prefix + "_" + e.now().Format("20060102_150405") + ext
}

// WriteDiffCSV writes one row per diff entry, in report order.
func (e *Exporter) WriteDiffCSV(report *domain.DiffReport, prefix string) (string, error) {
	headers := []string{"change"}
	headers = append(headers, report.KeyColumns...)
	headers = append(headers, "column", "from", "to")

	rows := make([][]string, 0, len(report.Entries))
	for _, entry := range report.Entries {
		row := []string{strings.ToUpper(string(entry.Kind))}
		row = append(row, entry.Key...)
		row = append(row, entry.Column, entry.From, entry.To)
		rows = append(rows, row)
	}

	path, err := e.csv.WriteSimpleCSV(e.fileName(prefix, ".csv"), headers, rows)
	if err != nil {
		return "", errors.NewStorageError("failed to export diff entries", err)
	}
	return path, nil
}

// WriteTraceCSV writes the trace table with the same cell formatting as
// the markdown rendering, followed by the carried attribute columns.
func (e *Exporter) WriteTraceCSV(result *domain.TraceResult, prefix string) (string, error) {
	headers, rows := traceSheet(result)

	stream, err := e.csv.CreateStreamWriter(e.fileName(prefix, ".csv"), headers)
	if err != nil {
		return "", errors.NewStorageError("failed to export trace table", err)
	}
	for _, row := range rows {
		if err := stream.WriteRecord(row); err != nil {
			stream.Close()
			return "", errors.NewStorageError("failed to export trace table", err)
		}
	}
	if err := stream.Close(); err != nil {
		return "", errors.NewStorageError("failed to export trace table", err)
	}

	path := stream.Path()
	e.logger.Info("trace exported", slog.String("path", path), slog.Int("rows", len(rows)))
	return path, nil
}

// traceSheet returns the header and formatted rows shared by the CSV and
// XLSX trace exports.
func traceSheet(result *domain.TraceResult) ([]string, [][]string) {
	attrCols := attributeColumns(result)
	headers := append(historical.TraceHeaders(result.KeyColumns), attrCols...)

	rows := make([][]string, 0, result.Len())
	for _, t := range result.Trajectories {
		row := historical.TraceRow(t)
		for _, col := range attrCols {
			row = append(row, t.Attributes[col])
		}
		rows = append(rows, row)
	}
	return headers, rows
}

func attributeColumns(result *domain.TraceResult) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, t := range result.Trajectories {
		for col := range t.Attributes {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
