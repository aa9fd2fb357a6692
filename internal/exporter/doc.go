// Package exporter writes comparison and trace results to CSV and XLSX.
//
// CSVWriter is the low-level writer: headers, streaming and a UTF-8 BOM so
// that Excel opens the files with the right encoding. Exporter builds on it
// to write diff entries and trace tables into the report directory.
//
// Example usage:
//
//	exp := exporter.New("reports", logger)
//	path, err := exp.WriteDiffCSV(report, "diff")
//	path, err = exp.WriteTraceXLSX(trace, "trace")
package exporter
