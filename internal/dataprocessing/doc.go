// Package dataprocessing loads table versions from spreadsheet files and
// prepares them for comparison.
//
// # Architecture
//
// The package is organized into three components:
//
// 1. Parser: reads Excel workbooks (a named sheet or the first one) and CSV
// files into domain tables whose cells are all strings
// 2. Formatter: applies per-column formatting rules such as zero padding
// 3. Summarizer: profiles a loaded version for logging and prompts
//
// # Usage
//
//	parser := dataprocessing.NewParser(logger)
//	table, err := parser.ParseFile(ctx, dataprocessing.FileTask{File: "may.xlsx", Sheet: "Stock"}, []string{"sku"})
//	if err != nil {
//	    return err
//	}
//	table = dataprocessing.NewFormatter(rules).Format(table)
//
// # Error Handling
//
// A missing file or sheet is a NOT_FOUND error. A table without the
// required key columns is a SCHEMA error whose message names the file, the
// sheet and every missing column.
package dataprocessing
