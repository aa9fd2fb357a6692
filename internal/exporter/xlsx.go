package exporter

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"verdiff/internal/errors"
	"verdiff/pkg/contracts/domain"
)

// TraceSheetName is the worksheet written by WriteTraceXLSX.
const TraceSheetName = "Trace"

// WriteTraceXLSX writes the trace table to a workbook with a bold, filled
// header row and frozen panes below it.
func (e *Exporter) WriteTraceXLSX(result *domain.TraceResult, prefix string) (string, error) {
	headers, rows := traceSheet(result)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TraceSheetName); err != nil {
		return "", errors.NewStorageError("failed to prepare workbook", err)
	}

	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := f.SetSheetRow(TraceSheetName, "A1", &header); err != nil {
		return "", errors.NewStorageError("failed to write workbook header", err)
	}

	for i, row := range rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", errors.NewStorageError("failed to address workbook row", err)
		}
		if err := f.SetSheetRow(TraceSheetName, cell, &cells); err != nil {
			return "", errors.NewStorageError("failed to write workbook row", err)
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return "", errors.NewStorageError("failed to create header style", err)
	}
	lastCol, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return "", errors.NewStorageError("failed to address header row", err)
	}
	if err := f.SetCellStyle(TraceSheetName, "A1", lastCol, style); err != nil {
		return "", errors.NewStorageError("failed to style header row", err)
	}
	if err := f.SetPanes(TraceSheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return "", errors.NewStorageError("failed to freeze header row", err)
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", errors.NewStorageError("failed to create report directory", err)
	}
	path := filepath.Join(e.dir, e.fileName(prefix, ".xlsx"))
	if err := f.SaveAs(path); err != nil {
		return "", errors.NewStorageError("failed to save workbook", err)
	}

	e.logger.Info("trace workbook exported", slog.String("path", path), slog.Int("rows", len(rows)))
	return path, nil
}
