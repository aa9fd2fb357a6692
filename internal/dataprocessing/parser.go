package dataprocessing

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"verdiff/internal/errors"
	"verdiff/internal/validation"
	"verdiff/pkg/contracts/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// FileTask names one version stored in a local file. Sheet is ignored for
// CSV files; an empty Sheet selects the first sheet of a workbook.
type FileTask struct {
	File  string `yaml:"file" json:"file" validate:"required"`
	Sheet string `yaml:"sheet,omitempty" json:"sheet,omitempty"`
}

// Name returns the human-readable source name used in reports.
func (t FileTask) Name() string {
	base := filepath.Base(t.File)
	if t.Sheet != "" {
		return fmt.Sprintf("%s (Sheet: %s)", base, t.Sheet)
	}
	return base
}

// Location describes the task in error messages.
func (t FileTask) Location() string {
	loc := fmt.Sprintf("file '%s'", filepath.Base(t.File))
	if t.Sheet != "" {
		loc += fmt.Sprintf(" sheet '%s'", t.Sheet)
	}
	return loc
}

// Parser reads spreadsheet files into tables.
type Parser struct {
	logger    *slog.Logger
	validator *validation.FileValidator
}

// NewParser creates a parser. A nil logger falls back to slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{
		logger:    logger.With(slog.String("component", "parser")),
		validator: validation.NewFileValidator(logger),
	}
}

// ParseFile loads the task's table and checks that keyColumns are present.
// Files ending in .csv are read as CSV, .xlsx and .xlsm as workbooks.
func (p *Parser) ParseFile(ctx context.Context, task FileTask, keyColumns []string) (*domain.Table, error) {
	if err := p.validator.ValidateTableFile(task.File); err != nil {
		return nil, err
	}

	var (
		rows [][]string
		err  error
	)
	if strings.EqualFold(filepath.Ext(task.File), ".csv") {
		rows, err = readCSV(task.File)
	} else {
		rows, err = p.readWorkbook(task)
	}
	if err != nil {
		return nil, err
	}

	table := BuildTable(task.Name(), rows)
	if missing := table.MissingColumns(keyColumns); len(missing) > 0 {
		return nil, errors.NewSchemaError(task.Location(), missing)
	}

	p.logger.InfoContext(ctx, "table loaded",
		slog.String("source", table.Name),
		slog.Int("rows", len(table.Records)),
		slog.Int("columns", len(table.Columns)),
	)
	return table, nil
}

func (p *Parser) readWorkbook(task FileTask) ([][]string, error) {
	f, err := excelize.OpenFile(task.File)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to open workbook '%s'", task.File), err)
	}
	defer f.Close()

	sheet := task.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.NewParsingError(fmt.Sprintf("workbook '%s' has no sheets", task.File), nil)
		}
		sheet = sheets[0]
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return nil, errors.NewNotFoundError(fmt.Sprintf("sheet '%s' in file '%s'", sheet, filepath.Base(task.File)))
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to read sheet '%s'", sheet), err)
	}
	p.logger.Debug("sheet read", slog.String("sheet", sheet), slog.Int("total_rows", len(rows)))
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewStorageError(fmt.Sprintf("failed to read '%s'", path), err)
	}
	rows, err := ParseCSV(bytes.NewReader(data))
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("invalid CSV in '%s'", path), err)
	}
	return rows, nil
}

// ParseCSV reads every record of r. A leading UTF-8 BOM is dropped and rows
// may have varying lengths.
func ParseCSV(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	reader := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	return reader.ReadAll()
}

// BuildTable turns raw rows into a table: the first row is the header,
// fully blank rows are skipped and short rows are padded with "".
func BuildTable(name string, rows [][]string) *domain.Table {
	if len(rows) == 0 {
		return domain.NewTable(name, nil, nil)
	}

	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}

	data := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		data = append(data, row)
	}
	return domain.NewTable(name, header, data)
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
