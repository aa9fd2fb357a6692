package workflow

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"verdiff/internal/config"
	"verdiff/internal/dataprocessing"
	"verdiff/internal/errors"
	"verdiff/internal/files"
	"verdiff/internal/sheets"
	"verdiff/internal/validation"
	"verdiff/pkg/contracts/domain"
)

// Source kinds, used as the metrics label for loaded tables.
const (
	KindCSV     = "csv"
	KindExcel   = "excel"
	KindGSheets = "gsheets"
)

// Source is one table version.
type Source interface {
	Name() string
	Kind() string
	Load(ctx context.Context, keyColumns []string) (*domain.Table, error)
}

// FileSource reads a version from a local CSV or Excel file.
type FileSource struct {
	Task   dataprocessing.FileTask
	parser *dataprocessing.Parser
}

// NewFileSource creates a source for task.
func NewFileSource(task dataprocessing.FileTask, parser *dataprocessing.Parser) *FileSource {
	return &FileSource{Task: task, parser: parser}
}

func (s *FileSource) Name() string { return s.Task.Name() }

func (s *FileSource) Kind() string {
	if strings.EqualFold(filepath.Ext(s.Task.File), ".csv") {
		return KindCSV
	}
	return KindExcel
}

func (s *FileSource) Load(ctx context.Context, keyColumns []string) (*domain.Table, error) {
	return s.parser.ParseFile(ctx, s.Task, keyColumns)
}

// SheetSource reads a version from a Google Sheets tab.
type SheetSource struct {
	Task   sheets.Task
	client *sheets.Source
}

// NewSheetSource creates a source for task.
func NewSheetSource(task sheets.Task, client *sheets.Source) *SheetSource {
	return &SheetSource{Task: task, client: client}
}

func (s *SheetSource) Name() string { return s.Task.Name() }

func (s *SheetSource) Kind() string { return KindGSheets }

func (s *SheetSource) Load(ctx context.Context, keyColumns []string) (*domain.Table, error) {
	return s.client.Fetch(ctx, s.Task, keyColumns)
}

// BuildSources turns the configured data sources into the ordered version
// list for the active mode. Relative paths are resolved against
// paths.BaseDir.
func BuildSources(ctx context.Context, cfg *config.Config, paths *config.Paths, logger *slog.Logger) ([]Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ds := cfg.DataSources

	switch cfg.ActiveMode {
	case config.ModeFiles:
		parser := dataprocessing.NewParser(logger)
		fileList := make([]string, 0, len(ds.Files))
		for _, f := range ds.Files {
			fileList = append(fileList, paths.ResolveSource(f))
		}
		if ds.FilesDir != "" {
			dir := paths.ResolveSource(ds.FilesDir)
			if err := validation.NewFileValidator(logger).ValidateInputDirectory(dir); err != nil {
				return nil, err
			}
			found, err := files.NewDiscovery(paths.BaseDir).FindTableFiles(dir, ds.Order)
			if err != nil {
				return nil, errors.NewStorageError("failed to list files_dir", err)
			}
			logger.InfoContext(ctx, "discovered versions",
				slog.String("dir", ds.FilesDir),
				slog.Int("count", len(found)),
				slog.String("order", string(ds.Order)))
			fileList = append(fileList, files.Paths(found)...)
		}
		out := make([]Source, 0, len(fileList))
		for _, f := range fileList {
			out = append(out, NewFileSource(dataprocessing.FileTask{File: f}, parser))
		}
		return out, nil

	case config.ModeSheets:
		parser := dataprocessing.NewParser(logger)
		file := paths.ResolveSource(ds.SheetsConfig.FilePath)
		if err := validation.NewFileValidator(logger).ValidateWorkbook(file); err != nil {
			return nil, err
		}
		out := make([]Source, 0, len(ds.SheetsConfig.SheetNames))
		for _, name := range ds.SheetsConfig.SheetNames {
			out = append(out, NewFileSource(dataprocessing.FileTask{File: file, Sheet: name}, parser))
		}
		return out, nil

	case config.ModeGSheets:
		client, err := sheets.NewSource(ctx, paths.CredentialsFile, logger)
		if err != nil {
			return nil, err
		}
		return SheetSources(client, ds.GoogleSheets.SpreadsheetID, ds.GoogleSheets.SheetNames), nil
	}

	return nil, errors.NewConfigError("unknown active_mode "+cfg.ActiveMode, nil)
}

// SheetSources lists one source per tab of a spreadsheet.
func SheetSources(client *sheets.Source, spreadsheetID string, tabs []string) []Source {
	out := make([]Source, 0, len(tabs))
	for _, tab := range tabs {
		out = append(out, NewSheetSource(sheets.Task{SpreadsheetID: spreadsheetID, Sheet: tab}, client))
	}
	return out
}

// Names returns the display name of every source in order.
func Names(sources []Source) []string {
	out := make([]string, len(sources))
	for i, s := range sources {
		out[i] = s.Name()
	}
	return out
}
