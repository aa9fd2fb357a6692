package sheets

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	gsheets "google.golang.org/api/sheets/v4"

	"verdiff/internal/dataprocessing"
	"verdiff/internal/errors"
	"verdiff/pkg/contracts/domain"
)

// ValueRenderOption asks the API for display strings.
const ValueRenderOption = "FORMATTED_VALUE"

// Task names one tab of a spreadsheet.
type Task struct {
	SpreadsheetID string
	Sheet         string
}

// Name returns the human-readable source name used in reports.
func (t Task) Name() string {
	return fmt.Sprintf("%s (Sheet: %s)", t.SpreadsheetID, t.Sheet)
}

// Location describes the task in error messages.
func (t Task) Location() string {
	return fmt.Sprintf("spreadsheet '%s' sheet '%s'", t.SpreadsheetID, t.Sheet)
}

// Source fetches tabs through the Sheets v4 API.
type Source struct {
	service *gsheets.Service
	logger  *slog.Logger
}

// NewSource creates a Sheets client authenticated with the service account
// in credentialsFile. Extra options are appended, which tests use to point
// the client at a local server.
func NewSource(ctx context.Context, credentialsFile string, logger *slog.Logger, opts ...option.ClientOption) (*Source, error) {
	var clientOpts []option.ClientOption
	if credentialsFile != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(credentialsFile))
	}
	clientOpts = append(clientOpts, option.WithScopes(gsheets.SpreadsheetsReadonlyScope))
	clientOpts = append(clientOpts, opts...)

	service, err := gsheets.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, errors.NewConfigError("failed to create Google Sheets service", err)
	}
	return NewSourceWithService(service, logger), nil
}

// NewSourceWithService wraps an existing service.
func NewSourceWithService(service *gsheets.Service, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	return &Source{
		service: service,
		logger:  logger.With(slog.String("component", "sheets")),
	}
}

// Fetch loads one tab and checks that keyColumns are present.
func (s *Source) Fetch(ctx context.Context, task Task, keyColumns []string) (*domain.Table, error) {
	resp, err := s.service.Spreadsheets.Values.Get(task.SpreadsheetID, quoteSheet(task.Sheet)).
		ValueRenderOption(ValueRenderOption).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(task, err)
	}

	table := dataprocessing.BuildTable(task.Name(), toRows(resp.Values))
	if missing := table.MissingColumns(keyColumns); len(missing) > 0 {
		return nil, errors.NewSchemaError(task.Location(), missing)
	}

	s.logger.InfoContext(ctx, "sheet loaded",
		slog.String("source", table.Name),
		slog.Int("rows", len(table.Records)),
		slog.Int("columns", len(table.Columns)),
	)
	return table, nil
}

// quoteSheet turns a tab name into an A1 range covering the whole tab.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

func toRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		cells := make([]string, len(row))
		for j, v := range row {
			if v != nil {
				cells[j] = fmt.Sprint(v)
			}
		}
		rows[i] = cells
	}
	return rows
}

func classify(task Task, err error) error {
	var apiErr *googleapi.Error
	if stderrors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return errors.NewNotFoundError(task.Location())
	}
	return errors.NewNetworkError(fmt.Sprintf("failed to read %s", task.Location()), err)
}
