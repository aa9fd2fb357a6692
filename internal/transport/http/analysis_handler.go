package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"verdiff/internal/comparison"
	"verdiff/internal/config"
	"verdiff/internal/dataprocessing"
	apierrors "verdiff/internal/errors"
	"verdiff/internal/historical"
	"verdiff/internal/infrastructure"
	custommw "verdiff/internal/middleware"
	"verdiff/pkg/contracts/domain"
)

// TablePayload is one table version in a request: either CSV text with a
// header row, or explicit columns and rows.
type TablePayload struct {
	Name    string     `json:"name,omitempty"`
	Columns []string   `json:"columns,omitempty" validate:"required_without=CSV"`
	Rows    [][]string `json:"rows,omitempty"`
	CSV     string     `json:"csv,omitempty" validate:"required_without=Columns"`
}

// Table builds the domain table. Unnamed tables are called "version N"
// where N is the 1-based position in the request.
func (p TablePayload) Table(index int) (*domain.Table, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = fmt.Sprintf("version %d", index+1)
	}
	if p.CSV != "" {
		rows, err := dataprocessing.ParseCSV(strings.NewReader(p.CSV))
		if err != nil {
			return nil, apierrors.NewParsingError(fmt.Sprintf("table '%s' is not valid CSV", name), err)
		}
		return dataprocessing.BuildTable(name, rows), nil
	}
	rows := make([][]string, 0, len(p.Rows)+1)
	rows = append(rows, p.Columns)
	rows = append(rows, p.Rows...)
	return dataprocessing.BuildTable(name, rows), nil
}

// DiffRequest asks for the record-level changes between two versions.
type DiffRequest struct {
	Tables          []TablePayload                 `json:"tables" validate:"len=2,dive"`
	KeyColumns      []string                       `json:"key_columns" validate:"required,min=1,dive,column"`
	ColumnsToCheck  []string                       `json:"columns_to_check,omitempty" validate:"omitempty,dive,column"`
	FormattingRules dataprocessing.FormattingRules `json:"formatting_rules,omitempty" validate:"omitempty,dive"`
}

// Bind implements the render.Binder interface
func (d *DiffRequest) Bind(r *http.Request) error {
	d.KeyColumns = trimAll(d.KeyColumns)
	d.ColumnsToCheck = trimAll(d.ColumnsToCheck)
	return nil
}

// DiffResponse is the classified result of a diff.
type DiffResponse struct {
	NameA    string             `json:"name_a"`
	NameB    string             `json:"name_b"`
	Summary  string             `json:"summary"`
	Added    int                `json:"added"`
	Deleted  int                `json:"deleted"`
	Modified int                `json:"modified"`
	Entries  []domain.DiffEntry `json:"entries"`
	Lines    []string           `json:"lines"`
	Report   string             `json:"report"`
}

// TraceRequest asks for the trajectories of one value column across
// versions, oldest first.
type TraceRequest struct {
	Tables          []TablePayload                 `json:"tables" validate:"required,min=1,dive"`
	KeyColumns      []string                       `json:"key_columns" validate:"required,min=1,dive,column"`
	ValueColumn     string                         `json:"value_column" validate:"required,column"`
	TopN            *int                           `json:"top_n,omitempty" validate:"omitempty,gte=0"`
	ScoreWeights    *historical.ScoreWeights       `json:"score_weights,omitempty"`
	FormattingRules dataprocessing.FormattingRules `json:"formatting_rules,omitempty" validate:"omitempty,dive"`
}

// Bind implements the render.Binder interface
func (t *TraceRequest) Bind(r *http.Request) error {
	t.KeyColumns = trimAll(t.KeyColumns)
	t.ValueColumn = strings.TrimSpace(t.ValueColumn)
	return nil
}

// TraceResponse carries the ranked trajectories both structured and in the
// rendered table form.
type TraceResponse struct {
	KeyColumns   []string            `json:"key_columns"`
	ValueColumn  string              `json:"value_column"`
	Versions     int                 `json:"versions"`
	ChangedTotal int                 `json:"changed_total"`
	Summary      string              `json:"summary"`
	Trajectories []domain.Trajectory `json:"trajectories"`
	Headers      []string            `json:"headers"`
	Rows         [][]string          `json:"rows"`
	Markdown     string              `json:"markdown"`
}

// AnalysisHandler serves diffs and traces over in-request tables.
type AnalysisHandler struct {
	defaults     config.AnalysisParams
	validation   *custommw.ValidationMiddleware
	metrics      *infrastructure.Metrics
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewAnalysisHandler creates the handler. defaults supplies top-N, score
// weights and formatting rules when a request leaves them out.
func NewAnalysisHandler(defaults config.AnalysisParams, validation *custommw.ValidationMiddleware, metrics *infrastructure.Metrics, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *AnalysisHandler {
	return &AnalysisHandler{
		defaults:     defaults,
		validation:   validation,
		metrics:      metrics,
		logger:       logger.With(slog.String("component", "analysis_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the analysis routes
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(custommw.ContentTypeValidator(h.errorHandler, "application/json"))
	r.Use(h.validation.ValidateRequest)

	r.Post("/diff", h.Diff)
	r.Post("/trace", h.Trace)
	return r
}

// Diff handles POST /api/v1/diff
func (h *AnalysisHandler) Diff(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := &DiffRequest{}
	if !h.bind(w, r, req) {
		return
	}

	tables, err := h.tables(req.Tables, req.FormattingRules)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	opts := []comparison.Option{comparison.WithNames(tables[0].Name, tables[1].Name)}
	if len(req.ColumnsToCheck) > 0 {
		opts = append(opts, comparison.WithColumns(req.ColumnsToCheck...))
	}
	report, err := comparison.Diff(tables[0], tables[1], req.KeyColumns, opts...)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.metrics.RecordDiff(ctx, report)

	h.logger.InfoContext(ctx, "diff computed",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.Int("added", report.Added),
		slog.Int("deleted", report.Deleted),
		slog.Int("modified", report.Modified),
	)

	render.JSON(w, r, DiffResponse{
		NameA:    report.NameA,
		NameB:    report.NameB,
		Summary:  report.Summary(),
		Added:    report.Added,
		Deleted:  report.Deleted,
		Modified: report.Modified,
		Entries:  report.Entries,
		Lines:    report.Lines,
		Report:   report.String(),
	})
}

// Trace handles POST /api/v1/trace
func (h *AnalysisHandler) Trace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := &TraceRequest{}
	if !h.bind(w, r, req) {
		return
	}

	tables, err := h.tables(req.Tables, req.FormattingRules)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	topN := h.defaults.TopN
	if req.TopN != nil {
		topN = *req.TopN
	}
	weights := h.defaults.ScoreWeights
	if req.ScoreWeights != nil && !req.ScoreWeights.IsZero() {
		weights = *req.ScoreWeights
	}

	result, err := historical.Trace(tables, req.KeyColumns, req.ValueColumn,
		historical.WithTopN(topN),
		historical.WithWeights(weights),
		historical.WithLogger(h.logger),
	)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	h.metrics.RecordTrace(ctx, result)

	summary := ""
	if len(tables) > 1 {
		first, err := comparison.Diff(tables[0], tables[len(tables)-1], req.KeyColumns,
			comparison.WithColumns(req.ValueColumn))
		if err != nil {
			h.errorHandler.HandleError(w, r, err)
			return
		}
		summary = first.Summary()
	}

	rows := make([][]string, len(result.Trajectories))
	for i, t := range result.Trajectories {
		rows[i] = historical.TraceRow(t)
	}

	h.logger.InfoContext(ctx, "trace computed",
		slog.String("request_id", middleware.GetReqID(ctx)),
		slog.Int("versions", result.Versions),
		slog.Int("changed_total", result.ChangedTotal),
		slog.Int("returned", result.Len()),
	)

	render.JSON(w, r, TraceResponse{
		KeyColumns:   result.KeyColumns,
		ValueColumn:  result.ValueColumn,
		Versions:     result.Versions,
		ChangedTotal: result.ChangedTotal,
		Summary:      summary,
		Trajectories: result.Trajectories,
		Headers:      historical.TraceHeaders(result.KeyColumns),
		Rows:         rows,
		Markdown:     historical.RenderMarkdown(result),
	})
}

// bind decodes and validates the request, writing the problem response on
// failure.
func (h *AnalysisHandler) bind(w http.ResponseWriter, r *http.Request, v render.Binder) bool {
	if err := render.Bind(r, v); err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return false
	}
	if err := h.validation.ValidateStruct(v); err != nil {
		h.errorHandler.HandleError(w, r, err)
		return false
	}
	return true
}

// tables builds and formats every payload. Request rules replace the
// configured ones entirely.
func (h *AnalysisHandler) tables(payloads []TablePayload, rules dataprocessing.FormattingRules) ([]*domain.Table, error) {
	if len(rules) == 0 {
		rules = h.defaults.FormattingRules
	}
	formatter := dataprocessing.NewFormatter(rules)

	out := make([]*domain.Table, len(payloads))
	for i, p := range payloads {
		t, err := p.Table(i)
		if err != nil {
			return nil, err
		}
		if out[i], err = formatter.Process(t); err != nil {
			return nil, apierrors.NewAppValidationError(err.Error())
		}
	}
	return out, nil
}

func trimAll(values []string) []string {
	for i, v := range values {
		values[i] = strings.TrimSpace(v)
	}
	return values
}
