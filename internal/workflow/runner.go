package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"verdiff/internal/comparison"
	"verdiff/internal/config"
	"verdiff/internal/dataprocessing"
	"verdiff/internal/errors"
	"verdiff/internal/exporter"
	"verdiff/internal/files"
	"verdiff/internal/historical"
	"verdiff/internal/infrastructure"
	"verdiff/internal/llm"
	"verdiff/pkg/contracts/domain"
)

// Workflow names.
const (
	Comparison = "comparison"
	Historical = "historical"
)

// Run outcomes recorded in metrics.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Stage names.
const (
	StageLoad    = "load"
	StageFormat  = "format"
	StageDiff    = "diff"
	StageTrace   = "trace"
	StagePrompt  = "prompt"
	StageAnalyze = "analyze"
	StageReport  = "report"
	StageExport  = "export"
)

// StageStatus is the outcome of one stage.
type StageStatus string

const (
	StageStatusCompleted StageStatus = "completed"
	StageStatusFailed    StageStatus = "failed"
	StageStatusSkipped   StageStatus = "skipped"
)

// StageResult records how one stage went.
type StageResult struct {
	Name     string        `json:"name"`
	Status   StageStatus   `json:"status"`
	Duration time.Duration `json:"duration"`
	Error    string        `json:"error,omitempty"`
}

// Analyzer turns a prompt into a written analysis. *llm.Client satisfies it.
type Analyzer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Result is everything a run produced. On failure it holds the stages that
// ran up to and including the failing one.
type Result struct {
	Workflow   string                          `json:"workflow"`
	TraceID    string                          `json:"trace_id"`
	Sources    []string                        `json:"sources"`
	Profiles   []dataprocessing.VersionProfile `json:"profiles,omitempty"`
	Diff       *domain.DiffReport              `json:"diff,omitempty"`
	Trace      *domain.TraceResult             `json:"trace,omitempty"`
	Markdown   string                          `json:"markdown,omitempty"`
	Summary    string                          `json:"summary"`
	Prompt     string                          `json:"prompt"`
	Analysis   string                          `json:"analysis,omitempty"`
	PromptPath string                          `json:"prompt_path,omitempty"`
	ResultPath string                          `json:"result_path,omitempty"`
	ReportPath string                          `json:"report_path,omitempty"`
	Exports    []string                        `json:"exports,omitempty"`
	Stages     []StageResult                   `json:"stages"`
}

// Offline reports whether the run skipped the model call.
func (r *Result) Offline() bool {
	for _, s := range r.Stages {
		if s.Name == StageAnalyze {
			return s.Status == StageStatusSkipped
		}
	}
	return false
}

// Runner executes analysis runs against one configuration.
type Runner struct {
	cfg        *config.Config
	paths      *config.Paths
	analyzer   Analyzer
	metrics    *infrastructure.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
	files      *files.Manager
	formatter  *dataprocessing.Formatter
	summarizer *dataprocessing.Summarizer
}

// Option configures a Runner.
type Option func(*Runner)

// WithAnalyzer sets the model used for the written analysis. Without one the
// run is offline and the prompt itself becomes the report.
func WithAnalyzer(a Analyzer) Option {
	return func(r *Runner) { r.analyzer = a }
}

// WithMetrics records run activity in m.
func WithMetrics(m *infrastructure.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTracer sets the tracer for workflow spans.
func WithTracer(t trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner writing below paths.
func NewRunner(cfg *config.Config, paths *config.Paths, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		paths:  paths,
		tracer: otel.Tracer(infrastructure.TracerName),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = infrastructure.WithComponent(r.logger, "workflow")
	r.files = files.NewManager(r.logger)
	r.formatter = dataprocessing.NewFormatter(cfg.AnalysisParams.FormattingRules)
	r.summarizer = dataprocessing.NewSummarizer(r.logger)
	return r
}

// WorkflowFor picks the workflow for n versions, or "" when n is below two.
func WorkflowFor(n int) string {
	switch {
	case n == 2:
		return Comparison
	case n > 2:
		return Historical
	}
	return ""
}

// Run loads sources, oldest first, and runs the workflow their count
// selects. The partial result is returned alongside any error.
func (r *Runner) Run(ctx context.Context, sources []Source) (*Result, error) {
	ctx = infrastructure.EnsureTraceID(ctx)
	res := &Result{
		TraceID: infrastructure.GetTraceID(ctx),
		Sources: Names(sources),
	}

	res.Workflow = WorkflowFor(len(sources))
	if res.Workflow == "" {
		return res, errors.NewAppValidationError(
			fmt.Sprintf("at least two data versions are required, got %d", len(sources)))
	}

	ctx, span := r.tracer.Start(ctx, "workflow."+res.Workflow, trace.WithAttributes(
		attribute.String("workflow", res.Workflow),
		attribute.StringSlice("sources", res.Sources),
	))
	defer span.End()

	logger := r.logger.With(slog.String("workflow", res.Workflow))
	if spanID := infrastructure.TraceIDFromContext(ctx); spanID != "" {
		logger = logger.With(slog.String("otel_trace_id", spanID))
	}
	logger.InfoContext(ctx, "starting analysis", slog.Int("versions", len(sources)))

	var err error
	if res.Workflow == Comparison {
		err = r.runComparison(ctx, res, sources)
	} else {
		err = r.runHistorical(ctx, res, sources)
	}

	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
		infrastructure.RecordError(ctx, err)
		logger.ErrorContext(ctx, "analysis failed", slog.String("error", err.Error()))
	} else {
		logger.InfoContext(ctx, "analysis finished",
			slog.String("report", res.ReportPath),
			slog.Bool("offline", res.Offline()))
	}
	r.metrics.RecordRun(ctx, res.Workflow, outcome)
	return res, err
}

func (r *Runner) runComparison(ctx context.Context, res *Result, sources []Source) error {
	tables, err := r.prepare(ctx, res, sources)
	if err != nil {
		return err
	}
	keys := r.cfg.AnalysisParams.KeyColumns
	nameA, nameB := res.Sources[0], res.Sources[1]

	err = r.stage(ctx, res, StageDiff, func(ctx context.Context) error {
		report, err := comparison.Diff(tables[0], tables[1], keys, comparison.WithNames(nameA, nameB))
		if err != nil {
			return err
		}
		res.Diff = report
		res.Summary = report.Summary()
		r.metrics.RecordDiff(ctx, report)
		infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
			"diff.added":    report.Added,
			"diff.deleted":  report.Deleted,
			"diff.modified": report.Modified,
		})
		return nil
	})
	if err != nil {
		return err
	}

	res.Prompt = llm.ComparisonPrompt(res.Diff.String(), nameA, nameB)
	if err := r.analyze(ctx, res, r.cfg.LLM.SystemPrompts.Comparison, artifactNames{
		prompt: config.ComparisonPromptName,
		result: config.ComparisonResultName,
		report: config.ComparisonReportName,
	}); err != nil {
		return err
	}

	if !r.cfg.Output.ExportCSV {
		return nil
	}
	return r.stage(ctx, res, StageExport, func(ctx context.Context) error {
		path, err := r.exporter().WriteDiffCSV(res.Diff, config.DiffExportPrefix)
		if err != nil {
			return err
		}
		res.Exports = append(res.Exports, path)
		return nil
	})
}

func (r *Runner) runHistorical(ctx context.Context, res *Result, sources []Source) error {
	params := r.cfg.AnalysisParams
	if params.ValueColumn == "" {
		return errors.NewAppValidationError("value_column is required to trace more than two versions")
	}

	tables, err := r.prepare(ctx, res, sources)
	if err != nil {
		return err
	}

	err = r.stage(ctx, res, StageTrace, func(ctx context.Context) error {
		result, err := historical.Trace(tables, params.KeyColumns, params.ValueColumn,
			historical.WithTopN(params.TopN),
			historical.WithWeights(params.ScoreWeights),
			historical.WithLogger(r.logger),
		)
		if err != nil {
			return err
		}
		res.Trace = result
		res.Markdown = historical.RenderMarkdown(result)
		r.metrics.RecordTrace(ctx, result)
		infrastructure.SetSpanAttributes(ctx, map[string]interface{}{
			"trace.changed_total": result.ChangedTotal,
			"trace.rows":          result.Len(),
		})

		first, err := comparison.Diff(tables[0], tables[len(tables)-1], params.KeyColumns,
			comparison.WithColumns(params.ValueColumn))
		if err != nil {
			return err
		}
		res.Summary = first.Summary()
		return nil
	})
	if err != nil {
		return err
	}

	res.Prompt = llm.HistoricalPrompt(res.Markdown, res.Summary, res.Sources, params.ValueColumn, res.Trace.Len())
	if err := r.analyze(ctx, res, r.cfg.LLM.SystemPrompts.Historical, artifactNames{
		prompt: config.HistoricalPromptName,
		result: config.HistoricalResultName,
		report: config.HistoricalReportName,
	}); err != nil {
		return err
	}

	out := r.cfg.Output
	if !out.ExportCSV && !out.ExportXLSX {
		return nil
	}
	return r.stage(ctx, res, StageExport, func(ctx context.Context) error {
		exp := r.exporter()
		if out.ExportCSV {
			path, err := exp.WriteTraceCSV(res.Trace, config.TraceExportPrefix)
			if err != nil {
				return err
			}
			res.Exports = append(res.Exports, path)
		}
		if out.ExportXLSX {
			path, err := exp.WriteTraceXLSX(res.Trace, config.TraceExportPrefix)
			if err != nil {
				return err
			}
			res.Exports = append(res.Exports, path)
		}
		return nil
	})
}

// prepare loads every version concurrently, keeping source order, then
// applies the formatting rules and profiles the tracked column.
func (r *Runner) prepare(ctx context.Context, res *Result, sources []Source) ([]*domain.Table, error) {
	keys := r.cfg.AnalysisParams.KeyColumns
	tables := make([]*domain.Table, len(sources))

	err := r.stage(ctx, res, StageLoad, func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		for i, src := range sources {
			g.Go(func() error {
				t, err := src.Load(gctx, keys)
				if err != nil {
					return err
				}
				tables[i] = t
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		byKind := make(map[string]int)
		for _, src := range sources {
			byKind[src.Kind()]++
		}
		for kind, n := range byKind {
			r.metrics.RecordTablesLoaded(ctx, kind, n)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = r.stage(ctx, res, StageFormat, func(ctx context.Context) error {
		for i, t := range tables {
			formatted, err := r.formatter.Process(t)
			if err != nil {
				return errors.NewConfigError("invalid formatting rules", err)
			}
			tables[i] = formatted
		}
		res.Profiles = r.summarizer.ProfileAll(ctx, tables, r.cfg.AnalysisParams.ValueColumn)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tables, nil
}

type artifactNames struct {
	prompt string
	result string
	report string
}

// analyze saves the prompt, asks the analyzer and saves its answer and the
// final report. Offline runs save the prompt as the report.
func (r *Runner) analyze(ctx context.Context, res *Result, systemPrompt string, names artifactNames) error {
	err := r.stage(ctx, res, StagePrompt, func(ctx context.Context) error {
		path, err := r.files.SaveTextFile(r.paths.PromptsDir, names.prompt, res.Prompt, true)
		res.PromptPath = path
		return err
	})
	if err != nil {
		return err
	}

	content := res.Prompt
	if r.analyzer == nil {
		r.skip(res, StageAnalyze)
	} else {
		err = r.stage(ctx, res, StageAnalyze, func(ctx context.Context) error {
			analysis, err := r.analyzer.Complete(ctx, systemPrompt, res.Prompt)
			if err != nil {
				return err
			}
			res.Analysis = analysis
			path, err := r.files.SaveTextFile(r.paths.ResultsDir, names.result, analysis, true)
			res.ResultPath = path
			return err
		})
		if err != nil {
			return err
		}
		content = res.Analysis
	}

	return r.stage(ctx, res, StageReport, func(ctx context.Context) error {
		path, err := r.files.SaveMarkdownReport(r.paths.ReportsDir, names.report, content)
		res.ReportPath = path
		return err
	})
}

func (r *Runner) exporter() *exporter.Exporter {
	return exporter.New(r.paths.ExportsDir, r.logger)
}

// stage runs fn inside its own span and records its duration and outcome.
func (r *Runner) stage(ctx context.Context, res *Result, name string, fn func(context.Context) error) error {
	ctx, span := r.tracer.Start(ctx, "stage."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	st := StageResult{Name: name, Status: StageStatusCompleted, Duration: elapsed}
	if err != nil {
		st.Status = StageStatusFailed
		st.Error = err.Error()
		infrastructure.RecordError(ctx, err)
	}
	res.Stages = append(res.Stages, st)
	r.metrics.ObserveStage(ctx, name, elapsed)

	r.logger.DebugContext(ctx, "stage finished",
		slog.String("stage", name),
		slog.String("status", string(st.Status)),
		slog.Duration("duration", elapsed))
	return err
}

func (r *Runner) skip(res *Result, name string) {
	res.Stages = append(res.Stages, StageResult{Name: name, Status: StageStatusSkipped})
}
