package workflow

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdiff/internal/config"
	"verdiff/internal/dataprocessing"
	"verdiff/internal/errors"
	"verdiff/internal/infrastructure"
	"verdiff/internal/shared/testutil"
)

type analyzerCall struct {
	system string
	user   string
}

type fakeAnalyzer struct {
	mu     sync.Mutex
	answer string
	err    error
	calls  []analyzerCall
}

func (f *fakeAnalyzer) Complete(_ context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, analyzerCall{system: system, user: user})
	return f.answer, f.err
}

func testConfig(files ...string) *config.Config {
	cfg := config.Default()
	cfg.ActiveMode = config.ModeFiles
	cfg.DataSources.Files = files
	cfg.AnalysisParams.KeyColumns = []string{"id"}
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config, opts ...Option) (*Runner, *config.Paths) {
	t.Helper()
	paths, err := cfg.ResolvePaths(t.TempDir())
	require.NoError(t, err)
	logger, _ := testutil.NewTestLogger(t)
	return NewRunner(cfg, paths, append([]Option{WithLogger(logger)}, opts...)...), paths
}

func buildSources(t *testing.T, cfg *config.Config, paths *config.Paths) []Source {
	t.Helper()
	sources, err := BuildSources(context.Background(), cfg, paths, nil)
	require.NoError(t, err)
	return sources
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func stageNames(res *Result) []string {
	names := make([]string, len(res.Stages))
	for i, s := range res.Stages {
		names[i] = s.Name
	}
	return names
}

func TestRunComparison(t *testing.T) {
	fx := testutil.NewTableFixtures(t)
	a := fx.CSV("jan.csv", [][]string{{"id", "amount"}, {"1", "10"}, {"2", "20"}})
	b := fx.CSV("feb.csv", [][]string{{"id", "amount"}, {"1", "10"}, {"3", "30"}})

	cfg := testConfig(a, b)
	analyzer := &fakeAnalyzer{answer: "## Overview\nOne record replaced."}
	runner, paths := newTestRunner(t, cfg, WithAnalyzer(analyzer))

	res, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
	require.NoError(t, err)

	assert.Equal(t, Comparison, res.Workflow)
	assert.NotEmpty(t, res.TraceID)
	assert.Equal(t, []string{"jan.csv", "feb.csv"}, res.Sources)
	require.NotNil(t, res.Diff)
	assert.Equal(t, 1, res.Diff.Added)
	assert.Equal(t, 1, res.Diff.Deleted)
	assert.Equal(t, 0, res.Diff.Modified)
	assert.Equal(t, "Summary: [ADDED] 1 records, [DELETED] 1 records, [MODIFIED] 0 records.", res.Summary)

	require.Len(t, analyzer.calls, 1)
	assert.Equal(t, cfg.LLM.SystemPrompts.Comparison, analyzer.calls[0].system)
	assert.Equal(t, res.Prompt, analyzer.calls[0].user)
	assert.Contains(t, res.Prompt, "[DELETED] Record from jan.csv was removed. Key: [id: '2']")
	assert.Contains(t, res.Prompt, "[ADDED] New record found in feb.csv. Key: [id: '3']")

	assert.Equal(t, paths.PromptsDir, filepath.Dir(res.PromptPath))
	assert.True(t, strings.HasPrefix(filepath.Base(res.PromptPath), config.ComparisonPromptName+"_"))
	assert.Equal(t, res.Prompt, readFile(t, res.PromptPath))

	assert.Equal(t, paths.ResultsDir, filepath.Dir(res.ResultPath))
	assert.Equal(t, analyzer.answer, readFile(t, res.ResultPath))

	assert.Equal(t, paths.ReportsDir, filepath.Dir(res.ReportPath))
	assert.True(t, strings.HasPrefix(filepath.Base(res.ReportPath), config.ComparisonReportName+"_"))
	assert.Equal(t, ".md", filepath.Ext(res.ReportPath))
	assert.Equal(t, analyzer.answer, readFile(t, res.ReportPath))

	require.Len(t, res.Exports, 1)
	assert.FileExists(t, res.Exports[0])
	assert.Equal(t, paths.ExportsDir, filepath.Dir(res.Exports[0]))

	assert.Equal(t, []string{StageLoad, StageFormat, StageDiff, StagePrompt, StageAnalyze, StageReport, StageExport}, stageNames(res))
	for _, s := range res.Stages {
		assert.Equal(t, StageStatusCompleted, s.Status, s.Name)
	}
	assert.False(t, res.Offline())
}

func TestRunHistorical(t *testing.T) {
	fx := testutil.NewTableFixtures(t)
	versions := fx.Versions("id", "amount", []map[string]string{
		{"1": "10", "2": "20", "3": "5"},
		{"1": "10", "2": "25", "3": "5"},
		{"1": "12", "2": "30", "3": "5"},
	})

	cfg := testConfig(versions...)
	cfg.AnalysisParams.ValueColumn = "amount"
	cfg.Output.ExportXLSX = true
	analyzer := &fakeAnalyzer{answer: "volatile: 2"}
	runner, paths := newTestRunner(t, cfg, WithAnalyzer(analyzer))

	res, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
	require.NoError(t, err)

	assert.Equal(t, Historical, res.Workflow)
	require.NotNil(t, res.Trace)
	assert.Equal(t, 2, res.Trace.ChangedTotal)
	assert.Equal(t, 2, res.Trace.Len())
	assert.Equal(t, "2", res.Trace.Trajectories[0].Key[0], "two modifications rank first")
	assert.Equal(t, "Summary: [ADDED] 0 records, [DELETED] 0 records, [MODIFIED] 2 records.", res.Summary)
	assert.Contains(t, res.Markdown, "| 20.00 -> 25.00 -> 30.00 |")

	require.Len(t, analyzer.calls, 1)
	assert.Equal(t, cfg.LLM.SystemPrompts.Historical, analyzer.calls[0].system)
	assert.Contains(t, res.Prompt, "v1.csv -> v2.csv -> v3.csv")
	assert.Contains(t, res.Prompt, res.Summary)
	assert.Contains(t, res.Prompt, res.Markdown)

	assert.True(t, strings.HasPrefix(filepath.Base(res.PromptPath), config.HistoricalPromptName+"_"))
	assert.True(t, strings.HasPrefix(filepath.Base(res.ResultPath), config.HistoricalResultName+"_"))
	assert.True(t, strings.HasPrefix(filepath.Base(res.ReportPath), config.HistoricalReportName+"_"))

	require.Len(t, res.Exports, 2)
	assert.Equal(t, ".csv", filepath.Ext(res.Exports[0]))
	assert.Equal(t, ".xlsx", filepath.Ext(res.Exports[1]))

	require.Len(t, res.Profiles, 3)
	assert.Equal(t, 3, res.Profiles[0].Numeric)
}

func TestRunOffline(t *testing.T) {
	fx := testutil.NewTableFixtures(t)
	a := fx.CSV("a.csv", [][]string{{"id", "amount"}, {"1", "269"}})
	b := fx.CSV("b.csv", [][]string{{"id", "amount"}, {"1", "269.0"}})

	cfg := testConfig(a, b)
	cfg.Output.ExportCSV = false
	runner, paths := newTestRunner(t, cfg)

	res, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
	require.NoError(t, err)

	assert.True(t, res.Diff.IsEmpty(), "numeric column compares by value")
	assert.True(t, res.Offline())
	assert.Empty(t, res.Analysis)
	assert.Empty(t, res.ResultPath)
	assert.Equal(t, res.Prompt, readFile(t, res.ReportPath))
	assert.Empty(t, res.Exports)
	assert.Equal(t, []string{StageLoad, StageFormat, StageDiff, StagePrompt, StageAnalyze, StageReport}, stageNames(res))
	assert.Equal(t, StageStatusSkipped, res.Stages[4].Status)
}

func TestRunAppliesFormattingRules(t *testing.T) {
	fx := testutil.NewTableFixtures(t)
	a := fx.CSV("a.csv", [][]string{{"code", "name"}, {"7", "x"}})
	b := fx.CSV("b.csv", [][]string{{"code", "name"}, {"007", "y"}})

	cfg := testConfig(a, b)
	cfg.AnalysisParams.KeyColumns = []string{"code"}
	cfg.AnalysisParams.FormattingRules = dataprocessing.FormattingRules{
		"code": {Type: dataprocessing.RuleZFill, Width: 3},
	}
	cfg.Output.ExportCSV = false
	runner, paths := newTestRunner(t, cfg)

	res, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
	require.NoError(t, err)

	assert.Equal(t, 0, res.Diff.Added)
	assert.Equal(t, 1, res.Diff.Modified)
	assert.Equal(t, []string{"[MODIFIED] Key: [code: '007'] | Column 'name': changed from 'x' to 'y'"}, res.Diff.Lines)
}

func TestRunErrors(t *testing.T) {
	fx := testutil.NewTableFixtures(t)
	good := fx.CSV("good.csv", [][]string{{"id", "amount"}, {"1", "10"}})
	other := fx.CSV("other.csv", [][]string{{"id", "amount"}, {"1", "11"}})
	third := fx.CSV("third.csv", [][]string{{"id", "amount"}, {"1", "12"}})
	noKey := fx.CSV("nokey.csv", [][]string{{"amount"}, {"10"}})

	t.Run("single version", func(t *testing.T) {
		cfg := testConfig(good)
		runner, paths := newTestRunner(t, cfg)
		res, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
		require.Error(t, err)
		assert.Equal(t, errors.ErrTypeValidation, errors.TypeOf(err))
		assert.Empty(t, res.Stages)
	})

	t.Run("historical needs a value column", func(t *testing.T) {
		cfg := testConfig(good, other, third)
		runner, paths := newTestRunner(t, cfg)
		_, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
		require.Error(t, err)
		assert.Equal(t, errors.ErrTypeValidation, errors.TypeOf(err))
		assert.Contains(t, err.Error(), "value_column")
	})

	t.Run("missing key column", func(t *testing.T) {
		cfg := testConfig(good, noKey)
		runner, paths := newTestRunner(t, cfg)
		res, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
		require.Error(t, err)
		assert.True(t, errors.IsSchemaError(err))
		assert.Contains(t, err.Error(), "nokey.csv")

		require.Len(t, res.Stages, 1)
		assert.Equal(t, StageLoad, res.Stages[0].Name)
		assert.Equal(t, StageStatusFailed, res.Stages[0].Status)
		assert.Empty(t, res.ReportPath)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg := testConfig(good, filepath.Join(fx.Dir, "absent.csv"))
		runner, paths := newTestRunner(t, cfg)
		_, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
		require.Error(t, err)
		assert.Equal(t, errors.ErrTypeNotFound, errors.TypeOf(err))
	})

	t.Run("analyzer failure keeps the prompt", func(t *testing.T) {
		cfg := testConfig(good, other)
		analyzer := &fakeAnalyzer{err: errors.NewNetworkError("chat completion failed", stderrors.New("502"))}
		runner, paths := newTestRunner(t, cfg, WithAnalyzer(analyzer))

		res, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
		require.Error(t, err)
		assert.Equal(t, errors.ErrTypeNetwork, errors.TypeOf(err))
		assert.FileExists(t, res.PromptPath)
		assert.Empty(t, res.ReportPath)
		assert.Equal(t, StageStatusFailed, res.Stages[len(res.Stages)-1].Status)
	})

	t.Run("unknown formatting rule", func(t *testing.T) {
		cfg := testConfig(good, other)
		cfg.AnalysisParams.FormattingRules = dataprocessing.FormattingRules{"id": {Type: "upper"}}
		runner, paths := newTestRunner(t, cfg)
		_, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
		require.Error(t, err)
		assert.Equal(t, errors.ErrTypeConfig, errors.TypeOf(err))
	})
}

func TestRunRecordsMetrics(t *testing.T) {
	fx := testutil.NewTableFixtures(t)
	a := fx.CSV("a.csv", [][]string{{"id", "amount"}, {"1", "10"}, {"2", "20"}})
	b := fx.CSV("b.csv", [][]string{{"id", "amount"}, {"1", "15"}, {"2", "20"}})

	metrics, err := infrastructure.NewMetrics()
	require.NoError(t, err)
	defer metrics.Shutdown(context.Background())

	cfg := testConfig(a, b)
	runner, paths := newTestRunner(t, cfg, WithMetrics(metrics))
	_, err = runner.Run(context.Background(), buildSources(t, cfg, paths))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `verdiff_runs_total{outcome="success",workflow="comparison"} 1`)
	assert.Contains(t, body, `verdiff_tables_loaded_total{source="csv"} 2`)
	assert.Contains(t, body, `verdiff_diff_entries_total{kind="modified"} 1`)
	assert.Contains(t, body, `stage="diff"`)
}

func TestRunLogs(t *testing.T) {
	fx := testutil.NewTableFixtures(t)
	a := fx.CSV("a.csv", [][]string{{"id", "amount"}, {"1", "10"}})
	b := fx.CSV("b.csv", [][]string{{"id", "amount"}, {"1", "12"}})

	t.Run("success", func(t *testing.T) {
		logger, logs := testutil.NewTestLogger(t)
		cfg := testConfig(a, b)
		runner, paths := newTestRunner(t, cfg, WithLogger(logger))
		_, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
		require.NoError(t, err)

		testutil.AssertLogContains(t, logs, slog.LevelInfo, "starting analysis")
		testutil.AssertLogContains(t, logs, slog.LevelInfo, "analysis finished")
		testutil.AssertLogAttr(t, logs, "component", "workflow")
		testutil.AssertLogAttr(t, logs, "workflow", Comparison)
		testutil.AssertLogAttr(t, logs, "versions", int64(2))
		testutil.AssertLogAttr(t, logs, "offline", true)
		testutil.AssertLogAttr(t, logs, "stage", StageDiff)
		assert.Empty(t, logs.Messages(slog.LevelError))
	})

	t.Run("failure", func(t *testing.T) {
		logger, logs := testutil.NewTestLogger(t)
		cfg := testConfig(a, filepath.Join(fx.Dir, "absent.csv"))
		runner, paths := newTestRunner(t, cfg, WithLogger(logger))
		_, err := runner.Run(context.Background(), buildSources(t, cfg, paths))
		require.Error(t, err)

		rec, ok := logs.Find("analysis failed")
		require.True(t, ok)
		assert.Equal(t, slog.LevelError, rec.Level)
		assert.Equal(t, "workflow", rec.Attrs["component"])
		assert.Contains(t, rec.Attrs["error"], "absent.csv")
		assert.False(t, logs.ContainsMessage("analysis finished"))
	})
}

func TestBuildSources(t *testing.T) {
	fx := testutil.NewTableFixtures(t)
	book := fx.Workbook("book.xlsx", []string{"Jan", "Feb", "Mar"}, map[string][][]string{
		"Jan": {{"id"}}, "Feb": {{"id"}}, "Mar": {{"id"}},
	})
	fx.CSV("v2.csv", [][]string{{"id"}})
	fx.CSV("v1.csv", [][]string{{"id"}})

	paths := &config.Paths{BaseDir: fx.Dir}

	t.Run("files resolve against the base dir", func(t *testing.T) {
		cfg := testConfig("v1.csv", "book.xlsx")
		sources := buildSources(t, cfg, paths)
		require.Len(t, sources, 2)
		assert.Equal(t, []string{"v1.csv", "book.xlsx"}, Names(sources))
		assert.Equal(t, KindCSV, sources[0].Kind())
		assert.Equal(t, KindExcel, sources[1].Kind())
		assert.Equal(t, filepath.Join(fx.Dir, "v1.csv"), sources[0].(*FileSource).Task.File)
	})

	t.Run("files_dir discovery in name order", func(t *testing.T) {
		cfg := testConfig()
		cfg.DataSources.FilesDir = "."
		cfg.DataSources.Order = "name"
		sources := buildSources(t, cfg, paths)
		assert.Equal(t, []string{"book.xlsx", "v1.csv", "v2.csv"}, Names(sources))
	})

	t.Run("sheets of one workbook", func(t *testing.T) {
		cfg := testConfig()
		cfg.ActiveMode = config.ModeSheets
		cfg.DataSources.SheetsConfig = config.SheetsConfig{FilePath: book, SheetNames: []string{"Jan", "Mar"}}
		sources := buildSources(t, cfg, paths)
		assert.Equal(t, []string{"book.xlsx (Sheet: Jan)", "book.xlsx (Sheet: Mar)"}, Names(sources))

		table, err := sources[1].Load(context.Background(), []string{"id"})
		require.NoError(t, err)
		assert.Equal(t, "book.xlsx (Sheet: Mar)", table.Name)
	})

	t.Run("missing files_dir", func(t *testing.T) {
		cfg := testConfig()
		cfg.DataSources.FilesDir = "snapshots"
		_, err := BuildSources(context.Background(), cfg, paths, nil)
		require.Error(t, err)
		assert.Equal(t, errors.ErrTypeNotFound, errors.TypeOf(err))
	})

	t.Run("sheets mode rejects a csv file", func(t *testing.T) {
		cfg := testConfig()
		cfg.ActiveMode = config.ModeSheets
		cfg.DataSources.SheetsConfig = config.SheetsConfig{FilePath: "v1.csv", SheetNames: []string{"Jan", "Feb"}}
		_, err := BuildSources(context.Background(), cfg, paths, nil)
		require.Error(t, err)
		assert.Equal(t, errors.ErrTypeValidation, errors.TypeOf(err))
	})

	t.Run("unknown mode", func(t *testing.T) {
		cfg := testConfig()
		cfg.ActiveMode = "FTP"
		_, err := BuildSources(context.Background(), cfg, paths, nil)
		assert.Equal(t, errors.ErrTypeConfig, errors.TypeOf(err))
	})
}

func TestWorkflowFor(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, ""},
		{2, Comparison},
		{3, Historical},
		{12, Historical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, WorkflowFor(tt.n), "n=%d", tt.n)
	}
}
