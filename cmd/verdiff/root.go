package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"verdiff/internal/config"
	"verdiff/internal/infrastructure"
	"verdiff/pkg/contracts"
)

// options holds the flags shared by every command plus the run overrides.
type options struct {
	configPath string
	baseDir    string
	logLevel   string

	mode        string
	files       []string
	filesDir    string
	sheetFile   string
	sheets      []string
	keyColumns  []string
	valueColumn string
	topN        int
	exportCSV   bool
	exportXLSX  bool
	noLLM       bool

	addr string
}

func newRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   config.AppName,
		Short: "Compare versions of a table and explain what changed",
		Long: `verdiff compares two or more versions of the same table.

Two versions produce a record-level change log; more versions produce a
ranked trace of one value column. Either result is turned into a prompt for
a chat model whose answer is saved as a markdown report.`,
		Version:       contracts.GetFullVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", "", "path to config.yaml (default: ./config.yaml or ./configs/config.yaml)")
	pf.StringVar(&o.baseDir, "base-dir", "", "directory relative paths are resolved against (default: working directory)")
	pf.StringVar(&o.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")

	root.AddCommand(newRunCmd(o), newServeCmd(o))
	return root
}

// environment is everything a command needs after configuration is loaded.
type environment struct {
	cfg       *config.Config
	paths     *config.Paths
	logger    *slog.Logger
	providers *infrastructure.OTelProviders
	metrics   *infrastructure.Metrics
}

// setup loads the config, applies flag overrides and starts logging,
// tracing and metrics. close must be called when the command finishes.
func setup(flags *pflag.FlagSet, o *options) (*environment, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, flags, o)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	paths, err := cfg.ResolvePaths(o.baseDir)
	if err != nil {
		return nil, err
	}
	if err := paths.EnsureDirectories(); err != nil {
		return nil, err
	}

	cfg.Logging.FilePath = paths.LogFile
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}
	paths.LogPathResolution(logger)

	providers, err := infrastructure.InitializeOTel(infrastructure.OTelConfigFrom(cfg.Tracing), logger)
	if err != nil {
		return nil, err
	}

	metrics, err := infrastructure.NewMetrics()
	if err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, paths: paths, logger: logger, providers: providers, metrics: metrics}, nil
}

func (e *environment) close(ctx context.Context) {
	if err := e.metrics.Shutdown(ctx); err != nil {
		e.logger.WarnContext(ctx, "failed to shut down metrics", slog.String("error", err.Error()))
	}
	if err := e.providers.Shutdown(ctx); err != nil {
		e.logger.WarnContext(ctx, "failed to shut down tracing", slog.String("error", err.Error()))
	}
	infrastructure.CloseLogFile()
}

// applyOverrides copies every flag the user set onto cfg. Flags win over
// the file and the environment.
func applyOverrides(cfg *config.Config, flags *pflag.FlagSet, o *options) {
	changed := func(name string) bool {
		f := flags.Lookup(name)
		return f != nil && f.Changed
	}

	if changed("log-level") {
		cfg.Logging.Level = strings.ToLower(o.logLevel)
	}
	if changed("mode") {
		cfg.ActiveMode = strings.ToUpper(o.mode)
	}
	if changed("files") {
		cfg.DataSources.Files = o.files
		if !changed("mode") {
			cfg.ActiveMode = config.ModeFiles
		}
	}
	if changed("files-dir") {
		cfg.DataSources.FilesDir = o.filesDir
		if !changed("mode") {
			cfg.ActiveMode = config.ModeFiles
		}
	}
	if changed("sheet-file") {
		cfg.DataSources.SheetsConfig.FilePath = o.sheetFile
		if !changed("mode") {
			cfg.ActiveMode = config.ModeSheets
		}
	}
	if changed("sheets") {
		cfg.DataSources.SheetsConfig.SheetNames = o.sheets
	}
	if changed("key-columns") {
		cfg.AnalysisParams.KeyColumns = o.keyColumns
	}
	if changed("value-column") {
		cfg.AnalysisParams.ValueColumn = o.valueColumn
	}
	if changed("top-n") {
		cfg.AnalysisParams.TopN = o.topN
	}
	if changed("export-csv") {
		cfg.Output.ExportCSV = o.exportCSV
	}
	if changed("export-xlsx") {
		cfg.Output.ExportXLSX = o.exportXLSX
	}
	if changed("no-llm") && o.noLLM {
		cfg.LLM.Enabled = false
	}
	if changed("addr") {
		cfg.Server.Addr = o.addr
	}
}
