package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"verdiff/internal/llm"
	"verdiff/internal/workflow"
)

func newRunCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the comparison or historical workflow once",
		Long: `Loads every configured version, oldest first. Two versions run the
precise comparison; three or more run the historical trace of value_column.
The prompt, the model's answer and the final report are saved under the
output directories.`,
		Example: `  verdiff run --config config.yaml
  verdiff run --files jan.csv,feb.csv --key-columns id --no-llm
  verdiff run --sheet-file book.xlsx --sheets Jan,Feb,Mar --key-columns id --value-column amount`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAnalysis(cmd, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.mode, "mode", "", "override active_mode (FILES, SHEETS, GSHEETS)")
	f.StringSliceVar(&o.files, "files", nil, "table files to compare, oldest first")
	f.StringVar(&o.filesDir, "files-dir", "", "directory whose .csv/.xlsx files are the versions")
	f.StringVar(&o.sheetFile, "sheet-file", "", "workbook whose sheets are the versions")
	f.StringSliceVar(&o.sheets, "sheets", nil, "sheet names to read from --sheet-file, oldest first")
	f.StringSliceVar(&o.keyColumns, "key-columns", nil, "columns identifying a record")
	f.StringVar(&o.valueColumn, "value-column", "", "column traced by the historical workflow")
	f.IntVar(&o.topN, "top-n", 0, "rows kept in the historical table (0 keeps all)")
	f.BoolVar(&o.exportCSV, "export-csv", false, "write CSV exports")
	f.BoolVar(&o.exportXLSX, "export-xlsx", false, "write an XLSX export of the historical table")
	f.BoolVar(&o.noLLM, "no-llm", false, "skip the model call and save the prompt as the report")

	return cmd
}

func runAnalysis(cmd *cobra.Command, o *options) error {
	ctx := cmd.Context()
	p := newPrinter(cmd.OutOrStdout())

	env, err := setup(cmd.Flags(), o)
	if err != nil {
		return err
	}
	defer env.close(context.WithoutCancel(ctx))

	if err := env.cfg.ValidateRun(); err != nil {
		return err
	}

	sources, err := workflow.BuildSources(ctx, env.cfg, env.paths, env.logger)
	if err != nil {
		return err
	}
	p.step("%d versions (%s): %s", len(sources), env.cfg.ActiveMode, strings.Join(workflow.Names(sources), " -> "))

	runOpts := []workflow.Option{
		workflow.WithLogger(env.logger),
		workflow.WithMetrics(env.metrics),
		workflow.WithTracer(env.providers.Tracer),
	}
	analyzer, err := newAnalyzer(env)
	if err != nil {
		return err
	}
	if analyzer != nil {
		runOpts = append(runOpts, workflow.WithAnalyzer(analyzer))
		p.step("analysis model: %s", env.cfg.LLM.ModelName)
	} else {
		p.warn("model call disabled, the prompt is saved as the report")
	}

	res, runErr := workflow.NewRunner(env.cfg, env.paths, runOpts...).Run(ctx, sources)

	if err := env.metrics.WriteToTextfile(env.paths.MetricsFile); err != nil {
		env.logger.WarnContext(ctx, "failed to write metrics", slog.String("error", err.Error()))
	}

	p.result(res)
	return runErr
}

// newAnalyzer returns the chat client, or nil when the model call is off.
func newAnalyzer(env *environment) (workflow.Analyzer, error) {
	if !env.cfg.LLM.Enabled {
		return nil, nil
	}

	key, err := llm.APIKeyFromEnv(env.cfg.LLM.APIKeyEnv)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(llm.Config{
		BaseURL:           env.cfg.LLM.BaseURL,
		Model:             env.cfg.LLM.ModelName,
		APIKey:            key,
		Timeout:           env.cfg.LLM.Timeout,
		MaxRetries:        env.cfg.LLM.MaxRetries,
		RequestsPerMinute: env.cfg.LLM.RequestsPerMinute,
	}, llm.WithLogger(env.logger), llm.WithRecorder(env.metrics))
	if err != nil {
		return nil, err
	}
	return client, nil
}
