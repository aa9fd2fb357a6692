package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains every directory and file a run writes to or reads from.
// Relative entries in the config are resolved against BaseDir.
type Paths struct {
	BaseDir         string
	LogsDir         string
	PromptsDir      string
	ResultsDir      string
	ReportsDir      string
	ExportsDir      string
	LogFile         string
	MetricsFile     string
	CredentialsFile string
}

// ResolvePaths anchors the configured output locations at baseDir. An empty
// baseDir means the current working directory.
func (c *Config) ResolvePaths(baseDir string) (*Paths, error) {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		baseDir = wd
	}

	logsDir := resolve(baseDir, c.Output.LogDirectory)
	reportsDir := resolve(baseDir, c.Output.ReportDirectory)

	return &Paths{
		BaseDir:         baseDir,
		LogsDir:         logsDir,
		PromptsDir:      filepath.Join(logsDir, PromptsSubdirectory),
		ResultsDir:      filepath.Join(logsDir, ResultsSubdirectory),
		ReportsDir:      reportsDir,
		ExportsDir:      filepath.Join(reportsDir, ExportsSubdirectory),
		LogFile:         resolve(baseDir, c.Logging.FilePath),
		MetricsFile:     resolve(baseDir, c.Output.MetricsFile),
		CredentialsFile: resolve(baseDir, c.DataSources.GoogleSheets.CredentialsFile),
	}, nil
}

// ResolveSource anchors a configured input path (file, workbook or
// directory) the same way output paths are anchored.
func (p *Paths) ResolveSource(path string) string {
	return resolve(p.BaseDir, path)
}

// EnsureDirectories creates all required directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.LogsDir,
		p.PromptsDir,
		p.ResultsDir,
		p.ReportsDir,
		p.ExportsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %v", dir, err)
		}
	}

	return nil
}

// LogPathResolution logs the resolved locations for debugging
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		return
	}

	logger.Debug("path resolution summary",
		slog.Group("directories",
			slog.String("base", p.BaseDir),
			slog.String("logs", p.LogsDir),
			slog.String("prompts", p.PromptsDir),
			slog.String("results", p.ResultsDir),
			slog.String("reports", p.ReportsDir),
			slog.String("exports", p.ExportsDir),
		),
		slog.Group("files",
			slog.String("log", p.LogFile),
			slog.String("metrics", p.MetricsFile),
			slog.String("credentials", p.CredentialsFile),
		))
}

func resolve(baseDir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}
