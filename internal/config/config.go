package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"verdiff/internal/dataprocessing"
	"verdiff/internal/errors"
	"verdiff/internal/files"
	"verdiff/internal/historical"
)

// Source modes selecting how analysis tasks are built.
const (
	ModeFiles   = "FILES"
	ModeSheets  = "SHEETS"
	ModeGSheets = "GSHEETS"
)

// EnvPrefix namespaces every environment override, e.g. VERDIFF_LLM_MODEL_NAME.
const EnvPrefix = "VERDIFF"

// Config represents the complete application configuration
type Config struct {
	ActiveMode     string         `yaml:"active_mode" envconfig:"ACTIVE_MODE" validate:"required,oneof=FILES SHEETS GSHEETS"`
	DataSources    DataSources    `yaml:"data_sources" envconfig:"DATA_SOURCES"`
	AnalysisParams AnalysisParams `yaml:"analysis_params" envconfig:"ANALYSIS"`
	LLM            LLMConfig      `yaml:"llm" envconfig:"LLM"`
	Output         OutputConfig   `yaml:"output" envconfig:"OUTPUT"`
	Server         ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Logging        LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Tracing        TracingConfig  `yaml:"tracing" envconfig:"TRACING"`
}

// DataSources lists where the table versions come from, oldest first.
type DataSources struct {
	Files        []string           `yaml:"files" envconfig:"FILES"`
	FilesDir     string             `yaml:"files_dir" envconfig:"FILES_DIR"`
	Order        files.Ordering     `yaml:"order" envconfig:"ORDER" validate:"omitempty,oneof=name mtime"`
	SheetsConfig SheetsConfig       `yaml:"sheets_config" envconfig:"SHEETS"`
	GoogleSheets GoogleSheetsConfig `yaml:"google_sheets" envconfig:"GSHEETS"`
}

// SheetsConfig names one workbook and the sheets to read from it in order.
type SheetsConfig struct {
	FilePath   string   `yaml:"file_path" envconfig:"FILE_PATH"`
	SheetNames []string `yaml:"sheet_names" envconfig:"SHEET_NAMES"`
}

// GoogleSheetsConfig names one spreadsheet and the tabs to read from it.
type GoogleSheetsConfig struct {
	SpreadsheetID   string   `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	SheetNames      []string `yaml:"sheet_names" envconfig:"SHEET_NAMES"`
	CredentialsFile string   `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

// AnalysisParams drives the comparison and the historical trace.
type AnalysisParams struct {
	KeyColumns      []string                       `yaml:"key_columns" envconfig:"KEY_COLUMNS" validate:"dive,required"`
	ValueColumn     string                         `yaml:"value_column" envconfig:"VALUE_COLUMN"`
	TopN            int                            `yaml:"top_n_for_analysis" envconfig:"TOP_N" validate:"gte=0"`
	FormattingRules dataprocessing.FormattingRules `yaml:"formatting_rules" ignored:"true" validate:"dive"`
	ScoreWeights    historical.ScoreWeights        `yaml:"score_weights" envconfig:"SCORE_WEIGHTS"`
}

// LLMConfig configures the chat-completions endpoint.
type LLMConfig struct {
	Enabled           bool          `yaml:"enabled" envconfig:"ENABLED"`
	ModelName         string        `yaml:"model_name" envconfig:"MODEL_NAME" validate:"required_if=Enabled true"`
	BaseURL           string        `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	APIKeyEnv         string        `yaml:"api_key_env" envconfig:"API_KEY_ENV"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	MaxRetries        int           `yaml:"max_retries" envconfig:"MAX_RETRIES" validate:"gte=0,lte=10"`
	RequestsPerMinute int           `yaml:"requests_per_minute" envconfig:"REQUESTS_PER_MINUTE" validate:"gt=0"`
	SystemPrompts     SystemPrompts `yaml:"system_prompts" envconfig:"SYSTEM_PROMPTS"`
}

// SystemPrompts holds the system message for each workflow.
type SystemPrompts struct {
	Comparison string `yaml:"comparison" envconfig:"COMPARISON"`
	Historical string `yaml:"historical" envconfig:"HISTORICAL"`
}

// OutputConfig contains output locations and optional exports.
type OutputConfig struct {
	LogDirectory    string `yaml:"log_directory" envconfig:"LOG_DIRECTORY" validate:"required"`
	ReportDirectory string `yaml:"report_directory" envconfig:"REPORT_DIRECTORY" validate:"required"`
	ExportCSV       bool   `yaml:"export_csv" envconfig:"EXPORT_CSV"`
	ExportXLSX      bool   `yaml:"export_xlsx" envconfig:"EXPORT_XLSX"`
	MetricsFile     string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string          `yaml:"addr" envconfig:"ADDR" validate:"required"`
	ReadTimeout     time.Duration   `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration   `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration   `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes" envconfig:"MAX_BODY_BYTES" validate:"gt=0"`
	RateLimit       RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gt=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=1"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TracingConfig selects the OpenTelemetry span exporter.
type TracingConfig struct {
	Exporter    string  `yaml:"exporter" envconfig:"EXPORTER" validate:"oneof=none stdout"`
	SampleRatio float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Load builds the configuration: defaults, then the YAML file at path (or
// the first well-known location when path is empty), then VERDIFF_*
// environment overrides. The result is validated before it is returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = getConfigFilePath()
	}
	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			if os.IsNotExist(err) && explicit {
				return nil, errors.NewNotFoundError(fmt.Sprintf("config file %s", path))
			}
			if !os.IsNotExist(err) {
				return nil, errors.NewConfigError(fmt.Sprintf("failed to load config from %s", path), err)
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, errors.NewConfigError("failed to load config from env", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile overlays the YAML document at filePath onto c.
func (c *Config) loadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

// normalize applies fallbacks for values a file may blank out.
func (c *Config) normalize() {
	c.ActiveMode = strings.ToUpper(strings.TrimSpace(c.ActiveMode))
	if c.ActiveMode == "" {
		c.ActiveMode = ModeFiles
	}
	if c.DataSources.Order == "" {
		c.DataSources.Order = files.OrderByName
	}
	if c.AnalysisParams.ScoreWeights.IsZero() {
		c.AnalysisParams.ScoreWeights = historical.DefaultScoreWeights()
	}
	if c.LLM.APIKeyEnv == "" {
		c.LLM.APIKeyEnv = DefaultAPIKeyEnv
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = DefaultLLMBaseURL
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}
}

// Validate checks struct tags and the rules that span several fields.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.NewConfigError("config validation failed", err)
	}

	for _, key := range c.AnalysisParams.KeyColumns {
		if key == c.AnalysisParams.ValueColumn {
			return errors.NewConfigError(fmt.Sprintf("value_column %q is also a key column", key), nil)
		}
	}

	for col, rule := range c.AnalysisParams.FormattingRules {
		if rule.Type == dataprocessing.RuleZFill && rule.Width <= 0 {
			return errors.NewConfigError(fmt.Sprintf("formatting rule for %q: zfill needs a positive width", col), nil)
		}
	}

	return nil
}

// ValidateRun checks what a batch run needs on top of Validate: key
// columns and a complete source list for the active mode.
func (c *Config) ValidateRun() error {
	if len(c.AnalysisParams.KeyColumns) == 0 {
		return errors.NewConfigError("analysis_params.key_columns must name at least one column", nil)
	}

	ds := c.DataSources
	switch c.ActiveMode {
	case ModeFiles:
		if ds.FilesDir == "" && len(ds.Files) < 2 {
			return errors.NewConfigError("FILES mode needs at least two data_sources.files or a files_dir", nil)
		}
	case ModeSheets:
		if ds.SheetsConfig.FilePath == "" || len(ds.SheetsConfig.SheetNames) < 2 {
			return errors.NewConfigError("SHEETS mode needs sheets_config.file_path and at least two sheet_names", nil)
		}
	case ModeGSheets:
		gs := ds.GoogleSheets
		if gs.SpreadsheetID == "" || len(gs.SheetNames) < 2 {
			return errors.NewConfigError("GSHEETS mode needs google_sheets.spreadsheet_id and at least two sheet_names", nil)
		}
		if gs.CredentialsFile == "" {
			return errors.NewConfigError("GSHEETS mode needs google_sheets.credentials_file", nil)
		}
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		ActiveMode: ModeFiles,
		DataSources: DataSources{
			Order: files.OrderByName,
		},
		AnalysisParams: AnalysisParams{
			TopN:            DefaultTopN,
			FormattingRules: dataprocessing.FormattingRules{},
			ScoreWeights:    historical.DefaultScoreWeights(),
		},
		LLM: LLMConfig{
			Enabled:           true,
			ModelName:         DefaultModelName,
			BaseURL:           DefaultLLMBaseURL,
			APIKeyEnv:         DefaultAPIKeyEnv,
			Timeout:           120 * time.Second,
			MaxRetries:        3,
			RequestsPerMinute: 30,
			SystemPrompts: SystemPrompts{
				Comparison: DefaultComparisonSystemPrompt,
				Historical: DefaultHistoricalSystemPrompt,
			},
		},
		Output: OutputConfig{
			LogDirectory:    "logs",
			ReportDirectory: "reports",
			ExportCSV:       true,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    32 << 20,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     20,
				Burst:   40,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: DefaultLogFile,
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			SampleRatio: 1.0,
		},
	}
}
