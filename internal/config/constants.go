package config

import (
	"time"

	"verdiff/pkg/contracts"
)

// Application constants
const (
	// Application Info
	AppName    = "verdiff"
	AppVersion = contracts.Version

	// Analysis defaults
	DefaultTopN = 20

	// LLM endpoint defaults (DashScope OpenAI-compatible mode)
	DefaultModelName  = "qwen-plus"
	DefaultLLMBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultAPIKeyEnv  = "DASHSCOPE_API_KEY"

	// Log Settings
	DefaultLogLevel = "info"
	DefaultLogFile  = "logs/verdiff.log"

	// Saved artifact names
	ComparisonPromptName = "precise_comparison_prompt"
	ComparisonResultName = "precise_comparison_result"
	ComparisonReportName = "Precise_Comparison_Report"
	HistoricalPromptName = "historical_trace_prompt"
	HistoricalResultName = "historical_trace_result"
	HistoricalReportName = "Historical_Trace_Report"
	DiffExportPrefix     = "diff"
	TraceExportPrefix    = "historical_trace"
	PromptsSubdirectory  = "prompts"
	ResultsSubdirectory  = "results"
	ExportsSubdirectory  = "exports"

	// Timeouts
	DefaultHTTPTimeout = 30 * time.Second

	// API Endpoints
	APIBasePath     = "/api/" + contracts.APIVersion
	DiffEndpoint    = APIBasePath + "/diff"
	TraceEndpoint   = APIBasePath + "/trace"
	HealthEndpoint  = "/healthz"
	MetricsEndpoint = "/metrics"
)

// Default system prompts sent with each workflow's user prompt.
const (
	DefaultComparisonSystemPrompt = "You are a meticulous data auditor. You receive a precise, " +
		"record-level change log between two versions of the same table. Summarize the " +
		"overall scale of change, group related changes, call out anything that looks like " +
		"a data-entry error or an unusual business event, and keep every claim traceable " +
		"to a specific key in the log."

	DefaultHistoricalSystemPrompt = "You are a senior data analyst reviewing how one tracked " +
		"value evolved across several versions of the same table. Use the ranked trace " +
		"table to identify volatile records, sustained trends and sudden jumps. Explain " +
		"which records deserve follow-up and why, citing keys and values from the table."
)
