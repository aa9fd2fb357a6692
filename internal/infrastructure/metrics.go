package infrastructure

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"verdiff/pkg/contracts/domain"
)

// MeterName scopes every instrument verdiff creates.
const MeterName = "verdiff"

// Metrics records run and request activity. Instruments are created on an
// OpenTelemetry meter whose reader exports into a Prometheus registry, so
// the same numbers are served at /metrics and written as a textfile.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	runs          metric.Int64Counter
	tablesLoaded  metric.Int64Counter
	diffEntries   metric.Int64Counter
	traceRows     metric.Int64Counter
	llmRequests   metric.Int64Counter
	httpRequests  metric.Int64Counter
	stageDuration metric.Float64Histogram
}

// NewMetrics creates a registry, the exporter bridging into it and every
// instrument.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	exporter, err := otelprom.New(
		otelprom.WithRegisterer(registry),
		otelprom.WithoutUnits(),
		otelprom.WithoutCounterSuffixes(),
		otelprom.WithoutScopeInfo(),
		otelprom.WithoutTargetInfo(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(MeterName)

	m := &Metrics{Registry: registry, provider: provider}

	if m.runs, err = meter.Int64Counter("verdiff_runs_total",
		metric.WithDescription("Analysis runs by workflow and outcome")); err != nil {
		return nil, err
	}
	if m.tablesLoaded, err = meter.Int64Counter("verdiff_tables_loaded_total",
		metric.WithDescription("Table versions loaded by source kind")); err != nil {
		return nil, err
	}
	if m.diffEntries, err = meter.Int64Counter("verdiff_diff_entries_total",
		metric.WithDescription("Diff entries produced by change kind")); err != nil {
		return nil, err
	}
	if m.traceRows, err = meter.Int64Counter("verdiff_trace_rows_total",
		metric.WithDescription("Changed keys reported by historical traces")); err != nil {
		return nil, err
	}
	if m.llmRequests, err = meter.Int64Counter("verdiff_llm_requests_total",
		metric.WithDescription("Chat completion requests by outcome")); err != nil {
		return nil, err
	}
	if m.httpRequests, err = meter.Int64Counter("verdiff_http_requests_total",
		metric.WithDescription("API requests by route and status")); err != nil {
		return nil, err
	}
	if m.stageDuration, err = meter.Float64Histogram("verdiff_stage_duration_seconds",
		metric.WithDescription("Workflow stage duration in seconds"),
		metric.WithExplicitBucketBoundaries(0.005, 0.025, 0.1, 0.5, 1, 2.5, 10, 30, 120)); err != nil {
		return nil, err
	}

	return m, nil
}

// RecordRun counts a finished run.
func (m *Metrics) RecordRun(ctx context.Context, workflow, outcome string) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.String("outcome", outcome),
	))
}

// RecordTablesLoaded counts n versions read from one kind of source.
func (m *Metrics) RecordTablesLoaded(ctx context.Context, source string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.tablesLoaded.Add(ctx, int64(n), metric.WithAttributes(attribute.String("source", source)))
}

// RecordDiff counts the entries of a diff report by kind.
func (m *Metrics) RecordDiff(ctx context.Context, report *domain.DiffReport) {
	if m == nil || report == nil {
		return
	}
	counts := map[domain.ChangeKind]int{
		domain.ChangeAdded:    report.Added,
		domain.ChangeDeleted:  report.Deleted,
		domain.ChangeModified: report.Modified,
	}
	for kind, n := range counts {
		if n == 0 {
			continue
		}
		m.diffEntries.Add(ctx, int64(n), metric.WithAttributes(attribute.String("kind", string(kind))))
	}
}

// RecordTrace counts the changed keys of a trace.
func (m *Metrics) RecordTrace(ctx context.Context, result *domain.TraceResult) {
	if m == nil || result == nil {
		return
	}
	m.traceRows.Add(ctx, int64(result.ChangedTotal))
}

// RecordLLMRequest counts one chat completion attempt.
func (m *Metrics) RecordLLMRequest(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.llmRequests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// RecordHTTPRequest counts one served API request.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.Int("status", status),
	))
}

// ObserveStage records how long a workflow stage took.
func (m *Metrics) ObserveStage(ctx context.Context, stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("stage", stage)))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// WriteToTextfile writes the current values for the node exporter textfile
// collector.
func (m *Metrics) WriteToTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}

// Shutdown stops the meter provider.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	return m.provider.Shutdown(ctx)
}
