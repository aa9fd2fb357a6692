package dataprocessing

import (
	"context"
	"log/slog"
	"strings"

	"verdiff/internal/comparison"
	"verdiff/pkg/contracts/domain"
)

// Summarizer profiles loaded versions so that data problems show up in the
// logs before a trace quietly drops them.
type Summarizer struct {
	logger *slog.Logger
}

// VersionProfile describes one version's tracked column.
// Blank and Unparseable cells are treated as missing points by the trace.
type VersionProfile struct {
	Source      string `json:"source"`
	Rows        int    `json:"rows"`
	Columns     int    `json:"columns"`
	HasValue    bool   `json:"has_value_column"`
	Numeric     int    `json:"numeric"`
	Blank       int    `json:"blank"`
	Unparseable int    `json:"unparseable"`
}

// NewSummarizer creates a summarizer. A nil logger falls back to
// slog.Default().
func NewSummarizer(logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{logger: logger.With(slog.String("component", "summarizer"))}
}

// Profile counts how the cells of valueColumn parse in t.
func (s *Summarizer) Profile(ctx context.Context, t *domain.Table, valueColumn string) VersionProfile {
	p := VersionProfile{
		Source:   t.Name,
		Rows:     len(t.Records),
		Columns:  len(t.ColumnNames()),
		HasValue: valueColumn != "" && t.HasColumn(valueColumn),
	}
	if p.HasValue {
		for _, rec := range t.Records {
			v := rec.Get(valueColumn)
			switch {
			case strings.TrimSpace(v) == "":
				p.Blank++
			case isNumber(v):
				p.Numeric++
			default:
				p.Unparseable++
			}
		}
	}

	attrs := []any{
		slog.String("source", p.Source),
		slog.Int("rows", p.Rows),
		slog.Int("numeric", p.Numeric),
		slog.Int("blank", p.Blank),
		slog.Int("unparseable", p.Unparseable),
	}
	switch {
	case valueColumn != "" && !p.HasValue:
		s.logger.WarnContext(ctx, "version has no tracked column", append(attrs, slog.String("column", valueColumn))...)
	case p.Unparseable > 0:
		s.logger.WarnContext(ctx, "tracked column has non-numeric cells", attrs...)
	default:
		s.logger.DebugContext(ctx, "version profiled", attrs...)
	}
	return p
}

// ProfileAll profiles every table in order.
func (s *Summarizer) ProfileAll(ctx context.Context, tables []*domain.Table, valueColumn string) []VersionProfile {
	out := make([]VersionProfile, len(tables))
	for i, t := range tables {
		out[i] = s.Profile(ctx, t, valueColumn)
	}
	return out
}

func isNumber(v string) bool {
	_, ok := comparison.ParseNumber(v)
	return ok
}
