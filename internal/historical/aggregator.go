package historical

import (
	"io"
	"log/slog"
	"sort"

	"verdiff/internal/comparison"
	"verdiff/internal/errors"
	"verdiff/pkg/contracts/domain"
)

type traceOptions struct {
	topN    int
	weights ScoreWeights
	logger  *slog.Logger
}

// Option configures Trace.
type Option func(*traceOptions)

// WithTopN keeps only the n highest ranked keys. n <= 0 keeps all.
func WithTopN(n int) Option {
	return func(o *traceOptions) {
		o.topN = n
	}
}

// WithWeights overrides the anomaly score weights. Zero weights are ignored.
func WithWeights(w ScoreWeights) Option {
	return func(o *traceOptions) {
		if !w.IsZero() {
			o.weights = w
		}
	}
}

// WithLogger sets the logger used for progress counts.
func WithLogger(logger *slog.Logger) Option {
	return func(o *traceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// series accumulates one key's observations during the fold.
type series struct {
	key        domain.Key
	values     []float64
	attributes map[string]string
}

// Trace aggregates the tracked column of tables (oldest first) by key and
// returns the keys whose value changed, ranked by anomaly score.
//
// A cell that does not parse as a number is a missing point for that
// version. Every other non-key column keeps the value of the last version
// that contained the key.
func Trace(tables []*domain.Table, keyColumns []string, valueColumn string, opts ...Option) (*domain.TraceResult, error) {
	o := traceOptions{
		weights: DefaultScoreWeights(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With(slog.String("component", "historical_trace"))

	result := &domain.TraceResult{
		KeyColumns:   append([]string(nil), keyColumns...),
		ValueColumn:  valueColumn,
		Versions:     len(tables),
		Trajectories: []domain.Trajectory{},
	}
	if len(tables) == 0 {
		return result, nil
	}

	logger.Debug("aggregating versions", slog.Int("versions", len(tables)))

	isKey := make(map[string]bool, len(keyColumns))
	for _, k := range keyColumns {
		isKey[k] = true
	}

	index := make(map[string]*series)
	var order []*series
	for _, t := range tables {
		if len(keyColumns) == 0 {
			return nil, errors.NewSchemaError(t.Name, []string{"<key columns>"})
		}
		if missing := t.MissingColumns(keyColumns); len(missing) > 0 {
			return nil, errors.NewSchemaError(t.Name, missing)
		}
		hasValue := t.HasColumn(valueColumn)
		columns := t.ColumnNames()

		seen := make(map[string]struct{}, len(t.Records))
		for _, rec := range t.Records {
			key := domain.KeyOf(rec, keyColumns)
			id := key.ID()
			if _, dup := seen[id]; dup {
				return nil, errors.NewDuplicateKeyError(t.Name, key.Format(keyColumns))
			}
			seen[id] = struct{}{}

			s, ok := index[id]
			if !ok {
				s = &series{key: key, attributes: make(map[string]string)}
				index[id] = s
				order = append(order, s)
			}

			if hasValue {
				if v, ok := comparison.ParseNumber(rec.Get(valueColumn)); ok {
					s.values = append(s.values, v)
				}
			}
			for _, col := range columns {
				if isKey[col] || col == valueColumn {
					continue
				}
				s.attributes[col] = rec.Get(col)
			}
		}
	}

	for _, s := range order {
		distinct := DistinctCount(s.values)
		if distinct < 2 {
			continue
		}
		pct := PercentChanges(s.values)
		modCount := distinct - 1
		result.Trajectories = append(result.Trajectories, domain.Trajectory{
			Key:               s.key,
			Values:            s.values,
			Deltas:            Deltas(s.values),
			PercentChanges:    pct,
			Latest:            s.values[len(s.values)-1],
			ModificationCount: modCount,
			AnomalyScore:      o.weights.AnomalyScore(modCount, pct),
			Attributes:        s.attributes,
		})
	}

	sortTrajectories(result.Trajectories)
	result.ChangedTotal = len(result.Trajectories)

	logger.Info("trace table built",
		slog.Int("keys", len(order)),
		slog.Int("changed", result.ChangedTotal),
	)

	if o.topN > 0 && len(result.Trajectories) > o.topN {
		result.Trajectories = result.Trajectories[:o.topN]
		logger.Info("kept top ranked records", slog.Int("top_n", o.topN))
	}

	return result, nil
}

// sortTrajectories orders by anomaly score, then modification count, both
// descending, then by key.
func sortTrajectories(ts []domain.Trajectory) {
	sort.SliceStable(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if a.AnomalyScore != b.AnomalyScore {
			return a.AnomalyScore > b.AnomalyScore
		}
		if a.ModificationCount != b.ModificationCount {
			return a.ModificationCount > b.ModificationCount
		}
		return a.Key.Less(b.Key)
	})
}
