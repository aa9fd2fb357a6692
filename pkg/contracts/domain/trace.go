package domain

// Trajectory is the history of the tracked value for one key across the
// versions in which it parsed, plus the measures derived from it.
//
// PercentChanges holds +Inf where the prior value was zero. Attributes
// carries the last observed value of every other non-key column.
type Trajectory struct {
	Key               Key               `json:"key"`
	Values            []float64         `json:"values"`
	Deltas            []float64         `json:"deltas"`
	PercentChanges    []float64         `json:"-"`
	Latest            float64           `json:"latest"`
	ModificationCount int               `json:"modification_count"`
	AnomalyScore      float64           `json:"anomaly_score"`
	Attributes        map[string]string `json:"attributes,omitempty"`
}

// TraceResult is the ranked output of a multi-version trace.
// ChangedTotal counts every key that changed, before any top-N cut.
type TraceResult struct {
	KeyColumns   []string     `json:"key_columns"`
	ValueColumn  string       `json:"value_column"`
	Versions     int          `json:"versions"`
	ChangedTotal int          `json:"changed_total"`
	Trajectories []Trajectory `json:"trajectories"`
}

// Len returns the number of ranked trajectories.
func (r *TraceResult) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Trajectories)
}
