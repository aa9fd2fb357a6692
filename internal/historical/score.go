package historical

import "math"

// ScoreWeights balances change frequency against change magnitude.
type ScoreWeights struct {
	ModificationCount float64 `yaml:"modification_count" json:"modification_count" envconfig:"MODIFICATION_COUNT" validate:"gte=0"`
	MaxPercentChange  float64 `yaml:"max_percent_change" json:"max_percent_change" envconfig:"MAX_PERCENT_CHANGE" validate:"gte=0"`
}

// DefaultScoreWeights returns the 0.6 / 0.4 weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{ModificationCount: 0.6, MaxPercentChange: 0.4}
}

// IsZero reports whether no weight is set.
func (w ScoreWeights) IsZero() bool {
	return w.ModificationCount == 0 && w.MaxPercentChange == 0
}

// AnomalyScore combines the modification count with the largest finite
// absolute percent change, expressed as a fraction. Infinite percent
// changes are left out of the maximum.
func (w ScoreWeights) AnomalyScore(modificationCount int, percentChanges []float64) float64 {
	return w.ModificationCount*float64(modificationCount) + w.MaxPercentChange*(MaxFinitePercent(percentChanges)/100)
}

// MaxFinitePercent returns the largest |p| over the finite entries, or 0.
func MaxFinitePercent(percentChanges []float64) float64 {
	max := 0.0
	for _, p := range percentChanges {
		if math.IsInf(p, 0) || math.IsNaN(p) {
			continue
		}
		if a := math.Abs(p); a > max {
			max = a
		}
	}
	return max
}

// Deltas returns v[i] - v[i-1] for each consecutive pair.
func Deltas(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		out[i-1] = values[i] - values[i-1]
	}
	return out
}

// PercentChanges returns the step-wise change in percent. A step from zero
// is +Inf regardless of direction.
func PercentChanges(values []float64) []float64 {
	if len(values) < 2 {
		return []float64{}
	}
	out := make([]float64, len(values)-1)
	for i := 1; i < len(values); i++ {
		prev := values[i-1]
		if prev == 0 {
			out[i-1] = math.Inf(1)
			continue
		}
		out[i-1] = (values[i] - prev) / prev * 100
	}
	return out
}

// DistinctCount returns the number of distinct values.
func DistinctCount(values []float64) int {
	seen := make(map[float64]struct{}, len(values))
	for _, v := range values {
		seen[v] = struct{}{}
	}
	return len(seen)
}
