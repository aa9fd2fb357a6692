package historical

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdiff/pkg/contracts/domain"
)

func TestRenderMarkdown_Empty(t *testing.T) {
	assert.Equal(t, NoChangesMessage, RenderMarkdown(&domain.TraceResult{KeyColumns: []string{"id"}}))
	assert.Equal(t, NoChangesMessage, RenderMarkdown(nil))
}

func TestRenderMarkdown_Golden(t *testing.T) {
	result := &domain.TraceResult{
		KeyColumns: []string{"region", "sku"},
		Trajectories: []domain.Trajectory{
			{
				Key:               domain.Key{"N", "001"},
				Values:            []float64{0, 5, 2.5},
				Deltas:            []float64{5, -2.5},
				PercentChanges:    []float64{math.Inf(1), -50},
				Latest:            2.5,
				ModificationCount: 2,
				AnomalyScore:      1.4,
			},
			{
				Key:               domain.Key{"S", "002"},
				Values:            []float64{10, 12},
				Deltas:            []float64{2},
				PercentChanges:    []float64{20},
				Latest:            12,
				ModificationCount: 1,
				AnomalyScore:      0.68,
			},
		},
	}

	want := strings.Join([]string{
		"| region | sku | Value Trajectory | Latest Value | Delta Trajectory | Percent Change Trajectory (%) | Total Modifications | Anomaly Score |",
		"| --- | --- | --- | --- | --- | --- | --- | --- |",
		"| N | 001 | 0.00 -> 5.00 -> 2.50 | 2.50 | +5.00 -> -2.50 | ∞ -> -50.00% | 2 | 1.40 |",
		"| S | 002 | 10.00 -> 12.00 | 12.00 | +2.00 | +20.00% | 1 | 0.68 |",
	}, "\n")

	assert.Equal(t, want, RenderMarkdown(result))
}

func TestRenderMarkdown_FromTrace(t *testing.T) {
	result, err := Trace(versions(map[string][]string{
		"a": {"10", "5", "5"},
		"b": {"0", "0", "5"},
	}), []string{"id"}, "value")
	require.NoError(t, err)

	lines := strings.Split(RenderMarkdown(result), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "| a | 10.00 -> 5.00 -> 5.00 | 5.00 | -5.00 -> +0.00 | -50.00% -> +0.00% | 1 | 0.80 |", lines[2])
	assert.Equal(t, "| b | 0.00 -> 0.00 -> 5.00 | 5.00 | +0.00 -> +5.00 | ∞ -> ∞ | 1 | 0.60 |", lines[3])
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, NoChangeMarker, FormatDeltas(nil))
	assert.Equal(t, NoChangeMarker, FormatPercentChanges([]float64{}))
	assert.Equal(t, "∞", FormatPercentChanges([]float64{math.Inf(-1)}))
	assert.Equal(t, "-0.50", FormatFloat(-0.5))
	assert.Equal(t, "1.00 -> 2.00", FormatValues([]float64{1, 2}))
}
