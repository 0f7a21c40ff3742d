package analysis

import (
	"math"

	"budgeteer/internal/core"
)

// anomalyThreshold flags entries whose z-score magnitude exceeds it.
const anomalyThreshold = 2.0

// Anomalies flags the entries of a per-period amount series that
// deviate more than two standard deviations from the series mean. A
// constant series flags nothing.
func Anomalies(series []core.Money) []bool {
	flags := make([]bool, len(series))
	if len(series) < 2 {
		return flags
	}

	var sum float64
	for _, m := range series {
		sum += m.Float()
	}
	mean := sum / float64(len(series))

	var variance float64
	for _, m := range series {
		d := m.Float() - mean
		variance += d * d
	}
	stdev := math.Sqrt(variance / float64(len(series)))
	if stdev == 0 {
		return flags
	}

	for i, m := range series {
		z := (m.Float() - mean) / stdev
		flags[i] = math.Abs(z) > anomalyThreshold
	}
	return flags
}
