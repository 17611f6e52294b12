package model

import "sort"

// Report maps metric names to values for one batch or one aggregation window.
// The framework never interprets the values beyond averaging them, except for
// the metric selected to rank checkpoints.
type Report map[string]float64

// Clone returns an independent copy of the report.
func (r Report) Clone() Report {
	out := make(Report, len(r))
	for k, v := range r {
		out[k] = v
	}

	return out
}

// Keys returns the metric names in lexical order.
func (r Report) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}

// Average accumulates weighted reports and yields their mean. Batches carry
// their size as weight, so a trailing partial batch does not skew the result.
type Average struct {
	sums    map[string]float64
	weights map[string]float64
}

// NewAverage creates an empty accumulator.
func NewAverage() *Average {
	return &Average{
		sums:    make(map[string]float64),
		weights: make(map[string]float64),
	}
}

// Add accumulates a report with the given weight. Keys missing from a report
// simply do not contribute to that key's mean.
func (a *Average) Add(r Report, weight float64) {
	for k, v := range r {
		a.sums[k] += v * weight
		a.weights[k] += weight
	}
}

// Mean returns the weighted mean of everything accumulated since the last
// reset.
func (a *Average) Mean() Report {
	out := make(Report, len(a.sums))

	for k, sum := range a.sums {
		if w := a.weights[k]; w != 0 {
			out[k] = sum / w
		}
	}

	return out
}

// Reset clears the accumulator.
func (a *Average) Reset() {
	a.sums = make(map[string]float64)
	a.weights = make(map[string]float64)
}
