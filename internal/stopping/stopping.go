// Package stopping tracks the best observed value of a metric and decides when
// a run stopped improving.
package stopping

// Mode states whether smaller or bigger observations count as improvements.
type Mode int

const (
	// Min treats smaller observations as better (losses).
	Min Mode = iota
	// Max treats bigger observations as better (accuracies).
	Max
)

// Monitor observes a metric once per evaluation and reports improvements and
// patience exhaustion. The zero value is not usable, use NewMonitor.
type Monitor struct {
	mode     Mode
	patience int
	minDelta float64
	best     float64
	bestSet  bool
	bad      int
}

// NewMonitor creates a monitor. A patience of zero or less disables stopping,
// the monitor then only tracks the best observation. minDelta is the smallest
// change that counts as an improvement.
func NewMonitor(mode Mode, patience int, minDelta float64) *Monitor {
	if minDelta < 0 {
		minDelta = -minDelta
	}

	return &Monitor{
		mode:     mode,
		patience: patience,
		minDelta: minDelta,
	}
}

// Observe records one observation. It returns whether the observation improved
// on the best so far and whether the caller should stop.
func (m *Monitor) Observe(value float64) (improved, stop bool) {
	switch {
	case !m.bestSet:
		improved = true
	case m.mode == Min:
		improved = value < m.best-m.minDelta
	default:
		improved = value > m.best+m.minDelta
	}

	if improved {
		m.best = value
		m.bestSet = true
		m.bad = 0

		return true, false
	}

	m.bad++

	return false, m.patience > 0 && m.bad >= m.patience
}

// Best returns the best observation so far, false when nothing was observed.
func (m *Monitor) Best() (float64, bool) {
	return m.best, m.bestSet
}

// Reset seeds the monitor with a known best, typically restored from a
// checkpoint, and clears the patience counter.
func (m *Monitor) Reset(best float64) {
	m.best = best
	m.bestSet = true
	m.bad = 0
}
