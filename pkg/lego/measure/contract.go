// Package measure collects timing metrics while a run executes.
// Attached as a trainer option, it records how long each phase spends
// computing batches and how long it waits on its source, which is usually
// enough to tell whether a run is model bound or reader bound.
package measure

import "time"

type Measure interface {
	AddMetric(name string, concurrent int) Metric
	GetMetric(name string) Metric
	AllMetrics() map[string]Metric
}

type Metric interface {
	AddComputeDuration(elapsed time.Duration)
	AddWaitDuration(sourceName string, elapsed time.Duration)
	AVGComputeDuration() time.Duration
	AVGWaitDuration() map[string]*WaitInfo
	SetTotalDuration(endDuration time.Duration)
	GetTotalDuration() time.Duration
	AllWaits() map[string]*WaitInfo
}
