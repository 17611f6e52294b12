// Package summary persists scalar metrics for external dashboards.
// The trainer emits aggregated reports through the TrainerSummary option and
// the writer appends them to a log directory that a dashboard such as
// TensorBoard can tail while the run is still going.
package summary

import "github.com/askiada/go-lego/pkg/lego/model"

// Writer is an interface that defines the methods for persisting summaries.
type Writer interface {
	// Scalar records one tagged value at a step.
	Scalar(step int64, tag string, value float64) error
	// Report records every metric of a report at a step, tags are prefixed
	// with prefix when it is not empty.
	Report(step int64, prefix string, report model.Report) error
	// Flush pushes pending records to disk.
	Flush() error
	// Close flushes pending records and releases the writer.
	Close() error
}
