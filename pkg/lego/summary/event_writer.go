package summary

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-lego/internal/tfevents"
	"github.com/askiada/go-lego/pkg/lego/model"
)

// EventWriter writes summaries as TensorBoard event files.
type EventWriter struct {
	mu sync.Mutex
	w  *tfevents.Writer
}

// NewEventWriter creates a writer appending to a new event file in logDir.
func NewEventWriter(logDir string) (*EventWriter, error) {
	w, err := tfevents.Create(logDir)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create event writer")
	}

	return &EventWriter{w: w}, nil
}

// Path returns the location of the underlying event file.
func (ew *EventWriter) Path() string {
	return ew.w.Path()
}

// Scalar records one tagged value at a step.
func (ew *EventWriter) Scalar(step int64, tag string, value float64) error {
	return ew.write(step, []tfevents.Value{{Tag: tag, SimpleValue: value}})
}

// Report records every metric of a report at a step. Tags are emitted in
// lexical order, prefixed with prefix when it is not empty. Empty reports are
// skipped.
func (ew *EventWriter) Report(step int64, prefix string, report model.Report) error {
	if len(report) == 0 {
		return nil
	}

	values := make([]tfevents.Value, 0, len(report))

	for _, key := range report.Keys() {
		tag := key
		if prefix != "" {
			tag = prefix + "/" + key
		}

		values = append(values, tfevents.Value{Tag: tag, SimpleValue: report[key]})
	}

	return ew.write(step, values)
}

func (ew *EventWriter) write(step int64, values []tfevents.Value) error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	event := tfevents.Event{
		WallTime: float64(time.Now().UnixNano()) / float64(time.Second),
		Step:     step,
		Values:   values,
	}

	return errors.Wrap(ew.w.WriteEvent(event), "unable to write summary event")
}

// Flush pushes pending records to disk.
func (ew *EventWriter) Flush() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	return ew.w.Flush()
}

// Close flushes pending records and closes the event file.
func (ew *EventWriter) Close() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	return ew.w.Close()
}

var _ Writer = (*EventWriter)(nil)
