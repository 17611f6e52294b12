package summary

import (
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-lego/pkg/lego/model"
)

type trainerSummary struct {
	w Writer
}

func (ts *trainerSummary) New() error {
	return nil
}

func (ts *trainerSummary) PreparePhase(_, _ *model.PhaseInfo) error {
	return nil
}

func (ts *trainerSummary) OnBatch(_, _ *model.PhaseInfo, _, _ time.Duration) error {
	return nil
}

func (ts *trainerSummary) OnReport(phase *model.PhaseInfo, step int64, report model.Report) error {
	err := ts.w.Report(step, phase.Name, report)
	if err != nil {
		return err
	}

	// Flush straight away so dashboards tailing the log directory see the
	// report while the run is still going.
	return errors.Wrap(ts.w.Flush(), "unable to flush summary writer")
}

func (ts *trainerSummary) AfterPhase(_ *model.PhaseInfo, _ model.Report, _ time.Duration) error {
	return nil
}

func (ts *trainerSummary) AfterCheckpoint(_ int64, _ string) error {
	return nil
}

func (ts *trainerSummary) Finish() error {
	return errors.Wrap(ts.w.Flush(), "unable to flush summary writer")
}

// TrainerSummary exposes a summary writer as a trainer option, persisting
// every aggregated report the trainer emits. The writer stays open when the
// trainer finishes, closing it is the caller's responsibility.
func TrainerSummary(w Writer) model.TrainerOption {
	return &trainerSummary{w}
}

var _ model.TrainerOption = (*trainerSummary)(nil)
