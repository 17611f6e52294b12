package measure

import (
	"time"

	"github.com/askiada/go-lego/pkg/lego/model"
)

type trainerMeasure struct {
	Measure
}

func (tm *trainerMeasure) New() error {
	tm.AddMetric(model.StartPhase.Name, 1)
	tm.AddMetric(model.EndPhase.Name, 1)

	return nil
}

func (tm *trainerMeasure) PreparePhase(source, phase *model.PhaseInfo) error {
	tm.AddMetric(source.Name, source.Concurrent)
	tm.AddMetric(phase.Name, phase.Concurrent)

	return nil
}

func (tm *trainerMeasure) OnBatch(source, phase *model.PhaseInfo, waitDuration, computeDuration time.Duration) error {
	mt := tm.GetMetric(phase.Name)
	mt.AddComputeDuration(computeDuration)
	mt.AddWaitDuration(source.Name, waitDuration)

	return nil
}

func (tm *trainerMeasure) OnReport(_ *model.PhaseInfo, _ int64, _ model.Report) error {
	return nil
}

func (tm *trainerMeasure) AfterPhase(phase *model.PhaseInfo, _ model.Report, totalDuration time.Duration) error {
	tm.GetMetric(phase.Name).SetTotalDuration(totalDuration)

	return nil
}

func (tm *trainerMeasure) AfterCheckpoint(_ int64, _ string) error {
	return nil
}

func (tm *trainerMeasure) Finish() error {
	return nil
}

// TrainerMeasure exposes a measure as a trainer option, collecting phase
// timings while the run executes.
func TrainerMeasure(measure Measure) model.TrainerOption {
	return &trainerMeasure{measure}
}

var _ model.TrainerOption = (*trainerMeasure)(nil)
