package drawer

import (
	"time"

	"github.com/pkg/errors"

	"github.com/askiada/go-lego/pkg/lego/measure"
	"github.com/askiada/go-lego/pkg/lego/model"
)

type trainerDrawer struct {
	Drawer
	m         measure.Measure
	startTime time.Time
}

func (td *trainerDrawer) New() error {
	err := td.AddPhase(model.StartPhase.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add start phase to drawer")
	}
	err = td.AddPhase(model.EndPhase.Name)
	if err != nil {
		return errors.Wrap(err, "unable to add end phase to drawer")
	}

	return nil
}

func (td *trainerDrawer) PreparePhase(source, phase *model.PhaseInfo) error {
	err := td.AddPhase(source.Name)
	if err != nil {
		return err
	}
	err = td.AddPhase(phase.Name)
	if err != nil {
		return err
	}
	err = td.AddLink(model.StartPhase.Name, source.Name)
	if err != nil {
		return err
	}
	err = td.AddLink(source.Name, phase.Name)
	if err != nil {
		return err
	}
	err = td.AddLink(phase.Name, model.EndPhase.Name)
	if err != nil {
		return err
	}

	return nil
}

func (td *trainerDrawer) OnBatch(_, _ *model.PhaseInfo, _, _ time.Duration) error {
	return nil
}

func (td *trainerDrawer) OnReport(_ *model.PhaseInfo, _ int64, _ model.Report) error {
	return nil
}

func (td *trainerDrawer) AfterPhase(_ *model.PhaseInfo, _ model.Report, _ time.Duration) error {
	return nil
}

func (td *trainerDrawer) AfterCheckpoint(_ int64, _ string) error {
	return nil
}

func (td *trainerDrawer) Finish() error {
	if td.m != nil {
		err := td.SetTotalTime(model.EndPhase.Name, td.startTime)
		if err != nil {
			return errors.Wrap(err, "unable to set total time")
		}
		err = td.AddMeasure(td.m)
		if err != nil {
			return errors.Wrap(err, "unable to add measure")
		}
	}

	err := td.Draw()
	if err != nil {
		return errors.Wrap(err, "unable to draw run")
	}

	return nil
}

// TrainerDrawer exposes a drawer as a trainer option. The run graph is drawn
// when the trainer finishes, annotated with the timings collected by measure
// when one is given.
func TrainerDrawer(drawer Drawer, measure measure.Measure) model.TrainerOption {
	return &trainerDrawer{drawer, measure, time.Now()}
}

var _ model.TrainerOption = (*trainerDrawer)(nil)
