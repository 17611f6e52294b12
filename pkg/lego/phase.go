package lego

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/askiada/go-lego/pkg/lego/model"
	"github.com/askiada/go-lego/pkg/lego/reader"
)

// runPhase streams batches of the source split into fn. The reader pumps into
// a buffered channel from its own goroutine while one or more consumers drain
// it, so reading the next batch overlaps with the model working on the
// current one. The first error on either side cancels the other. When the
// phase completes, the after phase hooks receive the aggregated report and
// the elapsed time.
func (t *Trainer[T]) runPhase(
	ctx context.Context,
	source, phase *model.PhaseInfo,
	opt reader.BatchOptions,
	fn func(ctx context.Context, batch reader.Batch[T]) error,
	report func() model.Report,
) error {
	if err := t.preparePhase(source, phase); err != nil {
		return err
	}

	phaseCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := time.Now()
	batches := make(chan reader.Batch[T], phase.BufferSize)

	sourceErrC := make(chan error, 1)

	go func() {
		defer func() {
			close(batches)
			close(sourceErrC)
		}()

		err := t.reader.Batches(phaseCtx, source.Split, opt, batches)
		if err != nil {
			sourceErrC <- err
		}
	}()

	consumeErrC := make(chan error, 1)

	go func() {
		defer close(consumeErrC)

		err := t.consume(phaseCtx, source, phase, batches, fn)
		if err != nil {
			consumeErrC <- err
		}
	}()

	err := waitForPhase(newErrorChan(source.Name, sourceErrC), newErrorChan(phase.Name, consumeErrC))
	if err != nil {
		return err
	}

	aggregated := model.Report{}
	if report != nil {
		aggregated = report()
	}

	return t.afterPhase(phase, aggregated, time.Since(start))
}

func (t *Trainer[T]) consume(
	ctx context.Context,
	source, phase *model.PhaseInfo,
	batches <-chan reader.Batch[T],
	fn func(ctx context.Context, batch reader.Batch[T]) error,
) error {
	if phase.Concurrent <= 1 {
		return t.consumeLoop(ctx, source, phase, batches, fn, 0)
	}

	errGrp, dCtx := errgroup.WithContext(ctx)
	errGrp.SetLimit(phase.Concurrent)

	for goIdx := 0; goIdx < phase.Concurrent; goIdx++ {
		localGoIdx := goIdx

		errGrp.Go(func() error {
			return t.consumeLoop(dCtx, source, phase, batches, fn, localGoIdx)
		})
	}

	return errGrp.Wait()
}

func (t *Trainer[T]) consumeLoop(
	ctx context.Context,
	source, phase *model.PhaseInfo,
	batches <-chan reader.Batch[T],
	fn func(ctx context.Context, batch reader.Batch[T]) error,
	goIdx int,
) error {
outer:
	for {
		startChan := time.Now()
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "go routine %d:", goIdx)
		case batch, ok := <-batches:
			if !ok {
				break outer
			}

			waitDuration := time.Since(startChan)

			startFn := time.Now()

			err := fn(ctx, batch)
			if err != nil {
				return errors.Wrapf(err, "go routine %d:", goIdx)
			}

			err = t.onBatch(source, phase, waitDuration, time.Since(startFn))
			if err != nil {
				return err
			}
		}
	}

	return nil
}

// preparePhase runs the prepare hooks the first time a phase name is seen.
// Run and Evaluate can visit the same phase several times, the hooks only see
// it once.
func (t *Trainer[T]) preparePhase(source, phase *model.PhaseInfo) error {
	if _, ok := t.prepared[phase.Name]; ok {
		return nil
	}

	for _, opt := range t.attached {
		err := opt.PreparePhase(source, phase)
		if err != nil {
			return errors.Wrap(err, "unable to run prepare phase hook")
		}
	}

	t.prepared[phase.Name] = struct{}{}

	return nil
}

func (t *Trainer[T]) onBatch(source, phase *model.PhaseInfo, waitDuration, computeDuration time.Duration) error {
	for _, opt := range t.attached {
		err := opt.OnBatch(source, phase, waitDuration, computeDuration)
		if err != nil {
			return errors.Wrap(err, "unable to run batch hook")
		}
	}

	return nil
}

func (t *Trainer[T]) onReport(phase *model.PhaseInfo, step int64, report model.Report) error {
	if len(report) == 0 {
		return nil
	}

	for _, opt := range t.attached {
		err := opt.OnReport(phase, step, report)
		if err != nil {
			return errors.Wrap(err, "unable to run report hook")
		}
	}

	return nil
}

func (t *Trainer[T]) afterPhase(phase *model.PhaseInfo, report model.Report, totalDuration time.Duration) error {
	for _, opt := range t.attached {
		err := opt.AfterPhase(phase, report, totalDuration)
		if err != nil {
			return errors.Wrap(err, "unable to run after phase hook")
		}
	}

	return nil
}

func (t *Trainer[T]) afterCheckpoint(step int64, path string) error {
	for _, opt := range t.attached {
		err := opt.AfterCheckpoint(step, path)
		if err != nil {
			return errors.Wrap(err, "unable to run checkpoint hook")
		}
	}

	return nil
}
