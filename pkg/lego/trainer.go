package lego

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/askiada/go-lego/internal/ctxlog"
	"github.com/askiada/go-lego/internal/runmeta"
	"github.com/askiada/go-lego/internal/stopping"
	"github.com/askiada/go-lego/pkg/lego/checkpoint"
	"github.com/askiada/go-lego/pkg/lego/config"
	"github.com/askiada/go-lego/pkg/lego/model"
	"github.com/askiada/go-lego/pkg/lego/reader"
	"github.com/askiada/go-lego/pkg/lego/summary"
)

// Model is the user supplied computation of a run. The trainer feeds it one
// batch at a time and never looks inside, parameters and gradients are
// entirely the model's business.
type Model[T any] interface {
	// Train consumes one batch, updates the parameters and reports weighted
	// metrics.
	Train(ctx context.Context, batch reader.Batch[T]) (model.Report, error)
	// Evaluate scores one batch without updating the parameters. It must be
	// safe for concurrent use when eval concurrency is greater than one.
	Evaluate(ctx context.Context, batch reader.Batch[T]) (model.Report, error)
	// Snapshot serialises the parameters.
	Snapshot() ([]byte, error)
	// Restore loads parameters produced by Snapshot.
	Restore(data []byte) error
}

// Visualizer is implemented by models that render artifacts from batches,
// typically images or samples written to the log directory.
type Visualizer[T any] interface {
	Visualize(ctx context.Context, batch reader.Batch[T]) error
}

// Trainer drives a model over the batches of a reader. A trainer is not safe
// for concurrent use.
type Trainer[T any] struct {
	reader      reader.Reader[T]
	model       Model[T]
	cfg         config.Config
	attached    []model.TrainerOption
	checkpoints *checkpoint.Manager
	summaries   *summary.EventWriter
	monitor     *stopping.Monitor
	prepared    map[string]struct{}
	runID       string
	step        int64
	restored    bool
}

// New creates a trainer running mdl over the batches of rdr.
func New[T any](rdr reader.Reader[T], mdl Model[T], opts ...Option) (*Trainer[T], error) {
	if rdr == nil {
		return nil, ErrReaderMustBeSet
	}

	if mdl == nil {
		return nil, ErrModelMustBeSet
	}

	o := &options{cfg: config.Default()}
	for _, opt := range opts {
		opt(o)
	}

	if err := o.cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid trainer config")
	}

	items, err := rdr.NumItems(o.cfg.TrainSplit)
	if err != nil {
		return nil, errors.Wrap(err, "train split")
	}

	if items == 0 {
		return nil, errors.Wrap(reader.ErrEmptySplit, "train split")
	}

	if o.cfg.EvalSplit != "" {
		items, err := rdr.NumItems(o.cfg.EvalSplit)
		if err != nil {
			return nil, errors.Wrap(err, "eval split")
		}

		if items == 0 {
			return nil, errors.Wrap(reader.ErrEmptySplit, "eval split")
		}
	}

	t := &Trainer[T]{
		reader:   rdr,
		model:    mdl,
		cfg:      o.cfg,
		attached: o.attached,
		prepared: map[string]struct{}{},
	}

	mode := stopping.Min
	if o.cfg.BestMode == "max" {
		mode = stopping.Max
	}

	t.monitor = stopping.NewMonitor(mode, o.cfg.EarlyStopping.Patience, o.cfg.EarlyStopping.MinDelta)

	if o.cfg.CheckpointDir != "" {
		mgr, err := checkpoint.NewManager(o.cfg.CheckpointDir, o.cfg.KeepCheckpoints)
		if err != nil {
			return nil, err
		}

		t.checkpoints = mgr
	}

	if o.cfg.LogDir != "" {
		w, err := summary.NewEventWriter(o.cfg.LogDir)
		if err != nil {
			return nil, err
		}

		t.summaries = w
		t.attached = append(t.attached, summary.TrainerSummary(w))
	}

	for _, opt := range t.attached {
		err := opt.New()
		if err != nil {
			return nil, errors.Wrap(err, "unable to apply trainer option")
		}
	}

	return t, nil
}

// Step returns the number of completed training steps, including the steps of
// a resumed run.
func (t *Trainer[T]) Step() int64 {
	return t.step
}

// Run trains the model for the configured number of epochs. After every epoch
// the eval split is scored, the best checkpoint refreshed and early stopping
// consulted. When resuming, the latest checkpoint is restored first and
// training continues from the epoch it recorded.
func (t *Trainer[T]) Run(ctx context.Context) error {
	log := ctxlog.FromContext(ctx)

	startEpoch, err := t.restore(ctx)
	if err != nil {
		return err
	}

	if err := t.writeRunMeta(); err != nil {
		return err
	}

	log.Info("starting run",
		slog.String("run_id", t.runID),
		slog.Int("start_epoch", startEpoch),
		slog.Int("epochs", t.cfg.Epochs),
		slog.Int64("step", t.step),
	)

	for epoch := startEpoch; epoch < t.cfg.Epochs; epoch++ {
		if err := t.trainEpoch(ctx, epoch); err != nil {
			return err
		}

		stop, err := t.evalEpoch(ctx, epoch)
		if err != nil {
			return err
		}

		if t.checkpoints != nil {
			if err := t.saveCheckpoint(epoch + 1); err != nil {
				return err
			}
		}

		if stop {
			log.Info("early stopping",
				slog.Int("epoch", epoch+1),
				slog.String("metric", t.cfg.BestMetric),
			)

			break
		}
	}

	return t.Finish()
}

// Evaluate scores one pass over split and returns the aggregated report. An
// empty split evaluates the configured eval split.
func (t *Trainer[T]) Evaluate(ctx context.Context, split string) (model.Report, error) {
	if split == "" {
		split = t.cfg.EvalSplit
	}

	if split == "" {
		return nil, ErrEvalSplitMustBeSet
	}

	if err := t.restoreForInference(ctx); err != nil {
		return nil, err
	}

	report, err := t.evaluateSplit(ctx, split)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Info("evaluation finished",
		slog.String("split", split),
		slog.Any("report", report),
	)

	return report, nil
}

// Visualize streams one pass over the eval split through the model's
// Visualize. Models that do not implement Visualizer get
// ErrModelCannotVisualize.
func (t *Trainer[T]) Visualize(ctx context.Context) error {
	viz, ok := t.model.(Visualizer[T])
	if !ok {
		return ErrModelCannotVisualize
	}

	if err := t.restoreForInference(ctx); err != nil {
		return err
	}

	split := t.cfg.EvalSplit
	if split == "" {
		split = t.cfg.TrainSplit
	}

	source, phase := t.phaseInfos(model.VisualizePhaseType, "visualize:"+split, split, 1)

	fn := func(ctx context.Context, batch reader.Batch[T]) error {
		return viz.Visualize(ctx, batch)
	}

	return t.runPhase(ctx, source, phase, t.evalBatchOptions(), fn, nil)
}

// Finish runs the Finish hooks of the attached options, drawing graphs and
// flushing summaries. Run calls it on success, standalone Evaluate and
// Visualize leave it to the caller.
func (t *Trainer[T]) Finish() error {
	for _, opt := range t.attached {
		err := opt.Finish()
		if err != nil {
			return errors.Wrap(err, "unable to finish trainer option")
		}
	}

	return nil
}

// Close releases the resources the trainer owns. Only the summary writer
// created through the log dir setting is owned, writers attached by the
// caller stay open.
func (t *Trainer[T]) Close() error {
	if t.summaries == nil {
		return nil
	}

	return t.summaries.Close()
}

// restore loads the latest checkpoint when resuming and returns the epoch to
// start from.
func (t *Trainer[T]) restore(ctx context.Context) (int, error) {
	if !t.cfg.Resume {
		return 0, nil
	}

	if t.checkpoints == nil {
		return 0, ErrCheckpointDirMustBeSet
	}

	log := ctxlog.FromContext(ctx)
	t.restored = true

	state, path, err := t.checkpoints.Latest()
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		log.Info("no checkpoint found, starting from scratch", slog.String("dir", t.checkpoints.Dir()))

		return 0, nil
	}

	if err != nil {
		return 0, err
	}

	if err := t.adopt(state, path); err != nil {
		return 0, err
	}

	log.Info("resumed from checkpoint",
		slog.String("path", path),
		slog.Int("epoch", state.Epoch),
		slog.Int64("step", state.Step),
	)

	return state.Epoch, nil
}

// restoreForInference loads the best checkpoint, falling back to the latest,
// when resuming is enabled. Evaluate and Visualize call it so an inference
// process scores the weights a previous run saved.
func (t *Trainer[T]) restoreForInference(ctx context.Context) error {
	if !t.cfg.Resume || t.restored {
		return nil
	}

	if t.checkpoints == nil {
		return ErrCheckpointDirMustBeSet
	}

	log := ctxlog.FromContext(ctx)
	t.restored = true

	state, path, err := t.checkpoints.Best()
	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		state, path, err = t.checkpoints.Latest()
	}

	if errors.Is(err, checkpoint.ErrNoCheckpoint) {
		log.Info("no checkpoint found, scoring fresh weights", slog.String("dir", t.checkpoints.Dir()))

		return nil
	}

	if err != nil {
		return err
	}

	if err := t.adopt(state, path); err != nil {
		return err
	}

	log.Info("restored checkpoint",
		slog.String("path", path),
		slog.Int64("step", state.Step),
	)

	return nil
}

// adopt applies a loaded state to the model and the trainer counters.
func (t *Trainer[T]) adopt(state checkpoint.State, path string) error {
	if err := t.model.Restore(state.Model); err != nil {
		return errors.Wrapf(err, "unable to restore model from %s", path)
	}

	t.step = state.Step
	t.runID = state.RunID

	if state.BestSet {
		t.monitor.Reset(state.Best)
	}

	return nil
}

// writeRunMeta records who ran what in every artifact directory, so a
// checkpoint dir or a log dir found months later still identifies its run.
func (t *Trainer[T]) writeRunMeta() error {
	info := runmeta.Capture(map[string]any{
		"epochs":      t.cfg.Epochs,
		"batch_size":  t.cfg.BatchSize,
		"train_split": t.cfg.TrainSplit,
		"eval_split":  t.cfg.EvalSplit,
		"seed":        t.cfg.Seed,
	})

	if t.runID == "" {
		t.runID = info.ID
	} else {
		// A resumed run keeps the identity of the run that produced the
		// checkpoint.
		info.ID = t.runID
	}

	dirs := []string{t.cfg.CheckpointDir}
	if t.cfg.LogDir != t.cfg.CheckpointDir {
		dirs = append(dirs, t.cfg.LogDir)
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}

		if err := info.WriteFile(filepath.Join(dir, "run.yaml")); err != nil {
			return err
		}

		if err := t.cfg.WriteFile(filepath.Join(dir, "config.yaml")); err != nil {
			return err
		}
	}

	return nil
}

func (t *Trainer[T]) trainEpoch(ctx context.Context, epoch int) error {
	source, phase := t.phaseInfos(model.TrainPhaseType, "train", t.cfg.TrainSplit, 1)

	opt := reader.BatchOptions{
		BatchSize:  t.cfg.BatchSize,
		Shuffle:    true,
		Epochs:     1,
		MaxBatches: t.cfg.MaxBatches,
		// Each epoch shuffles differently, yet a resumed run replays the
		// exact order the interrupted one would have used.
		Seed: t.cfg.Seed + int64(epoch),
	}

	epochAvg := model.NewAverage()
	window := model.NewAverage()

	fn := func(ctx context.Context, batch reader.Batch[T]) error {
		report, err := t.model.Train(ctx, batch)
		if err != nil {
			return err
		}

		t.step++
		weight := float64(batch.Size)
		epochAvg.Add(report, weight)
		window.Add(report, weight)

		if t.cfg.ReportEvery > 0 && t.step%t.cfg.ReportEvery == 0 {
			report := window.Mean()

			ctxlog.FromContext(ctx).Debug("report",
				slog.Int64("step", t.step),
				slog.Any("report", report),
			)

			if err := t.onReport(phase, t.step, report); err != nil {
				return err
			}

			window.Reset()
		}

		if t.checkpoints != nil && t.cfg.CheckpointEvery > 0 && t.step%t.cfg.CheckpointEvery == 0 {
			if err := t.saveCheckpoint(epoch); err != nil {
				return err
			}
		}

		return nil
	}

	if err := t.runPhase(ctx, source, phase, opt, fn, epochAvg.Mean); err != nil {
		return err
	}

	// Flush what the report window still holds so short epochs reach the
	// summaries too.
	if err := t.onReport(phase, t.step, window.Mean()); err != nil {
		return err
	}

	ctxlog.FromContext(ctx).Info("training epoch finished",
		slog.Int("epoch", epoch+1),
		slog.Int64("step", t.step),
		slog.Any("report", epochAvg.Mean()),
	)

	return nil
}

// evalEpoch scores the eval split, refreshes the best checkpoint and returns
// whether the run should stop early.
func (t *Trainer[T]) evalEpoch(ctx context.Context, epoch int) (bool, error) {
	if t.cfg.EvalSplit == "" {
		return false, nil
	}

	report, err := t.evaluateSplit(ctx, t.cfg.EvalSplit)
	if err != nil {
		return false, err
	}

	ctxlog.FromContext(ctx).Info("evaluation finished",
		slog.Int("epoch", epoch+1),
		slog.String("split", t.cfg.EvalSplit),
		slog.Any("report", report),
	)

	value, ok := report[t.cfg.BestMetric]
	if !ok {
		return false, nil
	}

	improved, stop := t.monitor.Observe(value)
	if improved && t.checkpoints != nil {
		if err := t.saveBest(ctx, epoch+1, value); err != nil {
			return false, err
		}
	}

	return stop, nil
}

func (t *Trainer[T]) evaluateSplit(ctx context.Context, split string) (model.Report, error) {
	concurrent := t.cfg.EvalConcurrency
	if concurrent <= 0 {
		concurrent = 1
	}

	source, phase := t.phaseInfos(model.EvaluatePhaseType, "evaluate:"+split, split, concurrent)

	avg := model.NewAverage()

	var mu sync.Mutex

	fn := func(ctx context.Context, batch reader.Batch[T]) error {
		report, err := t.model.Evaluate(ctx, batch)
		if err != nil {
			return err
		}

		mu.Lock()
		avg.Add(report, float64(batch.Size))
		mu.Unlock()

		return nil
	}

	if err := t.runPhase(ctx, source, phase, t.evalBatchOptions(), fn, avg.Mean); err != nil {
		return nil, err
	}

	report := avg.Mean()

	if err := t.onReport(phase, t.step, report); err != nil {
		return nil, err
	}

	return report, nil
}

func (t *Trainer[T]) evalBatchOptions() reader.BatchOptions {
	batchSize := t.cfg.EvalBatchSize
	if batchSize <= 0 {
		batchSize = t.cfg.BatchSize
	}

	// Evaluation visits every item exactly once, including the trailing
	// short batch.
	return reader.BatchOptions{
		BatchSize: batchSize,
		Partial:   true,
		Epochs:    1,
		Seed:      t.cfg.Seed,
	}
}

func (t *Trainer[T]) phaseInfos(typ model.PhaseType, name, split string, concurrent int) (*model.PhaseInfo, *model.PhaseInfo) {
	source := &model.PhaseInfo{
		Type:       model.SourcePhaseType,
		Name:       "source:" + split,
		Split:      split,
		Concurrent: 1,
		BufferSize: t.cfg.Prefetch,
	}

	phase := &model.PhaseInfo{
		Type:       typ,
		Name:       name,
		Split:      split,
		Concurrent: concurrent,
		BufferSize: t.cfg.Prefetch,
	}

	return source, phase
}

// saveCheckpoint persists a periodic checkpoint recording epochsDone
// completed epochs.
func (t *Trainer[T]) saveCheckpoint(epochsDone int) error {
	snap, err := t.model.Snapshot()
	if err != nil {
		return errors.Wrap(err, "unable to snapshot model")
	}

	best, bestSet := t.monitor.Best()

	path, err := t.checkpoints.Save(checkpoint.State{
		RunID:   t.runID,
		Epoch:   epochsDone,
		Step:    t.step,
		Best:    best,
		BestSet: bestSet,
		Model:   snap,
	})
	if err != nil {
		return err
	}

	return t.afterCheckpoint(t.step, path)
}

func (t *Trainer[T]) saveBest(ctx context.Context, epochsDone int, best float64) error {
	snap, err := t.model.Snapshot()
	if err != nil {
		return errors.Wrap(err, "unable to snapshot model")
	}

	path, err := t.checkpoints.SaveBest(checkpoint.State{
		RunID:   t.runID,
		Epoch:   epochsDone,
		Step:    t.step,
		Best:    best,
		BestSet: true,
		Model:   snap,
	})
	if err != nil {
		return err
	}

	ctxlog.FromContext(ctx).Info("new best checkpoint",
		slog.String("path", path),
		slog.Float64(t.cfg.BestMetric, best),
	)

	return t.afterCheckpoint(t.step, path)
}
