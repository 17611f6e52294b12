package lego

import (
	"github.com/askiada/go-lego/pkg/lego/config"
	"github.com/askiada/go-lego/pkg/lego/drawer"
	"github.com/askiada/go-lego/pkg/lego/measure"
	"github.com/askiada/go-lego/pkg/lego/model"
	"github.com/askiada/go-lego/pkg/lego/summary"
)

type options struct {
	cfg      config.Config
	attached []model.TrainerOption
}

// Option configures a trainer.
type Option func(o *options)

// WithConfig replaces the whole configuration. Options given after this one
// override individual fields.
func WithConfig(cfg config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithEpochs sets the number of training epochs.
func WithEpochs(epochs int) Option {
	return func(o *options) {
		o.cfg.Epochs = epochs
	}
}

// WithBatchSize sets the training batch size.
func WithBatchSize(size int) Option {
	return func(o *options) {
		o.cfg.BatchSize = size
	}
}

// WithEvalBatchSize sets the evaluation batch size.
func WithEvalBatchSize(size int) Option {
	return func(o *options) {
		o.cfg.EvalBatchSize = size
	}
}

// WithTrainSplit sets the split used for training.
func WithTrainSplit(split string) Option {
	return func(o *options) {
		o.cfg.TrainSplit = split
	}
}

// WithEvalSplit sets the split evaluated after every epoch. An empty split
// disables evaluation.
func WithEvalSplit(split string) Option {
	return func(o *options) {
		o.cfg.EvalSplit = split
	}
}

// WithReportEvery sets the number of training steps between aggregated
// reports.
func WithReportEvery(steps int64) Option {
	return func(o *options) {
		o.cfg.ReportEvery = steps
	}
}

// WithCheckpointEvery sets the number of training steps between periodic
// checkpoints.
func WithCheckpointEvery(steps int64) Option {
	return func(o *options) {
		o.cfg.CheckpointEvery = steps
	}
}

// WithKeepCheckpoints sets how many periodic checkpoints to retain.
func WithKeepCheckpoints(keep int) Option {
	return func(o *options) {
		o.cfg.KeepCheckpoints = keep
	}
}

// WithMaxBatches caps the number of training batches per epoch.
func WithMaxBatches(batches int) Option {
	return func(o *options) {
		o.cfg.MaxBatches = batches
	}
}

// WithSeed makes shuffles reproducible.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.cfg.Seed = seed
	}
}

// WithPrefetch sets the batch channel capacity between reader and model.
func WithPrefetch(prefetch int) Option {
	return func(o *options) {
		o.cfg.Prefetch = prefetch
	}
}

// WithEvalConcurrency sets the number of goroutines evaluating batches. The
// model's Evaluate must be safe for concurrent use when it is greater than
// one.
func WithEvalConcurrency(concurrent int) Option {
	return func(o *options) {
		o.cfg.EvalConcurrency = concurrent
	}
}

// WithCheckpoints enables checkpointing under dir.
func WithCheckpoints(dir string) Option {
	return func(o *options) {
		o.cfg.CheckpointDir = dir
	}
}

// WithResume restores the latest checkpoint on startup when one exists.
func WithResume(resume bool) Option {
	return func(o *options) {
		o.cfg.Resume = resume
	}
}

// WithLogDir enables summaries under dir. The trainer owns the writer it
// creates, Close releases it.
func WithLogDir(dir string) Option {
	return func(o *options) {
		o.cfg.LogDir = dir
	}
}

// WithBestMetric sets the report key ranking checkpoints and whether lower or
// higher values are better. Mode is "min" or "max".
func WithBestMetric(key, mode string) Option {
	return func(o *options) {
		o.cfg.BestMetric = key
		o.cfg.BestMode = mode
	}
}

// WithEarlyStopping stops a run after patience evaluations without an
// improvement of at least minDelta.
func WithEarlyStopping(patience int, minDelta float64) Option {
	return func(o *options) {
		o.cfg.EarlyStopping = config.EarlyStopping{
			Patience: patience,
			MinDelta: minDelta,
		}
	}
}

// Attach adds trainer options observing the run.
func Attach(opts ...model.TrainerOption) Option {
	return func(o *options) {
		o.attached = append(o.attached, opts...)
	}
}

// TrainerDrawer draws a representation of the run in a file once the run
// finishes.
func TrainerDrawer(d drawer.Drawer, m measure.Measure) Option {
	return Attach(drawer.TrainerDrawer(d, m))
}

// TrainerMeasure measures the time spent in each phase of the run.
func TrainerMeasure(m measure.Measure) Option {
	return Attach(measure.TrainerMeasure(m))
}

// TrainerSummary emits aggregated reports to w. The writer stays owned by the
// caller.
func TrainerSummary(w summary.Writer) Option {
	return Attach(summary.TrainerSummary(w))
}
