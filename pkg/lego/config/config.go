// Package config loads experiment configuration from YAML files.
// A config carries the framework settings of a run plus free-form model
// hyperparameters under params. Unknown keys are rejected, a typo in a config
// file fails the run instead of silently training with defaults.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	ErrBatchSizeMustBePositive = errors.New("batch size must be greater than 0")
	ErrEpochsMustNotBeNegative = errors.New("epochs must not be negative")
	ErrValueMustNotBeNegative  = errors.New("value must not be negative")
	ErrTrainSplitMustBeSet     = errors.New("train split must be set")
	ErrBestModeUnknown         = errors.New(`best mode must be "min" or "max"`)
)

// EarlyStopping configures when a run gives up on a plateaued metric.
type EarlyStopping struct {
	// Patience is the number of evaluations without improvement tolerated
	// before stopping. Zero disables early stopping.
	Patience int `yaml:"patience"`
	// MinDelta is the smallest change that counts as an improvement.
	MinDelta float64 `yaml:"min_delta"`
}

// Config carries the settings of a run.
type Config struct {
	// Epochs is the number of training epochs.
	Epochs int `yaml:"epochs"`
	// BatchSize is the training batch size.
	BatchSize int `yaml:"batch_size"`
	// EvalBatchSize is the evaluation batch size. Zero falls back to
	// BatchSize.
	EvalBatchSize int `yaml:"eval_batch_size"`
	// TrainSplit is the split used for training.
	TrainSplit string `yaml:"train_split"`
	// EvalSplit is the split evaluated after every epoch. Empty disables
	// evaluation.
	EvalSplit string `yaml:"eval_split"`
	// ReportEvery is the number of training steps between aggregated
	// reports. Zero reports only at the end of each epoch.
	ReportEvery int64 `yaml:"report_every"`
	// CheckpointEvery is the number of training steps between periodic
	// checkpoints. Zero checkpoints only at the end of each epoch.
	CheckpointEvery int64 `yaml:"checkpoint_every"`
	// KeepCheckpoints is how many periodic checkpoints to retain. Zero keeps
	// all of them.
	KeepCheckpoints int `yaml:"keep_checkpoints"`
	// MaxBatches caps the number of training batches per epoch, useful to
	// smoke test a model. Zero means no cap.
	MaxBatches int `yaml:"max_batches"`
	// Seed makes shuffles reproducible.
	Seed int64 `yaml:"seed"`
	// Prefetch is the batch channel capacity between reader and model.
	Prefetch int `yaml:"prefetch"`
	// EvalConcurrency is the number of goroutines evaluating batches. Train
	// phases always run sequentially.
	EvalConcurrency int `yaml:"eval_concurrency"`
	// CheckpointDir is where checkpoints are written. Empty disables
	// checkpointing.
	CheckpointDir string `yaml:"checkpoint_dir"`
	// Resume restores the latest checkpoint from CheckpointDir on startup.
	Resume bool `yaml:"resume"`
	// LogDir is where summary event files are written. Empty disables
	// summaries.
	LogDir string `yaml:"log_dir"`
	// BestMetric is the report key ranking checkpoints.
	BestMetric string `yaml:"best_metric"`
	// BestMode says whether lower or higher BestMetric values are better.
	BestMode string `yaml:"best_mode"`
	// EarlyStopping stops a run once BestMetric stops improving.
	EarlyStopping EarlyStopping `yaml:"early_stopping"`
	// Params holds free-form model hyperparameters.
	Params map[string]float64 `yaml:"params"`
}

// Default returns the config used when a setting is not given.
func Default() Config {
	return Config{
		Epochs:          1,
		BatchSize:       32,
		TrainSplit:      "train",
		EvalSplit:       "valid",
		ReportEvery:     50,
		CheckpointEvery: 500,
		KeepCheckpoints: 5,
		Prefetch:        2,
		EvalConcurrency: 1,
		BestMetric:      "loss",
		BestMode:        "min",
	}
}

// Load reads a YAML config file on top of the defaults. Keys absent from the
// file keep their default value, unknown keys are an error.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "unable to read config %s", path)
	}

	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&cfg); err != nil {
		// An empty file is a valid config, everything stays default.
		if errors.Is(err, io.EOF) {
			return cfg, nil
		}

		return Config{}, errors.Wrapf(err, "unable to parse config %s", path)
	}

	return cfg, nil
}

// Validate checks the config is usable.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return ErrBatchSizeMustBePositive
	}

	if c.Epochs < 0 {
		return ErrEpochsMustNotBeNegative
	}

	if c.TrainSplit == "" {
		return ErrTrainSplitMustBeSet
	}

	for name, v := range map[string]int64{
		"eval_batch_size":  int64(c.EvalBatchSize),
		"report_every":     c.ReportEvery,
		"checkpoint_every": c.CheckpointEvery,
		"keep_checkpoints": int64(c.KeepCheckpoints),
		"max_batches":      int64(c.MaxBatches),
		"prefetch":         int64(c.Prefetch),
		"eval_concurrency": int64(c.EvalConcurrency),
		"patience":         int64(c.EarlyStopping.Patience),
	} {
		if v < 0 {
			return errors.Wrap(ErrValueMustNotBeNegative, name)
		}
	}

	if c.BestMode != "min" && c.BestMode != "max" {
		return ErrBestModeUnknown
	}

	return nil
}

// WriteFile writes the config as YAML, recording the resolved settings of a
// run next to its artifacts.
func (c Config) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "unable to marshal config")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "unable to write config %s", path)
	}

	return nil
}

// Param returns the hyperparameter under key, or def when unset.
func (c Config) Param(key string, def float64) float64 {
	if v, ok := c.Params[key]; ok {
		return v
	}

	return def
}
