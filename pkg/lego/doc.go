// Package lego provides a training loop for machine learning experiments.
//
// The lego package owns the repetitive part of an experiment: it streams
// batches from a reader to a model, aggregates the weighted reports the model
// returns, periodically persists checkpoints and periodically emits summaries.
// The model and the reader stay entirely user supplied, so the package makes
// no assumption about what a batch contains or how the model computes its
// loss. This keeps experiments small: a new experiment is a reader, a model
// and a handful of options.
//
// One of the key benefits of using the lego package is that it manages the
// flow of batches using channels. Batches are prefetched while the model is
// busy, and evaluation can fan out over several goroutines when the model
// supports it. The trainer stops on the first encountered error, preventing
// further processing and ensuring that errors are handled gracefully.
//
// Another advantage is that every run can be resumed. The trainer restores
// the latest checkpoint on demand, continues counting steps where the
// previous process stopped, and keeps track of the best evaluation seen so
// far so that early stopping survives a restart.
package lego
