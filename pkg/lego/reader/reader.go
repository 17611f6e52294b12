// Package reader defines the contract between datasets and the training loop.
//
// A Reader owns the raw items of every split and knows how to cut them into
// batches. The trainer never touches items directly: it asks the reader to
// stream batches into a channel and consumes them, so reading overlaps with
// model computation.
package reader

import "context"

// Batch is one unit of work handed to a model.
type Batch[T any] struct {
	// Data is the batch payload.
	Data T
	// Size is the number of items in the batch, used to weight its report.
	Size int
	// Epoch is the zero based pass this batch belongs to within one Batches
	// call.
	Epoch int
	// Index is the zero based position of the batch within its pass.
	Index int
}

// BatchOptions controls how a reader cuts a split into batches.
type BatchOptions struct {
	// BatchSize is the number of items per batch.
	BatchSize int
	// Shuffle reorders the split before every pass.
	Shuffle bool
	// Partial emits the trailing short batch instead of dropping it.
	Partial bool
	// Epochs is the number of passes over the split. Zero means one.
	Epochs int
	// MaxBatches stops the stream after that many batches. Zero means no
	// limit.
	MaxBatches int
	// Seed makes shuffles reproducible. Two streams with the same seed visit
	// the items in the same order.
	Seed int64
}

// Validate checks the options are usable.
func (o BatchOptions) Validate() error {
	if o.BatchSize <= 0 {
		return ErrBatchSizeMustBePositive
	}

	if o.Epochs < 0 {
		return ErrEpochsMustNotBeNegative
	}

	if o.MaxBatches < 0 {
		return ErrMaxBatchesMustNotBeNegative
	}

	return nil
}

// Reader serves the splits of a dataset as batch streams.
type Reader[T any] interface {
	// Splits lists the split names the reader serves.
	Splits() []string
	// NumItems returns the number of items in a split.
	NumItems(split string) (int, error)
	// Batches streams batches of the split into out until the requested
	// passes are exhausted or ctx is cancelled. Implementations must not
	// close out, the caller owns the channel.
	Batches(ctx context.Context, split string, opt BatchOptions, out chan<- Batch[T]) error
}

// NumBatches returns the number of batches one pass over split yields under
// the given options.
func NumBatches[T any](r Reader[T], split string, opt BatchOptions) (int, error) {
	if err := opt.Validate(); err != nil {
		return 0, err
	}

	items, err := r.NumItems(split)
	if err != nil {
		return 0, err
	}

	n := items / opt.BatchSize
	if opt.Partial && items%opt.BatchSize != 0 {
		n++
	}

	if opt.MaxBatches > 0 && n > opt.MaxBatches {
		n = opt.MaxBatches
	}

	return n, nil
}
