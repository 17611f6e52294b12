package reader

import "github.com/pkg/errors"

var (
	ErrUnknownSplit                = errors.New("unknown split")
	ErrEmptySplit                  = errors.New("split has no items")
	ErrBatchSizeMustBePositive     = errors.New("batch size must be greater than 0")
	ErrEpochsMustNotBeNegative     = errors.New("epochs must not be negative")
	ErrMaxBatchesMustNotBeNegative = errors.New("max batches must not be negative")
)
