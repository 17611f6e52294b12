package reader

import (
	"context"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// InMemory serves batches from item slices held in memory, one slice per
// split. It is the reader of choice for datasets that fit in RAM and the
// reference behaviour for custom readers: shuffles are reproducible from the
// seed and every batch is a fresh slice the consumer may retain.
type InMemory[E any] struct {
	splits map[string][]E
	names  []string
}

// NewInMemory creates a reader over the given splits. The split slices are
// not copied, callers must not mutate them afterwards.
func NewInMemory[E any](splits map[string][]E) *InMemory[E] {
	names := make([]string, 0, len(splits))
	for name := range splits {
		names = append(names, name)
	}

	sort.Strings(names)

	return &InMemory[E]{splits: splits, names: names}
}

// Splits lists the split names in lexical order.
func (r *InMemory[E]) Splits() []string {
	return append([]string(nil), r.names...)
}

// NumItems returns the number of items in a split.
func (r *InMemory[E]) NumItems(split string) (int, error) {
	items, ok := r.splits[split]
	if !ok {
		return 0, errors.Wrap(ErrUnknownSplit, split)
	}

	return len(items), nil
}

// Batches streams batches of the split into out. Each pass visits every item
// at most once. With Shuffle set, pass p uses the order derived from
// Seed plus p, so resuming a run at a given epoch reproduces the original
// stream.
func (r *InMemory[E]) Batches(ctx context.Context, split string, opt BatchOptions, out chan<- Batch[[]E]) error {
	if err := opt.Validate(); err != nil {
		return err
	}

	items, ok := r.splits[split]
	if !ok {
		return errors.Wrap(ErrUnknownSplit, split)
	}

	epochs := opt.Epochs
	if epochs == 0 {
		epochs = 1
	}

	total := 0

	for epoch := 0; epoch < epochs; epoch++ {
		order := make([]int, len(items))
		for i := range order {
			order[i] = i
		}

		if opt.Shuffle {
			rng := rand.New(rand.NewSource(opt.Seed + int64(epoch)))
			rng.Shuffle(len(order), func(i, j int) {
				order[i], order[j] = order[j], order[i]
			})
		}

		index := 0

		for start := 0; start < len(order); start += opt.BatchSize {
			end := start + opt.BatchSize
			if end > len(order) {
				if !opt.Partial {
					break
				}

				end = len(order)
			}

			data := make([]E, 0, end-start)
			for _, i := range order[start:end] {
				data = append(data, items[i])
			}

			batch := Batch[[]E]{
				Data:  data,
				Size:  end - start,
				Epoch: epoch,
				Index: index,
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- batch:
			}

			index++
			total++

			if opt.MaxBatches > 0 && total >= opt.MaxBatches {
				return nil
			}
		}
	}

	return nil
}

var _ Reader[[]int] = (*InMemory[int])(nil)
