package reader_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/askiada/go-lego/pkg/lego/reader"
)

// collect drains one full Batches call into a slice.
func collect[E any](t *testing.T, r *reader.InMemory[E], split string, opt reader.BatchOptions) []reader.Batch[[]E] {
	t.Helper()

	out := make(chan reader.Batch[[]E], 1024)
	require.NoError(t, r.Batches(context.Background(), split, opt, out))
	close(out)

	batches := make([]reader.Batch[[]E], 0, len(out))
	for b := range out {
		batches = append(batches, b)
	}

	return batches
}

// flatten concatenates the payloads of a batch stream.
func flatten[E any](batches []reader.Batch[[]E]) []E {
	var items []E
	for _, b := range batches {
		items = append(items, b.Data...)
	}

	return items
}

// intRange builds the slice [0, n).
func intRange(n int) []int {
	items := make([]int, n)
	for i := range items {
		items[i] = i
	}

	return items
}
