package ops

import (
	"math"
	"math/rand"
)

// ArgMax returns the index of the largest value.
func ArgMax(values []float64) int {
	if len(values) == 0 {
		panic("ops: empty slice")
	}

	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}

	return best
}

// SampleLogits draws an index from the categorical distribution given by
// unnormalised logits at the given temperature. Temperatures at or below
// zero degenerate to ArgMax. rng must not be nil otherwise.
func SampleLogits(rng *rand.Rand, logits []float64, temperature float64) int {
	if len(logits) == 0 {
		panic("ops: empty slice")
	}

	if temperature <= 0 {
		return ArgMax(logits)
	}

	// Shift by the max before exponentiating so large logits do not
	// overflow.
	maxLogit := logits[ArgMax(logits)]

	probs := make([]float64, len(logits))

	var sum float64

	for i, logit := range logits {
		p := math.Exp((logit - maxLogit) / temperature)
		probs[i] = p
		sum += p
	}

	draw := rng.Float64() * sum

	var acc float64

	for i, p := range probs {
		acc += p
		if acc >= draw {
			return i
		}
	}

	return len(probs) - 1
}

// OneHot returns a vector of length n with a one at index i.
func OneHot(n, i int) []float64 {
	if i < 0 || i >= n {
		panic("ops: index out of range")
	}

	out := make([]float64, n)
	out[i] = 1

	return out
}
