package ops_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/askiada/go-lego/pkg/ops"
)

func TestArgMax(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 2, ops.ArgMax([]float64{0.1, -3, 7, 7}))
	assert.Equal(t, 0, ops.ArgMax([]float64{5}))
	assert.Panics(t, func() { ops.ArgMax(nil) })
}

func TestSampleLogitsZeroTemperature(t *testing.T) {
	t.Parallel()

	logits := []float64{-1, 4, 2}

	for i := 0; i < 10; i++ {
		assert.Equal(t, 1, ops.SampleLogits(rand.New(rand.NewSource(int64(i))), logits, 0))
	}
}

func TestSampleLogitsDominant(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(1))
	logits := []float64{0, 100, 0}

	for i := 0; i < 100; i++ {
		assert.Equal(t, 1, ops.SampleLogits(rng, logits, 1))
	}
}

func TestSampleLogitsDistribution(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	logits := []float64{0, math.Log(3)}

	const draws = 10000

	ones := 0
	for i := 0; i < draws; i++ {
		ones += ops.SampleLogits(rng, logits, 1)
	}

	assert.InDelta(t, 0.75, float64(ones)/draws, 0.03)
}

func TestSampleLogitsHighTemperature(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(13))
	logits := []float64{0, math.Log(3)}

	const draws = 10000

	ones := 0
	for i := 0; i < draws; i++ {
		ones += ops.SampleLogits(rng, logits, 1000)
	}

	// High temperature flattens the distribution towards uniform.
	assert.InDelta(t, 0.5, float64(ones)/draws, 0.05)
}

func TestSampleLogitsStability(t *testing.T) {
	t.Parallel()

	// Large logits must not overflow the softmax.
	rng := rand.New(rand.NewSource(3))
	got := ops.SampleLogits(rng, []float64{1000, 2000}, 1)
	assert.Equal(t, 1, got)

	assert.Panics(t, func() { ops.SampleLogits(rng, nil, 1) })
}

func TestOneHot(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []float64{0, 0, 1, 0}, ops.OneHot(4, 2))
	assert.Panics(t, func() { ops.OneHot(3, 3) })
	assert.Panics(t, func() { ops.OneHot(3, -1) })
}
