package ops

import "math"

// GridGaussian projects [y, x] coordinates onto an h by w grid as a 2D
// Gaussian bump centred on the coordinates, a differentiable way to feed
// positions to convolutional models.
type GridGaussian struct {
	variance  float64
	meanValue float64
	h, w      int
	ys, xs    []float64
}

// NewGridGaussian creates a projector onto a grid spanning [hmin, hmax] by
// [wmin, wmax]. When meanValue is zero, the peak takes the Gaussian pdf
// value 1/(2*pi*variance).
func NewGridGaussian(variance float64, h, w int, hmin, hmax, wmin, wmax, meanValue float64) *GridGaussian {
	if meanValue == 0 {
		meanValue = 1 / (2 * math.Pi * variance)
	}

	return &GridGaussian{
		variance:  variance,
		meanValue: meanValue,
		h:         h,
		w:         w,
		ys:        linspace(hmin, hmax, h),
		xs:        linspace(wmin, wmax, w),
	}
}

// Project renders the Gaussian centred on (y, x) into a fresh row-major
// h by w grid.
func (g *GridGaussian) Project(y, x float64) []float64 {
	out := make([]float64, g.h*g.w)

	for i, gy := range g.ys {
		dy := gy - y

		for j, gx := range g.xs {
			dx := gx - x
			out[i*g.w+j] = math.Exp(-(dy*dy+dx*dx)/(2*g.variance)) * g.meanValue
		}
	}

	return out
}

// linspace mirrors the usual n evenly spaced points over [lo, hi], endpoints
// included.
func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)

	if n == 1 {
		out[0] = lo

		return out
	}

	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}

	out[n-1] = hi

	return out
}
