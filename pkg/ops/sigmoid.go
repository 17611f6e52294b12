package ops

import "math"

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// ThresholdedSigmoid squashes x into (0, 1) with an exactly linear band of
// the given width around zero, mapping [-l, l] to [0.5-l, 0.5+l] with
// l = linearRange/2 and scaled sigmoid tails outside. Gradients inside the
// band stay at one, which avoids the vanishing gradients of a plain sigmoid
// near 0.5.
func ThresholdedSigmoid(x, linearRange float64) float64 {
	l := linearRange / 2

	switch {
	case x < -l:
		return sigmoid(x+l) * (1 - linearRange)
	case x > l:
		return sigmoid(x-l)*(1-linearRange) + linearRange
	default:
		return x + 0.5
	}
}

// InvThresholdedSigmoid is the inverse of ThresholdedSigmoid for x in (0, 1).
func InvThresholdedSigmoid(x, linearRange float64) float64 {
	l := linearRange / 2

	switch {
	case x < 0.5-l:
		return -l - math.Log((1-linearRange-x)/x)
	case x > 0.5+l:
		return l - math.Log((1-x)/(x-linearRange))
	default:
		return x - 0.5
	}
}
