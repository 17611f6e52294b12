package ops

import (
	"math"
	"math/rand"
)

// Log2Pi is log(2*pi), the normalisation constant of Gaussian log densities.
var Log2Pi = math.Log(2 * math.Pi)

// KLDivGaussian computes D(q||p) between two diagonal Gaussians given their
// means and log variances, summed over the vector.
func KLDivGaussian(qMu, qLogVar, pMu, pLogVar []float64) float64 {
	if len(qMu) != len(qLogVar) || len(qMu) != len(pMu) || len(qMu) != len(pLogVar) {
		panic("ops: slice length mismatch")
	}

	var kl float64

	for i := range qMu {
		logVarDiff := qLogVar[i] - pLogVar[i]
		muDiff := qMu[i] - pMu[i]
		kl += -0.5 * (1 + logVarDiff - math.Exp(logVarDiff) - muDiff*muDiff/math.Exp(pLogVar[i]))
	}

	return kl
}

// KLDivStandardGaussian computes D(q||p) against the standard Gaussian
// prior p = N(0, I).
func KLDivStandardGaussian(qMu, qLogVar []float64) float64 {
	if len(qMu) != len(qLogVar) {
		panic("ops: slice length mismatch")
	}

	var kl float64

	for i := range qMu {
		kl += -0.5 * (1 + qLogVar[i] - math.Exp(qLogVar[i]) - qMu[i]*qMu[i])
	}

	return kl
}

// GaussianLogProb computes log p(x) under a diagonal Gaussian given its mean
// and log variance, summed over the vector.
func GaussianLogProb(mu, logVar, x []float64) float64 {
	if len(mu) != len(logVar) || len(mu) != len(x) {
		panic("ops: slice length mismatch")
	}

	var logProb float64

	for i := range mu {
		diff := x[i] - mu[i]
		logProb += -0.5 * (Log2Pi + logVar[i] + diff*diff/math.Exp(logVar[i]))
	}

	return logProb
}

// ReparameterizeGaussian draws z = mu + eps*std with std = exp(logVar/2).
// With a nil rng, eps is zero and z is the mean, which is what inference
// wants. The noise is returned alongside z for losses that need it.
func ReparameterizeGaussian(mu, logVar []float64, rng *rand.Rand) (z, eps []float64) {
	if len(mu) != len(logVar) {
		panic("ops: slice length mismatch")
	}

	z = make([]float64, len(mu))
	eps = make([]float64, len(mu))

	for i := range mu {
		if rng != nil {
			eps[i] = rng.NormFloat64()
		}

		z[i] = mu[i] + eps[i]*math.Exp(0.5*logVar[i])
	}

	return z, eps
}
