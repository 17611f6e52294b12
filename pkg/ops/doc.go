// Package ops provides small numeric helpers shared by models built on the
// framework: Gaussian divergences and log probabilities, bounded sigmoids,
// grid projections and categorical sampling.
// Vectors are plain float64 slices. Functions panic when slice lengths
// disagree, mismatched sizes are programming errors, not runtime conditions.
package ops
