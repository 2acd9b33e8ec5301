package policy

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// #region gaussian
// logProbs returns the joint log-density of each action row under the
// diagonal Gaussian rows of (mean, std).
func logProbs(mean, std *mat.Dense, actions [][]float64) []float64 {
	n, d := mean.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			out[i] += distuv.Normal{Mu: mean.At(i, j), Sigma: std.At(i, j)}.LogProb(actions[i][j])
		}
	}
	return out
}

// meanEntropy returns the batch mean of the joint entropy of each row.
func meanEntropy(std *mat.Dense) float64 {
	n, d := std.Dims()
	var sum float64
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			sum += distuv.Normal{Mu: 0, Sigma: std.At(i, j)}.Entropy()
		}
	}
	return sum / float64(n)
}

// sample draws one value per dimension.
func sample(mean, std []float64, src rand.Source) []float64 {
	out := make([]float64, len(mean))
	for j := range mean {
		out[j] = distuv.Normal{Mu: mean[j], Sigma: std[j], Src: src}.Rand()
	}
	return out
}

// #endregion gaussian
