package policy

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// adam applies bias-corrected Adam updates to a fixed list of tensors.
type adam struct {
	lr, beta1, beta2, eps float64

	t    int
	m, v [][]float64
}

func newAdam(config Config) *adam {
	return &adam{
		lr:    config.LearningRate,
		beta1: config.Beta1,
		beta2: config.Beta2,
		eps:   config.AdamEpsilon,
	}
}

func (a *adam) reset() {
	a.t = 0
	a.m, a.v = nil, nil
}

// step updates params in place from grads. Both lists must have the same
// order and shapes on every call.
func (a *adam) step(params, grads []*mat.Dense) {
	if a.m == nil {
		a.m = make([][]float64, len(params))
		a.v = make([][]float64, len(params))
		for k, p := range params {
			n := len(p.RawMatrix().Data)
			a.m[k] = make([]float64, n)
			a.v[k] = make([]float64, n)
		}
	}
	a.t++
	bc1 := 1 - math.Pow(a.beta1, float64(a.t))
	bc2 := 1 - math.Pow(a.beta2, float64(a.t))

	for k, p := range params {
		w := p.RawMatrix().Data
		g := grads[k].RawMatrix().Data
		m, v := a.m[k], a.v[k]
		for i := range w {
			m[i] = a.beta1*m[i] + (1-a.beta1)*g[i]
			v[i] = a.beta2*v[i] + (1-a.beta2)*g[i]*g[i]
			mHat := m[i] / bc1
			vHat := v[i] / bc2
			w[i] -= a.lr * mHat / (math.Sqrt(vHat) + a.eps)
		}
	}
}
