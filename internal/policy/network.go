package policy

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// #region linear
// Linear is a fully connected layer y = x·W + b with W in×out and B 1×out.
type Linear struct {
	W *mat.Dense
	B *mat.Dense
}

// newLinear initialises weights Glorot-uniform and biases to zero.
func newLinear(in, out int, rng *rand.Rand) Linear {
	limit := math.Sqrt(6 / float64(in+out))
	w := make([]float64, in*out)
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * limit
	}
	return Linear{W: mat.NewDense(in, out, w), B: mat.NewDense(1, out, nil)}
}

func zeroLinear(l Linear) Linear {
	in, out := l.W.Dims()
	return Linear{W: mat.NewDense(in, out, nil), B: mat.NewDense(1, out, nil)}
}

func (l Linear) clone() Linear {
	return Linear{W: mat.DenseCopyOf(l.W), B: mat.DenseCopyOf(l.B)}
}

func (l Linear) forward(x *mat.Dense) *mat.Dense {
	n, _ := x.Dims()
	_, out := l.W.Dims()
	z := mat.NewDense(n, out, nil)
	z.Mul(x, l.W)
	b := l.B.RawRowView(0)
	for i := 0; i < n; i++ {
		floats.Add(z.RawRowView(i), b)
	}
	return z
}

// backward accumulates the parameter gradients for dz into g and returns the
// gradient with respect to x.
func (l Linear) backward(x, dz *mat.Dense, g Linear) *mat.Dense {
	var dw mat.Dense
	dw.Mul(x.T(), dz)
	g.W.Add(g.W, &dw)

	n, _ := dz.Dims()
	gb := g.B.RawRowView(0)
	for i := 0; i < n; i++ {
		floats.Add(gb, dz.RawRowView(i))
	}

	in, _ := l.W.Dims()
	dx := mat.NewDense(n, in, nil)
	dx.Mul(dz, l.W.T())
	return dx
}

// #endregion linear

// #region trunk
type trunkCache struct {
	inputs []*mat.Dense
	pre    []*mat.Dense
}

func trunkForward(layers []Linear, x *mat.Dense) (*mat.Dense, trunkCache) {
	var c trunkCache
	h := x
	for _, l := range layers {
		c.inputs = append(c.inputs, h)
		z := l.forward(h)
		c.pre = append(c.pre, z)
		h = relu(z)
	}
	return h, c
}

func trunkBackward(layers []Linear, c trunkCache, dh *mat.Dense, grads []Linear) {
	for i := len(layers) - 1; i >= 0; i-- {
		dz := reluGrad(c.pre[i], dh)
		dh = layers[i].backward(c.inputs[i], dz, grads[i])
	}
}

func relu(z *mat.Dense) *mat.Dense {
	r, c := z.Dims()
	h := mat.NewDense(r, c, nil)
	h.Apply(func(_, _ int, v float64) float64 { return math.Max(0, v) }, z)
	return h
}

func reluGrad(pre, dh *mat.Dense) *mat.Dense {
	r, c := pre.Dims()
	dz := mat.NewDense(r, c, nil)
	dz.Apply(func(i, j int, v float64) float64 {
		if pre.At(i, j) > 0 {
			return v
		}
		return 0
	}, dh)
	return dz
}

// #endregion trunk

// #region activations
func softplus(x float64) float64 {
	if x > 20 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// #endregion activations

func toMatrix(rows [][]float64, cols int) *mat.Dense {
	data := make([]float64, 0, len(rows)*cols)
	for _, r := range rows {
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), cols, data)
}
