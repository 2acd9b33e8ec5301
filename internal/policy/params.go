package policy

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// #region actor
// Actor maps a state to a per-dimension Gaussian: tanh mean and softplus
// scale over a shared ReLU trunk.
type Actor struct {
	Trunk []Linear
	Mean  Linear
	Std   Linear
}

type actorPass struct {
	hidden *mat.Dense
	cache  trunkCache
	mean   *mat.Dense
	std    *mat.Dense
	stdPre *mat.Dense
}

func (a Actor) forward(x *mat.Dense, minStd float64) actorPass {
	h, cache := trunkForward(a.Trunk, x)
	meanPre := a.Mean.forward(h)
	stdPre := a.Std.forward(h)

	n, d := meanPre.Dims()
	mean := mat.NewDense(n, d, nil)
	mean.Apply(func(_, _ int, v float64) float64 { return math.Tanh(v) }, meanPre)
	std := mat.NewDense(n, d, nil)
	std.Apply(func(_, _ int, v float64) float64 { return softplus(v) + minStd }, stdPre)

	return actorPass{hidden: h, cache: cache, mean: mean, std: std, stdPre: stdPre}
}

// backward takes gradients with respect to the mean and std outputs.
func (a Actor) backward(p actorPass, dMean, dStd *mat.Dense, g Actor) {
	n, d := dMean.Dims()
	dMeanPre := mat.NewDense(n, d, nil)
	dStdPre := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			mu := p.mean.At(i, j)
			dMeanPre.Set(i, j, dMean.At(i, j)*(1-mu*mu))
			dStdPre.Set(i, j, dStd.At(i, j)*sigmoid(p.stdPre.At(i, j)))
		}
	}

	dh := a.Mean.backward(p.hidden, dMeanPre, g.Mean)
	dh.Add(dh, a.Std.backward(p.hidden, dStdPre, g.Std))
	trunkBackward(a.Trunk, p.cache, dh, g.Trunk)
}

func (a Actor) clone() Actor {
	out := Actor{Mean: a.Mean.clone(), Std: a.Std.clone()}
	for _, l := range a.Trunk {
		out.Trunk = append(out.Trunk, l.clone())
	}
	return out
}

func (a Actor) tensors() []*mat.Dense {
	var ts []*mat.Dense
	for _, l := range a.Trunk {
		ts = append(ts, l.W, l.B)
	}
	return append(ts, a.Mean.W, a.Mean.B, a.Std.W, a.Std.B)
}

// #endregion actor

// #region critic
// Critic maps a state to a scalar value estimate.
type Critic struct {
	Trunk []Linear
	Value Linear
}

type criticPass struct {
	hidden *mat.Dense
	cache  trunkCache
	values []float64
}

func (c Critic) forward(x *mat.Dense) criticPass {
	h, cache := trunkForward(c.Trunk, x)
	out := c.Value.forward(h)
	n, _ := out.Dims()
	values := make([]float64, n)
	for i := range values {
		values[i] = out.At(i, 0)
	}
	return criticPass{hidden: h, cache: cache, values: values}
}

// backward takes the gradient with respect to each value estimate.
func (c Critic) backward(p criticPass, dValues []float64, g Critic) {
	dz := mat.NewDense(len(dValues), 1, append([]float64(nil), dValues...))
	dh := c.Value.backward(p.hidden, dz, g.Value)
	trunkBackward(c.Trunk, p.cache, dh, g.Trunk)
}

func (c Critic) clone() Critic {
	out := Critic{Value: c.Value.clone()}
	for _, l := range c.Trunk {
		out.Trunk = append(out.Trunk, l.clone())
	}
	return out
}

func (c Critic) tensors() []*mat.Dense {
	var ts []*mat.Dense
	for _, l := range c.Trunk {
		ts = append(ts, l.W, l.B)
	}
	return append(ts, c.Value.W, c.Value.B)
}

// #endregion critic

// #region params
// Params is the complete learning state: actor and critic weights.
type Params struct {
	Actor  Actor
	Critic Critic
}

// NewParams initialises actor and critic for the given dimensions.
func NewParams(obsDim, actionDim int, config Config, rng *rand.Rand) Params {
	var p Params
	in := obsDim
	for i := 0; i < config.HiddenLayers; i++ {
		p.Actor.Trunk = append(p.Actor.Trunk, newLinear(in, config.HiddenSize, rng))
		p.Critic.Trunk = append(p.Critic.Trunk, newLinear(in, config.HiddenSize, rng))
		in = config.HiddenSize
	}
	p.Actor.Mean = newLinear(in, actionDim, rng)
	p.Actor.Std = newLinear(in, actionDim, rng)
	p.Critic.Value = newLinear(in, 1, rng)
	return p
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	return Params{Actor: p.Actor.clone(), Critic: p.Critic.clone()}
}

// ObservationDim returns the input size the networks accept.
func (p Params) ObservationDim() int {
	if len(p.Actor.Trunk) == 0 {
		r, _ := p.Actor.Mean.W.Dims()
		return r
	}
	r, _ := p.Actor.Trunk[0].W.Dims()
	return r
}

// ActionDim returns the number of action dimensions.
func (p Params) ActionDim() int {
	_, c := p.Actor.Mean.W.Dims()
	return c
}

func (p Params) tensors() []*mat.Dense {
	return append(p.Actor.tensors(), p.Critic.tensors()...)
}

func (p Params) zeroLike() Params {
	var z Params
	for _, l := range p.Actor.Trunk {
		z.Actor.Trunk = append(z.Actor.Trunk, zeroLinear(l))
	}
	z.Actor.Mean = zeroLinear(p.Actor.Mean)
	z.Actor.Std = zeroLinear(p.Actor.Std)
	for _, l := range p.Critic.Trunk {
		z.Critic.Trunk = append(z.Critic.Trunk, zeroLinear(l))
	}
	z.Critic.Value = zeroLinear(p.Critic.Value)
	return z
}

// Norm returns the L2 norm over every weight and bias.
func (p Params) Norm() float64 {
	return l2(p.tensors())
}

// ActorNorm returns the L2 norm of the actor weights.
func (p Params) ActorNorm() float64 {
	return l2(p.Actor.tensors())
}

// CriticNorm returns the L2 norm of the critic weights.
func (p Params) CriticNorm() float64 {
	return l2(p.Critic.tensors())
}

// Distance returns the L2 norm of p − q over every weight and bias, or +Inf
// when the architectures differ.
func (p Params) Distance(q Params) float64 {
	a, b := p.tensors(), q.tensors()
	if len(a) != len(b) {
		return math.Inf(1)
	}
	diffs := make([]*mat.Dense, len(a))
	for i := range a {
		ar, ac := a[i].Dims()
		br, bc := b[i].Dims()
		if ar != br || ac != bc {
			return math.Inf(1)
		}
		diffs[i] = mat.NewDense(ar, ac, nil)
		diffs[i].Sub(a[i], b[i])
	}
	return l2(diffs)
}

func l2(ts []*mat.Dense) float64 {
	var sum float64
	for _, t := range ts {
		n := mat.Norm(t, 2)
		sum += n * n
	}
	return math.Sqrt(sum)
}

// Finite reports whether every parameter is a finite number.
func (p Params) Finite() bool {
	for _, t := range p.tensors() {
		for _, v := range t.RawMatrix().Data {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// #endregion params

// #region blob-encoding
// MarshalActor encodes the actor weights as a standalone blob.
func (p Params) MarshalActor() []byte {
	return encodeTensors(p.Actor.tensors())
}

// MarshalCritic encodes the critic weights as a standalone blob.
func (p Params) MarshalCritic() []byte {
	return encodeTensors(p.Critic.tensors())
}

// UnmarshalParams rebuilds a bundle from actor and critic blobs.
func UnmarshalParams(actorBlob, criticBlob []byte) (Params, error) {
	at, err := decodeTensors(actorBlob)
	if err != nil {
		return Params{}, fmt.Errorf("actor: %w", err)
	}
	ct, err := decodeTensors(criticBlob)
	if err != nil {
		return Params{}, fmt.Errorf("critic: %w", err)
	}
	if len(at) < 4 || len(at)%2 != 0 || len(ct) < 2 || len(ct)%2 != 0 {
		return Params{}, fmt.Errorf("tensor count actor=%d critic=%d: %w", len(at), len(ct), ErrCorruptBlob)
	}

	var p Params
	layers := pairs(at)
	p.Actor.Trunk = layers[:len(layers)-2]
	p.Actor.Mean = layers[len(layers)-2]
	p.Actor.Std = layers[len(layers)-1]

	layers = pairs(ct)
	p.Critic.Trunk = layers[:len(layers)-1]
	p.Critic.Value = layers[len(layers)-1]

	if err := p.validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

func pairs(ts []*mat.Dense) []Linear {
	out := make([]Linear, 0, len(ts)/2)
	for i := 0; i+1 < len(ts); i += 2 {
		out = append(out, Linear{W: ts[i], B: ts[i+1]})
	}
	return out
}

// validate checks that layer shapes chain and the heads agree.
func (p Params) validate() error {
	check := func(name string, layers []Linear) error {
		var prev int
		for i, l := range layers {
			in, out := l.W.Dims()
			br, bc := l.B.Dims()
			if br != 1 || bc != out {
				return fmt.Errorf("%s layer %d bias %dx%d: %w", name, i, br, bc, ErrCorruptBlob)
			}
			if i > 0 && in != prev {
				return fmt.Errorf("%s layer %d input %d, want %d: %w", name, i, in, prev, ErrCorruptBlob)
			}
			prev = out
		}
		return nil
	}

	actor := append(append([]Linear(nil), p.Actor.Trunk...), p.Actor.Mean)
	if err := check("actor", actor); err != nil {
		return err
	}
	if err := check("actor std", []Linear{p.Actor.Std}); err != nil {
		return err
	}
	mi, mo := p.Actor.Mean.W.Dims()
	si, so := p.Actor.Std.W.Dims()
	if mi != si || mo != so {
		return fmt.Errorf("actor heads disagree (%dx%d vs %dx%d): %w", mi, mo, si, so, ErrCorruptBlob)
	}
	critic := append(append([]Linear(nil), p.Critic.Trunk...), p.Critic.Value)
	if err := check("critic", critic); err != nil {
		return err
	}
	if _, c := p.Critic.Value.W.Dims(); c != 1 {
		return fmt.Errorf("critic head has %d outputs: %w", c, ErrCorruptBlob)
	}
	if ci, _ := critic[0].W.Dims(); ci != p.ObservationDim() {
		return fmt.Errorf("critic input %d, actor input %d: %w", ci, p.ObservationDim(), ErrCorruptBlob)
	}
	return nil
}

// encodeTensors writes a tensor count followed by rows, cols and the
// little-endian float64 data of each tensor.
func encodeTensors(ts []*mat.Dense) []byte {
	size := 4
	for _, t := range ts {
		r, c := t.Dims()
		size += 8 + r*c*8
	}
	buf := make([]byte, 0, size)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(ts)))
	for _, t := range ts {
		r, c := t.Dims()
		buf = binary.LittleEndian.AppendUint32(buf, uint32(r))
		buf = binary.LittleEndian.AppendUint32(buf, uint32(c))
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(t.At(i, j)))
			}
		}
	}
	return buf
}

func decodeTensors(b []byte) ([]*mat.Dense, error) {
	if len(b) < 4 {
		return nil, ErrCorruptBlob
	}
	count := int(binary.LittleEndian.Uint32(b))
	off := 4
	ts := make([]*mat.Dense, 0, count)
	for k := 0; k < count; k++ {
		if off+8 > len(b) {
			return nil, fmt.Errorf("tensor %d header: %w", k, ErrCorruptBlob)
		}
		r := int(binary.LittleEndian.Uint32(b[off:]))
		c := int(binary.LittleEndian.Uint32(b[off+4:]))
		off += 8
		avail := (len(b) - off) / 8
		if r <= 0 || c <= 0 || c > avail/r || r*c > avail {
			return nil, fmt.Errorf("tensor %d (%dx%d): %w", k, r, c, ErrCorruptBlob)
		}
		data := make([]float64, r*c)
		for i := range data {
			data[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[off:]))
			off += 8
		}
		ts = append(ts, mat.NewDense(r, c, data))
	}
	if off != len(b) {
		return nil, fmt.Errorf("%d trailing bytes: %w", len(b)-off, ErrCorruptBlob)
	}
	return ts, nil
}

// #endregion blob-encoding
