package policy

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/rollout"
)

// #region optimizer
// Optimizer owns the actor-critic parameters. Train is the only writer;
// action selection takes a read lock and always sees the live actor.
type Optimizer struct {
	mu     sync.RWMutex
	config Config
	params Params
	adam   *adam
	steps  int

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewOptimizer creates an optimizer with freshly initialised networks.
func NewOptimizer(obsDim int, config Config) *Optimizer {
	rng := rand.New(rand.NewPCG(config.Seed, config.Seed^0x9e3779b97f4a7c15))
	return &Optimizer{
		config: config,
		params: NewParams(obsDim, facade.ActionDim, config, rng),
		adam:   newAdam(config),
		rng:    rng,
	}
}

// Config returns the optimizer configuration.
func (o *Optimizer) Config() Config {
	return o.config
}

// ObservationDim returns the state size the networks accept.
func (o *Optimizer) ObservationDim() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.params.ObservationDim()
}

// Params returns a deep copy of the current parameters.
func (o *Optimizer) Params() Params {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.params.Clone()
}

// SetParams replaces the parameters, e.g. after a rollback or when loading
// a checkpoint. Adam moments are reset.
func (o *Optimizer) SetParams(p Params) error {
	if err := p.validate(); err != nil {
		return err
	}
	if p.ActionDim() != facade.ActionDim {
		return fmt.Errorf("action dim %d, want %d: %w", p.ActionDim(), facade.ActionDim, ErrCorruptBlob)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if p.ObservationDim() != o.params.ObservationDim() {
		return fmt.Errorf("params take %d inputs, optimizer %d: %w", p.ObservationDim(), o.params.ObservationDim(), ErrObservationDim)
	}
	o.params = p.Clone()
	o.adam.reset()
	return nil
}

// Steps returns the number of optimization steps taken.
func (o *Optimizer) Steps() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.steps
}

// #endregion optimizer

// #region action-selection
// Distribution returns the actor's Gaussian for one observation.
func (o *Optimizer) Distribution(obs facade.Observation) (mean, std facade.Action, err error) {
	v := obs.Vector()
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(v) != o.params.ObservationDim() {
		return mean, std, fmt.Errorf("got %d, want %d: %w", len(v), o.params.ObservationDim(), ErrObservationDim)
	}
	pass := o.params.Actor.forward(mat.NewDense(1, len(v), v), o.config.MinStd)
	for j := 0; j < facade.ActionDim; j++ {
		mean[j] = pass.mean.At(0, j)
		std[j] = pass.std.At(0, j)
	}
	return mean, std, nil
}

// SelectAction samples an action for obs and clips it to [0, 1].
func (o *Optimizer) SelectAction(obs facade.Observation) (facade.Action, error) {
	mean, std, err := o.Distribution(obs)
	if err != nil {
		return facade.Action{}, err
	}
	o.rngMu.Lock()
	draw := sample(mean[:], std[:], o.rng)
	o.rngMu.Unlock()

	var a facade.Action
	copy(a[:], draw)
	return a.Clip(), nil
}

// Mean returns the deterministic clipped mean action, used when serving.
func (o *Optimizer) Mean(obs facade.Observation) (facade.Action, error) {
	mean, _, err := o.Distribution(obs)
	if err != nil {
		return facade.Action{}, err
	}
	return mean.Clip(), nil
}

// #endregion action-selection

// #region train
// Train consumes one episode's batch with a single joint Adam step over
// actor and critic.
func (o *Optimizer) Train(batch rollout.Batch) (TrainResult, error) {
	n := batch.Len()
	if n == 0 {
		return TrainResult{}, ErrEmptyBatch
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	dim := o.params.ObservationDim()
	for i := 0; i < n; i++ {
		if len(batch.States[i]) != dim || len(batch.NextStates[i]) != dim {
			return TrainResult{}, fmt.Errorf("transition %d: %w", i, ErrObservationDim)
		}
	}

	states := toMatrix(batch.States, dim)
	nextStates := toMatrix(batch.NextStates, dim)
	actions := make([][]float64, n)
	for i, a := range batch.Actions {
		actions[i] = append([]float64(nil), a[:]...)
	}

	values := o.params.Critic.forward(states).values
	nextValues := o.params.Critic.forward(nextStates).values
	adv := Advantages(batch.Rewards, values, nextValues, batch.Dones, o.config.Gamma)
	returns := make([]float64, n)
	for i := range adv {
		returns[i] = adv[i] + values[i]
	}

	frozen := o.params.Actor.clone()
	old := frozen.forward(states, o.config.MinStd)

	obj := objective{
		states:     states,
		actions:    actions,
		advantages: NormalizeAdvantages(adv, o.config.AdvantageEpsilon),
		returns:    returns,
		oldLogp:    logProbs(old.mean, old.std, actions),
		config:     o.config,
	}

	grads := o.params.zeroLike()
	terms := obj.evaluate(o.params, &grads)
	o.adam.step(o.params.tensors(), grads.tensors())
	o.steps++

	after := o.params.Actor.forward(states, o.config.MinStd)
	newLogp := logProbs(after.mean, after.std, actions)
	var clipped int
	var kl float64
	for i := range newLogp {
		r := math.Exp(newLogp[i] - obj.oldLogp[i])
		if r < 1-o.config.ClipEpsilon || r > 1+o.config.ClipEpsilon {
			clipped++
		}
		kl += obj.oldLogp[i] - newLogp[i]
	}

	return TrainResult{
		PolicyLoss:    terms.policy,
		ValueLoss:     terms.value,
		Entropy:       terms.entropy,
		TotalLoss:     terms.total,
		ClipFraction:  float64(clipped) / float64(n),
		ApproxKL:      kl / float64(n),
		AdvantageMean: stat.Mean(adv, nil),
		Samples:       n,
		Steps:         o.steps,
	}, nil
}

// #endregion train

// #region objective
type lossTerms struct {
	policy, value, entropy, total float64
}

// objective is the PPO loss for one batch with the old policy fixed.
type objective struct {
	states     *mat.Dense
	actions    [][]float64
	advantages []float64 // normalised
	returns    []float64
	oldLogp    []float64
	config     Config
}

// evaluate computes the loss under p. When grads is non-nil the gradient of
// the total loss is accumulated into it.
func (ob objective) evaluate(p Params, grads *Params) lossTerms {
	cfg := ob.config
	n := len(ob.actions)
	nf := float64(n)

	ap := p.Actor.forward(ob.states, cfg.MinStd)
	logp := logProbs(ap.mean, ap.std, ob.actions)
	ratios := make([]float64, n)
	for i := range ratios {
		ratios[i] = math.Exp(logp[i] - ob.oldLogp[i])
	}

	cp := p.Critic.forward(ob.states)
	var value float64
	for i, v := range cp.values {
		d := v - ob.returns[i]
		value += d * d
	}
	value /= nf

	var t lossTerms
	t.policy = SurrogateLoss(ratios, ob.advantages, cfg.ClipEpsilon)
	t.value = value
	t.entropy = meanEntropy(ap.std)
	t.total = t.policy + cfg.ValueCoef*t.value - cfg.EntropyCoef*t.entropy

	if grads == nil {
		return t
	}

	_, d := ap.mean.Dims()
	dMean := mat.NewDense(n, d, nil)
	dStd := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		dLogp := surrogateGrad(ratios[i], ob.advantages[i], cfg.ClipEpsilon) / nf * ratios[i]
		for j := 0; j < d; j++ {
			mu, sigma := ap.mean.At(i, j), ap.std.At(i, j)
			diff := ob.actions[i][j] - mu
			dMean.Set(i, j, dLogp*diff/(sigma*sigma))
			dStd.Set(i, j, dLogp*(diff*diff/(sigma*sigma*sigma)-1/sigma)-cfg.EntropyCoef/(nf*sigma))
		}
	}
	p.Actor.backward(ap, dMean, dStd, grads.Actor)

	dValues := make([]float64, n)
	for i, v := range cp.values {
		dValues[i] = cfg.ValueCoef * 2 * (v - ob.returns[i]) / nf
	}
	p.Critic.backward(cp, dValues, grads.Critic)

	return t
}

// surrogateGrad is the derivative of −min(r·A, clip(r)·A) with respect to r.
func surrogateGrad(ratio, adv, eps float64) float64 {
	if ratio*adv <= clip(ratio, 1-eps, 1+eps)*adv {
		return -adv
	}
	return 0
}

// #endregion objective

// #region helpers
// Advantages returns the one-step advantages r + γ·V(s')·(1−done) − V(s).
func Advantages(rewards, values, nextValues []float64, dones []bool, gamma float64) []float64 {
	out := make([]float64, len(rewards))
	for i, r := range rewards {
		next := nextValues[i]
		if dones[i] {
			next = 0
		}
		out[i] = r + gamma*next - values[i]
	}
	return out
}

// NormalizeAdvantages rescales to zero mean and unit population variance.
func NormalizeAdvantages(adv []float64, eps float64) []float64 {
	mean, std := stat.PopMeanStdDev(adv, nil)
	out := make([]float64, len(adv))
	for i, a := range adv {
		out[i] = (a - mean) / (std + eps)
	}
	return out
}

// SurrogateLoss is the clipped PPO objective −mean(min(r·A, clip(r, 1−ε, 1+ε)·A)).
func SurrogateLoss(ratios, advantages []float64, eps float64) float64 {
	if len(ratios) == 0 {
		return 0
	}
	var sum float64
	for i, r := range ratios {
		a := advantages[i]
		sum += math.Min(r*a, clip(r, 1-eps, 1+eps)*a)
	}
	return -sum / float64(len(ratios))
}

func clip(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// #endregion helpers
