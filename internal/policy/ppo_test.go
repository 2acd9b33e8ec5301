package policy

import (
	"encoding/binary"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/rollout"
)

func testObservation() facade.Observation {
	return facade.Observation{
		Temperature:   21,
		Humidity:      48,
		WindSpeed:     3.5,
		WindDirection: 200,
		CloudCover:    60,
		Condition:     facade.ConditionClouds,
	}
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.HiddenSize = 8
	return cfg
}

// #region surrogate-tests

func TestSurrogateLossSymmetry(t *testing.T) {
	// Zero-mean advantages so the constant A term cancels.
	adv := []float64{1.5, -0.5, -1.0}
	neg := []float64{-1.5, 0.5, 1.0}
	for _, delta := range []float64{0.05, 0.15, 0.35, 0.8} {
		ratios := []float64{1 + delta, 1 - delta/2, 1 + delta/3}
		mirrored := []float64{1 - delta, 1 + delta/2, 1 - delta/3}
		a := SurrogateLoss(ratios, adv, 0.2)
		b := SurrogateLoss(mirrored, neg, 0.2)
		if math.Abs(a-b) > 1e-12 {
			t.Fatalf("delta=%g: loss %f != mirrored %f", delta, a, b)
		}
	}
}

func TestSurrogateLossClipping(t *testing.T) {
	if got := SurrogateLoss([]float64{2}, []float64{1}, 0.2); math.Abs(got+1.2) > 1e-12 {
		t.Fatalf("positive advantage should clip at 1.2, got %f", got)
	}
	if got := SurrogateLoss([]float64{0.5}, []float64{-1}, 0.2); math.Abs(got-0.8) > 1e-12 {
		t.Fatalf("negative advantage should clip at 0.8, got %f", got)
	}
	// A large ratio on a harmful action is never dampened.
	if got := SurrogateLoss([]float64{2}, []float64{-1}, 0.2); math.Abs(got-2) > 1e-12 {
		t.Fatalf("expected unclipped loss 2, got %f", got)
	}
}

func TestAdvantagesMaskTerminal(t *testing.T) {
	adv := Advantages([]float64{1, 1}, []float64{0.5, 0.5}, []float64{2, 2}, []bool{false, true}, 0.99)
	if math.Abs(adv[0]-(1+0.99*2-0.5)) > 1e-12 {
		t.Fatalf("unexpected non-terminal advantage %f", adv[0])
	}
	if math.Abs(adv[1]-0.5) > 1e-12 {
		t.Fatalf("terminal advantage must ignore next value, got %f", adv[1])
	}
}

func TestNormalizeAdvantages(t *testing.T) {
	norm := NormalizeAdvantages([]float64{1, 2, 3, 10}, 1e-8)
	mean, std := stat.PopMeanStdDev(norm, nil)
	if math.Abs(mean) > 1e-9 || math.Abs(std-1) > 1e-6 {
		t.Fatalf("expected zero mean unit std, got %f %f", mean, std)
	}
	same := NormalizeAdvantages([]float64{4, 4, 4}, 1e-8)
	for _, v := range same {
		if v != 0 {
			t.Fatalf("constant advantages should normalise to 0, got %v", same)
		}
	}
}

// #endregion surrogate-tests

// #region action-tests

func TestSelectActionWithinUnitCube(t *testing.T) {
	o := NewOptimizer(facade.BaseObservationDim, DefaultConfig())
	obs := testObservation()
	for i := 0; i < 200; i++ {
		a, err := o.SelectAction(obs)
		if err != nil {
			t.Fatalf("SelectAction: %v", err)
		}
		for j, v := range a {
			if v < 0 || v > 1 {
				t.Fatalf("sample %d dim %d out of range: %f", i, j, v)
			}
		}
	}
	_, std, err := o.Distribution(obs)
	if err != nil {
		t.Fatalf("Distribution: %v", err)
	}
	for _, s := range std {
		if s < DefaultConfig().MinStd {
			t.Fatalf("std below floor: %f", s)
		}
	}
}

func TestSelectActionRejectsWrongDim(t *testing.T) {
	o := NewOptimizer(facade.ExtendedObservationDim, DefaultConfig())
	if _, err := o.SelectAction(testObservation()); !errors.Is(err, ErrObservationDim) {
		t.Fatalf("expected ErrObservationDim, got %v", err)
	}
}

// #endregion action-tests

// #region train-tests

func TestGradientMatchesFiniteDifference(t *testing.T) {
	cfg := smallConfig()
	rng := rand.New(rand.NewPCG(3, 4))
	p := NewParams(4, 3, cfg, rng)

	n := 6
	states := make([][]float64, n)
	actions := make([][]float64, n)
	adv := make([]float64, n)
	returns := make([]float64, n)
	for i := 0; i < n; i++ {
		states[i] = []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		actions[i] = []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		adv[i] = rng.NormFloat64()
		returns[i] = rng.NormFloat64()
	}
	x := toMatrix(states, 4)
	cur := p.Actor.forward(x, cfg.MinStd)
	oldLogp := logProbs(cur.mean, cur.std, actions)
	for i := range oldLogp {
		oldLogp[i] += 0.05 * float64(i%3-1) // ratios near but not at 1
	}

	obj := objective{states: x, actions: actions, advantages: adv, returns: returns, oldLogp: oldLogp, config: cfg}
	grads := p.zeroLike()
	obj.evaluate(p, &grads)

	const h = 1e-6
	pt, gt := p.tensors(), grads.tensors()
	for k := range pt {
		data := pt[k].RawMatrix().Data
		for _, idx := range []int{0, len(data) / 2, len(data) - 1} {
			orig := data[idx]
			data[idx] = orig + h
			plus := obj.evaluate(p, nil).total
			data[idx] = orig - h
			minus := obj.evaluate(p, nil).total
			data[idx] = orig

			numeric := (plus - minus) / (2 * h)
			analytic := gt[k].RawMatrix().Data[idx]
			if math.Abs(numeric-analytic) > 1e-5+1e-3*math.Abs(numeric) {
				t.Fatalf("tensor %d entry %d: analytic %g numeric %g", k, idx, analytic, numeric)
			}
		}
	}
}

func episodeBatch(o *Optimizer, n int) rollout.Batch {
	buf := rollout.NewBuffer(n)
	obs := testObservation()
	for i := 0; i < n; i++ {
		a, _ := o.SelectAction(obs)
		next := obs
		next.Temperature += 0.5
		buf.Add(rollout.Transition{
			State:     obs.Vector(),
			Action:    a,
			Reward:    100 * (a[1] - 0.5),
			NextState: next.Vector(),
			Done:      i == n-1,
		})
		obs = next
	}
	return buf.Batch()
}

func TestTrainUpdatesParams(t *testing.T) {
	o := NewOptimizer(facade.BaseObservationDim, DefaultConfig())
	before := o.Params()

	res, err := o.Train(episodeBatch(o, 24))
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if res.Samples != 24 || res.Steps != 1 || o.Steps() != 1 {
		t.Fatalf("unexpected counters: %+v", res)
	}
	for _, v := range []float64{res.PolicyLoss, res.ValueLoss, res.Entropy, res.TotalLoss, res.ApproxKL} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Fatalf("non-finite train result %+v", res)
		}
	}
	if want := res.PolicyLoss + 0.5*res.ValueLoss - 0.01*res.Entropy; math.Abs(res.TotalLoss-want) > 1e-9 {
		t.Fatalf("total loss %f, want %f", res.TotalLoss, want)
	}

	after := o.Params()
	if !after.Finite() {
		t.Fatal("parameters became non-finite")
	}
	moved := false
	bt, at := before.tensors(), after.tensors()
	for k := range bt {
		if !equalData(bt[k].RawMatrix().Data, at[k].RawMatrix().Data) {
			moved = true
			break
		}
	}
	if !moved {
		t.Fatal("Train did not change any parameter")
	}
	if d := after.Distance(before); d <= 0 || d > 1 {
		t.Fatalf("one Adam step moved parameters by %f", d)
	}
	if before.Distance(before.Clone()) != 0 {
		t.Fatal("distance to a clone must be zero")
	}
	other := NewParams(facade.ExtendedObservationDim, facade.ActionDim, smallConfig(), rand.New(rand.NewPCG(1, 2)))
	if !math.IsInf(before.Distance(other), 1) {
		t.Fatal("distance across architectures must be +Inf")
	}
}

func TestTrainEmptyBatch(t *testing.T) {
	o := NewOptimizer(facade.BaseObservationDim, DefaultConfig())
	if _, err := o.Train(rollout.Batch{}); !errors.Is(err, ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
}

// #endregion train-tests

// #region blob-tests

func TestParamsBlobRestoresPolicy(t *testing.T) {
	src := NewOptimizer(facade.BaseObservationDim, DefaultConfig())
	p := src.Params()

	restored, err := UnmarshalParams(p.MarshalActor(), p.MarshalCritic())
	if err != nil {
		t.Fatalf("UnmarshalParams: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Seed = 99
	dst := NewOptimizer(facade.BaseObservationDim, cfg)
	if err := dst.SetParams(restored); err != nil {
		t.Fatalf("SetParams: %v", err)
	}

	want, _ := src.Mean(testObservation())
	got, _ := dst.Mean(testObservation())
	if want != got {
		t.Fatalf("restored policy differs: %v vs %v", got, want)
	}
}

func TestUnmarshalRejectsCorruptBlob(t *testing.T) {
	p := NewOptimizer(facade.BaseObservationDim, DefaultConfig()).Params()
	actor := p.MarshalActor()
	if _, err := UnmarshalParams(actor[:len(actor)-3], p.MarshalCritic()); !errors.Is(err, ErrCorruptBlob) {
		t.Fatalf("expected ErrCorruptBlob for truncated actor, got %v", err)
	}
	if _, err := UnmarshalParams(p.MarshalCritic(), p.MarshalActor()); !errors.Is(err, ErrCorruptBlob) {
		t.Fatalf("expected ErrCorruptBlob for swapped blobs, got %v", err)
	}

	huge := binary.LittleEndian.AppendUint32(nil, 1)
	huge = binary.LittleEndian.AppendUint32(huge, 1<<31)
	huge = binary.LittleEndian.AppendUint32(huge, 1<<31)
	huge = append(huge, make([]byte, 16)...)
	if _, err := UnmarshalParams(huge, p.MarshalCritic()); !errors.Is(err, ErrCorruptBlob) {
		t.Fatalf("expected ErrCorruptBlob for oversized tensor header, got %v", err)
	}
}

// #endregion blob-tests

func equalData(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
