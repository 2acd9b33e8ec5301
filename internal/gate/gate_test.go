package gate

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/policy"
)

func makeParams(seed uint64) policy.Params {
	cfg := policy.DefaultConfig()
	cfg.HiddenSize = 8
	return policy.NewParams(facade.BaseObservationDim, facade.ActionDim, cfg, rand.New(rand.NewPCG(seed, seed+1)))
}

func cleanSignals() Signals {
	return Signals{Steps: 24}
}

func TestGateCommitOnCleanUpdate(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	p := makeParams(1)

	decision := g.Evaluate(p, p.Clone(), cleanSignals(), policy.TrainResult{})

	if decision.Action != ActionCommit {
		t.Fatalf("expected commit, got %s: %s", decision.Action, decision.Reason)
	}
	if decision.Vetoed {
		t.Fatal("should not be vetoed")
	}
	if decision.DeltaNorm != 0 {
		t.Fatalf("identical params should have zero delta, got %f", decision.DeltaNorm)
	}
	if math.Abs(decision.SoftScore-1.0) > 1e-9 {
		t.Fatalf("clean update should score 1.0, got %f", decision.SoftScore)
	}
}

func TestGateRejectOnDeltaNorm(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	old, proposed := makeParams(1), makeParams(2)

	decision := g.Evaluate(old, proposed, cleanSignals(), policy.TrainResult{})

	if decision.Action != ActionReject || !decision.Vetoed {
		t.Fatalf("expected veto, got %s", decision.Action)
	}
	if decision.VetoSignals[0].Type != VetoDeltaNorm {
		t.Fatalf("expected VetoDeltaNorm, got %s", decision.VetoSignals[0].Type)
	}
	if decision.SoftScore != 0 {
		t.Fatal("vetoed decisions carry no soft score")
	}
}

func TestGateRejectOnDegradedEpisode(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	p := makeParams(1)

	decision := g.Evaluate(p, p.Clone(), Signals{Steps: 24, Degraded: 13}, policy.TrainResult{})

	if decision.Action != ActionReject {
		t.Fatalf("expected reject, got %s", decision.Action)
	}
	if decision.VetoSignals[0].Type != VetoDegraded {
		t.Fatalf("expected VetoDegraded, got %s", decision.VetoSignals[0].Type)
	}

	decision = g.Evaluate(p, p.Clone(), Signals{Steps: 24, Degraded: 12}, policy.TrainResult{})
	if decision.Action != ActionCommit {
		t.Fatalf("half degraded is within the cap, got %s: %s", decision.Action, decision.Reason)
	}
}

func TestGateRejectOnDivergence(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	p := makeParams(1)

	decision := g.Evaluate(p, p.Clone(), cleanSignals(), policy.TrainResult{ApproxKL: 0.9})

	if decision.Action != ActionReject || decision.VetoSignals[0].Type != VetoDivergence {
		t.Fatalf("expected divergence veto, got %+v", decision)
	}
}

func TestGateRejectOnEmptyEpisode(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	p := makeParams(1)

	decision := g.Evaluate(p, p.Clone(), Signals{}, policy.TrainResult{})

	if decision.Action != ActionReject || decision.VetoSignals[0].Type != VetoShortEpisode {
		t.Fatalf("expected short-episode veto, got %+v", decision)
	}
}

func TestGateCollectsAllVetoes(t *testing.T) {
	g := NewGate(DefaultGateConfig())

	decision := g.Evaluate(makeParams(1), makeParams(2), Signals{Steps: 2, Degraded: 2}, policy.TrainResult{ApproxKL: 1})

	if len(decision.VetoSignals) != 3 {
		t.Fatalf("expected 3 vetoes, got %d: %+v", len(decision.VetoSignals), decision.VetoSignals)
	}
}

func TestSoftScorePenalties(t *testing.T) {
	g := NewGate(DefaultGateConfig())
	p := makeParams(1)

	decision := g.Evaluate(p, p.Clone(), Signals{Steps: 24, Penalties: 12}, policy.TrainResult{ClipFraction: 0.5})

	// 0.4*0.5 + 0.3*0.5 + 0.3*1
	if math.Abs(decision.SoftScore-0.65) > 1e-9 {
		t.Fatalf("soft score = %f, want 0.65", decision.SoftScore)
	}
}
