package physics

import (
	"errors"
	"math"
	"testing"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
)

func twoPanels(rot0, rot1, dt float64) []facade.PanelRecord {
	return []facade.PanelRecord{
		{Index: 0, Time: 0, Rotation: rot0, Depth: 0.2},
		{Index: 1, Time: dt, Rotation: rot1, Depth: 0.2},
	}
}

func TestWindForce(t *testing.T) {
	if got := WindForce(10); math.Abs(got-61.25) > 1e-9 {
		t.Fatalf("expected 61.25 N, got %f", got)
	}
	if WindForce(0) != 0 {
		t.Fatal("expected zero force in still air")
	}
}

func TestZeroForceConvergesToRest(t *testing.T) {
	var last float64
	for _, horizon := range []float64{40, 80} {
		cfg := DefaultFilterConfig()
		cfg.Horizon = horizon
		cfg.Resolution = int(horizon * 100)
		f := NewFilter(cfg)
		out := f.Simulate([]facade.PanelRecord{{Depth: 0.5}}, 0)
		last = math.Abs(out[0].Depth)
		if last > 1e-3 {
			t.Fatalf("horizon %.0f: displacement %g did not decay toward zero", horizon, last)
		}
		if math.Abs(out[0].Velocity) > 1e-2 {
			t.Fatalf("horizon %.0f: velocity %g did not decay", horizon, out[0].Velocity)
		}
	}
	if last > 1e-6 {
		t.Fatalf("expected near-rest displacement at long horizon, got %g", last)
	}
}

func TestConstantForceSettlesAtEquilibrium(t *testing.T) {
	cfg := DefaultFilterConfig()
	cfg.Horizon = 60
	cfg.Resolution = 6000
	f := NewFilter(cfg)
	out := f.Simulate([]facade.PanelRecord{{Depth: 0.1}}, 20)
	if want := 20 / cfg.SpringConstant; math.Abs(out[0].Depth-want) > 1e-4 {
		t.Fatalf("expected equilibrium %f, got %f", want, out[0].Depth)
	}
}

func TestSimulatePassesRotationThrough(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	in := []facade.PanelRecord{{Index: 4, Step: 2, Time: 3, Rotation: 42, Depth: 0.3}}
	out := f.Simulate(in, 5)
	if out[0].Rotation != 42 || out[0].Index != 4 || out[0].Step != 2 || out[0].Time != 3 {
		t.Fatalf("pass-through fields changed: %+v", out[0])
	}
	if in[0].Depth != 0.3 {
		t.Fatal("input panels must not be mutated")
	}
}

func TestRotationRateTooFastIsInadmissible(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	v, err := f.Run(twoPanels(0, 40, 1), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v.Admissible {
		t.Fatal("40°/s should exceed the 30°/s limit")
	}
	if len(v.Violations) != 1 || v.Violations[0].Type != ViolationRotationRate {
		t.Fatalf("expected one rotation violation, got %+v", v.Violations)
	}
	if v.Violations[0].From != 0 || math.Abs(v.Violations[0].Rate-40) > 1e-9 {
		t.Fatalf("unexpected violation detail %+v", v.Violations[0])
	}
}

func TestRotationRateWithinLimitIsAdmissible(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	v, err := f.Run(twoPanels(0, 20, 1), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !v.Admissible {
		t.Fatalf("20°/s should be admissible, got %+v", v.Violations)
	}
	if len(v.Panels) != 2 {
		t.Fatalf("expected 2 simulated panels, got %d", len(v.Panels))
	}
}

func TestDepthRateViolation(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	panels := []facade.PanelRecord{
		{Time: 0, Depth: 0.1},
		{Time: 0.5, Depth: 0.5},
	}
	violations, err := f.Check(panels)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(violations) != 1 || violations[0].Type != ViolationDepthRate {
		t.Fatalf("expected a depth violation, got %+v", violations)
	}
}

func TestZeroTimeDeltaIsError(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	_, err := f.Run(twoPanels(0, 0, 0), 0)
	if !errors.Is(err, ErrNonPositiveTimeDelta) {
		t.Fatalf("expected ErrNonPositiveTimeDelta, got %v", err)
	}
	_, err = f.Run(twoPanels(0, 0, -1), 0)
	if !errors.Is(err, ErrNonPositiveTimeDelta) {
		t.Fatalf("expected ErrNonPositiveTimeDelta for negative dt, got %v", err)
	}
}

func TestRunFromAnchor(t *testing.T) {
	f := NewFilter(DefaultFilterConfig())
	anchor := facade.PanelRecord{Time: 10, Rotation: 0, Depth: 0.2}
	next := []facade.PanelRecord{{Time: 11, Rotation: 45, Depth: 0.2}, {Time: 12, Rotation: 45, Depth: 0.2}}

	v, err := f.RunFrom(&anchor, next, 0)
	if err != nil {
		t.Fatalf("RunFrom: %v", err)
	}
	if v.Admissible {
		t.Fatal("45° jump from the anchor in 1s should be inadmissible")
	}
	if v.Violations[0].From != -1 {
		t.Fatalf("expected violation to start at the anchor, got %d", v.Violations[0].From)
	}
	if len(v.Panels) != 2 {
		t.Fatalf("anchor must not be returned, got %d panels", len(v.Panels))
	}
}
