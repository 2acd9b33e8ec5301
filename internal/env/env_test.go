package env

import (
	"context"
	"errors"
	"testing"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/evaluator"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/physics"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/reward"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/weather"
)

var mildDay = weather.Reading{
	Temperature:   18,
	Humidity:      55,
	WindSpeed:     4,
	WindDirection: 180,
	CloudCover:    40,
	Condition:     "Clouds",
}

// nilEvaluator simulates a simulator that produced nothing.
type nilEvaluator struct{ calls int }

func (n *nilEvaluator) Evaluate(ctx context.Context, panels []facade.PanelRecord, w weather.Reading) (*evaluator.Result, error) {
	n.calls++
	return nil, nil
}

// flakyWeather succeeds a fixed number of times and then fails.
type flakyWeather struct{ ok int }

func (f *flakyWeather) Fetch(ctx context.Context) (weather.Reading, error) {
	if f.ok <= 0 {
		return weather.Reading{}, weather.ErrUnavailable
	}
	f.ok--
	return mildDay, nil
}

func newTestEnv(t *testing.T, cfg Config, src weather.Source, ev evaluator.Evaluator) *Environment {
	t.Helper()
	filter := physics.NewFilter(physics.DefaultFilterConfig())
	rm := reward.NewModel(reward.DefaultConfig())
	return New(cfg, src, ev, filter, rm, nil)
}

// #region episode-tests

func TestEpisodeDoneExactlyAtMaxSteps(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, DefaultConfig(), weather.Static{Reading: mildDay}, evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig()))

	if _, err := e.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	action := facade.Action{0.5, 0.2, 0.5}
	for i := 1; i <= 24; i++ {
		res, err := e.Step(ctx, action)
		if err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		if res.Done != (i == 24) {
			t.Fatalf("step %d: done=%v", i, res.Done)
		}
		if !res.Info.Admissible {
			t.Fatalf("step %d: constant action must stay admissible: %+v", i, res.Info.Violations)
		}
		if res.Info.Step != i {
			t.Fatalf("expected info step %d, got %d", i, res.Info.Step)
		}
	}
	if _, err := e.Step(ctx, action); !errors.Is(err, ErrEpisodeDone) {
		t.Fatalf("expected ErrEpisodeDone, got %v", err)
	}

	if _, err := e.Reset(ctx); err != nil {
		t.Fatalf("second Reset: %v", err)
	}
	if e.StepCount() != 0 || len(e.Panels()) != 0 {
		t.Fatal("Reset must clear step counter and facade")
	}
}

func TestFirstEvaluationRewardIsZero(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, DefaultConfig(), weather.Static{Reading: mildDay}, evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig()))
	if _, err := e.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	res, err := e.Step(ctx, facade.Action{0.3, 0.1, 0.3})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Reward != 0 || !res.Info.Breakdown.Baseline {
		t.Fatalf("first evaluation must be a zero-reward baseline, got %+v", res.Info.Breakdown)
	}
	if res.Info.EnergyUse <= 0 {
		t.Fatalf("expected energy use recorded, got %f", res.Info.EnergyUse)
	}
}

func TestObservationDimStable(t *testing.T) {
	ctx := context.Background()
	for _, extended := range []bool{false, true} {
		cfg := DefaultConfig()
		cfg.Extended = extended
		e := newTestEnv(t, cfg, weather.Static{Reading: mildDay}, evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig()))

		obs, err := e.Reset(ctx)
		if err != nil {
			t.Fatalf("Reset: %v", err)
		}
		if len(obs.Vector()) != e.ObservationDim() {
			t.Fatalf("reset observation has %d entries, want %d", len(obs.Vector()), e.ObservationDim())
		}
		res, err := e.Step(ctx, facade.Action{1, 0, 1})
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if len(res.Observation.Vector()) != e.ObservationDim() {
			t.Fatalf("step observation has %d entries, want %d", len(res.Observation.Vector()), e.ObservationDim())
		}
		if extended && res.Observation.PanelCount != facade.MaxPanelCount {
			t.Fatalf("expected extended panel count %d, got %d", facade.MaxPanelCount, res.Observation.PanelCount)
		}
	}
}

// #endregion episode-tests

// #region failure-tests

func TestInadmissibleActionPenalisedAndHeld(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.Extended = true
	e := newTestEnv(t, cfg, weather.Static{Reading: mildDay}, evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig()))
	if _, err := e.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	first, err := e.Step(ctx, facade.Action{0, 0, 0})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if !first.Info.Admissible {
		t.Fatal("first step should be admissible")
	}
	before := e.Panels()

	// 0° to 90° one second later is three times the rotation limit.
	res, err := e.Step(ctx, facade.Action{0, 1, 0})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if res.Info.Admissible {
		t.Fatal("expected inadmissible step")
	}
	if res.Reward != -1000 {
		t.Fatalf("expected penalty -1000, got %f", res.Reward)
	}
	if res.Observation != first.Observation {
		t.Fatalf("observation must be held: %+v vs %+v", res.Observation, first.Observation)
	}
	if len(res.Info.Violations) == 0 || res.Info.Violations[0].Type != physics.ViolationRotationRate {
		t.Fatalf("expected rotation violation, got %+v", res.Info.Violations)
	}
	after := e.Panels()
	if len(after) != len(before) || after[0] != before[0] {
		t.Fatal("facade must be unchanged after an inadmissible action")
	}
	if e.StepCount() != 2 {
		t.Fatalf("inadmissible step still counts, got %d", e.StepCount())
	}
}

func TestWeatherFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t, DefaultConfig(), weather.NewSequence(nil), evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig()))
	if _, err := e.Reset(ctx); !errors.Is(err, ErrWeatherUnavailable) {
		t.Fatalf("expected ErrWeatherUnavailable from Reset, got %v", err)
	}

	e = newTestEnv(t, DefaultConfig(), &flakyWeather{ok: 1}, evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig()))
	if _, err := e.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if _, err := e.Step(ctx, facade.Action{}); !errors.Is(err, ErrWeatherUnavailable) {
		t.Fatalf("expected ErrWeatherUnavailable from Step, got %v", err)
	}
}

func TestNilEvaluatorResultIsNeutral(t *testing.T) {
	ctx := context.Background()
	ev := &nilEvaluator{}
	e := newTestEnv(t, DefaultConfig(), weather.Static{Reading: mildDay}, ev)
	if _, err := e.Reset(ctx); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	for i := 0; i < 3; i++ {
		res, err := e.Step(ctx, facade.Action{0.5, 0.5, 0.5})
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		if res.Reward != 0 || !res.Info.EvaluatorDegraded || !res.Info.Breakdown.Neutral {
			t.Fatalf("expected neutral degraded step, got %+v", res.Info)
		}
	}
	if ev.calls != 3 {
		t.Fatalf("expected evaluator called 3 times, got %d", ev.calls)
	}
}

// #endregion failure-tests
