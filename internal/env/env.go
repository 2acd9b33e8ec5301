package env

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/evaluator"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/physics"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/reward"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/weather"
)

// Environment runs episodes of facade adjustments against live or recorded
// weather. It is not safe for concurrent use.
type Environment struct {
	config    Config
	weather   weather.Source
	evaluator evaluator.Evaluator
	filter    *physics.Filter
	reward    *reward.Model
	logger    *zap.Logger

	step   int
	obs    facade.Observation
	panels []facade.PanelRecord
	anchor *facade.PanelRecord // last settled panel, rate-limits the next state
}

// New wires an environment. A nil logger is replaced by a no-op logger and a
// nil reward model by the default one with config.ComfortEnabled applied.
func New(config Config, src weather.Source, ev evaluator.Evaluator, filter *physics.Filter, rm *reward.Model, logger *zap.Logger) *Environment {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxSteps <= 0 {
		config.MaxSteps = DefaultConfig().MaxSteps
	}
	if config.PanelSpacing <= 0 {
		config.PanelSpacing = DefaultConfig().PanelSpacing
	}
	if rm == nil {
		rc := reward.DefaultConfig()
		rc.ComfortEnabled = config.ComfortEnabled
		rm = reward.NewModel(rc)
	}
	return &Environment{
		config:    config,
		weather:   src,
		evaluator: ev,
		filter:    filter,
		reward:    rm,
		logger:    logger,
	}
}

// ObservationDim is the length of every observation vector this
// environment produces.
func (e *Environment) ObservationDim() int {
	if e.config.Extended {
		return facade.ExtendedObservationDim
	}
	return facade.BaseObservationDim
}

// Config returns the environment configuration.
func (e *Environment) Config() Config {
	return e.config
}

// StepCount returns the number of steps taken in the current episode.
func (e *Environment) StepCount() int {
	return e.step
}

// Panels returns a copy of the current facade state.
func (e *Environment) Panels() []facade.PanelRecord {
	out := make([]facade.PanelRecord, len(e.panels))
	copy(out, e.panels)
	return out
}

// #region reset
// Reset starts a new episode from an empty facade and fresh weather.
func (e *Environment) Reset(ctx context.Context) (facade.Observation, error) {
	e.step = 0
	e.panels = nil
	e.anchor = nil
	e.reward.Reset()

	r, err := e.weather.Fetch(ctx)
	if err != nil {
		return facade.Observation{}, fmt.Errorf("reset: %w: %v", ErrWeatherUnavailable, err)
	}
	e.obs = e.observe(r, facade.Aggregate{})
	return e.obs, nil
}

// #endregion reset

// #region step
// Step applies one action. Kinematically inadmissible actions are not
// errors: they earn the penalty and leave the facade and observation as
// they were.
func (e *Environment) Step(ctx context.Context, action facade.Action) (StepResult, error) {
	if e.step >= e.config.MaxSteps {
		return StepResult{}, ErrEpisodeDone
	}
	e.step++

	adj := facade.MapAction(action)
	start := 0.0
	if e.anchor != nil {
		start = e.anchor.Time + e.config.PanelSpacing
	}
	panels := facade.BuildPanels(adj, e.step, start, e.config.PanelSpacing)

	r, err := e.weather.Fetch(ctx)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: %w: %v", e.step, ErrWeatherUnavailable, err)
	}

	verdict, err := e.filter.RunFrom(e.anchor, panels, physics.WindForce(r.WindSpeed))
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: filter: %w", e.step, err)
	}

	info := Info{
		Step:       e.step,
		Adjustment: adj,
		Admissible: verdict.Admissible,
		Violations: verdict.Violations,
	}
	done := e.step >= e.config.MaxSteps

	if !verdict.Admissible {
		b := e.reward.Penalty()
		info.Breakdown = b
		e.logger.Debug("inadmissible action",
			zap.Int("step", e.step),
			zap.Float64("rotation", adj.Rotation),
			zap.Float64("depth", adj.Depth),
			zap.Int("violations", len(verdict.Violations)),
		)
		return StepResult{Observation: e.obs, Reward: b.Reward, Done: done, Info: info}, nil
	}

	e.panels = verdict.Panels
	last := verdict.Panels[len(verdict.Panels)-1]
	e.anchor = &last
	e.obs = e.observe(r, facade.Summarize(verdict.Panels))

	b := e.score(ctx, verdict.Panels, r, &info)
	info.Breakdown = b

	return StepResult{Observation: e.obs, Reward: b.Reward, Done: done, Info: info}, nil
}

// score evaluates the settled facade. Evaluator failure degrades to a
// neutral reward.
func (e *Environment) score(ctx context.Context, panels []facade.PanelRecord, r weather.Reading, info *Info) reward.Breakdown {
	if e.evaluator == nil {
		info.EvaluatorDegraded = true
		return e.reward.Neutral()
	}

	res, err := e.evaluator.Evaluate(ctx, panels, r)
	if err != nil || res == nil {
		info.EvaluatorDegraded = true
		e.logger.Warn("evaluator produced no result",
			zap.Int("step", e.step),
			zap.Error(err),
		)
		return e.reward.Neutral()
	}

	b := e.reward.Score(*res)
	info.EnergyUse = res.AnnualEnergyUse
	info.Comfort = b.Comfort
	info.IndoorTemperature, info.IndoorHumidity = res.Indoor()
	return b
}

// #endregion step

func (e *Environment) observe(r weather.Reading, agg facade.Aggregate) facade.Observation {
	obs := r.Observation()
	if e.config.Extended {
		obs.Extended = true
		obs = obs.WithAggregate(agg)
	}
	return obs
}
