package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/env"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/evaluator"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/physics"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/weather"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	Config          FixtureConfig           `json:"config"`
	Weather         []weather.Reading       `json:"weather"`
	Interactions    []FixtureInteraction    `json:"interactions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureConfig mirrors env.Config with JSON tags, plus the evaluator
// choice.
type FixtureConfig struct {
	MaxSteps       int     `json:"max_steps"`
	Extended       bool    `json:"extended"`
	ComfortEnabled bool    `json:"comfort_enabled"`
	PanelSpacing   float64 `json:"panel_spacing"`
	Evaluator      string  `json:"evaluator"` // "surrogate" (default) or "none"
}

// FixtureInteraction is one scripted action.
type FixtureInteraction struct {
	Step   int        `json:"step"`
	Action [3]float64 `json:"action"`
}

// FixtureExpectedResult captures the expected outcome per step.
type FixtureExpectedResult struct {
	Step   int    `json:"step"`
	Action string `json:"action"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	if len(f.Weather) == 0 {
		return nil, fmt.Errorf("fixture %s: no weather readings", path)
	}
	return &f, nil
}

// ToEnvConfig converts a FixtureConfig to an environment config, keeping
// defaults for unset fields.
func (fc FixtureConfig) ToEnvConfig() env.Config {
	cfg := env.DefaultConfig()
	if fc.MaxSteps > 0 {
		cfg.MaxSteps = fc.MaxSteps
	}
	if fc.PanelSpacing > 0 {
		cfg.PanelSpacing = fc.PanelSpacing
	}
	cfg.Extended = fc.Extended
	cfg.ComfortEnabled = fc.ComfortEnabled
	return cfg
}

// Environment builds a fresh environment that replays the fixture weather
// in order, starting with the reading consumed by Reset.
func (f *Fixture) Environment(logger *zap.Logger) *env.Environment {
	var ev evaluator.Evaluator
	if f.Config.Evaluator != "none" {
		ev = evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig())
	}
	return env.New(f.Config.ToEnvConfig(), weather.NewSequence(f.Weather), ev,
		physics.NewFilter(physics.DefaultFilterConfig()), nil, logger)
}

// ToInteraction converts a FixtureInteraction to a domain Interaction.
func (fi FixtureInteraction) ToInteraction() Interaction {
	return Interaction{Step: fi.Step, Action: facade.Action(fi.Action)}
}

// ToInteractions converts every scripted step.
func (f *Fixture) ToInteractions() []Interaction {
	out := make([]Interaction, len(f.Interactions))
	for i := range f.Interactions {
		out[i] = f.Interactions[i].ToInteraction()
	}
	return out
}

// Expected returns the expected action per step.
func (f *Fixture) Expected() []string {
	out := make([]string, len(f.ExpectedResults))
	for i, e := range f.ExpectedResults {
		out[i] = e.Action
	}
	return out
}

// #endregion fixture-loader
