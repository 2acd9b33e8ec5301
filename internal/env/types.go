package env

import (
	"errors"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/physics"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/reward"
)

var (
	// ErrWeatherUnavailable wraps any weather failure during Reset or Step.
	ErrWeatherUnavailable = errors.New("weather unavailable")
	// ErrEpisodeDone is returned by Step once the step bound is reached.
	ErrEpisodeDone = errors.New("episode done")
)

// #region config
// Config controls episode shape and observation layout.
type Config struct {
	MaxSteps       int
	Extended       bool    // append facade aggregates to the observation
	ComfortEnabled bool    // blend comfort into the reward
	PanelSpacing   float64 // seconds between consecutive panel actuations
	Location       string
}

// DefaultConfig returns a 24-step, base-observation, comfort-aware setup.
func DefaultConfig() Config {
	return Config{
		MaxSteps:       24,
		Extended:       false,
		ComfortEnabled: true,
		PanelSpacing:   1,
	}
}

// #endregion config

// #region step-result
// Info is per-step diagnostic detail.
type Info struct {
	Step              int                 `json:"step"`
	Adjustment        facade.Adjustment   `json:"adjustment"`
	Admissible        bool                `json:"admissible"`
	Violations        []physics.Violation `json:"violations,omitempty"`
	EvaluatorDegraded bool                `json:"evaluator_degraded"`
	EnergyUse         float64             `json:"energy_use"`
	Comfort           float64             `json:"comfort"`
	IndoorTemperature float64             `json:"indoor_temperature"`
	IndoorHumidity    float64             `json:"indoor_humidity"`
	Breakdown         reward.Breakdown    `json:"breakdown"`
}

// StepResult is the outcome of one transition.
type StepResult struct {
	Observation facade.Observation
	Reward      float64
	Done        bool
	Info        Info
}

// #endregion step-result
