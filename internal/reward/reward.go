package reward

import (
	"math"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/evaluator"
)

// #region comfort
// ComfortScore scores indoor conditions against the ideal bands. Inside a
// band a component scores 1; outside it decays linearly with distance to the
// nearest band edge.
func ComfortScore(temperature, humidity float64, cfg Config) float64 {
	tc := bandScore(temperature, cfg.TempLow, cfg.TempHigh, cfg.TempScale)
	hc := bandScore(humidity, cfg.HumidityLow, cfg.HumidityHigh, cfg.HumidityScale)
	score := cfg.TempWeight*tc + cfg.HumidityWeight*hc
	if cfg.ClampComfort {
		score = math.Max(0, math.Min(1, score))
	}
	return score
}

func bandScore(x, lo, hi, scale float64) float64 {
	if x >= lo && x <= hi {
		return 1
	}
	return 1 - math.Min(math.Abs(x-lo), math.Abs(x-hi))/scale
}

// #endregion comfort

// #region model
// Model turns evaluator results into rewards relative to the previous
// evaluation of the same episode.
type Model struct {
	config Config

	prevEnergy  *float64
	prevComfort *float64
}

// NewModel creates a reward model with no baseline.
func NewModel(config Config) *Model {
	return &Model{config: config}
}

// Config returns the model configuration.
func (m *Model) Config() Config {
	return m.config
}

// Reset forgets the energy and comfort baselines.
func (m *Model) Reset() {
	m.prevEnergy = nil
	m.prevComfort = nil
}

// Score rewards the change from the previous evaluation. The first
// evaluation after Reset only establishes the baseline and scores zero.
func (m *Model) Score(res evaluator.Result) Breakdown {
	temp, hum := res.Indoor()
	comfort := ComfortScore(temp, hum, m.config)

	b := Breakdown{
		EnergyUse: res.AnnualEnergyUse,
		Comfort:   comfort,
	}

	if m.prevEnergy == nil {
		b.Baseline = true
	} else {
		b.EnergyReward = *m.prevEnergy - res.AnnualEnergyUse
	}
	if m.prevComfort != nil {
		b.ComfortReward = comfort - *m.prevComfort
	}

	if m.config.ComfortEnabled {
		b.Reward = m.config.EnergyWeight*b.EnergyReward + m.config.ComfortWeight*b.ComfortReward
	} else {
		b.Reward = b.EnergyReward
	}

	energy := res.AnnualEnergyUse
	m.prevEnergy = &energy
	m.prevComfort = &comfort
	return b
}

// Neutral is the reward when the evaluator returned nothing. Baselines are
// left as they were.
func (m *Model) Neutral() Breakdown {
	return Breakdown{Neutral: true}
}

// Penalty is the reward for an inadmissible action.
func (m *Model) Penalty() Breakdown {
	return Breakdown{Reward: m.config.Penalty, Penalized: true}
}

// #endregion model
