package reward

// #region reward-config
// Config holds the comfort bands and blend weights.
type Config struct {
	TempLow, TempHigh         float64 // ideal indoor temperature band, °C
	HumidityLow, HumidityHigh float64 // ideal indoor humidity band, %RH
	TempScale                 float64 // linear decay scale outside the band
	HumidityScale             float64
	TempWeight                float64
	HumidityWeight            float64

	EnergyWeight   float64
	ComfortWeight  float64
	ComfortEnabled bool

	// ClampComfort bounds the composite comfort score to [0, 1]. When false
	// extreme indoor conditions produce negative scores.
	ClampComfort bool

	Penalty float64 // reward for a kinematically inadmissible action
}

// DefaultConfig returns the standard bands and weights with comfort tracking
// enabled and no clamping.
func DefaultConfig() Config {
	return Config{
		TempLow:        20,
		TempHigh:       26,
		HumidityLow:    30,
		HumidityHigh:   60,
		TempScale:      10,
		HumidityScale:  50,
		TempWeight:     0.6,
		HumidityWeight: 0.4,
		EnergyWeight:   0.7,
		ComfortWeight:  0.3,
		ComfortEnabled: true,
		ClampComfort:   false,
		Penalty:        -1000,
	}
}

// #endregion reward-config

// #region breakdown
// Breakdown itemises the reward for one transition.
type Breakdown struct {
	Reward        float64 `json:"reward"`
	EnergyReward  float64 `json:"energy_reward"`
	ComfortReward float64 `json:"comfort_reward"`
	EnergyUse     float64 `json:"energy_use"`
	Comfort       float64 `json:"comfort"`
	Baseline      bool    `json:"baseline"` // first evaluation of the episode
	Penalized     bool    `json:"penalized"`
	Neutral       bool    `json:"neutral"` // evaluator produced nothing
}

// #endregion breakdown
