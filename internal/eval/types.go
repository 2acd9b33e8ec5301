package eval

// #region eval-config
// EvalConfig holds thresholds for post-update validation.
type EvalConfig struct {
	MaxParamNorm   float64 // reject if the full parameter norm exceeds this
	MaxNetworkNorm float64 // reject if the actor or critic norm exceeds this
	MaxLoss        float64 // reject if |total loss| exceeds this
	TargetKL       float64 // warn if the update moved the actor further than this
}

// DefaultEvalConfig returns the standard thresholds.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxParamNorm:   1e4,
		MaxNetworkNorm: 1e4,
		MaxLoss:        1e9,
		TargetKL:       0.01,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Pass  bool    `json:"pass"`
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-update validation.
type EvalResult struct {
	Passed  bool         `json:"passed"`
	Metrics []EvalMetric `json:"metrics"`
	Reason  string       `json:"reason"`
}

// #endregion eval-result
