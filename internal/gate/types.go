package gate

// Gate actions.
const (
	ActionCommit = "commit"
	ActionReject = "reject"
)

// #region veto-type
// VetoType enumerates hard veto categories.
type VetoType string

const (
	VetoShortEpisode VetoType = "short_episode"
	VetoDegraded     VetoType = "evaluator_degraded"
	VetoDeltaNorm    VetoType = "delta_norm"
	VetoDivergence   VetoType = "kl_divergence"
)

// #endregion veto-type

// #region veto-signal
// VetoSignal represents a detected hard veto condition.
type VetoSignal struct {
	Type   VetoType `json:"type"`
	Reason string   `json:"reason"`
}

// #endregion veto-signal

// #region signals
// Signals summarise the episode that produced an update.
type Signals struct {
	Steps     int
	Penalties int
	Degraded  int // admissible steps the evaluator could not score
}

// #endregion signals

// #region gate-config
// GateConfig holds thresholds for gate decisions.
type GateConfig struct {
	MinSteps            int     // fewer transitions than this are not learned from
	MaxDegradedFraction float64 // share of neutrally scored steps tolerated
	MaxDeltaNorm        float64 // max L2 norm of the parameter change
	MaxApproxKL         float64 // hard cap on actor drift in one update
}

// DefaultGateConfig returns the standard thresholds.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinSteps:            1,
		MaxDegradedFraction: 0.5,
		MaxDeltaNorm:        1.0,
		MaxApproxKL:         0.5,
	}
}

// #endregion gate-config

// #region gate-decision
// GateDecision is the output of the gate evaluation.
type GateDecision struct {
	Action      string       `json:"action"` // "commit" | "reject"
	Reason      string       `json:"reason"`
	Vetoed      bool         `json:"vetoed"`
	VetoSignals []VetoSignal `json:"veto_signals,omitempty"`
	DeltaNorm   float64      `json:"delta_norm"`
	SoftScore   float64      `json:"soft_score"` // 0-1 composite of soft signals (for logging)
}

// #endregion gate-decision
