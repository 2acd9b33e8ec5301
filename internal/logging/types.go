package logging

import "time"

// Episode decisions.
const (
	DecisionCommit     = "commit"
	DecisionRollback   = "eval_rollback"
	DecisionGateReject = "gate_reject"
	DecisionAbandon    = "abandon"
	DecisionNoOp       = "no_op"
)

// #region episode-entry
// EpisodeEntry is a single row in the episode_log table.
type EpisodeEntry struct {
	VersionID   string
	Episode     int
	TotalReward float64
	Steps       int
	Penalties   int
	Decision    string
	Reason      string
	MetricsJSON string
	CreatedAt   time.Time
}

// #endregion episode-entry

// #region step-entry
// StepEntry is a single row in the step_log table. EnergyUse and Comfort are
// nil for steps the evaluator did not score.
type StepEntry struct {
	Episode    int
	Step       int
	Rotation   float64
	Depth      float64
	PanelCount int
	EnergyUse  *float64
	Comfort    *float64
	Reward     float64
	Admissible bool
	CreatedAt  time.Time
}

// #endregion step-entry

// #region episode-record
// EpisodeRecord captures everything that fed an episode's decision.
// Serialized as JSON into episode_log.metrics_json.
type EpisodeRecord struct {
	RunID    string `json:"run_id"`
	Episode  int    `json:"episode"`
	Steps    int    `json:"steps"`
	Weather  string `json:"weather_source,omitempty"`
	Extended bool   `json:"extended"`

	TotalReward float64 `json:"total_reward"`
	Penalties   int     `json:"penalties"`
	Degraded    int     `json:"evaluator_degraded"`

	// Optimizer output
	PolicyLoss   float64 `json:"policy_loss"`
	ValueLoss    float64 `json:"value_loss"`
	Entropy      float64 `json:"entropy"`
	TotalLoss    float64 `json:"total_loss"`
	ClipFraction float64 `json:"clip_fraction"`
	ApproxKL     float64 `json:"approx_kl"`

	// Gate stage
	DeltaNorm  float64 `json:"delta_norm"`
	SoftScore  float64 `json:"soft_score"`
	GatePassed bool    `json:"gate_passed"`
	GateReason string  `json:"gate_reason"`

	// Thresholds active at decision time
	Thresholds EpisodeThresholds `json:"thresholds"`

	EvalPassed bool   `json:"eval_passed"`
	EvalReason string `json:"eval_reason"`
}

// EpisodeThresholds captures the gate and eval configs active at decision
// time.
type EpisodeThresholds struct {
	MaxDeltaNorm        float64 `json:"max_delta_norm"`
	MaxApproxKL         float64 `json:"max_approx_kl"`
	MaxDegradedFraction float64 `json:"max_degraded_fraction"`
	MaxParamNorm        float64 `json:"max_param_norm"`
	MaxNetworkNorm      float64 `json:"max_network_norm"`
	MaxLoss             float64 `json:"max_loss"`
	TargetKL            float64 `json:"target_kl"`
}

// #endregion episode-record
