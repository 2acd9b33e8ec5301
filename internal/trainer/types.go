package trainer

import (
	"time"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/eval"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/gate"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/policy"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/rollout"
)

// Outcome actions.
const (
	ActionCommit     = "commit"
	ActionGateReject = "gate_reject"
	ActionRollback   = "eval_rollback"
	ActionAbandon    = "abandon"
)

// #region config
// Config controls the training driver.
type Config struct {
	Gate                   gate.GateConfig
	Eval                   eval.EvalConfig
	LogSteps               bool   // write every step to step_log
	ReportDir              string // flush CSV records here after each episode when set
	MaxConsecutiveFailures int    // Run gives up after this many abandoned episodes in a row
	RunID                  string
	WeatherSource          string // recorded in episode metrics
}

// DefaultConfig returns the standard trainer settings.
func DefaultConfig() Config {
	return Config{
		Gate:                   gate.DefaultGateConfig(),
		Eval:                   eval.DefaultEvalConfig(),
		LogSteps:               true,
		MaxConsecutiveFailures: 5,
	}
}

// #endregion config

// #region publisher
// Publisher receives every action actually applied to the facade.
type Publisher interface {
	Publish(action facade.Action)
}

// #endregion publisher

// #region results
// EpisodeResult is one completed episode, ready for training.
type EpisodeResult struct {
	Episode     int
	Steps       int
	TotalReward float64
	Penalties   int
	Degraded    int
	Buffer      *rollout.Buffer
}

// Outcome captures what happened to one episode: update, validation and
// the commit or rollback decision.
type Outcome struct {
	Episode   EpisodeResult
	Action    string
	Reason    string
	Train     *policy.TrainResult
	Gate      *gate.GateDecision // nil if the episode was abandoned
	Eval      *eval.EvalResult   // nil if abandoned or gate-rejected
	VersionID string             // active policy version after the decision
}

// Summary provides aggregate stats from a training run.
type Summary struct {
	Episodes      int
	Commits       int
	GateRejects   int
	EvalRollbacks int
	Abandoned     int
	Penalties     int
	BestReward    float64
	LastVersionID string
}

// Status is a point-in-time view of the trainer for dashboards.
type Status struct {
	RunID         string    `json:"run_id"`
	Episode       int       `json:"episode"`
	Step          int       `json:"step"`
	TotalSteps    int       `json:"total_steps"`
	LastReward    float64   `json:"last_reward"`
	EpisodeReward float64   `json:"episode_reward"`
	LastLoss      float64   `json:"last_loss"`
	OptimizerStep int       `json:"optimizer_steps"`
	VersionID     string    `json:"version_id"`
	Commits       int       `json:"commits"`
	GateRejects   int       `json:"gate_rejects"`
	Rollbacks     int       `json:"rollbacks"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// #endregion results
