package gate

import (
	"fmt"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/policy"
)

// #region gate
// Gate decides whether a freshly trained policy update may proceed to
// validation, or is discarded before it is ever served.
type Gate struct {
	config GateConfig
}

// NewGate creates a gate with the given configuration.
func NewGate(config GateConfig) *Gate {
	return &Gate{config: config}
}

// Config returns the gate thresholds.
func (g *Gate) Config() GateConfig {
	return g.config
}

// Evaluate checks hard vetoes first, then scores soft signals.
// Takes the pre-update parameters, the proposed ones, the episode signals
// and the optimizer's report.
func (g *Gate) Evaluate(
	old policy.Params,
	proposed policy.Params,
	signals Signals,
	metrics policy.TrainResult,
) GateDecision {
	var vetoes []VetoSignal

	// --- Hard veto pass ---

	// 1. Too little experience
	if signals.Steps < g.config.MinSteps {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoShortEpisode,
			Reason: fmt.Sprintf("episode has %d steps, need %d", signals.Steps, g.config.MinSteps),
		})
	}

	// 2. Reward signal mostly neutral
	if frac := fraction(signals.Degraded, signals.Steps); frac > g.config.MaxDegradedFraction {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoDegraded,
			Reason: fmt.Sprintf("%.0f%% of steps unscored, cap %.0f%%", 100*frac, 100*g.config.MaxDegradedFraction),
		})
	}

	// 3. Parameter change exceeds cap
	deltaNorm := proposed.Distance(old)
	if deltaNorm > g.config.MaxDeltaNorm {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoDeltaNorm,
			Reason: fmt.Sprintf("delta norm %.4f exceeds cap %.4f", deltaNorm, g.config.MaxDeltaNorm),
		})
	}

	// 4. Actor moved too far from the behaviour policy
	if metrics.ApproxKL > g.config.MaxApproxKL {
		vetoes = append(vetoes, VetoSignal{
			Type:   VetoDivergence,
			Reason: fmt.Sprintf("approx KL %.4f exceeds cap %.4f", metrics.ApproxKL, g.config.MaxApproxKL),
		})
	}

	if len(vetoes) > 0 {
		return GateDecision{
			Action:      ActionReject,
			Reason:      fmt.Sprintf("hard veto: %s", vetoes[0].Reason),
			Vetoed:      true,
			VetoSignals: vetoes,
			DeltaNorm:   deltaNorm,
		}
	}

	// --- Soft scoring ---
	softScore := computeSoftScore(signals, metrics, deltaNorm, g.config.MaxDeltaNorm)

	return GateDecision{
		Action:    ActionCommit,
		Reason:    fmt.Sprintf("passed gate: soft_score=%.4f", softScore),
		DeltaNorm: deltaNorm,
		SoftScore: softScore,
	}
}

// #endregion gate

// #region helpers
func fraction(n, of int) float64 {
	if of <= 0 {
		return 0
	}
	return float64(n) / float64(of)
}

// computeSoftScore produces a 0-1 composite from admissibility, clipping and
// step size. Logged but does not block.
func computeSoftScore(signals Signals, metrics policy.TrainResult, deltaNorm, maxDelta float64) float64 {
	var score float64

	// Admissibility component: fewer penalised steps (weight 0.4)
	score += 0.4 * (1 - fraction(signals.Penalties, signals.Steps))

	// Clipping component: an unclipped update stayed in the trust region (weight 0.3)
	if metrics.ClipFraction < 1 {
		score += 0.3 * (1 - metrics.ClipFraction)
	}

	// Step size component: smaller deltas are more stable (weight 0.3)
	if maxDelta > 0 && deltaNorm < maxDelta {
		score += 0.3 * (1 - deltaNorm/maxDelta)
	}

	return score
}

// #endregion helpers
