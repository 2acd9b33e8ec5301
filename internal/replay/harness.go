package replay

import (
	"context"
	"fmt"
	"math"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/env"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/logging"
)

// Replayed step outcomes.
const (
	ActionApplied   = "applied"
	ActionPenalized = "penalized"
	ActionDegraded  = "degraded"
)

// #region types
// Interaction is a single scripted step for replay.
type Interaction struct {
	Step   int
	Action facade.Action
}

// ReplayResult captures the outcome of replaying one step through the
// environment.
type ReplayResult struct {
	Step   int
	Action string // "applied" | "penalized" | "degraded"
	Reason string
	Reward float64
	Done   bool
	Info   env.Info
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalSteps  int
	Applied     int
	Penalized   int
	Degraded    int
	TotalReward float64
}

// #endregion types

// #region replay
// Replay resets the environment and applies every interaction in order:
// step → classify. It stops at the end of the episode; interactions left
// over are reported as an error alongside the results gathered so far.
func Replay(ctx context.Context, environment *env.Environment, interactions []Interaction) ([]ReplayResult, error) {
	if _, err := environment.Reset(ctx); err != nil {
		return nil, err
	}

	results := make([]ReplayResult, 0, len(interactions))
	for i, inter := range interactions {
		step, err := environment.Step(ctx, inter.Action)
		if err != nil {
			return results, fmt.Errorf("interaction %d (step %d): %w", i, inter.Step, err)
		}
		results = append(results, classify(step))
	}
	return results, nil
}

func classify(step env.StepResult) ReplayResult {
	r := ReplayResult{
		Step:   step.Info.Step,
		Reward: step.Reward,
		Done:   step.Done,
		Info:   step.Info,
	}
	switch {
	case !step.Info.Admissible:
		r.Action = ActionPenalized
		if len(step.Info.Violations) > 0 {
			v := step.Info.Violations[0]
			r.Reason = fmt.Sprintf("%s %.3f > %.3f (%d violations)", v.Type, v.Rate, v.Limit, len(step.Info.Violations))
		}
	case step.Info.EvaluatorDegraded:
		r.Action = ActionDegraded
		r.Reason = "evaluator produced no result"
	default:
		r.Action = ActionApplied
	}
	return r
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalSteps: len(results)}
	for _, r := range results {
		s.TotalReward += r.Reward
		switch r.Action {
		case ActionApplied:
			s.Applied++
		case ActionPenalized:
			s.Penalized++
		case ActionDegraded:
			s.Degraded++
		}
	}
	return s
}

// #endregion replay

// #region step-log
// FromStepLog rebuilds the actions of a logged episode so it can be replayed
// against the current environment. Expected outcomes follow the logged
// admissibility; an admissible step without an evaluation was degraded.
func FromStepLog(steps []logging.StepEntry) ([]Interaction, []string) {
	interactions := make([]Interaction, len(steps))
	expected := make([]string, len(steps))
	for i, s := range steps {
		interactions[i] = Interaction{
			Step: s.Step,
			Action: ActionFor(facade.Adjustment{
				PanelCount: s.PanelCount,
				Rotation:   s.Rotation,
				Depth:      s.Depth,
			}),
		}
		switch {
		case !s.Admissible:
			expected[i] = ActionPenalized
		case s.EnergyUse == nil:
			expected[i] = ActionDegraded
		default:
			expected[i] = ActionApplied
		}
	}
	return interactions, expected
}

// ActionFor inverts facade.MapAction. The panel component is centred in its
// bucket so that mapping the result back yields the same count.
func ActionFor(adj facade.Adjustment) facade.Action {
	countSpan := float64(facade.MaxPanelCount - facade.MinPanelCount)
	a := facade.Action{
		(float64(adj.PanelCount-facade.MinPanelCount) + 0.5) / countSpan,
		adj.Rotation / facade.MaxRotation,
		(adj.Depth - facade.MinDepth) / (facade.MaxDepth - facade.MinDepth),
	}
	a = a.Clip()
	a[1] = roundTo(a[1], 1e-12)
	a[2] = roundTo(a[2], 1e-12)
	return a
}

func roundTo(x, unit float64) float64 {
	return math.Round(x/unit) * unit
}

// #endregion step-log
