package trainer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/checkpoint"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/env"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/eval"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/gate"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/logging"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/policy"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/report"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/rollout"
)

// Options carries the optional collaborators of a Trainer. Any of them may
// be nil.
type Options struct {
	Store     *checkpoint.Store
	Recorder  *report.Recorder
	Publisher Publisher
	Logger    *zap.Logger
}

// #region trainer
// Trainer drives episodes through the environment and feeds each completed
// episode to the optimizer: run → train → gate → eval → commit/rollback.
type Trainer struct {
	config    Config
	env       *env.Environment
	optimizer *policy.Optimizer
	gate      *gate.Gate
	harness   *eval.EvalHarness
	store     *checkpoint.Store
	recorder  *report.Recorder
	publisher Publisher
	logger    *zap.Logger
	train     func(rollout.Batch) (policy.TrainResult, error)

	episode   int
	versionID string

	mu     sync.RWMutex
	status Status
}

// New wires a trainer.
func New(config Config, environment *env.Environment, optimizer *policy.Optimizer, opts Options) *Trainer {
	if config.RunID == "" {
		config.RunID = uuid.New().String()
	}
	if config.MaxConsecutiveFailures <= 0 {
		config.MaxConsecutiveFailures = DefaultConfig().MaxConsecutiveFailures
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Trainer{
		config:    config,
		env:       environment,
		optimizer: optimizer,
		gate:      gate.NewGate(config.Gate),
		harness:   eval.NewEvalHarness(config.Eval),
		store:     opts.Store,
		recorder:  opts.Recorder,
		publisher: opts.Publisher,
		logger:    logger.With(zap.String("run_id", config.RunID)),
		train:     optimizer.Train,
		status:    Status{RunID: config.RunID},
	}
}

// Init loads the active checkpoint into the optimizer, or stores the
// optimizer's fresh parameters as the root version when none exists.
// Without a store it does nothing.
func (t *Trainer) Init() error {
	if t.optimizer.ObservationDim() != t.env.ObservationDim() {
		return fmt.Errorf("optimizer takes %d inputs, environment produces %d: %w",
			t.optimizer.ObservationDim(), t.env.ObservationDim(), policy.ErrObservationDim)
	}
	if t.store == nil {
		return nil
	}

	cur, err := t.store.GetCurrent()
	switch {
	case errors.Is(err, sql.ErrNoRows):
		t.logger.Info("no active policy, creating initial version")
		rec, err := t.store.CreateInitial(t.optimizer.Params())
		if err != nil {
			return fmt.Errorf("create initial policy: %w", err)
		}
		t.versionID = rec.VersionID
	case err != nil:
		return fmt.Errorf("load active policy: %w", err)
	default:
		params, err := cur.Params()
		if err != nil {
			return fmt.Errorf("decode policy %s: %w", cur.VersionID, err)
		}
		if err := t.optimizer.SetParams(params); err != nil {
			return fmt.Errorf("restore policy %s: %w", cur.VersionID, err)
		}
		t.versionID = cur.VersionID
		t.episode = cur.Episode
		t.logger.Info("restored policy", zap.String("version_id", cur.VersionID), zap.Int("episode", cur.Episode))
	}

	// Rejected and abandoned episodes after the last commit keep their numbers.
	last, err := logging.LastEpisode(t.store.DB())
	if err != nil {
		return fmt.Errorf("resume episode numbering: %w", err)
	}
	if last > t.episode {
		t.episode = last
	}

	t.updateStatus(func(s *Status) {
		s.VersionID = t.versionID
		s.Episode = t.episode
	})
	return nil
}

// VersionID returns the active policy version, empty without a store.
func (t *Trainer) VersionID() string {
	return t.versionID
}

// Status returns a snapshot of the trainer's progress.
func (t *Trainer) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

func (t *Trainer) updateStatus(fn func(*Status)) {
	t.mu.Lock()
	fn(&t.status)
	t.status.UpdatedAt = time.Now().UTC()
	t.mu.Unlock()
}

// #endregion trainer

// #region run-episode
// RunEpisode plays one full episode with the live policy. On error the
// episode is abandoned and its transitions are discarded.
func (t *Trainer) RunEpisode(ctx context.Context) (EpisodeResult, error) {
	t.episode++
	ep := t.episode
	res := EpisodeResult{
		Episode: ep,
		Buffer:  rollout.NewBuffer(t.env.Config().MaxSteps),
	}

	obs, err := t.env.Reset(ctx)
	if err != nil {
		return EpisodeResult{Episode: ep}, fmt.Errorf("episode %d: %w", ep, err)
	}
	t.updateStatus(func(s *Status) {
		s.Episode = ep
		s.Step = 0
		s.EpisodeReward = 0
	})

	for {
		if err := ctx.Err(); err != nil {
			return EpisodeResult{Episode: ep}, fmt.Errorf("episode %d: %w", ep, err)
		}

		action, err := t.optimizer.SelectAction(obs)
		if err != nil {
			return EpisodeResult{Episode: ep}, fmt.Errorf("episode %d: select action: %w", ep, err)
		}

		step, err := t.env.Step(ctx, action)
		if err != nil {
			return EpisodeResult{Episode: ep}, fmt.Errorf("episode %d: %w", ep, err)
		}

		res.Buffer.Add(rollout.Transition{
			State:     obs.Vector(),
			Action:    action,
			Reward:    step.Reward,
			NextState: step.Observation.Vector(),
			Done:      step.Done,
		})
		res.Steps++
		res.TotalReward += step.Reward
		if !step.Info.Admissible {
			res.Penalties++
		} else if t.publisher != nil {
			t.publisher.Publish(action)
		}
		if step.Info.EvaluatorDegraded {
			res.Degraded++
		}

		t.record(ep, step)
		t.updateStatus(func(s *Status) {
			s.Step = step.Info.Step
			s.TotalSteps++
			s.LastReward = step.Reward
			s.EpisodeReward = res.TotalReward
		})

		obs = step.Observation
		if step.Done {
			break
		}
	}

	return res, nil
}

// record mirrors one step into the CSV recorder and the step log.
func (t *Trainer) record(episode int, step env.StepResult) {
	info := step.Info
	scored := info.Admissible && !info.EvaluatorDegraded

	if t.recorder != nil {
		now := t.recorder.Now()
		o := step.Observation
		t.recorder.AddFacade(report.FacadeRecord{
			Time: now, Episode: episode, Step: info.Step,
			Temperature: o.Temperature, Humidity: o.Humidity,
			WindSpeed: o.WindSpeed, WindDirection: o.WindDirection,
			CloudCover: o.CloudCover, Condition: o.Condition,
			PanelCount: info.Adjustment.PanelCount,
			Rotation:   info.Adjustment.Rotation,
			Depth:      info.Adjustment.Depth,
			Admissible: info.Admissible,
		})
		if scored {
			t.recorder.AddEnergy(report.EnergyRecord{
				Time: now, Episode: episode, Step: info.Step,
				EnergyUse:   info.EnergyUse,
				Temperature: o.Temperature,
				Humidity:    o.Humidity,
			})
			t.recorder.AddComfort(report.ComfortRecord{
				Time: now, Episode: episode, Step: info.Step,
				ComfortScore: info.Comfort,
			})
		}
	}

	if t.store != nil && t.config.LogSteps {
		entry := logging.StepEntry{
			Episode:    episode,
			Step:       info.Step,
			Rotation:   info.Adjustment.Rotation,
			Depth:      info.Adjustment.Depth,
			PanelCount: info.Adjustment.PanelCount,
			Reward:     step.Reward,
			Admissible: info.Admissible,
		}
		if scored {
			energy, comfort := info.EnergyUse, info.Comfort
			entry.EnergyUse = &energy
			entry.Comfort = &comfort
		}
		if err := logging.LogStep(t.store.DB(), entry); err != nil {
			t.logger.Warn("step log failed", zap.Error(err))
		}
	}
}

// #endregion run-episode

// #region train-episode
// TrainEpisode runs one episode and consumes it with a single optimizer
// step. Parameters the gate vetoes or validation fails are discarded in
// favour of the pre-update snapshot.
func (t *Trainer) TrainEpisode(ctx context.Context) (Outcome, error) {
	ep, err := t.RunEpisode(ctx)
	if err != nil {
		t.logger.Warn("episode abandoned", zap.Int("episode", ep.Episode), zap.Error(err))
		t.logEpisode(logging.EpisodeEntry{
			VersionID: t.versionID,
			Episode:   ep.Episode,
			Decision:  logging.DecisionAbandon,
			Reason:    err.Error(),
		})
		return Outcome{Episode: ep, Action: ActionAbandon, Reason: err.Error(), VersionID: t.versionID}, err
	}

	before := t.optimizer.Params()
	trainRes, err := t.train(ep.Buffer.Batch())
	if err != nil {
		err = fmt.Errorf("episode %d: train: %w", ep.Episode, err)
		t.logger.Warn("episode abandoned", zap.Int("episode", ep.Episode), zap.Error(err))
		t.logEpisode(logging.EpisodeEntry{
			VersionID:   t.versionID,
			Episode:     ep.Episode,
			TotalReward: ep.TotalReward,
			Steps:       ep.Steps,
			Penalties:   ep.Penalties,
			Decision:    logging.DecisionAbandon,
			Reason:      err.Error(),
		})
		return Outcome{Episode: ep, Action: ActionAbandon, Reason: err.Error(), VersionID: t.versionID}, err
	}
	after := t.optimizer.Params()

	out := Outcome{Episode: ep, Train: &trainRes}
	gateRes := t.gate.Evaluate(before, after, gate.Signals{
		Steps:     ep.Steps,
		Penalties: ep.Penalties,
		Degraded:  ep.Degraded,
	}, trainRes)
	out.Gate = &gateRes

	var evalRes eval.EvalResult
	if gateRes.Action == gate.ActionCommit {
		evalRes = t.harness.Run(after, trainRes)
		out.Eval = &evalRes
	}
	metrics := t.metricsJSON(ep, trainRes, gateRes, out.Eval)

	switch {
	case gateRes.Action != gate.ActionCommit:
		if err := t.optimizer.SetParams(before); err != nil {
			return out, fmt.Errorf("episode %d: restore params: %w", ep.Episode, err)
		}
		out.Action = ActionGateReject
		out.Reason = gateRes.Reason
		out.VersionID = t.versionID
		t.logger.Warn("update rejected by gate",
			zap.Int("episode", ep.Episode),
			zap.String("reason", gateRes.Reason),
		)
	case !evalRes.Passed:
		if err := t.optimizer.SetParams(before); err != nil {
			return out, fmt.Errorf("episode %d: restore params: %w", ep.Episode, err)
		}
		out.Action = ActionRollback
		out.Reason = evalRes.Reason
		out.VersionID = t.versionID
		t.logger.Warn("update rolled back",
			zap.Int("episode", ep.Episode),
			zap.String("reason", evalRes.Reason),
		)
	default:
		if t.store != nil {
			rec := checkpoint.NewRecord(t.versionID, ep.Episode, after, metrics)
			if err := t.store.Commit(rec); err != nil {
				return out, fmt.Errorf("episode %d: commit: %w", ep.Episode, err)
			}
			t.versionID = rec.VersionID
		}
		out.Action = ActionCommit
		out.Reason = evalRes.Reason
		out.VersionID = t.versionID
	}

	t.logEpisode(logging.EpisodeEntry{
		VersionID:   out.VersionID,
		Episode:     ep.Episode,
		TotalReward: ep.TotalReward,
		Steps:       ep.Steps,
		Penalties:   ep.Penalties,
		Decision:    decisionFor(out.Action),
		Reason:      out.Reason,
		MetricsJSON: metrics,
	})

	t.updateStatus(func(s *Status) {
		s.LastLoss = trainRes.TotalLoss
		s.OptimizerStep = trainRes.Steps
		s.VersionID = t.versionID
		switch out.Action {
		case ActionCommit:
			s.Commits++
		case ActionGateReject:
			s.GateRejects++
		default:
			s.Rollbacks++
		}
	})

	if t.recorder != nil && t.config.ReportDir != "" {
		if err := t.recorder.Flush(t.config.ReportDir); err != nil {
			t.logger.Warn("report flush failed", zap.Error(err))
		}
	}

	t.logger.Info("episode complete",
		zap.Int("episode", ep.Episode),
		zap.String("action", out.Action),
		zap.Float64("total_reward", ep.TotalReward),
		zap.Int("penalties", ep.Penalties),
		zap.Float64("total_loss", trainRes.TotalLoss),
		zap.String("version_id", out.VersionID),
	)
	return out, nil
}

func (t *Trainer) metricsJSON(ep EpisodeResult, tr policy.TrainResult, gd gate.GateDecision, er *eval.EvalResult) string {
	rec := logging.EpisodeRecord{
		RunID:        t.config.RunID,
		Episode:      ep.Episode,
		Steps:        ep.Steps,
		Weather:      t.config.WeatherSource,
		Extended:     t.env.Config().Extended,
		TotalReward:  ep.TotalReward,
		Penalties:    ep.Penalties,
		Degraded:     ep.Degraded,
		PolicyLoss:   tr.PolicyLoss,
		ValueLoss:    tr.ValueLoss,
		Entropy:      tr.Entropy,
		TotalLoss:    tr.TotalLoss,
		ClipFraction: tr.ClipFraction,
		ApproxKL:     tr.ApproxKL,
		DeltaNorm:    gd.DeltaNorm,
		SoftScore:    gd.SoftScore,
		GatePassed:   gd.Action == gate.ActionCommit,
		GateReason:   gd.Reason,
		Thresholds: logging.EpisodeThresholds{
			MaxDeltaNorm:        t.config.Gate.MaxDeltaNorm,
			MaxApproxKL:         t.config.Gate.MaxApproxKL,
			MaxDegradedFraction: t.config.Gate.MaxDegradedFraction,
			MaxParamNorm:        t.config.Eval.MaxParamNorm,
			MaxNetworkNorm:      t.config.Eval.MaxNetworkNorm,
			MaxLoss:             t.config.Eval.MaxLoss,
			TargetKL:            t.config.Eval.TargetKL,
		},
	}
	if er != nil {
		rec.EvalPassed = er.Passed
		rec.EvalReason = er.Reason
	}
	b, err := json.Marshal(rec)
	if err != nil {
		// NaN losses cannot be encoded
		t.logger.Warn("marshal episode metrics", zap.Error(err))
		return ""
	}
	return string(b)
}

func (t *Trainer) logEpisode(entry logging.EpisodeEntry) {
	if t.store == nil || entry.VersionID == "" {
		return
	}
	if err := logging.LogEpisode(t.store.DB(), entry); err != nil {
		t.logger.Warn("episode log failed", zap.Error(err))
	}
}

func decisionFor(action string) string {
	switch action {
	case ActionCommit:
		return logging.DecisionCommit
	case ActionGateReject:
		return logging.DecisionGateReject
	case ActionRollback:
		return logging.DecisionRollback
	case ActionAbandon:
		return logging.DecisionAbandon
	}
	return logging.DecisionNoOp
}

// #endregion train-episode

// #region run
// Run trains episode after episode until ctx is cancelled or episodes have
// been trained (episodes <= 0 means no limit), waiting interval between
// episodes. Abandoned episodes are skipped; too many in a row end the run.
func (t *Trainer) Run(ctx context.Context, episodes int, interval time.Duration) (Summary, error) {
	var sum Summary
	failures := 0

	for episodes <= 0 || sum.Episodes < episodes {
		if ctx.Err() != nil {
			break
		}

		out, err := t.TrainEpisode(ctx)
		sum.Episodes++
		sum.Penalties += out.Episode.Penalties
		sum.LastVersionID = out.VersionID

		switch out.Action {
		case ActionCommit:
			sum.Commits++
		case ActionGateReject:
			sum.GateRejects++
		case ActionRollback:
			sum.EvalRollbacks++
		default:
			sum.Abandoned++
		}
		if out.Action != ActionAbandon && (sum.Commits+sum.GateRejects+sum.EvalRollbacks == 1 || out.Episode.TotalReward > sum.BestReward) {
			sum.BestReward = out.Episode.TotalReward
		}

		if err != nil {
			if ctx.Err() != nil {
				break
			}
			failures++
			if failures >= t.config.MaxConsecutiveFailures {
				return sum, fmt.Errorf("%d consecutive failed episodes: %w", failures, err)
			}
		} else {
			failures = 0
		}

		if interval > 0 && (episodes <= 0 || sum.Episodes < episodes) {
			select {
			case <-ctx.Done():
			case <-time.After(interval):
			}
		}
	}

	return sum, nil
}

// #endregion run
