package trainer

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/checkpoint"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/env"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/evaluator"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/logging"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/physics"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/policy"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/report"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/reward"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/rollout"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/weather"
)

// #region helpers
var mildDay = weather.Reading{
	Temperature:   24,
	Humidity:      50,
	WindSpeed:     3,
	WindDirection: 90,
	CloudCover:    20,
	Condition:     "Clear",
}

type recordingPublisher struct {
	mu      sync.Mutex
	actions []facade.Action
}

func (p *recordingPublisher) Publish(a facade.Action) {
	p.mu.Lock()
	p.actions = append(p.actions, a)
	p.mu.Unlock()
}

type failAfter struct{ ok int }

func (f *failAfter) Fetch(ctx context.Context) (weather.Reading, error) {
	if f.ok <= 0 {
		return weather.Reading{}, weather.ErrUnavailable
	}
	f.ok--
	return mildDay, nil
}

type fixture struct {
	trainer   *Trainer
	optimizer *policy.Optimizer
	store     *checkpoint.Store
	recorder  *report.Recorder
	publisher *recordingPublisher
}

func newFixture(t *testing.T, src weather.Source, withStore bool, config Config) fixture {
	t.Helper()
	envCfg := env.DefaultConfig()
	environment := env.New(envCfg, src,
		evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig()),
		physics.NewFilter(physics.DefaultFilterConfig()),
		reward.NewModel(reward.DefaultConfig()),
		nil,
	)
	pcfg := policy.DefaultConfig()
	pcfg.HiddenSize = 16
	opt := policy.NewOptimizer(environment.ObservationDim(), pcfg)

	f := fixture{
		optimizer: opt,
		recorder:  report.NewRecorder(0),
		publisher: &recordingPublisher{},
	}
	if withStore {
		s, err := checkpoint.NewStore(filepath.Join(t.TempDir(), "facade.db"))
		if err != nil {
			t.Fatalf("NewStore: %v", err)
		}
		t.Cleanup(func() { s.Close() })
		f.store = s
	}
	f.trainer = New(config, environment, opt, Options{
		Store:     f.store,
		Recorder:  f.recorder,
		Publisher: f.publisher,
	})
	if err := f.trainer.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return f
}

// reopen builds a second trainer over an existing store, as a restarted
// controller would.
func reopen(t *testing.T, store *checkpoint.Store, config Config) *Trainer {
	t.Helper()
	environment := env.New(env.DefaultConfig(), weather.Static{Reading: mildDay},
		evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig()),
		physics.NewFilter(physics.DefaultFilterConfig()), nil, nil)
	pcfg := policy.DefaultConfig()
	pcfg.HiddenSize = 16
	tr := New(config, environment, policy.NewOptimizer(environment.ObservationDim(), pcfg), Options{Store: store})
	if err := tr.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return tr
}

// #endregion helpers

// #region train-episode-tests

func TestTrainEpisodeCommitsCheckpoint(t *testing.T) {
	f := newFixture(t, weather.Static{Reading: mildDay}, true, DefaultConfig())
	root := f.trainer.VersionID()
	if root == "" {
		t.Fatal("Init should create a root version")
	}

	out, err := f.trainer.TrainEpisode(context.Background())
	if err != nil {
		t.Fatalf("TrainEpisode: %v", err)
	}
	if out.Action != ActionCommit {
		t.Fatalf("expected commit, got %s: %s", out.Action, out.Reason)
	}
	if out.Episode.Steps != 24 || out.Train == nil || out.Eval == nil {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if out.VersionID == root {
		t.Fatal("commit should create a new version")
	}

	cur, err := f.store.GetCurrent()
	if err != nil {
		t.Fatalf("GetCurrent: %v", err)
	}
	if cur.VersionID != out.VersionID || cur.ParentID != root || cur.Episode != 1 {
		t.Fatalf("unexpected active version %+v", cur.VersionID)
	}

	steps, err := logging.ListSteps(f.store.DB(), 1)
	if err != nil {
		t.Fatalf("ListSteps: %v", err)
	}
	if len(steps) != 24 {
		t.Fatalf("expected 24 logged steps, got %d", len(steps))
	}
	episodes, err := logging.ListEpisodes(f.store.DB(), 10)
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	if len(episodes) != 1 || episodes[0].Decision != logging.DecisionCommit || episodes[0].MetricsJSON == "" {
		t.Fatalf("unexpected episode log %+v", episodes)
	}

	if got := len(f.recorder.Facade()); got != 24 {
		t.Fatalf("expected 24 facade records, got %d", got)
	}
	if got, want := len(f.publisher.actions), 24-out.Episode.Penalties; got != want {
		t.Fatalf("expected %d published actions, got %d", want, got)
	}
}

func TestInitRestoresActivePolicy(t *testing.T) {
	f := newFixture(t, weather.Static{Reading: mildDay}, true, DefaultConfig())
	if _, err := f.trainer.TrainEpisode(context.Background()); err != nil {
		t.Fatalf("TrainEpisode: %v", err)
	}
	trained := f.optimizer.Params()

	pcfg := policy.DefaultConfig()
	pcfg.HiddenSize = 16
	pcfg.Seed = 7
	fresh := policy.NewOptimizer(facade.BaseObservationDim, pcfg)
	environment := env.New(env.DefaultConfig(), weather.Static{Reading: mildDay}, nil,
		physics.NewFilter(physics.DefaultFilterConfig()), nil, nil)
	restarted := New(DefaultConfig(), environment, fresh, Options{Store: f.store})
	if err := restarted.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if restarted.VersionID() != f.trainer.VersionID() {
		t.Fatalf("expected version %s, got %s", f.trainer.VersionID(), restarted.VersionID())
	}
	if fresh.Params().Norm() != trained.Norm() {
		t.Fatal("restored parameters differ from committed ones")
	}
}

func TestTrainEpisodeRollbackRestoresParams(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Eval.MaxLoss = -1 // every loss fails validation
	f := newFixture(t, weather.Static{Reading: mildDay}, true, cfg)
	root := f.trainer.VersionID()
	before := f.optimizer.Params()

	out, err := f.trainer.TrainEpisode(context.Background())
	if err != nil {
		t.Fatalf("TrainEpisode: %v", err)
	}
	if out.Action != ActionRollback {
		t.Fatalf("expected rollback, got %s", out.Action)
	}
	if out.VersionID != root {
		t.Fatalf("rollback must keep version %s, got %s", root, out.VersionID)
	}
	if f.optimizer.Params().Norm() != before.Norm() {
		t.Fatal("rolled-back parameters differ from the pre-update snapshot")
	}
	if status := f.trainer.Status(); status.Rollbacks != 1 || status.Commits != 0 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestTrainEpisodeGateRejectSkipsEval(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Gate.MaxDeltaNorm = -1 // any parameter change is vetoed
	f := newFixture(t, weather.Static{Reading: mildDay}, true, cfg)
	root := f.trainer.VersionID()
	before := f.optimizer.Params()

	out, err := f.trainer.TrainEpisode(context.Background())
	if err != nil {
		t.Fatalf("TrainEpisode: %v", err)
	}
	if out.Action != ActionGateReject {
		t.Fatalf("expected gate_reject, got %s", out.Action)
	}
	if out.Gate == nil || !out.Gate.Vetoed || out.Eval != nil {
		t.Fatalf("gate reject must skip eval: gate=%+v eval=%+v", out.Gate, out.Eval)
	}
	if out.VersionID != root || f.optimizer.Params().Distance(before) != 0 {
		t.Fatal("gate reject must keep the previous policy")
	}

	episodes, err := logging.ListEpisodes(f.store.DB(), 10)
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	if len(episodes) != 1 || episodes[0].Decision != logging.DecisionGateReject {
		t.Fatalf("expected one gate_reject entry, got %+v", episodes)
	}
	if status := f.trainer.Status(); status.GateRejects != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestInitResumesAfterRejectedEpisodes(t *testing.T) {
	f := newFixture(t, weather.Static{Reading: mildDay}, true, DefaultConfig())
	if out, err := f.trainer.TrainEpisode(context.Background()); err != nil || out.Action != ActionCommit {
		t.Fatalf("episode 1: %v %v", out.Action, err)
	}

	rejecting := DefaultConfig()
	rejecting.Gate.MaxDeltaNorm = -1
	second := reopen(t, f.store, rejecting)
	out, err := second.TrainEpisode(context.Background())
	if err != nil || out.Action != ActionGateReject || out.Episode.Episode != 2 {
		t.Fatalf("episode 2: %+v %v", out.Episode, err)
	}

	third := reopen(t, f.store, DefaultConfig())
	if status := third.Status(); status.Episode != 2 {
		t.Fatalf("restart should resume at episode 2, status %+v", status)
	}
	out, err = third.TrainEpisode(context.Background())
	if err != nil {
		t.Fatalf("TrainEpisode: %v", err)
	}
	if out.Episode.Episode != 3 {
		t.Fatalf("expected episode 3 after restart, got %d", out.Episode.Episode)
	}

	for ep := 1; ep <= 3; ep++ {
		steps, err := logging.ListSteps(f.store.DB(), ep)
		if err != nil {
			t.Fatalf("ListSteps: %v", err)
		}
		if len(steps) != 24 {
			t.Fatalf("episode %d has %d logged steps, want 24", ep, len(steps))
		}
	}
}

func TestTrainFailureLogsAbandon(t *testing.T) {
	f := newFixture(t, weather.Static{Reading: mildDay}, true, DefaultConfig())
	f.trainer.train = func(rollout.Batch) (policy.TrainResult, error) {
		return policy.TrainResult{}, policy.ErrEmptyBatch
	}
	root := f.trainer.VersionID()

	out, err := f.trainer.TrainEpisode(context.Background())
	if !errors.Is(err, policy.ErrEmptyBatch) {
		t.Fatalf("expected ErrEmptyBatch, got %v", err)
	}
	if out.Action != ActionAbandon || out.VersionID != root {
		t.Fatalf("unexpected outcome %+v", out)
	}

	episodes, err := logging.ListEpisodes(f.store.DB(), 10)
	if err != nil {
		t.Fatalf("ListEpisodes: %v", err)
	}
	if len(episodes) != 1 || episodes[0].Decision != logging.DecisionAbandon || episodes[0].Steps != 24 {
		t.Fatalf("expected one abandon entry with 24 steps, got %+v", episodes)
	}
}

func TestWeatherFailureAbandonsEpisode(t *testing.T) {
	f := newFixture(t, &failAfter{ok: 3}, true, DefaultConfig())

	out, err := f.trainer.TrainEpisode(context.Background())
	if !errors.Is(err, env.ErrWeatherUnavailable) {
		t.Fatalf("expected ErrWeatherUnavailable, got %v", err)
	}
	if out.Action != ActionAbandon {
		t.Fatalf("expected abandon, got %s", out.Action)
	}
	if f.optimizer.Steps() != 0 {
		t.Fatal("abandoned episode must never reach the optimizer")
	}
	episodes, _ := logging.ListEpisodes(f.store.DB(), 10)
	if len(episodes) != 1 || episodes[0].Decision != logging.DecisionAbandon {
		t.Fatalf("expected one abandon entry, got %+v", episodes)
	}
}

// #endregion train-episode-tests

// #region run-tests

func TestRunTrainsRequestedEpisodes(t *testing.T) {
	f := newFixture(t, weather.Static{Reading: mildDay}, false, DefaultConfig())

	sum, err := f.trainer.Run(context.Background(), 3, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Episodes != 3 || sum.Commits != 3 || sum.Abandoned != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if f.optimizer.Steps() != 3 {
		t.Fatalf("expected 3 optimizer steps, got %d", f.optimizer.Steps())
	}
	if status := f.trainer.Status(); status.TotalSteps != 72 || status.Episode != 3 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestRunGivesUpAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxConsecutiveFailures = 2
	f := newFixture(t, weather.NewSequence(nil), false, cfg)

	sum, err := f.trainer.Run(context.Background(), 0, 0)
	if !errors.Is(err, env.ErrWeatherUnavailable) {
		t.Fatalf("expected ErrWeatherUnavailable, got %v", err)
	}
	if sum.Abandoned != 2 || sum.Commits != 0 {
		t.Fatalf("unexpected summary %+v", sum)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	f := newFixture(t, weather.Static{Reading: mildDay}, false, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := f.trainer.Run(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Episodes != 0 {
		t.Fatalf("cancelled run should not start episodes, got %d", sum.Episodes)
	}
}

// #endregion run-tests
