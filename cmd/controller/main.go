package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/actuator"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/checkpoint"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/config"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/env"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/evaluator"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/physics"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/policy"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/report"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/reward"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/trainer"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/weather"
)

// #region main
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("controller stopped", zap.Error(err))
	}
	logger.Info("controller stopped")
}

// #endregion main

// #region run
func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, err := checkpoint.NewStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	src := weatherSource(cfg)

	var ev evaluator.Evaluator
	if cfg.EvaluatorAddr != "" {
		client, err := evaluator.NewGRPCClient(cfg.EvaluatorAddr)
		if err != nil {
			return fmt.Errorf("connect evaluator at %s: %w", cfg.EvaluatorAddr, err)
		}
		defer client.Close()
		ev = client
	} else {
		ev = evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig())
	}

	rc := reward.DefaultConfig()
	rc.ComfortEnabled = cfg.ComfortEnabled
	rc.ClampComfort = cfg.ClampComfort

	ec := env.DefaultConfig()
	ec.Extended = cfg.ExtendedObs
	ec.ComfortEnabled = cfg.ComfortEnabled
	ec.Location = cfg.OWMCity
	environment := env.New(ec, src, ev, physics.NewFilter(physics.DefaultFilterConfig()),
		reward.NewModel(rc), logger.Named("env"))

	pc := policy.DefaultConfig()
	pc.Seed = cfg.Seed
	optimizer := policy.NewOptimizer(environment.ObservationDim(), pc)

	recorder := report.NewRecorder(report.DefaultMaxRecords)
	hub := actuator.NewHub()

	tc := trainer.DefaultConfig()
	tc.ReportDir = cfg.ReportDir
	tc.WeatherSource = cfg.WeatherMode
	t := trainer.New(tc, environment, optimizer, trainer.Options{
		Store:     store,
		Recorder:  recorder,
		Publisher: hub,
		Logger:    logger.Named("trainer"),
	})
	if err := t.Init(); err != nil {
		return fmt.Errorf("init trainer: %w", err)
	}

	sc := actuator.DefaultServerConfig()
	sc.Addr = cfg.HTTPAddr
	server := actuator.NewServer(sc, hub, actuator.Options{
		Recorder: recorder,
		Status:   t,
		Fallback: inferenceFallback(src, optimizer, cfg.ExtendedObs),
		Logger:   logger.Named("actuator"),
	})

	logger.Info("controller ready",
		zap.String("db", cfg.DBPath),
		zap.String("evaluator", evaluatorName(cfg)),
		zap.String("weather", cfg.WeatherMode),
		zap.String("http", cfg.HTTPAddr),
		zap.String("version", t.VersionID()),
		zap.Int("obs_dim", environment.ObservationDim()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx)
	})
	g.Go(func() error {
		summary, err := t.Run(gctx, cfg.Episodes, cfg.EpisodeInterval)
		logger.Info("training finished",
			zap.Int("episodes", summary.Episodes),
			zap.Int("commits", summary.Commits),
			zap.Int("rollbacks", summary.EvalRollbacks),
			zap.Int("abandoned", summary.Abandoned),
		)
		if err != nil {
			return err
		}
		// Keep serving the final policy until stopped.
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

// #endregion run

// #region helpers
func weatherSource(cfg config.Config) weather.Source {
	if cfg.WeatherMode == config.WeatherOpenWeatherMap {
		wc := weather.DefaultConfig()
		wc.APIKey = cfg.OWMAPIKey
		wc.City = cfg.OWMCity
		return weather.NewOpenWeatherMap(wc, nil)
	}
	return weather.Static{Reading: weather.Reading{
		Temperature: 24,
		Humidity:    50,
		WindSpeed:   3,
		CloudCover:  20,
		Condition:   "Clear",
	}}
}

// inferenceFallback serves the deterministic policy action for the current
// weather when nothing has been applied yet.
func inferenceFallback(src weather.Source, optimizer *policy.Optimizer, extended bool) actuator.FallbackFunc {
	return func(ctx context.Context) (facade.Action, error) {
		r, err := src.Fetch(ctx)
		if err != nil {
			return facade.Action{}, err
		}
		obs := r.Observation()
		if extended {
			obs.Extended = true
			obs = obs.WithAggregate(facade.Aggregate{})
		}
		return optimizer.Mean(obs)
	}
}

func evaluatorName(cfg config.Config) string {
	if cfg.EvaluatorAddr == "" {
		return "surrogate"
	}
	return cfg.EvaluatorAddr
}

// #endregion helpers
