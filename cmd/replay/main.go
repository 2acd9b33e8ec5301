package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/checkpoint"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/env"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/evaluator"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/logging"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/physics"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/replay"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/weather"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to facade_controller.db (DB mode)")
	episode := flag.Int("episode", 1, "episode to replay in DB mode")
	temp := flag.Float64("temp", 24, "outdoor temperature for DB mode")
	humidity := flag.Float64("humidity", 50, "outdoor humidity for DB mode")
	wind := flag.Float64("wind", 3, "wind speed for DB mode")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	flag.Parse()

	if (*dbPath == "" && *fixturePath == "") || (*dbPath != "" && *fixturePath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --db path/to/facade_controller.db [--episode N] [--temp C --humidity RH --wind m/s]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixture.json")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		r := weather.Reading{Temperature: *temp, Humidity: *humidity, WindSpeed: *wind, Condition: "Clear"}
		exitCode = runDBMode(*dbPath, *episode, r)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region db-mode

// runDBMode replays a logged episode's requested adjustments under fixed
// weather. Weather is not logged per step, so outcomes can legitimately
// differ where the original wind moved panel depth.
func runDBMode(dbPath string, episode int, r weather.Reading) int {
	store, err := checkpoint.NewStore(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		return 2
	}
	defer store.Close()

	steps, err := logging.ListSteps(store.DB(), episode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "query steps: %v\n", err)
		return 2
	}
	if len(steps) == 0 {
		fmt.Fprintf(os.Stderr, "no step_log entries for episode %d\n", episode)
		return 2
	}

	interactions, expected := replay.FromStepLog(steps)

	cfg := env.DefaultConfig()
	cfg.MaxSteps = len(interactions)
	environment := env.New(cfg, weather.Static{Reading: r},
		evaluator.NewSurrogate(evaluator.DefaultSurrogateConfig()),
		physics.NewFilter(physics.DefaultFilterConfig()), nil, nil)

	results, err := replay.Replay(context.Background(), environment, interactions)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(results, expected)
}

// #endregion db-mode

// #region output

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	results, err := replay.Replay(context.Background(), f.Environment(nil), f.ToInteractions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		return 2
	}
	return printComparison(results, f.Expected())
}

// printComparison outputs a comparison table and returns exit code.
func printComparison(results []replay.ReplayResult, expected []string) int {
	fmt.Printf("%-6s| %-11s| %-11s| %-12s| %s\n", "Step", "Expected", "Replayed", "Reward", "Match")
	fmt.Printf("%-6s+%-12s+%-12s+%-13s+%s\n",
		"------", "------------", "------------", "-------------", "------")

	matches := 0
	total := len(results)
	if len(expected) < total {
		total = len(expected)
	}

	for i := 0; i < total; i++ {
		exp := expected[i]
		got := results[i].Action
		match := "DIFF"
		if exp == got {
			match = "OK"
			matches++
		}
		fmt.Printf("%-6d| %-11s| %-11s| %12.2f| %s\n", results[i].Step, exp, got, results[i].Reward, match)
	}

	s := replay.Summarize(results)
	diverge := total - matches
	fmt.Printf("\nSummary: %d total, %d match, %d diverge (applied %d, penalized %d, degraded %d, reward %.2f)\n",
		total, matches, diverge, s.Applied, s.Penalized, s.Degraded, s.TotalReward)

	if diverge > 0 {
		return 1
	}
	return 0
}

// #endregion output
