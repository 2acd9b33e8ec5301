package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/checkpoint"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/logging"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/report"
)

const episodesFile = "episodes.csv"

// #region main

func main() {
	dbPath := flag.String("db", "", "path to facade_controller.db")
	episode := flag.Int("episode", -1, "export only this episode (default all)")
	outDir := flag.String("out", "", "output directory for CSV files")
	flag.Parse()

	if *dbPath == "" || *outDir == "" {
		fmt.Fprintln(os.Stderr, "usage: export --db path/to/db --out dir [--episode N]")
		os.Exit(2)
	}

	if err := run(*dbPath, *episode, *outDir); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region extract

func run(dbPath string, episode int, outDir string) error {
	store, err := checkpoint.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer store.Close()

	steps, err := logging.ListSteps(store.DB(), episode)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return fmt.Errorf("no step rows found")
	}
	fmt.Printf("Found %d step rows\n", len(steps))

	rec := buildRecorder(steps)
	if err := rec.Flush(outDir); err != nil {
		return err
	}

	entries, err := logging.ListEpisodes(store.DB(), -1)
	if err != nil {
		return err
	}
	n, err := writeEpisodes(filepath.Join(outDir, episodesFile), entries, episode)
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %s, %s, %s (%d steps) and %s (%d episodes) to %s\n",
		report.FacadeFile, report.EnergyFile, report.ComfortFile, len(steps), episodesFile, n, outDir)
	return nil
}

// #endregion extract

// #region output

// buildRecorder replays logged steps into the CSV recorder. Steps the
// evaluator did not score only appear in the facade series.
func buildRecorder(steps []logging.StepEntry) *report.Recorder {
	rec := report.NewRecorder(len(steps))
	for _, s := range steps {
		ts := float64(s.CreatedAt.UnixNano()) / 1e9
		rec.AddFacade(report.FacadeRecord{
			Time:       ts,
			Episode:    s.Episode,
			Step:       s.Step,
			PanelCount: s.PanelCount,
			Rotation:   s.Rotation,
			Depth:      s.Depth,
			Admissible: s.Admissible,
		})
		if s.EnergyUse != nil {
			rec.AddEnergy(report.EnergyRecord{Time: ts, Episode: s.Episode, Step: s.Step, EnergyUse: *s.EnergyUse})
		}
		if s.Comfort != nil {
			rec.AddComfort(report.ComfortRecord{Time: ts, Episode: s.Episode, Step: s.Step, ComfortScore: *s.Comfort})
		}
	}
	return rec
}

func writeEpisodes(path string, entries []logging.EpisodeEntry, only int) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"episode", "version_id", "steps", "penalties", "total_reward", "decision", "reason", "created_at"})
	n := 0
	// ListEpisodes returns newest first
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if only >= 0 && e.Episode != only {
			continue
		}
		w.Write([]string{
			strconv.Itoa(e.Episode),
			e.VersionID,
			strconv.Itoa(e.Steps),
			strconv.Itoa(e.Penalties),
			strconv.FormatFloat(e.TotalReward, 'g', -1, 64),
			e.Decision,
			e.Reason,
			e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
		n++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return n, nil
}

// #endregion output
