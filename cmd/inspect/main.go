package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/checkpoint"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/logging"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to facade_controller.db")
	last := flag.Int("last", 20, "show N most recent versions or episodes")
	version := flag.String("version", "", "show single version detail")
	episodes := flag.Bool("episodes", false, "list the episode log instead of policy versions")
	steps := flag.Bool("steps", false, "with --version, include the step log of its episode")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/facade_controller.db [--last N] [--version id [--steps]] [--episodes] [--json]")
		os.Exit(2)
	}

	store, err := checkpoint.NewStore(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	switch {
	case *version != "":
		err = runDetailMode(store, *version, *steps, *jsonOut)
	case *episodes:
		err = runEpisodeMode(store, *last, *jsonOut)
	default:
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	VersionID   string  `json:"version_id"`
	Episode     int     `json:"episode"`
	ActorNorm   float64 `json:"actor_norm"`
	CriticNorm  float64 `json:"critic_norm"`
	TotalReward float64 `json:"total_reward"`
	Decision    string  `json:"decision"`
	Reason      string  `json:"reason,omitempty"`
	Score       float32 `json:"score"`
	CreatedAt   string  `json:"created_at"`
}

func runListMode(store *checkpoint.Store, last int, jsonOut bool) error {
	versions, err := store.ListVersionsWithLog(last)
	if err != nil {
		return err
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "no versions found")
		return nil
	}

	// Store returns DESC, reverse for chronological
	rows := make([]listRow, len(versions))
	for i, v := range versions {
		lr := listRow{
			VersionID:   v.VersionID,
			Episode:     v.Episode,
			TotalReward: v.TotalReward,
			Decision:    v.Decision,
			Reason:      v.Reason,
			Score:       verifierScore(v.Decision),
			CreatedAt:   v.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
		if v.Decision == "" {
			lr.Decision = "root"
		}
		if p, err := v.Params(); err == nil {
			lr.ActorNorm = p.ActorNorm()
			lr.CriticNorm = p.CriticNorm()
		}
		rows[len(versions)-1-i] = lr
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-12s  %7s  %10s  %11s  %12s  %-8s  %6s  %s\n",
		"Version", "Episode", "Actor Norm", "Critic Norm", "Reward", "Decision", "Score", "Time")
	fmt.Printf("%-12s+-%7s+-%10s+-%11s+-%12s+-%-8s+-%6s+-%s\n",
		"------------", "-------", "----------", "-----------", "------------", "--------", "------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-12s  %7d  %10.4f  %11.4f  %12.2f  %-8s  %6.2f  %s\n",
			shortID(r.VersionID), r.Episode, r.ActorNorm, r.CriticNorm, r.TotalReward, r.Decision, r.Score, r.CreatedAt)
	}
	return nil
}

// #endregion list-mode

// #region episode-mode

type episodeRow struct {
	Episode     int     `json:"episode"`
	VersionID   string  `json:"version_id"`
	Steps       int     `json:"steps"`
	Penalties   int     `json:"penalties"`
	TotalReward float64 `json:"total_reward"`
	Decision    string  `json:"decision"`
	Reason      string  `json:"reason,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func runEpisodeMode(store *checkpoint.Store, last int, jsonOut bool) error {
	entries, err := logging.ListEpisodes(store.DB(), last)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "no episodes logged")
		return nil
	}

	rows := make([]episodeRow, len(entries))
	for i, e := range entries {
		rows[len(entries)-1-i] = episodeRow{
			Episode:     e.Episode,
			VersionID:   e.VersionID,
			Steps:       e.Steps,
			Penalties:   e.Penalties,
			TotalReward: e.TotalReward,
			Decision:    e.Decision,
			Reason:      e.Reason,
			CreatedAt:   e.CreatedAt.Format("2006-01-02T15:04:05Z"),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%7s  %-12s  %5s  %9s  %12s  %-13s  %s\n",
		"Episode", "Version", "Steps", "Penalties", "Reward", "Decision", "Reason")
	for _, r := range rows {
		fmt.Printf("%7d  %-12s  %5d  %9d  %12.2f  %-13s  %s\n",
			r.Episode, shortID(r.VersionID), r.Steps, r.Penalties, r.TotalReward, r.Decision, r.Reason)
	}
	return nil
}

// #endregion episode-mode

// #region detail-mode

type detailOutput struct {
	VersionID  string                 `json:"version_id"`
	ParentID   string                 `json:"parent_id"`
	Episode    int                    `json:"episode"`
	CreatedAt  string                 `json:"created_at"`
	ParamNorm  float64                `json:"param_norm"`
	ActorNorm  float64                `json:"actor_norm"`
	CriticNorm float64                `json:"critic_norm"`
	ObsDim     int                    `json:"obs_dim"`
	Metrics    *logging.EpisodeRecord `json:"metrics,omitempty"`
	Steps      []logging.StepEntry    `json:"steps,omitempty"`
}

func runDetailMode(store *checkpoint.Store, versionID string, withSteps, jsonOut bool) error {
	rec, err := store.GetVersion(versionID)
	if err != nil {
		return err
	}
	params, err := rec.Params()
	if err != nil {
		return fmt.Errorf("decode version %s: %w", versionID, err)
	}

	out := detailOutput{
		VersionID:  rec.VersionID,
		ParentID:   rec.ParentID,
		Episode:    rec.Episode,
		CreatedAt:  rec.CreatedAt.Format("2006-01-02T15:04:05Z"),
		ParamNorm:  params.Norm(),
		ActorNorm:  params.ActorNorm(),
		CriticNorm: params.CriticNorm(),
		ObsDim:     params.ObservationDim(),
	}
	if rec.MetricsJSON != "" {
		var m logging.EpisodeRecord
		if err := json.Unmarshal([]byte(rec.MetricsJSON), &m); err == nil {
			out.Metrics = &m
		}
	}
	if withSteps && rec.ParentID != "" {
		out.Steps, err = logging.ListSteps(store.DB(), rec.Episode)
		if err != nil {
			return err
		}
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Version:     %s\n", out.VersionID)
	fmt.Printf("Parent:      %s\n", out.ParentID)
	fmt.Printf("Episode:     %d\n", out.Episode)
	fmt.Printf("Created:     %s\n", out.CreatedAt)
	fmt.Printf("Obs Dim:     %d\n", out.ObsDim)
	fmt.Printf("Param Norm:  %.4f (actor %.4f, critic %.4f)\n", out.ParamNorm, out.ActorNorm, out.CriticNorm)

	if m := out.Metrics; m != nil {
		fmt.Printf("\nEpisode Record:\n")
		fmt.Printf("  Reward:        %.2f over %d steps (%d penalised)\n", m.TotalReward, m.Steps, m.Penalties)
		fmt.Printf("  Policy Loss:   %.6f\n", m.PolicyLoss)
		fmt.Printf("  Value Loss:    %.6f\n", m.ValueLoss)
		fmt.Printf("  Entropy:       %.4f\n", m.Entropy)
		fmt.Printf("  Clip Fraction: %.3f\n", m.ClipFraction)
		fmt.Printf("  Approx KL:     %.6f\n", m.ApproxKL)
		fmt.Printf("  Delta Norm:    %.6f\n", m.DeltaNorm)
		fmt.Printf("  Gate:          passed=%v %s\n", m.GatePassed, m.GateReason)
		fmt.Printf("  Eval:          passed=%v %s\n", m.EvalPassed, m.EvalReason)
	}

	if len(out.Steps) > 0 {
		fmt.Printf("\n%4s  %5s  %8s  %6s  %12s  %7s  %10s  %s\n",
			"Step", "Count", "Rotation", "Depth", "Energy", "Comfort", "Reward", "Admissible")
		for _, s := range out.Steps {
			fmt.Printf("%4d  %5d  %8.2f  %6.3f  %12s  %7s  %10.2f  %v\n",
				s.Step, s.PanelCount, s.Rotation, s.Depth, optional(s.EnergyUse, "%.1f"), optional(s.Comfort, "%.3f"), s.Reward, s.Admissible)
		}
	}
	return nil
}

// #endregion detail-mode

// #region verifier

func verifierScore(decision string) float32 {
	switch decision {
	case logging.DecisionCommit:
		return 1.0
	case logging.DecisionRollback:
		return -1.0
	case logging.DecisionGateReject:
		return -0.5
	case logging.DecisionNoOp:
		return 0.5
	default:
		return 0.0
	}
}

// #endregion verifier

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func optional(v *float64, format string) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf(format, *v)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// #endregion output
