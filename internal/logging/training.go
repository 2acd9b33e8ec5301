package logging

import (
	"database/sql"
	"fmt"
	"time"
)

const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// #region log-episode
// LogEpisode writes an episode entry to the episode_log table.
func LogEpisode(db *sql.DB, entry EpisodeEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO episode_log (version_id, episode, total_reward, steps, penalties, decision, reason, metrics_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.VersionID,
		entry.Episode,
		entry.TotalReward,
		entry.Steps,
		entry.Penalties,
		entry.Decision,
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.MetricsJSON),
		entry.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("log episode: %w", err)
	}
	return nil
}

// ListEpisodes returns the most recent episode entries, newest first.
func ListEpisodes(db *sql.DB, limit int) ([]EpisodeEntry, error) {
	rows, err := db.Query(
		`SELECT version_id, episode, total_reward, steps, penalties, decision, reason, metrics_json, created_at
		 FROM episode_log ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var out []EpisodeEntry
	for rows.Next() {
		var e EpisodeEntry
		var reason, metrics sql.NullString
		var created string
		if err := rows.Scan(&e.VersionID, &e.Episode, &e.TotalReward, &e.Steps, &e.Penalties,
			&e.Decision, &reason, &metrics, &created); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		e.Reason = reason.String
		e.MetricsJSON = metrics.String
		e.CreatedAt, _ = time.Parse(timeFormat, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion log-episode

// #region log-step
// LogStep writes a step entry to the step_log table.
func LogStep(db *sql.DB, entry StepEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO step_log (episode, step, rotation, depth, panel_count, energy_use, comfort_score, reward, admissible, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Episode,
		entry.Step,
		entry.Rotation,
		entry.Depth,
		entry.PanelCount,
		nullIfNil(entry.EnergyUse),
		nullIfNil(entry.Comfort),
		entry.Reward,
		boolInt(entry.Admissible),
		entry.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("log step: %w", err)
	}
	return nil
}

// ListSteps returns the steps of one episode in order. A negative episode
// returns every logged step.
func ListSteps(db *sql.DB, episode int) ([]StepEntry, error) {
	query := `SELECT episode, step, rotation, depth, panel_count, energy_use, comfort_score, reward, admissible, created_at
		 FROM step_log`
	var args []interface{}
	if episode >= 0 {
		query += ` WHERE episode = ?`
		args = append(args, episode)
	}
	query += ` ORDER BY episode, step, id`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var out []StepEntry
	for rows.Next() {
		var e StepEntry
		var energy, comfort sql.NullFloat64
		var admissible int
		var created string
		if err := rows.Scan(&e.Episode, &e.Step, &e.Rotation, &e.Depth, &e.PanelCount,
			&energy, &comfort, &e.Reward, &admissible, &created); err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if energy.Valid {
			e.EnergyUse = &energy.Float64
		}
		if comfort.Valid {
			e.Comfort = &comfort.Float64
		}
		e.Admissible = admissible != 0
		e.CreatedAt, _ = time.Parse(timeFormat, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// LastEpisode returns the highest episode number in either log, or 0 when
// both are empty.
func LastEpisode(db *sql.DB) (int, error) {
	var last int
	err := db.QueryRow(
		`SELECT COALESCE(MAX(episode), 0) FROM (
			SELECT episode FROM episode_log
			UNION ALL
			SELECT episode FROM step_log
		)`,
	).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("last episode: %w", err)
	}
	return last, nil
}

// #endregion log-step

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfNil(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
