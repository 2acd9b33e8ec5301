package checkpoint

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/policy"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS policy_versions (
	version_id    TEXT PRIMARY KEY,
	parent_id     TEXT,
	actor_blob    BLOB NOT NULL,
	critic_blob   BLOB NOT NULL,
	episode       INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	metrics_json  TEXT,
	FOREIGN KEY (parent_id) REFERENCES policy_versions(version_id)
);

CREATE TABLE IF NOT EXISTS episode_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT NOT NULL,
	episode       INTEGER NOT NULL,
	total_reward  REAL NOT NULL,
	steps         INTEGER NOT NULL,
	penalties     INTEGER NOT NULL,
	decision      TEXT NOT NULL,
	reason        TEXT,
	metrics_json  TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES policy_versions(version_id)
);

CREATE TABLE IF NOT EXISTS step_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	episode       INTEGER NOT NULL,
	step          INTEGER NOT NULL,
	rotation      REAL NOT NULL,
	depth         REAL NOT NULL,
	panel_count   INTEGER NOT NULL,
	energy_use    REAL,
	comfort_score REAL,
	reward        REAL NOT NULL,
	admissible    INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_step_log_episode ON step_log(episode, step);

CREATE TABLE IF NOT EXISTS active_policy (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES policy_versions(version_id)
);
`

// #endregion schema

// timeFormat is fixed-width so created_at sorts lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// #region store-struct
// Store manages versioned policy parameters in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for the training log.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region new-record
// NewRecord builds an unsaved version of params with a fresh id.
func NewRecord(parentID string, episode int, params policy.Params, metricsJSON string) Record {
	return Record{
		VersionID:   uuid.New().String(),
		ParentID:    parentID,
		ActorBlob:   params.MarshalActor(),
		CriticBlob:  params.MarshalCritic(),
		Episode:     episode,
		CreatedAt:   time.Now().UTC(),
		MetricsJSON: metricsJSON,
	}
}

// #endregion new-record

// #region create-initial
// CreateInitial stores params as the root version and makes it active.
func (s *Store) CreateInitial(params policy.Params) (Record, error) {
	rec := NewRecord("", 0, params, "")

	tx, err := s.db.Begin()
	if err != nil {
		return Record{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, rec); err != nil {
		return Record{}, err
	}

	_, err = tx.Exec(
		`INSERT INTO active_policy (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		rec.VersionID,
	)
	if err != nil {
		return Record{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion create-initial

// #region get-current
// GetCurrent reads the active policy version. It returns an error wrapping
// sql.ErrNoRows when the store has never been initialised.
func (s *Store) GetCurrent() (Record, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_policy WHERE id = 1`).Scan(&versionID)
	if err != nil {
		return Record{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a specific policy version by ID.
func (s *Store) GetVersion(id string) (Record, error) {
	row := s.db.QueryRow(
		`SELECT version_id, parent_id, actor_blob, critic_blob, episode, created_at, metrics_json
		 FROM policy_versions WHERE version_id = ?`, id,
	)
	rec, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-version

// #region commit
// Commit inserts a new version and updates the active pointer atomically.
func (s *Store) Commit(rec Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, rec); err != nil {
		return err
	}

	_, err = tx.Exec(`UPDATE active_policy SET version_id = ? WHERE id = 1`, rec.VersionID)
	if err != nil {
		return fmt.Errorf("update active: %w", err)
	}

	return tx.Commit()
}

func insertVersion(tx *sql.Tx, rec Record) error {
	var parentPtr interface{}
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}
	var metricsPtr interface{}
	if rec.MetricsJSON != "" {
		metricsPtr = rec.MetricsJSON
	}

	_, err := tx.Exec(
		`INSERT INTO policy_versions (version_id, parent_id, actor_blob, critic_blob, episode, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.VersionID, parentPtr, rec.ActorBlob, rec.CriticBlob, rec.Episode,
		rec.CreatedAt.Format(timeFormat), metricsPtr,
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// #endregion commit

// #region rollback
// Rollback sets the active pointer to a previous version.
func (s *Store) Rollback(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM policy_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found", targetVersionID)
	}

	_, err = s.db.Exec(`UPDATE active_policy SET version_id = ? WHERE id = 1`, targetVersionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent policy versions, newest first.
func (s *Store) ListVersions(limit int) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT version_id, parent_id, actor_blob, critic_blob, episode, created_at, metrics_json
		 FROM policy_versions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListVersionsWithLog returns recent versions joined with the episode log
// row that committed them. The root version has an empty decision.
func (s *Store) ListVersionsWithLog(limit int) ([]VersionWithLog, error) {
	rows, err := s.db.Query(
		`SELECT v.version_id, v.parent_id, v.actor_blob, v.critic_blob, v.episode, v.created_at, v.metrics_json,
		        COALESCE(e.total_reward, 0), COALESCE(e.decision, ''), COALESCE(e.reason, '')
		 FROM policy_versions v
		 LEFT JOIN episode_log e ON e.id = (
		     SELECT id FROM episode_log WHERE version_id = v.version_id AND decision = 'commit'
		     ORDER BY id DESC LIMIT 1)
		 ORDER BY v.created_at DESC, v.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions with log: %w", err)
	}
	defer rows.Close()

	var out []VersionWithLog
	for rows.Next() {
		var v VersionWithLog
		var parentID, metricsJSON sql.NullString
		var createdStr string
		if err := rows.Scan(&v.VersionID, &parentID, &v.ActorBlob, &v.CriticBlob, &v.Episode, &createdStr, &metricsJSON,
			&v.TotalReward, &v.Decision, &v.Reason); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		v.ParentID = parentID.String
		v.MetricsJSON = metricsJSON.String
		v.CreatedAt, _ = time.Parse(timeFormat, createdStr)
		out = append(out, v)
	}
	return out, rows.Err()
}

// #endregion list-versions

// #region scan
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(r rowScanner) (Record, error) {
	var rec Record
	var parentID, metricsJSON sql.NullString
	var createdStr string

	if err := r.Scan(&rec.VersionID, &parentID, &rec.ActorBlob, &rec.CriticBlob, &rec.Episode, &createdStr, &metricsJSON); err != nil {
		return Record{}, err
	}
	if parentID.Valid {
		rec.ParentID = parentID.String
	}
	rec.CreatedAt, _ = time.Parse(timeFormat, createdStr)
	if metricsJSON.Valid {
		rec.MetricsJSON = metricsJSON.String
	}
	return rec, nil
}

// #endregion scan
