// Package ledger records every persisted batch in SQLite: the refined
// records, the refinement log and the learning table snapshot of each run.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/agent"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/quality"
	"github.com/danielpatrickdp/adaptive-state/quality-refiner/internal/record"
)

// timeLayout is fixed width so created_at sorts as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	created_at  TEXT NOT NULL,
	seed        INTEGER NOT NULL,
	agent_json  TEXT NOT NULL,
	initial_json TEXT,
	outcome     TEXT NOT NULL,
	backend     TEXT,
	location    TEXT
);

CREATE TABLE IF NOT EXISTS refined_records (
	run_id          TEXT NOT NULL,
	position        INTEGER NOT NULL,
	asset_id        TEXT NOT NULL,
	text            TEXT NOT NULL,
	rating          REAL NOT NULL,
	timestamp       TEXT NOT NULL,
	masked_text     TEXT NOT NULL,
	sentiment_label TEXT NOT NULL,
	confidence      REAL NOT NULL,
	refined_quality REAL NOT NULL,
	PRIMARY KEY (run_id, position),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS refinement_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	asset_id      TEXT NOT NULL,
	original_text TEXT NOT NULL,
	masked_text   TEXT NOT NULL,
	action        TEXT NOT NULL,
	reward        REAL NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS q_values (
	run_id  TEXT NOT NULL,
	bucket  TEXT NOT NULL,
	sign    INTEGER NOT NULL,
	action  TEXT NOT NULL,
	value   REAL NOT NULL,
	PRIMARY KEY (run_id, bucket, sign, action),
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
`
// #endregion schema

// #region store-struct
// Store manages the run ledger in SQLite.
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
	// One connection keeps ":memory:" databases shared across queries.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	return NewStoreWithDB(db)
}

// NewStoreWithDB runs migrations on an already open database.
func NewStoreWithDB(db *sql.DB) (*Store, error) {
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

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region save-run
// SaveRun writes a run with its records, log and table in one transaction.
// An empty ID is replaced with a fresh UUID, which is returned.
func (s *Store) SaveRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	agentJSON, err := json.Marshal(run.Agent)
	if err != nil {
		return "", fmt.Errorf("marshal agent config: %w", err)
	}

	var initialJSON string
	if len(run.Initial) > 0 {
		raw, err := json.Marshal(run.Initial)
		if err != nil {
			return "", fmt.Errorf("marshal initial table: %w", err)
		}
		initialJSON = string(raw)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, seed, agent_json, initial_json, outcome, backend, location)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.UTC().Format(timeLayout), int64(run.Seed), string(agentJSON),
		nullIfEmpty(initialJSON), run.Outcome, nullIfEmpty(run.Backend), nullIfEmpty(run.Location),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, r := range run.Records {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO refined_records (run_id, position, asset_id, text, rating, timestamp,
			   masked_text, sentiment_label, confidence, refined_quality)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, r.AssetID, r.Text, r.Rating, r.Timestamp,
			r.MaskedText, r.SentimentLabel, r.Confidence, r.RefinedQuality,
		)
		if err != nil {
			return "", fmt.Errorf("insert record %s: %w", r.AssetID, err)
		}
	}

	for _, e := range run.Log {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO refinement_log (run_id, asset_id, original_text, masked_text, action, reward)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			run.ID, e.AssetID, e.OriginalText, e.MaskedText, e.Action, e.Reward,
		)
		if err != nil {
			return "", fmt.Errorf("insert log %s: %w", e.AssetID, err)
		}
	}

	for k, v := range run.Table {
		st, act, err := agent.ParseKey(k)
		if err != nil {
			return "", fmt.Errorf("table key: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO q_values (run_id, bucket, sign, action, value) VALUES (?, ?, ?, ?, ?)`,
			run.ID, string(st.Bucket), int(st.Sign), string(act), v,
		)
		if err != nil {
			return "", fmt.Errorf("insert q value %s: %w", k, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return run.ID, nil
}
// #endregion save-run

// #region get-run
// GetRun loads a run and all of its rows.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	var run Run
	var createdStr, agentJSON string
	var seed int64
	var initialJSON, backend, location sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, created_at, seed, agent_json, initial_json, outcome, backend, location
		 FROM runs WHERE run_id = ?`, id,
	).Scan(&run.ID, &createdStr, &seed, &agentJSON, &initialJSON, &run.Outcome, &backend, &location)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", id, err)
	}

	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	run.Seed = uint64(seed)
	run.Backend = backend.String
	run.Location = location.String
	if err := json.Unmarshal([]byte(agentJSON), &run.Agent); err != nil {
		return Run{}, fmt.Errorf("unmarshal agent config: %w", err)
	}
	if initialJSON.Valid {
		if err := json.Unmarshal([]byte(initialJSON.String), &run.Initial); err != nil {
			return Run{}, fmt.Errorf("unmarshal initial table: %w", err)
		}
	}

	if run.Records, err = s.records(ctx, id); err != nil {
		return Run{}, err
	}
	if run.Log, err = s.logEntries(ctx, id); err != nil {
		return Run{}, err
	}
	if run.Table, err = s.table(ctx, id); err != nil {
		return Run{}, err
	}
	return run, nil
}

// Latest returns the most recently saved run.
func (s *Store) Latest(ctx context.Context) (Run, error) {
	id, err := s.latestID(ctx)
	if err != nil {
		return Run{}, err
	}
	return s.GetRun(ctx, id)
}

// LatestTable returns the learning table snapshot of the most recent run.
func (s *Store) LatestTable(ctx context.Context) (map[string]float64, error) {
	id, err := s.latestID(ctx)
	if err != nil {
		return nil, err
	}
	return s.table(ctx, id)
}

func (s *Store) latestID(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id FROM runs ORDER BY created_at DESC, rowid DESC LIMIT 1`,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("latest run: %w", err)
	}
	return id, nil
}
// #endregion get-run

// #region list-runs
// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.run_id, r.created_at, r.outcome, r.location,
		        (SELECT COUNT(*) FROM refined_records rr WHERE rr.run_id = r.run_id)
		 FROM runs r ORDER BY r.created_at DESC, r.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var rs RunSummary
		var createdStr string
		var location sql.NullString
		if err := rows.Scan(&rs.ID, &createdStr, &rs.Outcome, &location, &rs.Records); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rs.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		rs.Location = location.String
		out = append(out, rs)
	}
	return out, rows.Err()
}
// #endregion list-runs

// #region row-readers
func (s *Store) records(ctx context.Context, id string) ([]record.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, text, rating, timestamp, masked_text, sentiment_label, confidence, refined_quality
		 FROM refined_records WHERE run_id = ? ORDER BY position`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []record.Record
	for rows.Next() {
		var r record.Record
		if err := rows.Scan(&r.AssetID, &r.Text, &r.Rating, &r.Timestamp,
			&r.MaskedText, &r.SentimentLabel, &r.Confidence, &r.RefinedQuality); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.OrigRating = r.Rating
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) logEntries(ctx context.Context, id string) ([]record.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT asset_id, original_text, masked_text, action, reward
		 FROM refinement_log WHERE run_id = ? ORDER BY id`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query log: %w", err)
	}
	defer rows.Close()

	var out []record.LogEntry
	for rows.Next() {
		var e record.LogEntry
		if err := rows.Scan(&e.AssetID, &e.OriginalText, &e.MaskedText, &e.Action, &e.Reward); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) table(ctx context.Context, id string) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT bucket, sign, action, value FROM q_values WHERE run_id = ?`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("query q values: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var bucket, action string
		var sign int
		var v float64
		if err := rows.Scan(&bucket, &sign, &action, &v); err != nil {
			return nil, fmt.Errorf("scan q value: %w", err)
		}
		st := quality.State{Bucket: quality.Bucket(bucket), Sign: quality.Sign(sign)}
		out[agent.EncodeKey(st, quality.Action(action))] = v
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion row-readers
