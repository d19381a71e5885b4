package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/clickbait-cli/internal/model"
)

// SQLiteStore keeps run history in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA foreign_keys=ON",
}

// NewSQLite opens the database at dsn. ":memory:" works for tests but
// must stay on a single connection.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: open %s", dsn)
	}
	db.SetMaxOpenConns(1)
	for _, p := range sqlitePragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: %s", p)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS training_runs (
	id         TEXT PRIMARY KEY,
	params     TEXT NOT NULL,
	status     TEXT NOT NULL,
	roc_auc    REAL,
	accuracy   REAL,
	result     TEXT,
	error      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS training_runs_status ON training_runs(status);
CREATE INDEX IF NOT EXISTS training_runs_roc_auc ON training_runs(roc_auc);

CREATE TABLE IF NOT EXISTS training_phases (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES training_runs(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	result      TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);
CREATE INDEX IF NOT EXISTS training_phases_run ON training_phases(run_id);
`

// Migrate creates the run tables if they are missing.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteSchema)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: encode params")
	}
	run := &model.Run{
		ID:        uuid.NewString(),
		Params:    params,
		Status:    model.RunStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	run.UpdatedAt = run.CreatedAt

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO training_runs (id, params, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(paramsJSON), string(run.Status), run.CreatedAt, run.UpdatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: create run")
	}
	return run, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return s.updateRun(ctx, runID,
		`UPDATE training_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
}

// UpdateRunResult stores the final report and marks the run complete.
// ROC AUC and accuracy are copied into their own columns for ListRuns.
func (s *SQLiteStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode result")
	}
	return s.updateRun(ctx, runID,
		`UPDATE training_runs SET status = ?, result = ?, roc_auc = ?, accuracy = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusComplete), string(resultJSON), result.ROCAUC, result.Accuracy, time.Now().UTC(), runID,
	)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, runErr string) error {
	return s.updateRun(ctx, runID,
		`UPDATE training_runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), runErr, time.Now().UTC(), runID,
	)
}

func (s *SQLiteStore) updateRun(ctx context.Context, runID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run %s", runID)
	}
	return expectOneRow(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM training_runs WHERE id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	return r, err
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query, args := listRunsQuery(filter, questionMark)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs")
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	p := &model.RunPhase{
		ID:        uuid.NewString(),
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO training_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.RunID, p.Name, string(p.Status), p.StartedAt,
	); err != nil {
		return nil, eris.Wrapf(err, "sqlite: create phase %s of run %s", name, runID)
	}
	return p, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: encode phase result")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE training_phases SET status = ?, result = ?, finished_at = ? WHERE id = ?`,
		string(result.Status), string(resultJSON), time.Now().UTC(), phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
	}
	return expectOneRow(res, "phase", phaseID)
}

// ListPhases returns the phases of a run in the order they started.
func (s *SQLiteStore) ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+phaseColumns+` FROM training_phases WHERE run_id = ? ORDER BY started_at, rowid`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list phases of run %s", runID)
	}
	defer rows.Close() //nolint:errcheck

	var phases []model.RunPhase
	for rows.Next() {
		var (
			p        model.RunPhase
			result   []byte
			finished sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &p.Status, &result, &p.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan phase")
		}
		if finished.Valid {
			p.FinishedAt = &finished.Time
		}
		if err := decodePhase(&p, result); err != nil {
			return nil, err
		}
		phases = append(phases, p)
	}
	return phases, eris.Wrap(rows.Err(), "sqlite: list phases")
}

func expectOneRow(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return notFound(entity, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRun reads one row selected with runColumns. sql.ErrNoRows is
// returned unwrapped so callers can map it to ErrNotFound.
func scanRun(row rowScanner) (*model.Run, error) {
	var (
		r              model.Run
		params, result []byte
	)
	err := row.Scan(&r.ID, &params, &r.Status, &result, &r.Error, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	if err := decodeRun(&r, params, result); err != nil {
		return nil, err
	}
	return &r, nil
}
