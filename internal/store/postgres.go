package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/clickbait-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps run history in a shared Postgres database so runs
// from several machines can be compared.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig tunes the connection pool. Zero values keep the defaults.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// A training run writes a handful of rows per phase, so the pool stays small.
const (
	defaultMaxConns = 4
	defaultMinConns = 1
	connLifetime    = 30 * time.Minute
	connIdleTime    = 5 * time.Minute
)

func (pc *PoolConfig) apply(c *pgxpool.Config) {
	c.MaxConns, c.MinConns = defaultMaxConns, defaultMinConns
	c.MaxConnLifetime, c.MaxConnIdleTime = connLifetime, connIdleTime
	if pc == nil {
		return
	}
	if pc.MaxConns > 0 {
		c.MaxConns = pc.MaxConns
	}
	if pc.MinConns > 0 {
		c.MinConns = pc.MinConns
	}
}

// NewPostgres connects to dsn and verifies the connection with a ping.
func NewPostgres(ctx context.Context, dsn string, poolCfg *PoolConfig) (*PostgresStore, error) {
	c, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse dsn")
	}
	poolCfg.apply(c)

	pool, err := pgxpool.NewWithConfig(ctx, c)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS training_runs (
	id         TEXT PRIMARY KEY,
	params     JSONB NOT NULL,
	status     TEXT NOT NULL,
	roc_auc    DOUBLE PRECISION,
	accuracy   DOUBLE PRECISION,
	result     JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS training_runs_status ON training_runs(status);
CREATE INDEX IF NOT EXISTS training_runs_roc_auc ON training_runs(roc_auc DESC NULLS LAST);

CREATE TABLE IF NOT EXISTS training_phases (
	id          TEXT PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES training_runs(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	result      JSONB,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS training_phases_run ON training_phases(run_id);
`

// Migrate creates the run tables if they are missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresSchema)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: encode params")
	}
	run := &model.Run{
		ID:        uuid.NewString(),
		Params:    params,
		Status:    model.RunStatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	run.UpdatedAt = run.CreatedAt

	if _, err := s.pool.Exec(ctx,
		`INSERT INTO training_runs (id, params, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		run.ID, paramsJSON, string(run.Status), run.CreatedAt, run.UpdatedAt,
	); err != nil {
		return nil, eris.Wrap(err, "postgres: create run")
	}
	return run, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return s.exec(ctx, "run", runID,
		`UPDATE training_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
}

// UpdateRunResult stores the final report and marks the run complete.
func (s *PostgresStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: encode result")
	}
	return s.exec(ctx, "run", runID,
		`UPDATE training_runs SET status = $1, result = $2, roc_auc = $3, accuracy = $4, updated_at = $5 WHERE id = $6`,
		string(model.RunStatusComplete), resultJSON, result.ROCAUC, result.Accuracy, time.Now().UTC(), runID,
	)
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, runErr string) error {
	return s.exec(ctx, "run", runID,
		`UPDATE training_runs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.RunStatusFailed), runErr, time.Now().UTC(), runID,
	)
}

// exec runs an UPDATE that must touch exactly one row of entity id.
func (s *PostgresStore) exec(ctx context.Context, entity, id, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s %s", entity, id)
	}
	if tag.RowsAffected() == 0 {
		return notFound(entity, id)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM training_runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound("run", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query, args := listRunsQuery(filter, dollar)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list runs")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs")
}

func (s *PostgresStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	p := &model.RunPhase{
		ID:        uuid.NewString(),
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO training_phases (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		p.ID, p.RunID, p.Name, string(p.Status), p.StartedAt,
	); err != nil {
		return nil, eris.Wrapf(err, "postgres: create phase %s of run %s", name, runID)
	}
	return p, nil
}

func (s *PostgresStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "postgres: encode phase result")
	}
	return s.exec(ctx, "phase", phaseID,
		`UPDATE training_phases SET status = $1, result = $2, finished_at = $3 WHERE id = $4`,
		string(result.Status), resultJSON, time.Now().UTC(), phaseID,
	)
}

// ListPhases returns the phases of a run in the order they started.
func (s *PostgresStore) ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+phaseColumns+` FROM training_phases WHERE run_id = $1 ORDER BY started_at`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list phases of run %s", runID)
	}
	defer rows.Close()

	var phases []model.RunPhase
	for rows.Next() {
		var (
			p      model.RunPhase
			result []byte
		)
		if err := rows.Scan(&p.ID, &p.RunID, &p.Name, &p.Status, &result, &p.StartedAt, &p.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan phase")
		}
		if err := decodePhase(&p, result); err != nil {
			return nil, err
		}
		phases = append(phases, p)
	}
	return phases, eris.Wrap(rows.Err(), "postgres: list phases")
}

// scanPgRun reads one row selected with runColumns. pgx.ErrNoRows is
// returned unwrapped.
func scanPgRun(row pgx.Row) (*model.Run, error) {
	var (
		r              model.Run
		params, result []byte
	)
	if err := row.Scan(&r.ID, &params, &r.Status, &result, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := decodeRun(&r, params, result); err != nil {
		return nil, err
	}
	return &r, nil
}
