package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/clickbait-cli/internal/model"
)

// ErrNotFound is returned when a run or phase id matches no row.
var ErrNotFound = errors.New("store: not found")

// RunOrder selects how ListRuns sorts its results.
type RunOrder string

const (
	OrderNewest   RunOrder = "newest"
	OrderROCAUC   RunOrder = "roc_auc"
	OrderAccuracy RunOrder = "accuracy"
)

// ParseRunOrder maps a user supplied sort key to a RunOrder. The empty
// string means newest first.
func ParseRunOrder(s string) (RunOrder, error) {
	switch o := RunOrder(strings.ToLower(strings.TrimSpace(s))); o {
	case "", OrderNewest:
		return OrderNewest, nil
	case OrderROCAUC, OrderAccuracy:
		return o, nil
	}
	return "", eris.Errorf("store: unknown run order %q (want newest, roc_auc or accuracy)", s)
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	MinROCAUC float64         `json:"min_roc_auc,omitempty"`
	OrderBy   RunOrder        `json:"order_by,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for training run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, runErr string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Phases
	CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error)
	CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error
	ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

const (
	runColumns   = `id, params, status, result, error, created_at, updated_at`
	phaseColumns = `id, run_id, name, status, result, started_at, finished_at`
)

// placeholder renders the n-th (1-based) bind parameter for a driver.
type placeholder func(n int) string

func questionMark(int) string { return "?" }

func dollar(n int) string { return "$" + strconv.Itoa(n) }

// listRunsQuery builds the ListRuns statement. Both drivers share it;
// only the bind syntax differs.
func listRunsQuery(f RunFilter, ph placeholder) (string, []any) {
	var b strings.Builder
	var args []any
	bind := func(v any) string {
		args = append(args, v)
		return ph(len(args))
	}

	b.WriteString(`SELECT ` + runColumns + ` FROM training_runs`)
	var where []string
	if f.Status != "" {
		where = append(where, `status = `+bind(string(f.Status)))
	}
	if f.MinROCAUC > 0 {
		where = append(where, `roc_auc >= `+bind(f.MinROCAUC))
	}
	if len(where) > 0 {
		b.WriteString(` WHERE ` + strings.Join(where, ` AND `))
	}

	switch f.OrderBy {
	case OrderROCAUC:
		b.WriteString(` ORDER BY roc_auc DESC NULLS LAST, created_at DESC`)
	case OrderAccuracy:
		b.WriteString(` ORDER BY accuracy DESC NULLS LAST, created_at DESC`)
	default:
		b.WriteString(` ORDER BY created_at DESC`)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	b.WriteString(` LIMIT ` + bind(limit))
	if f.Offset > 0 {
		b.WriteString(` OFFSET ` + bind(f.Offset))
	}
	return b.String(), args
}

func notFound(entity, id string) error {
	return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
}

// decodeRun fills the JSON columns of r. A nil result means the run has
// not finished.
func decodeRun(r *model.Run, params, result []byte) error {
	if err := json.Unmarshal(params, &r.Params); err != nil {
		return eris.Wrapf(err, "store: decode params of run %s", r.ID)
	}
	if result == nil {
		return nil
	}
	r.Result = &model.RunResult{}
	return eris.Wrapf(json.Unmarshal(result, r.Result), "store: decode result of run %s", r.ID)
}

func decodePhase(p *model.RunPhase, result []byte) error {
	if result == nil {
		return nil
	}
	p.Result = &model.PhaseResult{}
	return eris.Wrapf(json.Unmarshal(result, p.Result), "store: decode result of phase %s", p.ID)
}
