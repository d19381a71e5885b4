package trainer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/clickbait-cli/internal/config"
	"github.com/sells-group/clickbait-cli/internal/dataset"
	"github.com/sells-group/clickbait-cli/internal/features"
	"github.com/sells-group/clickbait-cli/internal/model"
	"github.com/sells-group/clickbait-cli/internal/store"
)

// corpus returns n posts where every third one is clickbait.
func corpus(n int) ([]model.Record, []model.Label) {
	records := make([]model.Record, n)
	labels := make([]model.Label, n)
	for i := range n {
		id := model.ID(fmt.Sprintf("%d", 600000+i))
		r := model.Record{
			ID:                id,
			TargetKeywords:    model.TextValue{"news"},
			TargetParagraphs:  []string{"the story continues below", "more text"},
			PostTimestamp:     fmt.Sprintf("2016-06-%02dT%02d:15:00.000Z", 6+i%7, i%24),
			TargetDescription: model.TextValue{fmt.Sprintf("report number %d", i%5)},
		}
		l := model.Label{ID: id, TruthClass: "no-clickbait"}
		if i%3 == 0 {
			r.TargetTitle = model.TextValue{fmt.Sprintf("You won't believe what this cat did %d", i)}
			r.PostMedia = []string{"photo.jpg"}
			l.TruthClass = model.TruthClassClickbait
		} else {
			r.TargetTitle = model.TextValue{fmt.Sprintf("Parliament debates budget amendment %d", i)}
		}
		records[i] = r
		labels[i] = l
	}
	return records, labels
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Output: config.OutputConfig{
			VocabFile:   filepath.Join(dir, "vocabs.json"),
			ModelFile:   filepath.Join(dir, "model.json"),
			ReportFile:  filepath.Join(dir, "report.yaml"),
			MetricsFile: filepath.Join(dir, "clickbait.prom"),
		},
		Train: config.TrainConfig{
			SplitOffset:     28,
			Trees:           5,
			Folds:           3,
			Seed:            42,
			Workers:         2,
			MinSamplesSplit: 2,
		},
	}
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestRun_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)
	records, labels := corpus(30)
	ctx := context.Background()

	res, err := New(cfg, st).Run(ctx, records, labels)
	require.NoError(t, err)
	require.NotNil(t, res.Report)

	// 10 clickbait vs 20 not: balancing appends 10 rows.
	assert.Equal(t, 40, res.Report.Rows)
	assert.Equal(t, 28, res.Report.TrainRows)
	assert.Equal(t, 12, res.Report.TestRows)
	assert.Equal(t, features.NumColumns(res.Vocabularies), res.Report.Columns)
	assert.Len(t, res.Report.CrossVal, 3)
	assert.GreaterOrEqual(t, res.Report.ROCAUC, 0.0)
	assert.LessOrEqual(t, res.Report.ROCAUC, 1.0)
	assert.Equal(t, 12, res.Report.Confusion.Total())
	for _, fp := range res.Report.FalsePositives {
		assert.NotEmpty(t, fp.Title)
	}

	require.Len(t, res.Phases, 8)
	names := make([]string, len(res.Phases))
	for i, p := range res.Phases {
		names[i] = p.Name
		assert.Equal(t, model.PhaseStatusComplete, p.Status)
	}
	assert.Equal(t, []string{
		PhaseAlign, PhaseBalance, PhaseShuffle, PhaseVectorize,
		PhaseSplit, PhaseCrossVal, PhaseFit, PhaseEvaluate,
	}, names)

	for _, path := range []string{cfg.Output.VocabFile, cfg.Output.ModelFile, cfg.Output.ReportFile, cfg.Output.MetricsFile} {
		_, err := os.Stat(path)
		assert.NoError(t, err, path)
	}

	run, err := st.GetRun(ctx, res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 40, run.Result.Rows)
	assert.Equal(t, cfg.Output.ModelFile, run.Result.ModelPath)
	assert.Equal(t, 28, run.Params.SplitOffset)

	phases, err := st.ListPhases(ctx, res.RunID)
	require.NoError(t, err)
	assert.Len(t, phases, 8)
}

func TestRun_Reproducible(t *testing.T) {
	records, labels := corpus(30)

	cfgA := testConfig(t)
	a, err := New(cfgA, newTestStore(t)).Run(context.Background(), records, labels)
	require.NoError(t, err)

	cfgB := testConfig(t)
	cfgB.Train.Workers = 1
	b, err := New(cfgB, newTestStore(t)).Run(context.Background(), records, labels)
	require.NoError(t, err)

	assert.Equal(t, a.Vocabularies, b.Vocabularies)
	assert.Equal(t, a.Report.CrossVal, b.Report.CrossVal)
	assert.Equal(t, a.Report.ROCAUC, b.Report.ROCAUC)
	assert.Equal(t, a.Report.Confusion, b.Report.Confusion)
}

func TestRun_MisalignedFailsRun(t *testing.T) {
	cfg := testConfig(t)
	st := newTestStore(t)
	records, labels := corpus(9)
	labels[4].ID = "other"

	res, err := New(cfg, st).Run(context.Background(), records, labels)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrMisaligned))
	require.NotNil(t, res)
	require.Len(t, res.Phases, 1)
	assert.Equal(t, model.PhaseStatusFailed, res.Phases[0].Status)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "row 4")

	_, err = os.Stat(cfg.Output.VocabFile)
	assert.True(t, os.IsNotExist(err))

	prom, err := os.ReadFile(cfg.Output.MetricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "clickbait_run_success 0")
	assert.Contains(t, string(prom), `clickbait_phase_failed{phase="align"} 1`)
}

func TestRun_SplitOffsetOutOfRange(t *testing.T) {
	cfg := testConfig(t)
	cfg.Train.SplitOffset = 500
	records, labels := corpus(30)

	res, err := New(cfg, newTestStore(t)).Run(context.Background(), records, labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "split offset")
	assert.Equal(t, PhaseSplit, res.Phases[len(res.Phases)-1].Name)
}

// --- store failures are logged, not fatal ---

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateRun(ctx context.Context, params model.RunParams) (*model.Run, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	return m.Called(ctx, runID, status).Error(0)
}

func (m *mockStore) UpdateRunResult(ctx context.Context, runID string, result *model.RunResult) error {
	return m.Called(ctx, runID, result).Error(0)
}

func (m *mockStore) FailRun(ctx context.Context, runID string, runErr string) error {
	return m.Called(ctx, runID, runErr).Error(0)
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).([]model.Run), args.Error(1)
}

func (m *mockStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	args := m.Called(ctx, runID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RunPhase), args.Error(1)
}

func (m *mockStore) CompletePhase(ctx context.Context, phaseID string, result *model.PhaseResult) error {
	return m.Called(ctx, phaseID, result).Error(0)
}

func (m *mockStore) ListPhases(ctx context.Context, runID string) ([]model.RunPhase, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).([]model.RunPhase), args.Error(1)
}

func (m *mockStore) Migrate(ctx context.Context) error { return m.Called(ctx).Error(0) }
func (m *mockStore) Close() error                      { return m.Called().Error(0) }

func TestRun_StoreErrorsAreNotFatal(t *testing.T) {
	cfg := testConfig(t)
	records, labels := corpus(30)

	st := &mockStore{}
	st.On("CreateRun", mock.Anything, mock.Anything).Return(&model.Run{ID: "run-1"}, nil)
	st.On("UpdateRunStatus", mock.Anything, "run-1", mock.Anything).Return(errors.New("db down"))
	st.On("CreatePhase", mock.Anything, "run-1", mock.Anything).Return(nil, errors.New("db down"))
	st.On("UpdateRunResult", mock.Anything, "run-1", mock.Anything).Return(errors.New("db down"))

	res, err := New(cfg, st).Run(context.Background(), records, labels)
	require.NoError(t, err)
	assert.Equal(t, "run-1", res.RunID)
	assert.Len(t, res.Phases, 8)
	st.AssertNotCalled(t, "CompletePhase", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "FailRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_CreateRunError(t *testing.T) {
	st := &mockStore{}
	st.On("CreateRun", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	records, labels := corpus(3)
	_, err := New(testConfig(t), st).Run(context.Background(), records, labels)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create run")
}

func TestRun_BalanceFailure(t *testing.T) {
	records, labels := corpus(6)
	for i := range labels {
		labels[i].TruthClass = model.TruthClassClickbait
	}
	labels[0].TruthClass = "no-clickbait"

	st := &mockStore{}
	st.On("CreateRun", mock.Anything, mock.Anything).Return(&model.Run{ID: "run-2"}, nil)
	st.On("UpdateRunStatus", mock.Anything, "run-2", mock.Anything).Return(nil)
	st.On("CreatePhase", mock.Anything, "run-2", mock.Anything).Return(&model.RunPhase{ID: "phase"}, nil)
	st.On("CompletePhase", mock.Anything, "phase", mock.Anything).Return(nil)
	st.On("FailRun", mock.Anything, "run-2", mock.MatchedBy(func(s string) bool { return s != "" })).Return(nil)

	_, err := New(testConfig(t), st).Run(context.Background(), records, labels)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dataset.ErrImbalance))
	st.AssertCalled(t, "FailRun", mock.Anything, "run-2", mock.Anything)
	st.AssertNumberOfCalls(t, "CompletePhase", 2)
}
