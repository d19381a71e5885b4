package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/clickbait-cli/internal/config"
	"github.com/sells-group/clickbait-cli/internal/features"
	"github.com/sells-group/clickbait-cli/internal/model"
	"github.com/sells-group/clickbait-cli/internal/store"
	"github.com/sells-group/clickbait-cli/internal/trainer"
)

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "runs.db"),
	}}

	st, err := initStore(context.Background())
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	runs, err := st.ListRuns(context.Background(), store.RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestPredictCmd_RunE_NoModel(t *testing.T) {
	cfg = &config.Config{
		Store:  config.StoreConfig{Driver: "sqlite"},
		Output: config.OutputConfig{VocabFile: "vocab.json"},
	}

	err := predictCmd.RunE(predictCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.model_file is required")
}

func TestVectorizeCmd_RunE_MissingInstances(t *testing.T) {
	cfg = &config.Config{
		Data: config.DataConfig{
			Dir:           t.TempDir(),
			InstancesFile: "instances.jsonl",
			TruthFile:     "truth.jsonl",
		},
		Store:  config.StoreConfig{Driver: "sqlite"},
		Output: config.OutputConfig{VocabFile: "vocab.json"},
	}

	err := vectorizeCmd.RunE(vectorizeCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instances.jsonl")
}

func TestTrainCmd_RunE_InvalidConfig(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite"}}

	err := trainCmd.RunE(trainCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "train.split_offset must be > 0")
	assert.Contains(t, err.Error(), "train.trees must be > 0")
}

func TestRunsShowCmd_RunE(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	cfg = &config.Config{Store: config.StoreConfig{Driver: "sqlite", DatabaseURL: dbPath}}
	ctx := context.Background()

	st, err := initStore(ctx)
	require.NoError(t, err)
	run, err := st.CreateRun(ctx, model.RunParams{Trees: 10, Folds: 3})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	runsShowCmd.SetContext(ctx)
	require.NoError(t, runsShowCmd.RunE(runsShowCmd, []string{run.ID}))

	err = runsShowCmd.RunE(runsShowCmd, []string{"missing"})
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "runs show")
}

func TestRunsListCmd_RunE_Empty(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "runs.db"),
	}}

	runsListCmd.SetContext(context.Background())
	require.NoError(t, runsListCmd.RunE(runsListCmd, nil))
}

func TestWritePredictions(t *testing.T) {
	preds := []trainer.Prediction{
		{ID: "1", Probability: 0.8, Clickbait: true},
		{ID: "2", Probability: 0.1, Clickbait: false},
	}

	var buf bytes.Buffer
	require.NoError(t, writePredictions(&buf, preds))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"id":"1","clickbaitProbability":0.8,"clickbait":true}`, lines[0])
	assert.Equal(t, `{"id":"2","clickbaitProbability":0.1,"clickbait":false}`, lines[1])
}

func TestFormatLayout(t *testing.T) {
	layout := []features.Block{
		{Name: "postText", Start: 0, End: 12},
		{Name: "hour", Start: 12, End: 36},
	}

	var buf bytes.Buffer
	formatLayout(&buf, layout)

	out := buf.String()
	assert.Contains(t, out, "BLOCK")
	assert.Contains(t, out, "postText")
	assert.Contains(t, out, "36")
}
