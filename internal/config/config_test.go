package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Data.Dir)
	assert.Equal(t, "instances.jsonl", cfg.Data.InstancesFile)
	assert.Equal(t, "truth.jsonl", cfg.Data.TruthFile)
	assert.Empty(t, cfg.Data.FilePrefix)
	assert.Equal(t, "vocabs.json", cfg.Output.VocabFile)
	assert.Empty(t, cfg.Output.ModelFile)
	assert.Empty(t, cfg.Output.ReportFile)
	assert.Equal(t, 2394, cfg.Train.SplitOffset)
	assert.Equal(t, 10, cfg.Train.Trees)
	assert.Equal(t, 3, cfg.Train.Folds)
	assert.Equal(t, uint64(42), cfg.Train.Seed)
	assert.Equal(t, 1, cfg.Train.Workers)
	assert.Equal(t, 0, cfg.Train.MaxDepth)
	assert.Equal(t, 2, cfg.Train.MinSamplesSplit)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Store.ConnectAttempts)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)

	assert.NoError(t, cfg.Validate("train"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
data:
  dir: /data/webis
  file_prefix: small_
log:
  level: debug
  format: console
train:
  trees: 50
  workers: 4
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/data/webis", cfg.Data.Dir)
	assert.Equal(t, "small_", cfg.Data.FilePrefix)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 50, cfg.Train.Trees)
	assert.Equal(t, 4, cfg.Train.Workers)
	// Defaults still apply for unset values
	assert.Equal(t, 3, cfg.Train.Folds)
	assert.Equal(t, "instances.jsonl", cfg.Data.InstancesFile)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CLICKBAIT_STORE_DRIVER", "postgres")
	t.Setenv("CLICKBAIT_LOG_LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CLICKBAIT_TRAIN_SPLIT_OFFSET", "100")
	t.Setenv("CLICKBAIT_TRAIN_SEED", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Train.SplitOffset)
	assert.Equal(t, uint64(7), cfg.Train.Seed)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("train: [unclosed"), 0644))

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoadExplicitPath(t *testing.T) {
	chdirTemp(t)
	path := filepath.Join(t.TempDir(), "prod.yml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: postgres\n  connect_attempts: 6\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 6, cfg.Store.ConnectAttempts)
	assert.Equal(t, 10, cfg.Train.Trees)

	_, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Output.VocabFile = "vocabs.json"
	cfg.Train.SplitOffset = 2394
	cfg.Train.Trees = 10
	cfg.Train.Folds = 3
	cfg.Train.Workers = 1
	return cfg
}

func TestValidateTrain(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("train"))

	cfg.Train.Trees = 0
	cfg.Train.Folds = 1
	cfg.Train.Workers = 65
	err := cfg.Validate("train")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "train.trees must be > 0")
	assert.Contains(t, err.Error(), "train.folds must be >= 2")
	assert.Contains(t, err.Error(), "train.workers must be between 1 and 64")
}

func TestValidatePredict_RequiresModel(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("predict")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.model_file is required")

	cfg.Output.ModelFile = "model.json"
	assert.NoError(t, cfg.Validate("predict"))
}

func TestValidatePostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "postgres"

	err := cfg.Validate("runs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	cfg.Store.DatabaseURL = "postgres://localhost/clickbait"
	assert.NoError(t, cfg.Validate("runs"))
}

func TestValidateUnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"
	err := cfg.Validate("vectorize")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
