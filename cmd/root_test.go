package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"train", "vectorize", "predict", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "clickbait-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootPersistentPreRun_ConfigFlag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clickbait.yaml")
	require.NoError(t, os.WriteFile(path, []byte("train:\n  trees: 77\nlog:\n  format: console\n"), 0o644))

	t.Cleanup(func() {
		flags := rootCmd.Flags()
		_ = flags.Set("config", "")
		_ = flags.Set("log-level", "")
		flags.Lookup("config").Changed = false
		flags.Lookup("log-level").Changed = false
	})
	require.NoError(t, rootCmd.ParseFlags([]string{"--config", path, "--log-level", "debug"}))

	require.NoError(t, rootCmd.PersistentPreRunE(rootCmd, nil))
	assert.Equal(t, 77, cfg.Train.Trees)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)

	require.NoError(t, rootCmd.Flags().Set("config", filepath.Join(t.TempDir(), "missing.yaml")))
	assert.Error(t, rootCmd.PersistentPreRunE(rootCmd, nil))
}

func TestTrainCommand_Flags(t *testing.T) {
	for _, name := range []string{"data-dir", "prefix", "vocab", "split-offset", "trees", "folds", "seed", "workers", "model", "report", "metrics"} {
		assert.NotNil(t, trainCmd.Flags().Lookup(name), "train should have --%s flag", name)
	}
}

func TestVectorizeCommand_Flags(t *testing.T) {
	for _, name := range []string{"data-dir", "prefix", "vocab", "out"} {
		assert.NotNil(t, vectorizeCmd.Flags().Lookup(name), "vectorize should have --%s flag", name)
	}
}

func TestPredictCommand_Flags(t *testing.T) {
	for _, name := range []string{"data-dir", "prefix", "vocab", "model", "out"} {
		assert.NotNil(t, predictCmd.Flags().Lookup(name), "predict should have --%s flag", name)
	}
}

func TestRunsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range runsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["list"])
	assert.True(t, names["show"])

	for name, def := range map[string]string{"status": "", "sort": "newest", "min-roc-auc": "0", "limit": "50"} {
		flag := runsListCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "runs list should have --%s flag", name)
		assert.Equal(t, def, flag.DefValue, name)
	}
	assert.NotNil(t, runsShowCmd.Flags().Lookup("json"))
}
