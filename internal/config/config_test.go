package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func processFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("process", pflag.ContinueOnError)
	flags.StringSlice("hooks", nil, "")
	flags.Int64("max-block", 0, "")
	flags.String("events", "", "")
	flags.Bool("save-partial", false, "")
	return flags
}

func TestLoadProcessDefaults(t *testing.T) {
	cfg, err := LoadProcess("", processFlags())
	require.NoError(t, err)

	assert.Equal(t, "compound", cfg.Protocol)
	assert.Equal(t, 5000, cfg.PageSize)
	assert.Equal(t, time.Minute, cfg.PageTimeout)
	assert.Equal(t, "./data/state.json", cfg.StateOut)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.Hooks)
	assert.False(t, cfg.SavePartial)
}

func TestLoadProcessEnvAndFlags(t *testing.T) {
	t.Setenv("LENDING_PG_DSN", "postgres://localhost/compound")
	t.Setenv("LENDING_HOOKS", "borrowers, liquidations,")
	t.Setenv("LENDING_CHECKPOINT_EVERY", "1000")

	flags := processFlags()
	require.NoError(t, flags.Set("max-block", "9000000"))
	require.NoError(t, flags.Set("events", "./events.jsonl"))
	require.NoError(t, flags.Set("save-partial", "true"))

	cfg, err := LoadProcess("", flags)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/compound", cfg.PGDSN)
	assert.Equal(t, []string{"borrowers", "liquidations"}, cfg.Hooks)
	assert.Equal(t, int64(1000), cfg.CheckpointEvery)
	assert.Equal(t, int64(9000000), cfg.MaxBlock)
	assert.Equal(t, "./events.jsonl", cfg.Sources.Events)
	assert.True(t, cfg.SavePartial)
}

func TestLoadFetchConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fetch.yaml")
	content := "rpc: http://localhost:8545\n" +
		"batch-size: 500\n" +
		"address:\n" +
		"  - 0x39aa39c021dfbae8fac545936693ac917d5e7563\n" +
		"  - 0x3d9819210a31b4961b30ef54be2aed79b9c9cd3b\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFetch(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, uint64(500), cfg.BatchSize)
	assert.Len(t, cfg.Addresses, 2)
	assert.Equal(t, 8, cfg.TimestampWorkers)
	assert.True(t, cfg.CheckpointEnabled)
	assert.Equal(t, 500*time.Millisecond, cfg.RetryBackoff)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := LoadExport(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestCleanStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, cleanStrings([]string{" a,b", "", "c "}))
	assert.Nil(t, splitAndClean(""))
}
