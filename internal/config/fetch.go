package config

import (
	"time"

	"github.com/spf13/pflag"
)

// FetchConfig configures the log fetch pipeline.
type FetchConfig struct {
	RPCURL            string
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []string
	BatchSize         uint64
	Out               string
	PGDSN             string
	Errors            string
	Checkpoint        string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	TimestampWorkers  int
	TimestampCache    int
	LogLevel          string
}

// LoadFetch merges config file, environment variables, and flags into FetchConfig.
func LoadFetch(cfgFile string, flags *pflag.FlagSet) (FetchConfig, error) {
	v, err := load(cfgFile, flags, map[string]any{
		"batch-size":         uint64(2000),
		"out":                "./data/events.jsonl",
		"errors":             "./data/decode_errors.jsonl",
		"checkpoint":         "./data/fetch_checkpoint.json",
		"checkpoint-enabled": true,
		"max-retries":        5,
		"retry-backoff":      500 * time.Millisecond,
		"timestamp-workers":  8,
		"timestamp-cache":    100000,
	})
	if err != nil {
		return FetchConfig{}, err
	}

	return FetchConfig{
		RPCURL:            v.GetString("rpc"),
		FromBlock:         v.GetUint64("from"),
		ToBlock:           v.GetUint64("to"),
		Addresses:         getStringSlice(v, "address"),
		BatchSize:         v.GetUint64("batch-size"),
		Out:               v.GetString("out"),
		PGDSN:             v.GetString("pg-dsn"),
		Errors:            v.GetString("errors"),
		Checkpoint:        v.GetString("checkpoint"),
		CheckpointEnabled: v.GetBool("checkpoint-enabled"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		TimestampWorkers:  v.GetInt("timestamp-workers"),
		TimestampCache:    v.GetInt("timestamp-cache"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}
