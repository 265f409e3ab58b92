package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Sources names the JSONL file of every replay input. Empty paths are
// empty sources.
type Sources struct {
	Events    string
	DSValues  string
	SaiPrices string
	Chi       string
	DSRRates  string
}

// ProcessConfig configures a replay run.
type ProcessConfig struct {
	Protocol          string
	Hooks             []string
	MinBlock          int64
	MaxBlock          int64
	Sources           Sources
	PGDSN             string
	StateIn           string
	StateOut          string
	StateName         string
	CheckpointEvery   int64
	SavePartial       bool
	PageSize          int
	PageTimeout       time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	ProgressEvery     int
	LiquidationInline bool
	LogLevel          string
}

// LoadProcess merges config file, environment variables, and flags into ProcessConfig.
func LoadProcess(cfgFile string, flags *pflag.FlagSet) (ProcessConfig, error) {
	v, err := load(cfgFile, flags, map[string]any{
		"protocol":       "compound",
		"state-out":      "./data/state.json",
		"state-name":     "compound",
		"page-size":      5000,
		"page-timeout":   time.Minute,
		"max-retries":    5,
		"retry-backoff":  500 * time.Millisecond,
		"progress-every": 100000,
	})
	if err != nil {
		return ProcessConfig{}, err
	}

	return ProcessConfig{
		Protocol:          v.GetString("protocol"),
		Hooks:             getStringSlice(v, "hooks"),
		MinBlock:          v.GetInt64("min-block"),
		MaxBlock:          v.GetInt64("max-block"),
		Sources:           loadSources(v.GetString),
		PGDSN:             v.GetString("pg-dsn"),
		StateIn:           v.GetString("state-in"),
		StateOut:          v.GetString("state-out"),
		StateName:         v.GetString("state-name"),
		CheckpointEvery:   v.GetInt64("checkpoint-every"),
		SavePartial:       v.GetBool("save-partial"),
		PageSize:          v.GetInt("page-size"),
		PageTimeout:       v.GetDuration("page-timeout"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		ProgressEvery:     v.GetInt("progress-every"),
		LiquidationInline: v.GetBool("liquidation-inline"),
		LogLevel:          v.GetString("log-level"),
	}, nil
}

func loadSources(get func(string) string) Sources {
	return Sources{
		Events:    get("events"),
		DSValues:  get("ds-values"),
		SaiPrices: get("sai-prices"),
		Chi:       get("chi"),
		DSRRates:  get("dsr-rates"),
	}
}
