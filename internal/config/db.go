package config

import "github.com/spf13/pflag"

// DBConfig configures commands that only need the database.
type DBConfig struct {
	PGDSN    string
	LogLevel string
}

// LoadDB merges config file, environment variables, and flags into DBConfig.
func LoadDB(cfgFile string, flags *pflag.FlagSet) (DBConfig, error) {
	v, err := load(cfgFile, flags, nil)
	if err != nil {
		return DBConfig{}, err
	}
	return DBConfig{
		PGDSN:    v.GetString("pg-dsn"),
		LogLevel: v.GetString("log-level"),
	}, nil
}

// ImportConfig configures loading JSONL sources into the database.
type ImportConfig struct {
	PGDSN     string
	Sources   Sources
	BatchSize int
	LogLevel  string
}

// LoadImport merges config file, environment variables, and flags into ImportConfig.
func LoadImport(cfgFile string, flags *pflag.FlagSet) (ImportConfig, error) {
	v, err := load(cfgFile, flags, map[string]any{
		"batch-size": 5000,
	})
	if err != nil {
		return ImportConfig{}, err
	}
	return ImportConfig{
		PGDSN:     v.GetString("pg-dsn"),
		Sources:   loadSources(v.GetString),
		BatchSize: v.GetInt("batch-size"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}
