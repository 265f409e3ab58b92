package config

import "github.com/spf13/pflag"

// ExportConfig configures a CSV export.
type ExportConfig struct {
	State     string
	Report    string
	Out       string
	Threshold string
	LogLevel  string
}

// LoadExport merges config file, environment variables, and flags into ExportConfig.
func LoadExport(cfgFile string, flags *pflag.FlagSet) (ExportConfig, error) {
	v, err := load(cfgFile, flags, map[string]any{
		"state":     "./data/state.json",
		"report":    "borrow-supply",
		"threshold": "0",
	})
	if err != nil {
		return ExportConfig{}, err
	}

	return ExportConfig{
		State:     v.GetString("state"),
		Report:    v.GetString("report"),
		Out:       v.GetString("out"),
		Threshold: v.GetString("threshold"),
		LogLevel:  v.GetString("log-level"),
	}, nil
}
