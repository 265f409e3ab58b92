package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "replayer",
		Short:        "Compound event log fetcher and state replayer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch and decode protocol logs",
		RunE:  runFetch,
	}

	fetchCmd.Flags().String("rpc", "", "Ethereum RPC URL")
	fetchCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	fetchCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	fetchCmd.Flags().StringSlice("address", nil, "extra contract addresses (comma-separated)")
	fetchCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	fetchCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL path")
	fetchCmd.Flags().String("pg-dsn", "", "Postgres DSN, replaces the JSONL output when set")
	fetchCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL, empty disables")
	fetchCmd.Flags().String("checkpoint", "./data/fetch_checkpoint.json", "checkpoint file path")
	fetchCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	fetchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fetchCmd.Flags().Int("timestamp-workers", 8, "concurrent block timestamp requests")
	fetchCmd.Flags().Int("timestamp-cache", 100000, "block timestamp cache size")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(fetchCmd)

	indicesCmd := &cobra.Command{
		Use:   "create-indices",
		Short: "Create the database indices used by replays",
		RunE:  runCreateIndices,
	}

	indicesCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	indicesCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(indicesCmd)

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load JSONL sources into Postgres",
		RunE:  runImport,
	}

	importCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	addSourceFlags(importCmd)
	importCmd.Flags().Int("batch-size", 5000, "rows per insert batch")
	importCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(importCmd)

	processCmd := &cobra.Command{
		Use:   "process",
		Short: "Replay events into protocol state",
		RunE:  runProcess,
	}

	processCmd.Flags().String("protocol", "compound", "protocol to replay")
	processCmd.Flags().StringSlice("hooks", nil, "analytics hooks to run (comma-separated)")
	processCmd.Flags().Int64("min-block", 0, "first block to replay")
	processCmd.Flags().Int64("max-block", 0, "last block to replay, 0 means all")
	addSourceFlags(processCmd)
	processCmd.Flags().String("pg-dsn", "", "Postgres DSN, replaces the JSONL sources when set")
	processCmd.Flags().String("state-in", "", "state snapshot to continue from")
	processCmd.Flags().String("state-out", "./data/state.json", "state snapshot output path")
	processCmd.Flags().String("state-name", "compound", "snapshot name in Postgres")
	processCmd.Flags().Int64("checkpoint-every", 0, "blocks between snapshots, 0 saves at the end only")
	processCmd.Flags().Bool("save-partial", false, "save the last completed block when interrupted")
	processCmd.Flags().Int("page-size", 5000, "rows per database page")
	processCmd.Flags().Duration("page-timeout", time.Minute, "timeout of one database page")
	processCmd.Flags().Int("max-retries", 5, "maximum source reopen attempts")
	processCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	processCmd.Flags().Int("progress-every", 100000, "events between progress logs")
	processCmd.Flags().Bool("liquidation-inline", false, "apply liquidation repays from LiquidateBorrow")
	processCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(processCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export hook results from a state snapshot as CSV",
		RunE:  runExport,
	}

	exportCmd.Flags().String("state", "./data/state.json", "state snapshot path")
	exportCmd.Flags().String("report", "borrow-supply", "report to export (borrow-supply, liquidations)")
	exportCmd.Flags().String("out", "", "output CSV path, empty writes stdout")
	exportCmd.Flags().String("threshold", "0", "minimum borrow-supply value to report")
	exportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(exportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("events", "", "decoded events JSONL")
	cmd.Flags().String("ds-values", "", "DSValue reader prices JSONL")
	cmd.Flags().String("sai-prices", "", "SAI prices JSONL")
	cmd.Flags().String("chi", "", "DSR chi JSONL")
	cmd.Flags().String("dsr-rates", "", "DSR rates JSONL")
}

func cfgFile(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
