package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lendingScope/internal/compound"
	"lendingScope/internal/config"
	"lendingScope/internal/export"
)

func runExport(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadExport(cfgFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	threshold, err := decimal.NewFromString(cfg.Threshold)
	if err != nil {
		return fmt.Errorf("invalid threshold %q: %w", cfg.Threshold, err)
	}

	protocol, err := compound.NewProtocol(compound.ProtocolConfig{Logger: logger})
	if err != nil {
		return err
	}
	st, err := loadState(context.Background(), cfg.State, protocol.Registries())
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if cfg.Out != "" {
		file, err := os.Create(cfg.Out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		w = file
	}

	var rows int
	switch cfg.Report {
	case "borrow-supply":
		rows, err = export.BorrowSupply(w, st, threshold)
	case "liquidations":
		rows, err = export.Liquidations(w, st)
	default:
		return fmt.Errorf("unknown report %q", cfg.Report)
	}
	if err != nil {
		return err
	}

	logger.Info("export complete", zap.String("report", cfg.Report), zap.Int("rows", rows), zap.String("out", cfg.Out))
	return nil
}
