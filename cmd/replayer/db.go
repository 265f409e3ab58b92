package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lendingScope/internal/config"
	"lendingScope/internal/storage"
	"lendingScope/internal/storage/postgres"
)

func runCreateIndices(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadDB(cfgFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.CreateIndices(ctx); err != nil {
		return err
	}
	logger.Info("indices created")
	return nil
}

func runImport(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadImport(cfgFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}

	ctx, stop := signalContext()
	defer stop()

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	src := cfg.Sources
	steps := []struct {
		name string
		path string
		run  func(path string) (int, error)
	}{
		{"events", src.Events, func(path string) (int, error) {
			return importFile(ctx, path, cfg.BatchSize, storage.ReadEvents, store.PutEvents)
		}},
		{"ds_values", src.DSValues, func(path string) (int, error) {
			return importFile(ctx, path, cfg.BatchSize, storage.ReadJSONL[storage.PriceRow], func(ctx context.Context, rows []storage.PriceRow) error {
				return store.PutPrices(ctx, storage.KindDSValues, rows)
			})
		}},
		{"sai_prices", src.SaiPrices, func(path string) (int, error) {
			return importFile(ctx, path, cfg.BatchSize, storage.ReadJSONL[storage.PriceRow], func(ctx context.Context, rows []storage.PriceRow) error {
				return store.PutPrices(ctx, storage.KindSaiPrices, rows)
			})
		}},
		{"dsr_chi", src.Chi, func(path string) (int, error) {
			return importFile(ctx, path, cfg.BatchSize, storage.ReadJSONL[storage.ChiRow], store.PutChi)
		}},
		{"dsr_rates", src.DSRRates, func(path string) (int, error) {
			return importFile(ctx, path, cfg.BatchSize, storage.ReadJSONL[storage.RateRow], store.PutDSRRates)
		}},
	}

	imported := 0
	for _, step := range steps {
		if step.path == "" {
			continue
		}
		n, err := step.run(step.path)
		if err != nil {
			return fmt.Errorf("import %s: %w", step.name, err)
		}
		imported++
		logger.Info("imported", zap.String("source", step.name), zap.String("path", step.path), zap.Int("rows", n))
	}
	if imported == 0 {
		return fmt.Errorf("no source files given")
	}
	return nil
}

func importFile[T any](
	ctx context.Context,
	path string,
	batchSize int,
	read func(string) ([]T, error),
	put func(context.Context, []T) error,
) (int, error) {
	rows, err := read(path)
	if err != nil {
		return 0, err
	}
	for start := 0; start < len(rows); start += batchSize {
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := put(ctx, rows[start:end]); err != nil {
			return start, err
		}
	}
	return len(rows), nil
}
