package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lendingScope/internal/chain"
	"lendingScope/internal/compound"
	"lendingScope/internal/config"
	"lendingScope/internal/decoder"
	"lendingScope/internal/indexer"
	"lendingScope/internal/storage"
	"lendingScope/internal/storage/postgres"
)

func runFetch(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadFetch(cfgFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Out == "" && cfg.PGDSN == "" {
		return fmt.Errorf("output path or pg dsn is required")
	}

	protocol, err := compound.NewProtocol(compound.ProtocolConfig{Logger: logger})
	if err != nil {
		return err
	}
	addresses, err := indexer.ParseAddresses(append(protocol.Contracts(), cfg.Addresses...))
	if err != nil {
		return err
	}

	dec, err := decoder.NewCompound()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.TimestampCache)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	var sink storage.EventSink
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		sink = store
	} else {
		sink = storage.NewJSONLSink(cfg.Out)
	}

	var errSink storage.DecodeErrorSink
	if cfg.Errors != "" {
		errSink = storage.NewJSONLSink(cfg.Errors)
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock:         cfg.FromBlock,
		ToBlock:           cfg.ToBlock,
		Addresses:         addresses,
		Topic0:            dec.Topics(),
		BatchSize:         cfg.BatchSize,
		CheckpointPath:    cfg.Checkpoint,
		CheckpointEnabled: cfg.CheckpointEnabled,
		MaxRetries:        cfg.MaxRetries,
		RetryBackoff:      cfg.RetryBackoff,
		TimestampWorkers:  cfg.TimestampWorkers,
	}, chainClient, dec, sink, errSink, logger)

	logger.Info("fetch start",
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("addresses", len(addresses)),
		zap.Int("topic0", len(dec.Topics())),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("out", cfg.Out),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	if err := runner.Run(ctx); err != nil {
		return err
	}
	logger.Info("fetch complete", zap.Int("cached_timestamps", chainClient.CachedTimestamps()))
	return nil
}
