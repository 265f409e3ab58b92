package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"lendingScope/internal/compound"
	"lendingScope/internal/config"
	"lendingScope/internal/hook"
	"lendingScope/internal/ratemodel"
	"lendingScope/internal/replay"
	"lendingScope/internal/state"
	"lendingScope/internal/storage"
	"lendingScope/internal/storage/postgres"
)

func runProcess(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadProcess(cfgFile(cmd), cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.MaxBlock != 0 && cfg.MaxBlock < cfg.MinBlock {
		return fmt.Errorf("max block %d is before min block %d", cfg.MaxBlock, cfg.MinBlock)
	}

	ctx, stop := signalContext()
	defer stop()

	var store *postgres.Store
	if cfg.PGDSN != "" {
		store, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
	} else if cfg.Sources.Events == "" {
		return fmt.Errorf("events path or pg dsn is required")
	}

	dsrRates, err := loadDSRRates(ctx, cfg, store)
	if err != nil {
		return err
	}

	protocolCfg := compound.ProtocolConfig{
		Options:    compound.Options{LiquidationRepaysInline: cfg.LiquidationInline},
		DSRRates:   dsrRates,
		MaxRetries: cfg.MaxRetries,
		Backoff:    cfg.RetryBackoff,
		Logger:     logger,
	}
	if store != nil {
		protocolCfg.Source = postgres.NewSource(store, postgres.SourceConfig{
			PageSize:    cfg.PageSize,
			PageTimeout: cfg.PageTimeout,
			Logger:      logger,
		})
		protocolCfg.Recoverable = postgres.IsRecoverable
	} else {
		protocolCfg.Source = storage.JSONLSource{Paths: map[storage.Kind]string{
			storage.KindEvents:    cfg.Sources.Events,
			storage.KindDSValues:  cfg.Sources.DSValues,
			storage.KindSaiPrices: cfg.Sources.SaiPrices,
			storage.KindChi:       cfg.Sources.Chi,
		}}
	}
	compoundProtocol, err := compound.NewProtocol(protocolCfg)
	if err != nil {
		return err
	}

	protocols, err := replay.NewProtocols(compoundProtocol)
	if err != nil {
		return err
	}
	p, err := protocols.Get(cfg.Protocol)
	if err != nil {
		return err
	}

	hooks, err := hook.New(p.Hooks(), cfg.Hooks)
	if err != nil {
		return err
	}

	fileStore := &replay.FileStateStore{Path: cfg.StateOut}
	var snapshots replay.StateStore = fileStore
	mirror := store != nil && cfg.StateName != ""
	if mirror {
		snapshots = &replay.DBStateStore{Store: store, Name: cfg.StateName}
	}

	executor := replay.NewExecutor(replay.Config{
		CheckpointEvery: cfg.CheckpointEvery,
		ProgressEvery:   cfg.ProgressEvery,
		SavePartial:     cfg.SavePartial,
		Store:           snapshots,
		Logger:          logger,
	})

	logger.Info("process start",
		zap.String("protocol", p.Name()),
		zap.Strings("hooks", hooks.Names()),
		zap.Int64("min_block", cfg.MinBlock),
		zap.Int64("max_block", cfg.MaxBlock),
		zap.Bool("postgres", store != nil),
		zap.String("state_in", cfg.StateIn),
		zap.String("state_out", cfg.StateOut),
		zap.Int64("checkpoint_every", cfg.CheckpointEvery),
	)

	var st *state.State
	if cfg.StateIn != "" {
		in, err := loadState(ctx, cfg.StateIn, p.Registries())
		if err != nil {
			return err
		}
		st, err = executor.ProcessAllEvents(ctx, p, hooks, cfg.MinBlock, cfg.MaxBlock, in)
		if err != nil {
			return err
		}
	} else if cfg.MinBlock > 0 {
		st, err = executor.ProcessAllEvents(ctx, p, hooks, cfg.MinBlock, cfg.MaxBlock, nil)
		if err != nil {
			return err
		}
	} else {
		st, err = executor.Resume(ctx, p, hooks, cfg.MaxBlock)
		if err != nil {
			return err
		}
	}

	// Database snapshots are mirrored to the state file for export.
	if mirror && cfg.StateOut != "" {
		snap, err := replay.NewSnapshot(executor.RunID(), st, replay.FinalBlock(st, cfg.MaxBlock))
		if err != nil {
			return err
		}
		if err := fileStore.Save(context.WithoutCancel(ctx), snap); err != nil {
			return err
		}
	}

	logger.Info("process complete",
		zap.Stringer("last_event", st.LastEventTime),
		zap.Int("markets", len(st.Markets)),
		zap.Int("users", len(st.Users())),
	)
	return nil
}

func loadDSRRates(ctx context.Context, cfg config.ProcessConfig, store *postgres.Store) ([]ratemodel.DSRRate, error) {
	var (
		rows []storage.RateRow
		err  error
	)
	switch {
	case cfg.Sources.DSRRates != "":
		rows, err = storage.ReadJSONL[storage.RateRow](cfg.Sources.DSRRates)
	case store != nil:
		rows, err = store.LoadDSRRates(ctx)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load dsr rates: %w", err)
	}
	return storage.DSRRates(rows)
}

// loadState reads a state snapshot file.
func loadState(ctx context.Context, path string, reg state.Registries) (*state.State, error) {
	snap, ok, err := (&replay.FileStateStore{Path: path}).Load(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("state file %s not found", path)
	}
	return snap.Decode(reg)
}
