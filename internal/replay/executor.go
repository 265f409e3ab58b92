package replay

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lendingScope/internal/hook"
	"lendingScope/internal/state"
	"lendingScope/internal/storage"
)

// Config tunes an Executor.
type Config struct {
	// CheckpointEvery saves a snapshot once this many blocks completed since
	// the previous one. Zero only saves at the end of a run.
	CheckpointEvery int64
	// ProgressEvery logs progress every this many events.
	ProgressEvery int
	// SavePartial saves the last completed block when the run is cancelled.
	SavePartial bool
	// Store receives snapshots. Nil disables persistence.
	Store  StateStore
	Logger *zap.Logger
}

// Executor applies a protocol's merged event stream to a state.
type Executor struct {
	cfg    Config
	runID  uuid.UUID
	logger *zap.Logger
}

// NewExecutor returns an executor with a fresh run id.
func NewExecutor(cfg Config) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.New()
	return &Executor{cfg: cfg, runID: runID, logger: logger.With(zap.String("run_id", runID.String()))}
}

// RunID identifies the snapshots written by this executor.
func (e *Executor) RunID() uuid.UUID {
	return e.runID
}

// Resume loads the stored snapshot, if any, and replays the blocks after it
// up to maxBlock.
func (e *Executor) Resume(ctx context.Context, p Protocol, hooks *hook.Hooks, maxBlock int64) (*state.State, error) {
	var (
		st       *state.State
		minBlock int64
	)
	if e.cfg.Store != nil {
		snap, ok, err := e.cfg.Store.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("load snapshot: %w", err)
		}
		if ok {
			if snap.Protocol != p.Name() {
				return nil, fmt.Errorf("snapshot of protocol %q cannot resume %q", snap.Protocol, p.Name())
			}
			st, err = snap.Decode(p.Registries())
			if err != nil {
				return nil, err
			}
			minBlock = snap.LastBlock + 1
			e.logger.Info("resuming from snapshot",
				zap.String("snapshot_run_id", snap.RunID.String()),
				zap.Int64("last_block", snap.LastBlock),
			)
		}
	}
	return e.ProcessAllEvents(ctx, p, hooks, minBlock, maxBlock, st)
}

// ProcessAllEvents replays every event of p within [minBlock, maxBlock]
// onto st. A nil st starts from an empty state; a supplied st continues
// after its last processed block. A maxBlock of zero is unbounded.
//
// Cancelling ctx stops the replay at the next block boundary.
func (e *Executor) ProcessAllEvents(ctx context.Context, p Protocol, hooks *hook.Hooks, minBlock, maxBlock int64, st *state.State) (*state.State, error) {
	if st == nil {
		st = p.NewState()
	} else {
		if st.Protocol != "" && st.Protocol != p.Name() {
			return nil, fmt.Errorf("state of protocol %q cannot replay %q", st.Protocol, p.Name())
		}
		if !st.LastEventTime.IsZero() && minBlock <= st.LastEventTime.BlockNumber {
			minBlock = st.LastEventTime.BlockNumber + 1
		}
	}
	if hooks == nil {
		hooks = hook.Of()
	}

	// Sources keep reading after cancellation until the open block is done.
	pull := context.WithoutCancel(ctx)
	events, err := p.Events(pull, storage.Range{MinBlock: minBlock, MaxBlock: maxBlock})
	if err != nil {
		return nil, fmt.Errorf("open events: %w", err)
	}
	if closer, ok := events.(io.Closer); ok {
		defer closer.Close()
	}

	e.logger.Info("replay started",
		zap.String("protocol", p.Name()),
		zap.Strings("hooks", hooks.Names()),
		zap.Int64("min_block", minBlock),
		zap.Int64("max_block", maxBlock),
	)
	if err := hooks.GlobalStart(st); err != nil {
		return st, fmt.Errorf("hooks global start: %w", err)
	}

	var (
		count      int
		checkpoint = minBlock - 1
		started    bool
	)
	for {
		ev, err := events.Next(pull)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("read events: %w", err)
		}
		at := ev.Key()
		if !started {
			started = true
			if checkpoint < at.BlockNumber-1 {
				checkpoint = at.BlockNumber - 1
			}
		}

		closed, err := hooks.Close(st, at)
		if err != nil {
			return st, fmt.Errorf("hooks at %s: %w", at, err)
		}
		if closed {
			completed := st.LastEventTime.BlockNumber
			if ctx.Err() != nil {
				if e.cfg.SavePartial {
					if err := e.save(pull, st, completed); err != nil {
						return st, err
					}
				}
				e.logger.Warn("replay cancelled", zap.Int64("last_block", completed), zap.Int("events", count))
				return st, ctx.Err()
			}
			if e.cfg.CheckpointEvery > 0 && completed-checkpoint >= e.cfg.CheckpointEvery {
				if err := e.save(ctx, st, completed); err != nil {
					return st, err
				}
				checkpoint = completed
			}
		}

		st.CurrentEventTime = at
		if err := hooks.EventStart(st, ev); err != nil {
			return st, fmt.Errorf("hooks before event %s at %s: %w", ev.Event, at, err)
		}
		if err := p.Process(st, ev); err != nil {
			e.logger.Error("event processing failed", zap.Any("event", ev), zap.Error(err))
			return st, fmt.Errorf("process event %s at %s: %w", ev.Event, at, err)
		}
		if err := hooks.EventEnd(st, ev); err != nil {
			return st, fmt.Errorf("hooks after event %s at %s: %w", ev.Event, at, err)
		}
		st.LastEventTime = at

		count++
		if e.cfg.ProgressEvery > 0 && count%e.cfg.ProgressEvery == 0 {
			e.logger.Info("replay progress", zap.Int("events", count), zap.Int64("block", at.BlockNumber))
		}
	}

	if err := hooks.GlobalEnd(st); err != nil {
		return st, fmt.Errorf("hooks global end: %w", err)
	}
	last := FinalBlock(st, maxBlock)
	if err := e.save(pull, st, last); err != nil {
		return st, err
	}
	e.logger.Info("replay finished", zap.Int("events", count), zap.Int64("last_block", last), zap.Int("markets", len(st.Markets)))
	return st, nil
}

// FinalBlock is the last block a finished run over [.., maxBlock] covers:
// the block of its last event, or maxBlock when that is later.
func FinalBlock(st *state.State, maxBlock int64) int64 {
	last := st.LastEventTime.BlockNumber
	if maxBlock > last {
		last = maxBlock
	}
	return last
}

func (e *Executor) save(ctx context.Context, st *state.State, lastBlock int64) error {
	if e.cfg.Store == nil {
		return nil
	}
	snap, err := NewSnapshot(e.runID, st, lastBlock)
	if err != nil {
		return err
	}
	if err := e.cfg.Store.Save(ctx, snap); err != nil {
		return fmt.Errorf("save snapshot at block %d: %w", lastBlock, err)
	}
	e.logger.Debug("snapshot saved", zap.Int64("last_block", lastBlock))
	return nil
}
