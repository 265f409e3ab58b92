package indexer

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"lendingScope/internal/decoder"
	"lendingScope/internal/model"
	"lendingScope/internal/retry"
	"lendingScope/internal/storage"
)

// Chain is the RPC surface the runner reads from.
type Chain interface {
	ChainID(ctx context.Context) (*big.Int, error)
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	FromBlock         uint64
	ToBlock           uint64
	Addresses         []common.Address
	Topic0            []common.Hash
	BatchSize         uint64
	CheckpointPath    string
	CheckpointEnabled bool
	MaxRetries        int
	RetryBackoff      time.Duration
	TimestampWorkers  int
}

// Runner fetches logs, decodes them and writes the events to a sink.
type Runner struct {
	cfg        RunConfig
	chain      Chain
	decoder    decoder.Decoder
	sink       storage.EventSink
	errors     storage.DecodeErrorSink
	logger     *zap.Logger
	seen       map[string]struct{}
	checkpoint *CheckpointStore
}

// NewRunner builds a Runner with its dependencies. A nil errors sink drops
// decode failures after logging them.
func NewRunner(cfg RunConfig, chainClient Chain, dec decoder.Decoder, sink storage.EventSink, errSink storage.DecodeErrorSink, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TimestampWorkers <= 0 {
		cfg.TimestampWorkers = 8
	}
	return &Runner{
		cfg:        cfg,
		chain:      chainClient,
		decoder:    dec,
		sink:       sink,
		errors:     errSink,
		logger:     logger,
		seen:       make(map[string]struct{}),
		checkpoint: NewCheckpointStore(cfg.CheckpointPath, cfg.CheckpointEnabled),
	}
}

// Run executes the indexing loop.
func (r *Runner) Run(ctx context.Context) error {
	if r.chain == nil {
		return fmt.Errorf("chain client is nil")
	}
	if r.decoder == nil {
		return fmt.Errorf("decoder is nil")
	}
	if r.sink == nil {
		return fmt.Errorf("storage is nil")
	}
	if r.cfg.BatchSize == 0 {
		return fmt.Errorf("batch size must be greater than zero")
	}
	if len(r.cfg.Addresses) == 0 {
		return fmt.Errorf("at least one address is required")
	}

	chainID, err := r.chain.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("get chain id: %w", err)
	}
	if !chainID.IsUint64() {
		return fmt.Errorf("chain id does not fit in uint64: %s", chainID)
	}
	chainIDValue := chainID.Uint64()

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.chain.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	cp, ok, err := r.checkpoint.Load()
	if err != nil {
		return err
	}
	if ok {
		if cp.ChainID != 0 && cp.ChainID != chainIDValue {
			return fmt.Errorf("checkpoint belongs to chain %d, connected to %d", cp.ChainID, chainIDValue)
		}
		if cp.LastProcessedBlock >= from {
			from = cp.LastProcessedBlock + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.LastProcessedBlock), zap.Uint64("from", from))
		}
	}

	if from > to {
		r.logger.Info("nothing to sync", zap.Uint64("from", from), zap.Uint64("to", to))
		return nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.fetchLogs(ctx, blockRange)
		if err != nil {
			return fmt.Errorf("filter logs: %w", err)
		}
		fresh := logs[:0]
		for _, log := range logs {
			if !r.isDuplicate(log) {
				fresh = append(fresh, log)
			}
		}

		timestamps, err := r.prefetchTimestamps(ctx, fresh)
		if err != nil {
			return err
		}

		ingestedAt := time.Now().UTC()
		events := make([]model.Event, 0, len(fresh))
		var failures []model.DecodeError
		skipped := 0
		for _, log := range fresh {
			record := buildLogRecord(chainIDValue, log, timestamps[log.BlockNumber], ingestedAt)
			if !r.decoder.CanDecode(record.Topic0()) {
				skipped++
				continue
			}
			event, err := r.decoder.Decode(record)
			if err != nil {
				r.logger.Warn("decode failed", zap.Uint64("block_number", record.BlockNumber), zap.Uint64("log_index", record.LogIndex), zap.Error(err))
				failures = append(failures, model.NewDecodeError(record, err))
				continue
			}
			events = append(events, event)
		}
		sort.SliceStable(events, func(i, j int) bool { return events[i].Key().Less(events[j].Key()) })

		if err := r.sink.PutEvents(ctx, events); err != nil {
			return fmt.Errorf("store events: %w", err)
		}
		if r.errors != nil {
			if err := r.errors.PutDecodeErrors(ctx, failures); err != nil {
				return fmt.Errorf("store decode errors: %w", err)
			}
		}

		if err := r.checkpoint.Save(chainIDValue, blockRange.To); err != nil {
			return err
		}

		r.logger.Info("batch complete",
			zap.Int("events", len(events)),
			zap.Int("failed", len(failures)),
			zap.Int("skipped", skipped),
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
		)
	}

	return nil
}

// prefetchTimestamps resolves the timestamp of every block touched by logs
// with at most TimestampWorkers concurrent requests.
func (r *Runner) prefetchTimestamps(ctx context.Context, logs []types.Log) (map[uint64]uint64, error) {
	out := make(map[uint64]uint64)
	requested := make(map[uint64]struct{})
	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	group.SetLimit(r.cfg.TimestampWorkers)
	for _, log := range logs {
		number := log.BlockNumber
		if _, ok := requested[number]; ok {
			continue
		}
		requested[number] = struct{}{}
		group.Go(func() error {
			ts, err := r.blockTimestampWithRetry(ctx, number)
			if err != nil {
				return fmt.Errorf("block timestamp %d: %w", number, err)
			}
			mu.Lock()
			out[number] = ts
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fetchLogs filters logs over br, halving the range when the node keeps
// rejecting it, as providers do for queries with too many results.
func (r *Runner) fetchLogs(ctx context.Context, br BlockRange) ([]types.Log, error) {
	logs, err := r.filterLogsWithRetry(ctx, br.From, br.To)
	if err == nil || ctx.Err() != nil {
		return logs, err
	}
	left, right, ok := br.Halves()
	if !ok {
		return nil, err
	}
	r.logger.Warn("split block range", zap.Stringer("range", br), zap.Error(err))
	first, err := r.fetchLogs(ctx, left)
	if err != nil {
		return nil, err
	}
	second, err := r.fetchLogs(ctx, right)
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		logs, err = r.chain.FilterLogs(ctx, fromBlock, toBlock, r.cfg.Addresses, r.cfg.Topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := retry.Do(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		ts, err = r.chain.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
