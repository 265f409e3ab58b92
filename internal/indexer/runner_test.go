package indexer

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingScope/internal/decoder"
	"lendingScope/internal/model"
	"lendingScope/internal/storage"
	"lendingScope/internal/stream"
)

var market = common.HexToAddress("0x39aa39c021dfbae8fac545936693ac917d5e7563")

type fakeChain struct {
	mu         sync.Mutex
	logs       []types.Log
	tsCalls    map[uint64]int
	filterErrs int
	maxSpan    uint64
}

func (c *fakeChain) ChainID(context.Context) (*big.Int, error) { return big.NewInt(1), nil }

func (c *fakeChain) LatestBlockNumber(context.Context) (uint64, error) { return 30, nil }

func (c *fakeChain) BlockTimestamp(_ context.Context, number uint64) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tsCalls == nil {
		c.tsCalls = make(map[uint64]int)
	}
	c.tsCalls[number]++
	return 1000 + number, nil
}

func (c *fakeChain) FilterLogs(_ context.Context, from, to uint64, _ []common.Address, _ []common.Hash) ([]types.Log, error) {
	if c.filterErrs > 0 {
		c.filterErrs--
		return nil, errors.New("rpc unavailable")
	}
	if c.maxSpan > 0 && to-from+1 > c.maxSpan {
		return nil, errors.New("query returned more than 10000 results")
	}
	var out []types.Log
	for _, log := range c.logs {
		if log.BlockNumber >= from && log.BlockNumber <= to {
			out = append(out, log)
		}
	}
	return out, nil
}

func mintLog(t *testing.T, block uint64, index uint, amount int64) types.Log {
	t.Helper()
	parsed, err := decoder.CompoundABI()
	require.NoError(t, err)
	event := parsed.Events["Mint"]
	data, err := event.Inputs.NonIndexed().Pack(common.HexToAddress("0x2222222222222222222222222222222222222222"), big.NewInt(amount), big.NewInt(amount))
	require.NoError(t, err)
	return types.Log{
		Address:     market,
		Topics:      []common.Hash{event.ID},
		Data:        data,
		BlockNumber: block,
		TxHash:      common.BigToHash(big.NewInt(int64(block))),
		Index:       index,
	}
}

func TestRunnerWritesDecodedEvents(t *testing.T) {
	dir := t.TempDir()
	broken := mintLog(t, 12, 1, 5)
	broken.Data = broken.Data[:10]
	foreign := types.Log{Address: market, Topics: []common.Hash{common.HexToHash("0x01")}, BlockNumber: 12, Index: 2}

	chain := &fakeChain{
		logs:       []types.Log{mintLog(t, 10, 0, 1), mintLog(t, 10, 1, 2), broken, foreign, mintLog(t, 25, 0, 3)},
		filterErrs: 1,
	}
	dec, err := decoder.NewCompound()
	require.NoError(t, err)

	eventsPath := filepath.Join(dir, "events.jsonl")
	errorsPath := filepath.Join(dir, "errors.jsonl")
	cfg := RunConfig{
		FromBlock:         10,
		ToBlock:           29,
		Addresses:         []common.Address{market},
		BatchSize:         10,
		CheckpointPath:    filepath.Join(dir, "checkpoint.json"),
		CheckpointEnabled: true,
		MaxRetries:        2,
		RetryBackoff:      1,
		TimestampWorkers:  2,
	}
	runner := NewRunner(cfg, chain, dec, storage.NewJSONLSink(eventsPath), storage.NewJSONLSink(errorsPath), nil)
	require.NoError(t, runner.Run(context.Background()))

	src := storage.JSONLSource{Paths: map[storage.Kind]string{storage.KindEvents: eventsPath}}
	it, err := src.Open(context.Background(), storage.KindEvents, storage.Range{}, nil)
	require.NoError(t, err)
	events, err := stream.Collect[model.Event](context.Background(), it)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "Mint", events[0].Event)
	assert.Equal(t, uint64(1010), events[0].Timestamp)
	assert.Equal(t, "2", events[1].ReturnValues["mintAmount"])
	assert.Equal(t, int64(25), events[2].BlockNumber)

	failures, err := storage.ReadJSONL[model.DecodeError](errorsPath)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, uint64(12), failures[0].BlockNumber)
	assert.NotEmpty(t, failures[0].Error)

	assert.Equal(t, 1, chain.tsCalls[10], "one timestamp fetch per block")

	cp, ok, err := NewCheckpointStore(cfg.CheckpointPath, true).Load()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(29), cp.LastProcessedBlock)
	assert.Equal(t, uint64(1), cp.ChainID)

	// A second run resumes after the checkpoint and writes nothing new.
	chain.tsCalls = nil
	runner = NewRunner(cfg, chain, dec, storage.NewJSONLSink(eventsPath), nil, nil)
	require.NoError(t, runner.Run(context.Background()))
	assert.Empty(t, chain.tsCalls)
}

func TestRunnerRejectsForeignCheckpoint(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, NewCheckpointStore(path, true).Save(56, 5))

	dec, err := decoder.NewCompound()
	require.NoError(t, err)
	cfg := RunConfig{Addresses: []common.Address{market}, BatchSize: 10, CheckpointPath: path, CheckpointEnabled: true}
	runner := NewRunner(cfg, &fakeChain{}, dec, storage.NewJSONLSink(filepath.Join(t.TempDir(), "out.jsonl")), nil, nil)
	require.Error(t, runner.Run(context.Background()))
}

func TestRunnerValidatesConfig(t *testing.T) {
	dec, err := decoder.NewCompound()
	require.NoError(t, err)
	sink := storage.NewJSONLSink(filepath.Join(t.TempDir(), "out.jsonl"))

	require.Error(t, NewRunner(RunConfig{BatchSize: 10}, &fakeChain{}, dec, sink, nil, nil).Run(context.Background()))
	require.Error(t, NewRunner(RunConfig{Addresses: []common.Address{market}}, &fakeChain{}, dec, sink, nil, nil).Run(context.Background()))
	require.Error(t, NewRunner(RunConfig{Addresses: []common.Address{market}, BatchSize: 1}, &fakeChain{}, nil, sink, nil, nil).Run(context.Background()))
}

func TestRunnerSplitsRejectedRanges(t *testing.T) {
	dir := t.TempDir()
	chain := &fakeChain{
		logs:    []types.Log{mintLog(t, 10, 0, 1), mintLog(t, 13, 0, 2), mintLog(t, 17, 0, 3)},
		maxSpan: 3,
	}
	dec, err := decoder.NewCompound()
	require.NoError(t, err)

	eventsPath := filepath.Join(dir, "events.jsonl")
	runner := NewRunner(RunConfig{
		FromBlock:    10,
		ToBlock:      19,
		Addresses:    []common.Address{market},
		BatchSize:    10,
		MaxRetries:   1,
		RetryBackoff: 1,
	}, chain, dec, storage.NewJSONLSink(eventsPath), nil, nil)
	require.NoError(t, runner.Run(context.Background()))

	events, err := storage.ReadEvents(eventsPath)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, []int64{10, 13, 17}, []int64{events[0].BlockNumber, events[1].BlockNumber, events[2].BlockNumber})
}
