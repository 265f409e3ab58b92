package replay

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingScope/internal/compound"
	"lendingScope/internal/hook"
	"lendingScope/internal/model"
	"lendingScope/internal/state"
	"lendingScope/internal/storage"
)

const (
	cUSDC     = "0x39aa39c021dfbae8fac545936693ac917d5e7563"
	usdtModel = "0x6bc8fe27d0c7207733656595e73c0d5cf7afae36"
	user      = "0x1111111111111111111111111111111111111111"
)

func ev(block int64, name string, values map[string]any) model.Event {
	return model.Event{Event: name, Address: cUSDC, ReturnValues: values, BlockNumber: block}
}

func scenario() []model.Event {
	return []model.Event{
		ev(10, "NewComptroller", map[string]any{"newComptroller": "0x3d9819210a31b4961b30ef54be2aed79b9c9cd3b"}),
		{Event: "NewMarketInterestRateModel", Address: cUSDC, ReturnValues: map[string]any{"newInterestRateModel": usdtModel}, BlockNumber: 10, LogIndex: 1},
		ev(11, "Mint", map[string]any{"minter": user, "mintAmount": "100", "mintTokens": "110"}),
		ev(12, "Transfer", map[string]any{"from": user, "to": cUSDC, "amount": "50"}),
		ev(13, "Mint", map[string]any{"minter": user, "mintAmount": "1", "mintTokens": "1"}),
	}
}

func newProtocol(t *testing.T, events []model.Event) *compound.Protocol {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	require.NoError(t, storage.NewJSONLSink(path).PutEvents(context.Background(), events))
	p, err := compound.NewProtocol(compound.ProtocolConfig{
		Source: storage.JSONLSource{Paths: map[storage.Kind]string{storage.KindEvents: path}},
	})
	require.NoError(t, err)
	return p
}

type memoryStore struct {
	saved []Snapshot
}

func (m *memoryStore) Load(context.Context) (Snapshot, bool, error) {
	if len(m.saved) == 0 {
		return Snapshot{}, false, nil
	}
	return m.saved[len(m.saved)-1], true, nil
}

func (m *memoryStore) Save(_ context.Context, snap Snapshot) error {
	m.saved = append(m.saved, snap)
	return nil
}

func (m *memoryStore) blocks() []int64 {
	out := make([]int64, 0, len(m.saved))
	for _, s := range m.saved {
		out = append(out, s.LastBlock)
	}
	return out
}

func tokens(t *testing.T, st *state.State, account string) string {
	t.Helper()
	m, err := st.Markets.Find(cUSDC)
	require.NoError(t, err)
	return m.User(account).Balances.TokenBalance.String()
}

func TestProcessAllEventsCheckpointsAtBlockBoundaries(t *testing.T) {
	p := newProtocol(t, scenario())
	store := &memoryStore{}
	exec := NewExecutor(Config{CheckpointEvery: 2, Store: store})

	st, err := exec.ProcessAllEvents(context.Background(), p, nil, 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, "61", tokens(t, st, user))
	assert.Equal(t, model.PointInTime{BlockNumber: 13}, st.LastEventTime)

	// blocks 10 and 11 complete before 12 starts, 12 and 13 at the end
	assert.Equal(t, []int64{11, 13}, store.blocks())
	for _, snap := range store.saved {
		assert.Equal(t, exec.RunID(), snap.RunID)
		assert.Equal(t, compound.ProtocolName, snap.Protocol)
	}

	restored, err := store.saved[0].Decode(p.Registries())
	require.NoError(t, err)
	assert.Equal(t, "110", tokens(t, restored, user))
}

func TestProcessAllEventsBounded(t *testing.T) {
	p := newProtocol(t, scenario())
	store := &memoryStore{}
	st, err := NewExecutor(Config{Store: store}).ProcessAllEvents(context.Background(), p, nil, 11, 12, nil)
	require.ErrorIs(t, err, state.ErrMarketNotFound)
	assert.NotNil(t, st)
	assert.Empty(t, store.saved)

	st, err = NewExecutor(Config{Store: store}).ProcessAllEvents(context.Background(), p, nil, 0, 20, nil)
	require.NoError(t, err)
	assert.Equal(t, "61", tokens(t, st, user))
	assert.Equal(t, []int64{20}, store.blocks())
}

func TestFinalBlock(t *testing.T) {
	st := &state.State{LastEventTime: model.PointInTime{BlockNumber: 13, LogIndex: 2}}
	assert.Equal(t, int64(13), FinalBlock(st, 0))
	assert.Equal(t, int64(13), FinalBlock(st, 12))
	assert.Equal(t, int64(20), FinalBlock(st, 20))

	p := newProtocol(t, scenario())
	store := &memoryStore{}
	done, err := NewExecutor(Config{Store: store}).ProcessAllEvents(context.Background(), p, nil, 0, 20, nil)
	require.NoError(t, err)
	assert.Equal(t, []int64{FinalBlock(done, 20)}, store.blocks())
}

func TestResumeMatchesSingleRun(t *testing.T) {
	p := newProtocol(t, scenario())
	path := filepath.Join(t.TempDir(), "state", "snapshot.json")
	store := &FileStateStore{Path: path}

	first, err := NewExecutor(Config{Store: store}).ProcessAllEvents(context.Background(), p, nil, 0, 11, nil)
	require.NoError(t, err)
	assert.Equal(t, "110", tokens(t, first, user))

	snap, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(11), snap.LastBlock)

	resumed, err := NewExecutor(Config{Store: store}).Resume(context.Background(), p, nil, 0)
	require.NoError(t, err)

	single, err := NewExecutor(Config{}).ProcessAllEvents(context.Background(), p, nil, 0, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, tokens(t, single, user), tokens(t, resumed, user))
	assert.Equal(t, single.LastEventTime, resumed.LastEventTime)
}

func TestSuppliedStateSkipsProcessedBlocks(t *testing.T) {
	p := newProtocol(t, scenario())
	exec := NewExecutor(Config{})
	st, err := exec.ProcessAllEvents(context.Background(), p, nil, 0, 12, nil)
	require.NoError(t, err)
	assert.Equal(t, "60", tokens(t, st, user))

	// minBlock 0 must not replay blocks 10-12 a second time.
	st, err = exec.ProcessAllEvents(context.Background(), p, nil, 0, 0, st)
	require.NoError(t, err)
	assert.Equal(t, "61", tokens(t, st, user))
}

func TestFailureIsNotCheckpointed(t *testing.T) {
	events := scenario()
	events[3].ReturnValues["amount"] = "500"
	p := newProtocol(t, events)
	store := &memoryStore{}

	_, err := NewExecutor(Config{CheckpointEvery: 1, Store: store}).ProcessAllEvents(context.Background(), p, nil, 0, 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "process event Transfer at 12/0/0")

	var inv *compound.InvariantError
	require.True(t, errors.As(err, &inv))
	assert.Equal(t, user, inv.Account)
	assert.Equal(t, "110", inv.Have)
	assert.Equal(t, "500", inv.Need)

	for _, b := range store.blocks() {
		assert.Less(t, b, int64(12))
	}
}

type cancelAt struct {
	hook.Base
	block  int64
	cancel context.CancelFunc
}

func (c *cancelAt) EventEnd(st *state.State, ev model.Event) error {
	if ev.BlockNumber == c.block {
		c.cancel()
	}
	return nil
}

func TestCancelSavesLastCompletedBlock(t *testing.T) {
	p := newProtocol(t, scenario())
	store := &memoryStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hooks := hook.Of(&cancelAt{block: 11, cancel: cancel})
	st, err := NewExecutor(Config{SavePartial: true, Store: store}).ProcessAllEvents(ctx, p, hooks, 0, 0, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "110", tokens(t, st, user))
	assert.Equal(t, []int64{11}, store.blocks())
}

func TestCancelWithoutPartialSavesNothing(t *testing.T) {
	p := newProtocol(t, scenario())
	store := &memoryStore{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hooks := hook.Of(&cancelAt{block: 10, cancel: cancel})
	_, err := NewExecutor(Config{CheckpointEvery: 100, Store: store}).ProcessAllEvents(ctx, p, hooks, 0, 0, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.saved)
}

func TestProtocolStateMismatch(t *testing.T) {
	p := newProtocol(t, scenario())
	st := p.NewState()
	st.Protocol = "aave"
	_, err := NewExecutor(Config{}).ProcessAllEvents(context.Background(), p, nil, 0, 0, st)
	require.Error(t, err)
}

func TestProtocols(t *testing.T) {
	p := newProtocol(t, nil)
	reg, err := NewProtocols(p)
	require.NoError(t, err)
	assert.Equal(t, []string{compound.ProtocolName}, reg.Names())

	got, err := reg.Get(compound.ProtocolName)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	_, err = reg.Get("aave")
	require.ErrorIs(t, err, ErrUnknown)
	require.ErrorIs(t, reg.Register(p), ErrDuplicate)
}

func TestFileStateStoreMissingFile(t *testing.T) {
	store := &FileStateStore{Path: filepath.Join(t.TempDir(), "missing.json")}
	_, ok, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	var empty *FileStateStore
	require.NoError(t, empty.Save(context.Background(), Snapshot{}))
}
