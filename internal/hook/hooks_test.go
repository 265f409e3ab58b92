package hook

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingScope/internal/model"
	"lendingScope/internal/state"
)

type recorder struct {
	Base
	calls       []string
	blockStarts int
}

func (r *recorder) GlobalStart(*state.State) error {
	r.calls = append(r.calls, "global_start")
	return nil
}

func (r *recorder) GlobalEnd(*state.State) error {
	r.calls = append(r.calls, "global_end")
	return nil
}

func (r *recorder) BlockStart(_ *state.State, block int64) error {
	r.blockStarts++
	r.calls = append(r.calls, fmt.Sprintf("block_start(%d)", block))
	return nil
}

func (r *recorder) BlockEnd(_ *state.State, block int64) error {
	r.calls = append(r.calls, fmt.Sprintf("block_end(%d)", block))
	return nil
}

func (r *recorder) TransactionStart(_ *state.State, block, tx int64) error {
	r.calls = append(r.calls, fmt.Sprintf("tx_start(%d,%d)", block, tx))
	return nil
}

func (r *recorder) TransactionEnd(_ *state.State, block, tx int64) error {
	r.calls = append(r.calls, fmt.Sprintf("tx_end(%d,%d)", block, tx))
	return nil
}

func (r *recorder) EventStart(_ *state.State, ev model.Event) error {
	r.calls = append(r.calls, "event_start("+ev.Key().String()+")")
	return nil
}

type dependent struct {
	Base
}

func (dependent) Dependencies() []string { return []string{"dummy"} }

func event(block, tx, log int64) model.Event {
	return model.Event{Event: "Dummy", BlockNumber: block, TransactionIndex: tx, LogIndex: log}
}

func run(t *testing.T, h *Hooks, events ...model.Event) {
	t.Helper()
	st := &state.State{}
	require.NoError(t, h.GlobalStart(st))
	for _, ev := range events {
		require.NoError(t, h.EventStart(st, ev))
		require.NoError(t, h.EventEnd(st, ev))
	}
	require.NoError(t, h.GlobalEnd(st))
}

func TestBlockTransitions(t *testing.T) {
	rec := &recorder{}
	run(t, Of(rec), event(1, 0, 0), event(1, 0, 1), event(2, 0, 0))

	assert.Equal(t, 2, rec.blockStarts)
	assert.Equal(t, []string{
		"global_start",
		"block_start(1)",
		"tx_start(1,0)",
		"event_start(1/0/0)",
		"event_start(1/0/1)",
		"tx_end(1,0)",
		"block_end(1)",
		"block_start(2)",
		"tx_start(2,0)",
		"event_start(2/0/0)",
		"tx_end(2,0)",
		"block_end(2)",
		"global_end",
	}, rec.calls)
}

func TestTransactionTransitions(t *testing.T) {
	rec := &recorder{}
	run(t, Of(rec), event(5, 0, 0), event(5, 1, 3))
	assert.Equal(t, 1, rec.blockStarts)
	assert.Contains(t, rec.calls, "tx_end(5,0)")
	assert.Contains(t, rec.calls, "tx_start(5,1)")
}

func TestEmptyStream(t *testing.T) {
	rec := &recorder{}
	run(t, Of(rec))
	assert.Equal(t, []string{"global_start", "global_end"}, rec.calls)
}

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, reg.Register("dummy", func() Hook { return &recorder{} }))
	require.NoError(t, reg.Register("with-dependencies", func() Hook { return dependent{} }))
	return reg
}

func TestDependencies(t *testing.T) {
	reg := testRegistry(t)

	h, err := New(reg, []string{"with-dependencies"})
	require.NoError(t, err)
	assert.Equal(t, []string{"dummy", "with-dependencies"}, h.Names())

	h, err = New(reg, []string{"with-dependencies", "dummy", "dummy"})
	require.NoError(t, err)
	assert.Equal(t, 2, h.Len())

	_, ok := h.Hook("dummy")
	assert.True(t, ok)
}

func TestRegistryErrors(t *testing.T) {
	reg := testRegistry(t)
	require.ErrorIs(t, reg.Register("dummy", func() Hook { return Base{} }), ErrDuplicate)

	_, err := New(reg, []string{"missing"})
	require.ErrorIs(t, err, ErrUnknown)
}
