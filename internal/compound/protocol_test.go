package compound

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingScope/internal/model"
	"lendingScope/internal/storage"
)

func TestContractsAreUnique(t *testing.T) {
	p, err := NewProtocol(ProtocolConfig{})
	require.NoError(t, err)

	contracts := p.Contracts()
	seen := make(map[string]bool)
	for _, c := range contracts {
		assert.False(t, seen[c], "duplicate contract %s", c)
		seen[c] = true
	}
	for _, want := range []string{cUSDC, CDAIAddress, ComptrollerAddress, PriceOracleV1Address, UniswapAnchorViewAddress, usdtModel} {
		assert.True(t, seen[want], "missing contract %s", want)
	}
}

func TestEventsMergesSources(t *testing.T) {
	dir := t.TempDir()
	eventsPath := filepath.Join(dir, "events.jsonl")

	sink := storage.NewJSONLSink(eventsPath)
	require.NoError(t, sink.PutEvents(context.Background(), []model.Event{
		{Event: "Mint", Address: CDAIAddress, BlockNumber: 5, TransactionIndex: 0, LogIndex: 1},
		{Event: "Mint", Address: CDAIAddress, BlockNumber: 6, TransactionIndex: 2, LogIndex: 0},
	}))

	p, err := NewProtocol(ProtocolConfig{
		Source: storage.JSONLSource{Paths: map[storage.Kind]string{
			storage.KindEvents: eventsPath,
		}},
	})
	require.NoError(t, err)

	it, err := p.Events(context.Background(), storage.Range{MinBlock: 6})
	require.NoError(t, err)
	ev, err := it.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(6), ev.BlockNumber)
	_, err = it.Next(context.Background())
	require.ErrorIs(t, err, io.EOF)
}
