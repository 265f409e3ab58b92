package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
)

func TestBlockTimestampCaches(t *testing.T) {
	calls := 0
	c := newClient(func(_ context.Context, number *big.Int) (*types.Header, error) {
		calls++
		return &types.Header{Number: number, Time: 1600000000 + number.Uint64()}, nil
	}, 2)

	for i := 0; i < 3; i++ {
		ts, err := c.BlockTimestamp(context.Background(), 10)
		if err != nil {
			t.Fatalf("timestamp: %v", err)
		}
		if ts != 1600000010 {
			t.Fatalf("timestamp mismatch: %d", ts)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one header fetch, got %d", calls)
	}

	for _, n := range []uint64{11, 12} {
		if _, err := c.BlockTimestamp(context.Background(), n); err != nil {
			t.Fatalf("timestamp %d: %v", n, err)
		}
	}
	if c.CachedTimestamps() != 2 {
		t.Fatalf("cache should be bounded, has %d", c.CachedTimestamps())
	}
	if _, err := c.BlockTimestamp(context.Background(), 10); err != nil {
		t.Fatalf("timestamp: %v", err)
	}
	if calls != 4 {
		t.Fatalf("evicted block should be fetched again, calls=%d", calls)
	}
}

func TestBlockTimestampError(t *testing.T) {
	boom := errors.New("boom")
	c := newClient(func(context.Context, *big.Int) (*types.Header, error) { return nil, boom }, 0)
	if _, err := c.BlockTimestamp(context.Background(), 1); !errors.Is(err, boom) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if c.CachedTimestamps() != 0 {
		t.Fatalf("failed fetch must not be cached")
	}
}
