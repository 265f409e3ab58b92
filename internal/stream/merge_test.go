package stream

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lendingScope/internal/model"
)

func key(p model.PointInTime) model.PointInTime { return p }

func point(block, tx, log int64) model.PointInTime {
	return model.PointInTime{BlockNumber: block, TransactionIndex: tx, LogIndex: log}
}

func TestMergeSimple(t *testing.T) {
	a := FromSlice([]model.PointInTime{point(1, 0, 0), point(3, 0, 0), point(5, 0, 0)})
	b := FromSlice([]model.PointInTime{point(2, 0, 0), point(3, -1, -1), point(6, 0, 0)})
	c := FromSlice([]model.PointInTime{})

	got, err := Collect[model.PointInTime](context.Background(), Merge[model.PointInTime](key, a, b, c))
	require.NoError(t, err)
	assert.Equal(t, []model.PointInTime{
		point(1, 0, 0), point(2, 0, 0), point(3, -1, -1), point(3, 0, 0), point(5, 0, 0), point(6, 0, 0),
	}, got)
}

func TestMergeRandomInterleavingsAreSorted(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 50; round++ {
		var sources []Iterator[model.PointInTime]
		total := 0
		for s := 0; s < 1+rng.Intn(6); s++ {
			n := rng.Intn(40)
			items := make([]model.PointInTime, 0, n)
			for i := 0; i < n; i++ {
				items = append(items, point(rng.Int63n(20), rng.Int63n(5)-1, rng.Int63n(5)-1))
			}
			sort.Slice(items, func(i, j int) bool { return items[i].Less(items[j]) })
			total += n
			sources = append(sources, FromSlice(items))
		}

		got, err := Collect[model.PointInTime](context.Background(), Merge[model.PointInTime](key, sources...))
		require.NoError(t, err)
		require.Len(t, got, total)
		for i := 1; i < len(got); i++ {
			require.False(t, got[i].Less(got[i-1]), "round %d: %s before %s", round, got[i-1], got[i])
		}
	}
}

type tagged struct {
	key    model.PointInTime
	source string
}

func TestMergeEqualKeysKeepSourceOrder(t *testing.T) {
	k := point(10, -1, -1)
	a := FromSlice([]tagged{{k, "a1"}, {k, "a2"}})
	b := FromSlice([]tagged{{k, "b1"}})

	got, err := Collect[tagged](context.Background(), Merge[tagged](func(v tagged) model.PointInTime { return v.key }, a, b))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "a1", got[0].source)
	assert.Equal(t, "a2", got[1].source)
	assert.Equal(t, "b1", got[2].source)
}

func TestMergePropagatesSourceError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	failing := IteratorFunc[model.PointInTime](func(ctx context.Context) (model.PointInTime, error) {
		calls++
		if calls == 1 {
			return point(1, 0, 0), nil
		}
		return model.PointInTime{}, boom
	})

	m := Merge[model.PointInTime](key, failing)
	first, err := m.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, point(1, 0, 0), first)

	_, err = m.Next(context.Background())
	require.ErrorIs(t, err, boom)
}
