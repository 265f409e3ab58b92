package stream

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"io"

	"lendingScope/internal/model"
)

// Merged is a single-pass k-way merge of sorted iterators.
type Merged[T any] struct {
	key     func(T) model.PointInTime
	sources []Iterator[T]
	heap    mergeHeap[T]
	primed  int
	refill  int
	seq     uint64
}

// Merge combines sources that are each sorted by key into one sequence in
// non-decreasing key order. Equal keys keep source order, then arrival order.
func Merge[T any](key func(T) model.PointInTime, sources ...Iterator[T]) *Merged[T] {
	return &Merged[T]{key: key, sources: sources, refill: -1}
}

// Next returns the value holding the smallest key across all sources.
func (m *Merged[T]) Next(ctx context.Context) (T, error) {
	var zero T
	for m.primed < len(m.sources) {
		if err := m.pull(ctx, m.primed); err != nil {
			return zero, err
		}
		m.primed++
	}
	if m.refill >= 0 {
		if err := m.pull(ctx, m.refill); err != nil {
			return zero, err
		}
		m.refill = -1
	}
	if m.heap.Len() == 0 {
		return zero, io.EOF
	}

	// advance the popped source lazily on the next call
	top := heap.Pop(&m.heap).(mergeItem[T])
	m.refill = top.source
	return top.value, nil
}

func (m *Merged[T]) pull(ctx context.Context, source int) error {
	value, err := m.sources[source].Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("source %d: %w", source, err)
	}
	m.seq++
	heap.Push(&m.heap, mergeItem[T]{key: m.key(value), value: value, source: source, seq: m.seq})
	return nil
}

type mergeItem[T any] struct {
	key    model.PointInTime
	value  T
	source int
	seq    uint64
}

type mergeHeap[T any] []mergeItem[T]

func (h mergeHeap[T]) Len() int { return len(h) }

func (h mergeHeap[T]) Less(i, j int) bool {
	if c := h[i].key.Compare(h[j].key); c != 0 {
		return c < 0
	}
	if h[i].source != h[j].source {
		return h[i].source < h[j].source
	}
	return h[i].seq < h[j].seq
}

func (h mergeHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap[T]) Push(x any) { *h = append(*h, x.(mergeItem[T])) }

func (h *mergeHeap[T]) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
