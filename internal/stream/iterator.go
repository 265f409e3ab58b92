// Package stream merges ordered event sources into one ordered sequence.
package stream

import (
	"context"
	"errors"
	"io"
)

// Iterator yields values one at a time and returns io.EOF when exhausted.
type Iterator[T any] interface {
	Next(ctx context.Context) (T, error)
}

// IteratorFunc adapts a function to the Iterator interface.
type IteratorFunc[T any] func(ctx context.Context) (T, error)

func (f IteratorFunc[T]) Next(ctx context.Context) (T, error) {
	return f(ctx)
}

// SliceIterator iterates over an in-memory slice.
type SliceIterator[T any] struct {
	items []T
	pos   int
}

// FromSlice returns an iterator over items.
func FromSlice[T any](items []T) *SliceIterator[T] {
	return &SliceIterator[T]{items: items}
}

func (s *SliceIterator[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if s.pos >= len(s.items) {
		return zero, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item, nil
}

// Collect drains src into a slice.
func Collect[T any](ctx context.Context, src Iterator[T]) ([]T, error) {
	var out []T
	for {
		item, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
}
