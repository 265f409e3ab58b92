// Package storage moves events between the fetch pipeline, files,
// databases and the replay.
package storage

import (
	"context"

	"lendingScope/internal/model"
	"lendingScope/internal/stream"
)

// Kind names one sorted event source.
type Kind string

const (
	KindEvents    Kind = "events"
	KindDSValues  Kind = "ds_values"
	KindSaiPrices Kind = "sai_prices"
	KindChi       Kind = "dsr_chi"
)

// Kinds lists every source kind in merge order.
func Kinds() []Kind {
	return []Kind{KindEvents, KindDSValues, KindSaiPrices, KindChi}
}

// Range bounds a replay by block, inclusively. A zero MaxBlock is unbounded.
type Range struct {
	MinBlock int64
	MaxBlock int64
}

// Contains reports whether block lies in the range.
func (r Range) Contains(block int64) bool {
	if block < r.MinBlock {
		return false
	}
	return r.MaxBlock == 0 || block <= r.MaxBlock
}

// Source opens sorted event sources.
type Source interface {
	// Open returns the events of kind within r, strictly after the key
	// when after is set.
	Open(ctx context.Context, kind Kind, r Range, after *model.PointInTime) (stream.Iterator[model.Event], error)
}

// EventSink persists decoded events.
type EventSink interface {
	PutEvents(ctx context.Context, events []model.Event) error
}

// DecodeErrorSink persists logs that failed to decode.
type DecodeErrorSink interface {
	PutDecodeErrors(ctx context.Context, records []model.DecodeError) error
}
