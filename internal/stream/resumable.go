package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"lendingScope/internal/model"
	"lendingScope/internal/retry"
)

// OpenFunc opens a sorted source positioned strictly after the given key.
// A nil key opens the source from the beginning. Values sharing a key must
// come back in the same order on every open.
type OpenFunc[T any] func(ctx context.Context, after *model.PointInTime) (Iterator[T], error)

// ResumableConfig configures a Resumable source.
type ResumableConfig[T any] struct {
	Name        string
	Open        OpenFunc[T]
	Key         func(T) model.PointInTime
	Recoverable func(error) bool
	MaxRetries  int
	Backoff     time.Duration
	Logger      *zap.Logger
}

// Resumable wraps a cursor-like source. It remembers the key of the last
// value it yielded and how many values carried it. After a recoverable
// failure it reopens just before that key and skips the values it already
// yielded there.
type Resumable[T any] struct {
	cfg     ResumableConfig[T]
	current Iterator[T]
	last    *model.PointInTime
	repeats int
	skip    int
	resumes int
	done    bool
}

// NewResumable builds a Resumable source. The source is opened lazily.
func NewResumable[T any](cfg ResumableConfig[T]) *Resumable[T] {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Recoverable == nil {
		cfg.Recoverable = func(error) bool { return false }
	}
	return &Resumable[T]{cfg: cfg}
}

// Resumes reports how many times the source was reopened.
func (r *Resumable[T]) Resumes() int {
	return r.resumes
}

// LastKey returns the key of the last yielded value.
func (r *Resumable[T]) LastKey() (model.PointInTime, bool) {
	if r.last == nil {
		return model.PointInTime{}, false
	}
	return *r.last, true
}

func (r *Resumable[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if r.cfg.Open == nil || r.cfg.Key == nil {
		return zero, fmt.Errorf("resumable source %s is not configured", r.cfg.Name)
	}
	if r.done {
		return zero, io.EOF
	}

	var value T
	err := retry.DoIf(ctx, r.cfg.MaxRetries, r.cfg.Backoff, r.recoverable, func(ctx context.Context) error {
		if r.current == nil {
			after := r.last
			if after != nil {
				prev := after.Prev()
				after = &prev
			}
			it, err := r.cfg.Open(ctx, after)
			if err != nil {
				return err
			}
			r.current = it
			r.skip = r.repeats
		}

		v, err := r.current.Next(ctx)
		for err == nil && r.skip > 0 && r.cfg.Key(v) == *r.last {
			r.skip--
			v, err = r.current.Next(ctx)
		}
		if err == nil {
			r.skip = 0
			value = v
			return nil
		}
		if errors.Is(err, io.EOF) {
			return err
		}

		r.closeCurrent()
		if r.cfg.Recoverable(err) {
			r.resumes++
			r.cfg.Logger.Warn("source interrupted, resuming",
				zap.String("source", r.cfg.Name),
				zap.Stringer("after", keyOrZero(r.last)),
				zap.Error(err),
			)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, io.EOF) {
			r.done = true
			r.closeCurrent()
		}
		return zero, err
	}

	key := r.cfg.Key(value)
	if r.last != nil && *r.last == key {
		r.repeats++
	} else {
		r.last = &key
		r.repeats = 1
	}
	return value, nil
}

func (r *Resumable[T]) recoverable(err error) bool {
	if errors.Is(err, io.EOF) {
		return false
	}
	return r.cfg.Recoverable(err)
}

func (r *Resumable[T]) closeCurrent() {
	if closer, ok := r.current.(io.Closer); ok {
		_ = closer.Close()
	}
	r.current = nil
}

func keyOrZero(p *model.PointInTime) model.PointInTime {
	if p == nil {
		return model.PointInTime{}
	}
	return *p
}
