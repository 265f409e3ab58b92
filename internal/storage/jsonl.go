package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"lendingScope/internal/model"
	"lendingScope/internal/stream"
)

// JSONLSink appends events to a JSONL file.
type JSONLSink struct {
	path string
	mu   sync.Mutex
}

func NewJSONLSink(path string) *JSONLSink {
	return &JSONLSink{path: path}
}

// PutEvents appends a batch of events as JSON lines.
func (s *JSONLSink) PutEvents(_ context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	items := make([]any, len(events))
	for i := range events {
		items[i] = events[i]
	}
	return s.append(items)
}

// PutDecodeErrors appends decode failures as JSON lines.
func (s *JSONLSink) PutDecodeErrors(_ context.Context, records []model.DecodeError) error {
	if len(records) == 0 {
		return nil
	}
	items := make([]any, len(records))
	for i := range records {
		items[i] = records[i]
	}
	return s.append(items)
}

func (s *JSONLSink) append(items []any) error {
	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write record: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}

// JSONLSource reads each source kind from its own JSONL file. Kinds without
// a file are empty.
type JSONLSource struct {
	Paths map[Kind]string
}

// Open implements Source.
func (s JSONLSource) Open(ctx context.Context, kind Kind, r Range, after *model.PointInTime) (stream.Iterator[model.Event], error) {
	path, ok := s.Paths[kind]
	if !ok || path == "" {
		return stream.FromSlice[model.Event](nil), nil
	}
	decode, err := lineDecoder(kind)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s source: %w", kind, err)
	}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	return &jsonlIterator{
		path:    path,
		file:    file,
		scanner: scanner,
		decode:  decode,
		r:       r,
		after:   after,
	}, nil
}

func lineDecoder(kind Kind) (func([]byte) (model.Event, error), error) {
	switch kind {
	case KindEvents:
		return model.ParseEvent, nil
	case KindDSValues, KindSaiPrices:
		return func(line []byte) (model.Event, error) {
			var row PriceRow
			if err := json.Unmarshal(line, &row); err != nil {
				return model.Event{}, err
			}
			if kind == KindDSValues {
				return row.DSValueEvent(), nil
			}
			return row.SaiPriceEvent(), nil
		}, nil
	case KindChi:
		return func(line []byte) (model.Event, error) {
			var row ChiRow
			if err := json.Unmarshal(line, &row); err != nil {
				return model.Event{}, err
			}
			return row.Event(), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", kind)
	}
}

type jsonlIterator struct {
	path    string
	file    *os.File
	scanner *bufio.Scanner
	decode  func([]byte) (model.Event, error)
	r       Range
	after   *model.PointInTime
	prev    *model.PointInTime
	line    int
}

func (it *jsonlIterator) Next(ctx context.Context) (model.Event, error) {
	for it.scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return model.Event{}, err
		}
		it.line++
		raw := it.scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		ev, err := it.decode(raw)
		if err != nil {
			return model.Event{}, fmt.Errorf("%s:%d: %w", it.path, it.line, err)
		}
		key := ev.Key()
		if it.prev != nil && key.Less(*it.prev) {
			return model.Event{}, fmt.Errorf("%s:%d: %s out of order after %s", it.path, it.line, key, it.prev)
		}
		it.prev = &key
		if it.r.MaxBlock != 0 && key.BlockNumber > it.r.MaxBlock {
			break
		}
		if key.BlockNumber < it.r.MinBlock {
			continue
		}
		if it.after != nil && !it.after.Less(key) {
			continue
		}
		return ev, nil
	}
	if err := it.scanner.Err(); err != nil {
		return model.Event{}, fmt.Errorf("read %s: %w", it.path, err)
	}
	return model.Event{}, io.EOF
}

// Close releases the file.
func (it *jsonlIterator) Close() error {
	if err := it.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}

// ReadJSONL decodes every line of path into T.
func ReadJSONL[T any](path string) ([]T, error) {
	var out []T
	err := readLines(path, func(line []byte) error {
		var item T
		if err := json.Unmarshal(line, &item); err != nil {
			return err
		}
		out = append(out, item)
		return nil
	})
	return out, err
}

// ReadEvents decodes every line of path into an event, keeping numbers
// exact.
func ReadEvents(path string) ([]model.Event, error) {
	var out []model.Event
	err := readLines(path, func(line []byte) error {
		ev, err := model.ParseEvent(line)
		if err != nil {
			return err
		}
		out = append(out, ev)
		return nil
	})
	return out, err
}

func readLines(path string, fn func([]byte) error) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(scanner.Bytes()); err != nil {
			return fmt.Errorf("%s:%d: %w", path, line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}
