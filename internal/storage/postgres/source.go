package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"lendingScope/internal/model"
	"lendingScope/internal/storage"
	"lendingScope/internal/stream"
)

// SourceConfig tunes paginated reads.
type SourceConfig struct {
	PageSize    int
	PageTimeout time.Duration
	Logger      *zap.Logger
}

// Source reads sorted event sources with keyset pagination.
type Source struct {
	store *Store
	cfg   SourceConfig
}

// NewSource returns a paginated source over store.
func NewSource(store *Store, cfg SourceConfig) *Source {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5000
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Source{store: store, cfg: cfg}
}

// Open implements storage.Source.
func (s *Source) Open(_ context.Context, kind storage.Kind, r storage.Range, after *model.PointInTime) (stream.Iterator[model.Event], error) {
	q, err := pageQuery(kind)
	if err != nil {
		return nil, err
	}
	c := &cursor{source: s, kind: kind, query: q, r: r}
	if after != nil {
		start := *after
		c.start = &start
	}
	return c, nil
}

type page struct {
	sql  string
	scan func(pgx.Rows) (model.Event, error)
}

func pageQuery(kind storage.Kind) (page, error) {
	bounds := `block_number BETWEEN $1 AND $2`
	switch kind {
	case storage.KindEvents:
		return page{
			sql: `SELECT block_number, transaction_index, log_index, event, address, transaction_hash, timestamp, return_values
				FROM events
				WHERE ` + bounds + ` AND (block_number, transaction_index, log_index) > ($3, $4, $5)
				ORDER BY block_number, transaction_index, log_index
				LIMIT $6`,
			scan: scanEvent,
		}, nil
	case storage.KindDSValues, storage.KindSaiPrices:
		table, _ := priceTable(kind)
		tx, log := model.DSValueTxIndex, model.DSValueLogIndex
		if kind == storage.KindSaiPrices {
			tx, log = model.SaiPriceTxIndex, model.SaiPriceLogIndex
		}
		return page{
			sql: `SELECT block_number, address, price FROM ` + table + `
				WHERE ` + bounds + fmt.Sprintf(` AND (block_number, %d, %d) > ($3, $4, $5)`, tx, log) + `
				ORDER BY block_number, address
				LIMIT $6`,
			scan: func(rows pgx.Rows) (model.Event, error) {
				var row storage.PriceRow
				if err := rows.Scan(&row.BlockNumber, &row.Address, &row.Price); err != nil {
					return model.Event{}, err
				}
				if kind == storage.KindDSValues {
					return row.DSValueEvent(), nil
				}
				return row.SaiPriceEvent(), nil
			},
		}, nil
	case storage.KindChi:
		return page{
			sql: `SELECT block_number, chi FROM dsr_chi
				WHERE ` + bounds + fmt.Sprintf(` AND (block_number, %d, %d) > ($3, $4, $5)`, model.ChiTxIndex, model.ChiLogIndex) + `
				ORDER BY block_number
				LIMIT $6`,
			scan: func(rows pgx.Rows) (model.Event, error) {
				var row storage.ChiRow
				if err := rows.Scan(&row.BlockNumber, &row.Chi); err != nil {
					return model.Event{}, err
				}
				return row.Event(), nil
			},
		}, nil
	}
	return page{}, fmt.Errorf("unknown source kind %q", kind)
}

func scanEvent(rows pgx.Rows) (model.Event, error) {
	var (
		ev        model.Event
		txHash    *string
		timestamp *int64
		values    []byte
	)
	if err := rows.Scan(&ev.BlockNumber, &ev.TransactionIndex, &ev.LogIndex, &ev.Event, &ev.Address, &txHash, &timestamp, &values); err != nil {
		return model.Event{}, err
	}
	if txHash != nil {
		ev.TransactionHash = *txHash
	}
	if timestamp != nil {
		ev.Timestamp = uint64(*timestamp)
	}
	parsed, err := model.ParseEvent(append(append([]byte(`{"returnValues":`), values...), '}'))
	if err != nil {
		return model.Event{}, fmt.Errorf("return values of %s: %w", ev.Key(), err)
	}
	ev.ReturnValues = parsed.ReturnValues
	return ev, nil
}

// cursor fetches one page at a time. Price rows of one block share a key,
// so each page starts just before the last key returned and drops the rows
// already yielded at it.
type cursor struct {
	source  *Source
	kind    storage.Kind
	query   page
	r       storage.Range
	start   *model.PointInTime
	last    *model.PointInTime
	repeats int
	buf     []model.Event
	done    bool
}

func (c *cursor) Next(ctx context.Context) (model.Event, error) {
	if len(c.buf) == 0 {
		if c.done {
			return model.Event{}, io.EOF
		}
		if err := c.fetch(ctx); err != nil {
			return model.Event{}, err
		}
		if len(c.buf) == 0 {
			return model.Event{}, io.EOF
		}
	}
	ev := c.buf[0]
	c.buf = c.buf[1:]
	key := ev.Key()
	if c.last != nil && *c.last == key {
		c.repeats++
	} else {
		c.last = &key
		c.repeats = 1
	}
	return ev, nil
}

func (c *cursor) fetch(ctx context.Context) error {
	if c.source.cfg.PageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.source.cfg.PageTimeout)
		defer cancel()
	}
	after := model.PointInTime{BlockNumber: c.r.MinBlock - 1}
	skip := 0
	switch {
	case c.last != nil:
		after, skip = c.last.Prev(), c.repeats
	case c.start != nil:
		after = *c.start
	}
	maxBlock := c.r.MaxBlock
	if maxBlock == 0 {
		maxBlock = math.MaxInt64
	}
	rows, err := c.source.store.pool.Query(ctx, c.query.sql,
		c.r.MinBlock, maxBlock,
		after.BlockNumber, after.TransactionIndex, after.LogIndex,
		c.source.cfg.PageSize,
	)
	if err != nil {
		return fmt.Errorf("query %s page after %s: %w", c.kind, after, err)
	}
	defer rows.Close()

	buf := make([]model.Event, 0, c.source.cfg.PageSize)
	for rows.Next() {
		ev, err := c.query.scan(rows)
		if err != nil {
			return fmt.Errorf("scan %s: %w", c.kind, err)
		}
		buf = append(buf, ev)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read %s page after %s: %w", c.kind, after, err)
	}
	c.source.cfg.Logger.Debug("fetched page",
		zap.String("kind", string(c.kind)),
		zap.Stringer("after", after),
		zap.Int("rows", len(buf)),
	)
	full := len(buf) == c.source.cfg.PageSize
	if skip > 0 {
		buf = dropYielded(buf, *c.last, skip)
	}
	if full && len(buf) == 0 {
		return fmt.Errorf("more than %d %s rows share key %s", c.source.cfg.PageSize, c.kind, c.last)
	}
	c.buf = buf
	c.done = !full
	return nil
}

// dropYielded removes up to n leading events keyed last.
func dropYielded(buf []model.Event, last model.PointInTime, n int) []model.Event {
	for n > 0 && len(buf) > 0 && buf[0].Key() == last {
		buf = buf[1:]
		n--
	}
	return buf
}

// IsRecoverable reports whether err is a transient connection or timeout
// failure after which a source can be reopened.
func IsRecoverable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 57P01: admin shutdown
		return len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08" || pgErr.Code == "57P01"
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
