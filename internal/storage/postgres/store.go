package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lendingScope/internal/model"
	"lendingScope/internal/storage"
)

// Store provides Postgres persistence for events, off-log prices and
// replay snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS events (
		block_number bigint NOT NULL,
		transaction_index bigint NOT NULL,
		log_index bigint NOT NULL,
		event text NOT NULL,
		address text NOT NULL,
		transaction_hash text,
		timestamp bigint,
		return_values jsonb NOT NULL,
		PRIMARY KEY (block_number, transaction_index, log_index)
	)`,
	`CREATE INDEX IF NOT EXISTS events_event_idx ON events (event)`,
	`CREATE INDEX IF NOT EXISTS events_address_idx ON events (address)`,
	`CREATE INDEX IF NOT EXISTS events_minter_idx ON events ((return_values->>'minter'))`,
	`CREATE INDEX IF NOT EXISTS events_redeemer_idx ON events ((return_values->>'redeemer'))`,
	`CREATE INDEX IF NOT EXISTS events_borrower_idx ON events ((return_values->>'borrower'))`,
	`CREATE TABLE IF NOT EXISTS ds_values (
		block_number bigint NOT NULL,
		address text NOT NULL,
		price text NOT NULL,
		PRIMARY KEY (block_number, address)
	)`,
	`CREATE TABLE IF NOT EXISTS sai_prices (
		block_number bigint NOT NULL,
		address text NOT NULL,
		price text NOT NULL,
		PRIMARY KEY (block_number, address)
	)`,
	`CREATE TABLE IF NOT EXISTS dsr_chi (
		block_number bigint PRIMARY KEY,
		chi text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS dsr_rates (
		block_number bigint PRIMARY KEY,
		rate text NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS replay_state (
		name text PRIMARY KEY,
		run_id text NOT NULL,
		protocol text NOT NULL,
		last_block bigint NOT NULL,
		saved_at timestamptz NOT NULL,
		state jsonb NOT NULL,
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
}

// CreateIndices creates every table and index used by the replayer.
func (s *Store) CreateIndices(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// PutEvents inserts events, ignoring ones already stored.
func (s *Store) PutEvents(ctx context.Context, events []model.Event) error {
	if len(events) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, ev := range events {
		values, err := json.Marshal(ev.ReturnValues)
		if err != nil {
			return fmt.Errorf("marshal return values of %s: %w", ev.Key(), err)
		}
		batch.Queue(`
			INSERT INTO events (
				block_number, transaction_index, log_index, event, address, transaction_hash, timestamp, return_values
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (block_number, transaction_index, log_index) DO NOTHING
		`,
			ev.BlockNumber,
			ev.TransactionIndex,
			ev.LogIndex,
			ev.Event,
			ev.Address,
			ev.TransactionHash,
			int64(ev.Timestamp),
			values,
		)
	}
	return s.sendBatch(ctx, batch, len(events))
}

// PutPrices upserts off-log price rows of kind ds_values or sai_prices.
func (s *Store) PutPrices(ctx context.Context, kind storage.Kind, rows []storage.PriceRow) error {
	if len(rows) == 0 {
		return nil
	}
	table, err := priceTable(kind)
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO `+table+` (block_number, address, price) VALUES ($1, $2, $3)
			ON CONFLICT (block_number, address) DO UPDATE SET price = EXCLUDED.price
		`, row.BlockNumber, row.Address, row.Price)
	}
	return s.sendBatch(ctx, batch, len(rows))
}

func priceTable(kind storage.Kind) (string, error) {
	switch kind {
	case storage.KindDSValues:
		return "ds_values", nil
	case storage.KindSaiPrices:
		return "sai_prices", nil
	}
	return "", fmt.Errorf("%s is not a price source", kind)
}

// PutChi upserts DSR chi values.
func (s *Store) PutChi(ctx context.Context, rows []storage.ChiRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO dsr_chi (block_number, chi) VALUES ($1, $2)
			ON CONFLICT (block_number) DO UPDATE SET chi = EXCLUDED.chi
		`, row.BlockNumber, row.Chi)
	}
	return s.sendBatch(ctx, batch, len(rows))
}

// PutDSRRates upserts DSR rate changes.
func (s *Store) PutDSRRates(ctx context.Context, rows []storage.RateRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO dsr_rates (block_number, rate) VALUES ($1, $2)
			ON CONFLICT (block_number) DO UPDATE SET rate = EXCLUDED.rate
		`, row.BlockNumber, row.Rate)
	}
	return s.sendBatch(ctx, batch, len(rows))
}

// LoadDSRRates returns every stored DSR rate ordered by block.
func (s *Store) LoadDSRRates(ctx context.Context) ([]storage.RateRow, error) {
	rows, err := s.pool.Query(ctx, `SELECT block_number, rate FROM dsr_rates ORDER BY block_number`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (storage.RateRow, error) {
		var r storage.RateRow
		err := row.Scan(&r.BlockNumber, &r.Rate)
		return r, err
	})
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot is a serialized replay state stored under a name.
type Snapshot struct {
	Name      string
	RunID     uuid.UUID
	Protocol  string
	LastBlock int64
	SavedAt   time.Time
	State     []byte
}

// LoadSnapshot returns the snapshot stored under name.
func (s *Store) LoadSnapshot(ctx context.Context, name string) (Snapshot, bool, error) {
	if name == "" {
		return Snapshot{}, false, fmt.Errorf("state name required")
	}
	snap := Snapshot{Name: name}
	var runID string
	row := s.pool.QueryRow(ctx, `
		SELECT run_id, protocol, last_block, saved_at, state FROM replay_state WHERE name=$1
	`, name)
	if err := row.Scan(&runID, &snap.Protocol, &snap.LastBlock, &snap.SavedAt, &snap.State); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	id, err := uuid.Parse(runID)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("snapshot %s: run id: %w", name, err)
	}
	snap.RunID = id
	return snap, true, nil
}

// SaveSnapshot upserts the snapshot stored under snap.Name.
func (s *Store) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	if snap.Name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO replay_state (name, run_id, protocol, last_block, saved_at, state, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (name) DO UPDATE
		SET run_id = EXCLUDED.run_id,
			protocol = EXCLUDED.protocol,
			last_block = EXCLUDED.last_block,
			saved_at = EXCLUDED.saved_at,
			state = EXCLUDED.state,
			updated_at = now()
	`, snap.Name, snap.RunID.String(), snap.Protocol, snap.LastBlock, snap.SavedAt, snap.State)
	return err
}
