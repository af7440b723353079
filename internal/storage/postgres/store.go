package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"escrowOracle/internal/model"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS indexer_state (
	name TEXT PRIMARY KEY,
	last_block BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS escrow_events (
	escrow_id BIGINT NOT NULL,
	variant TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	log_index BIGINT NOT NULL,
	tx_hash TEXT NOT NULL,
	block_timestamp BIGINT NOT NULL,
	amount TEXT NOT NULL,
	depositor TEXT NOT NULL DEFAULT '',
	beneficiary TEXT NOT NULL DEFAULT '',
	market_id TEXT NOT NULL DEFAULT '',
	expected_outcome_yes BOOLEAN NOT NULL DEFAULT false,
	outcome BOOLEAN NOT NULL DEFAULT false,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (escrow_id, variant, block_number)
);
CREATE TABLE IF NOT EXISTS market_questions (
	market_id TEXT PRIMARY KEY,
	question TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for the indexer's warm-start state.
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

// EnsureSchema creates the tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaSQL)
	return err
}

// LoadState returns last_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_block FROM indexer_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// LoadEvents returns every stored lifecycle event in block order.
func (s *Store) LoadEvents(ctx context.Context) (model.EventSet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT escrow_id, variant, block_number, log_index, tx_hash, block_timestamp,
			amount, depositor, beneficiary, market_id, expected_outcome_yes, outcome
		FROM escrow_events
		ORDER BY block_number, log_index
	`)
	if err != nil {
		return model.EventSet{}, err
	}
	defer rows.Close()

	var set model.EventSet
	for rows.Next() {
		var (
			e                        model.LifecycleEvent
			escrowID, block, idx, ts int64
			variant                  string
		)
		if err := rows.Scan(&escrowID, &variant, &block, &idx, &e.TxHash, &ts,
			&e.Amount, &e.Depositor, &e.Beneficiary, &e.MarketID, &e.ExpectedOutcomeYes, &e.Outcome); err != nil {
			return model.EventSet{}, err
		}
		e.EscrowID = uint64(escrowID)
		e.Variant = model.Variant(variant)
		e.BlockNumber = uint64(block)
		e.LogIndex = uint64(idx)
		e.Timestamp = uint64(ts)
		if err := set.Add(e); err != nil {
			return model.EventSet{}, err
		}
	}
	return set, rows.Err()
}

// LoadMarketQuestions returns the cached market questions.
func (s *Store) LoadMarketQuestions(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT market_id, question FROM market_questions`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, question string
		if err := rows.Scan(&id, &question); err != nil {
			return nil, err
		}
		out[id] = question
	}
	return out, rows.Err()
}

// SaveIndexState writes events, market questions and the watermark in one
// transaction. Events already stored are left untouched.
func (s *Store) SaveIndexState(ctx context.Context, name string, lastBlock uint64, events []model.LifecycleEvent, questions map[string]string) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, e := range events {
		batch.Queue(`
			INSERT INTO escrow_events (
				escrow_id, variant, block_number, log_index, tx_hash, block_timestamp,
				amount, depositor, beneficiary, market_id, expected_outcome_yes, outcome
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (escrow_id, variant, block_number) DO NOTHING
		`,
			int64(e.EscrowID),
			string(e.Variant),
			int64(e.BlockNumber),
			int64(e.LogIndex),
			e.TxHash,
			int64(e.Timestamp),
			e.Amount,
			e.Depositor,
			e.Beneficiary,
			e.MarketID,
			e.ExpectedOutcomeYes,
			e.Outcome,
		)
	}
	for id, question := range questions {
		batch.Queue(`
			INSERT INTO market_questions (market_id, question, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (market_id) DO NOTHING
		`, id, question)
	}
	batch.Queue(`
		INSERT INTO indexer_state (name, last_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_block = GREATEST(indexer_state.last_block, EXCLUDED.last_block), updated_at = now()
	`, name, int64(lastBlock))

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return err
		}
	}
	if err := br.Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
