package db

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/Grape-Labs/grape-governance-sub001/service/decoder"
	"github.com/Grape-Labs/grape-governance-sub001/service/metrics"
	"github.com/Grape-Labs/grape-governance-sub001/service/solana"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a signature has not been archived.
var ErrNotFound = errors.New("decoded transaction not found")

// Store archives decoded transactions in Postgres.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// If metrics is nil, no metrics will be recorded.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{
		pool:    pool,
		metrics: m,
	}
}

// EnsureSchema creates the archive tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// instructionRow is the column form of one decoder.Summary.
type instructionRow struct {
	Position      int
	Program       string
	ProgramID     string
	Kind          string
	Source        *string
	Destination   *string
	Mint          *string
	DisplayName   *string
	IconURI       *string
	Amount        *string
	RawAmount     *string
	Decimals      *int16
	Description   *string
	RawPayload    []byte
	SchemaDecoded *string
	Accounts      []string
	Heuristic     bool
}

// SaveDecodedTransaction upserts a transaction and replaces its instructions.
func (s *Store) SaveDecodedTransaction(ctx context.Context, tx *solana.DecodedTransaction) (err error) {
	start := time.Now()
	defer func() { s.record("save", "decoded_transactions", start, err) }()

	rows := make([]instructionRow, 0, len(tx.Summaries))
	for _, sum := range tx.Summaries {
		row, err := summaryToRow(sum)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", sum.Index, err)
		}
		rows = append(rows, row)
	}

	candidates := []string{}
	if tx.Candidates != nil {
		for _, addr := range tx.Candidates.Addresses() {
			candidates = append(candidates, addr.String())
		}
	}

	dbTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback(ctx)

	_, err = dbTx.Exec(ctx, `
		INSERT INTO decoded_transactions (signature, slot, block_time, err, candidates, decoded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (signature) DO UPDATE SET
			slot = EXCLUDED.slot,
			block_time = EXCLUDED.block_time,
			err = EXCLUDED.err,
			candidates = EXCLUDED.candidates,
			decoded_at = EXCLUDED.decoded_at`,
		tx.Signature, int64(tx.Slot), tx.BlockTime, tx.Err, candidates, tx.DecodedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert transaction: %w", err)
	}

	if _, err = dbTx.Exec(ctx, `DELETE FROM decoded_instructions WHERE signature = $1`, tx.Signature); err != nil {
		return fmt.Errorf("failed to clear instructions: %w", err)
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO decoded_instructions (
				signature, position, program, program_id, kind, source, destination, mint,
				display_name, icon_uri, amount, raw_amount, decimals, description,
				raw_payload, schema_decoded, accounts, heuristic
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8,
				$9, $10, $11::numeric, $12::numeric, $13, $14,
				$15, $16::jsonb, $17, $18
			)`,
			tx.Signature, r.Position, r.Program, r.ProgramID, r.Kind, r.Source, r.Destination, r.Mint,
			r.DisplayName, r.IconURI, r.Amount, r.RawAmount, r.Decimals, r.Description,
			r.RawPayload, r.SchemaDecoded, r.Accounts, r.Heuristic,
		)
	}
	if err = dbTx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert instructions: %w", err)
	}

	if err = dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetDecodedTransaction loads an archived transaction with its instructions.
func (s *Store) GetDecodedTransaction(ctx context.Context, signature string) (_ *solana.DecodedTransaction, err error) {
	start := time.Now()
	defer func() {
		if errors.Is(err, ErrNotFound) {
			s.record("get", "decoded_transactions", start, nil)
			return
		}
		s.record("get", "decoded_transactions", start, err)
	}()

	out := &solana.DecodedTransaction{Signature: signature}
	var (
		slot       int64
		candidates []string
	)
	err = s.pool.QueryRow(ctx, `
		SELECT slot, block_time, err, candidates, decoded_at
		FROM decoded_transactions WHERE signature = $1`, signature,
	).Scan(&slot, &out.BlockTime, &out.Err, &candidates, &out.DecodedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, signature)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	out.Slot = uint64(slot)

	out.Candidates = decoder.NewCandidateSet()
	for _, c := range candidates {
		addr, err := decoder.ParseAddress(c)
		if err != nil {
			return nil, fmt.Errorf("invalid candidate %q: %w", c, err)
		}
		out.Candidates.Add(addr)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT position, program, program_id, kind, source, destination, mint,
			display_name, icon_uri, amount::text, raw_amount::text, decimals, description,
			raw_payload, schema_decoded::text, accounts, heuristic
		FROM decoded_instructions WHERE signature = $1
		ORDER BY position`, signature,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query instructions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var r instructionRow
		if err := rows.Scan(
			&r.Position, &r.Program, &r.ProgramID, &r.Kind, &r.Source, &r.Destination, &r.Mint,
			&r.DisplayName, &r.IconURI, &r.Amount, &r.RawAmount, &r.Decimals, &r.Description,
			&r.RawPayload, &r.SchemaDecoded, &r.Accounts, &r.Heuristic,
		); err != nil {
			return nil, fmt.Errorf("failed to scan instruction: %w", err)
		}
		sum, err := rowToSummary(r)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", r.Position, err)
		}
		out.Summaries = append(out.Summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read instructions: %w", err)
	}
	return out, nil
}

// ListRecentSignatures returns archived signatures, newest slot first.
func (s *Store) ListRecentSignatures(ctx context.Context, limit int32) (_ []string, err error) {
	start := time.Now()
	defer func() { s.record("list", "decoded_transactions", start, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT signature FROM decoded_transactions
		ORDER BY slot DESC, signature
		LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}
	sigs, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to collect signatures: %w", err)
	}
	return sigs, nil
}

// DeleteDecodedTransaction removes a transaction and its instructions.
func (s *Store) DeleteDecodedTransaction(ctx context.Context, signature string) (err error) {
	start := time.Now()
	defer func() { s.record("delete", "decoded_transactions", start, err) }()

	tag, err := s.pool.Exec(ctx, `DELETE FROM decoded_transactions WHERE signature = $1`, signature)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, signature)
	}
	return nil
}

func (s *Store) record(op, table string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(op, table, time.Since(start).Seconds(), err)
	}
}

func summaryToRow(s *decoder.Summary) (instructionRow, error) {
	r := instructionRow{
		Position:    s.Index,
		Program:     s.Program,
		ProgramID:   s.ProgramID,
		Kind:        s.Kind,
		Source:      nullableString(s.Source),
		Destination: nullableString(s.Destination),
		Mint:        nullableString(s.Mint),
		DisplayName: nullableString(s.DisplayName),
		IconURI:     nullableString(s.IconURI),
		Description: nullableString(s.Description),
		RawPayload:  s.RawPayload,
		Accounts:    s.Accounts,
		Heuristic:   s.Heuristic,
	}
	if r.RawPayload == nil {
		r.RawPayload = []byte{}
	}
	if r.Accounts == nil {
		r.Accounts = []string{}
	}
	if s.Amount != nil {
		v := s.Amount.String()
		r.Amount = &v
	}
	if s.RawAmount != nil {
		v := strconv.FormatUint(*s.RawAmount, 10)
		r.RawAmount = &v
	}
	if s.Decimals != nil {
		v := int16(*s.Decimals)
		r.Decimals = &v
	}
	if s.SchemaDecoded != nil {
		data, err := json.Marshal(s.SchemaDecoded)
		if err != nil {
			return r, fmt.Errorf("failed to encode schema args: %w", err)
		}
		v := string(data)
		r.SchemaDecoded = &v
	}
	return r, nil
}

func rowToSummary(r instructionRow) (*decoder.Summary, error) {
	s := &decoder.Summary{
		Index:       r.Position,
		Program:     r.Program,
		ProgramID:   r.ProgramID,
		Kind:        r.Kind,
		Source:      derefString(r.Source),
		Destination: derefString(r.Destination),
		Mint:        derefString(r.Mint),
		DisplayName: derefString(r.DisplayName),
		IconURI:     derefString(r.IconURI),
		Description: derefString(r.Description),
		RawPayload:  r.RawPayload,
		Accounts:    r.Accounts,
		Heuristic:   r.Heuristic,
	}
	if r.Amount != nil {
		d, err := decimal.NewFromString(*r.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", *r.Amount, err)
		}
		s.Amount = &d
	}
	if r.RawAmount != nil {
		v, err := strconv.ParseUint(*r.RawAmount, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid raw amount %q: %w", *r.RawAmount, err)
		}
		s.RawAmount = &v
	}
	if r.Decimals != nil {
		v := uint8(*r.Decimals)
		s.Decimals = &v
	}
	if r.SchemaDecoded != nil {
		var si decoder.SchemaInstruction
		if err := json.Unmarshal([]byte(*r.SchemaDecoded), &si); err != nil {
			return nil, fmt.Errorf("invalid schema args: %w", err)
		}
		s.SchemaDecoded = &si
	}
	return s, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
