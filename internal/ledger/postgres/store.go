package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"qms/ticket-queue/internal/ledger"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// columnNames maps ledger columns onto the ledger_rows table. Column names
// are never taken from input.
var columnNames = map[ledger.Column]string{
	ledger.ColumnQueue:     "queue",
	ledger.ColumnTimestamp: "issued_at",
	ledger.ColumnStatus:    "status",
}

// ReadRows returns rows ordered by insertion. Positions are dense 1-based
// ordinals, not the serial key, so gaps left by aborted inserts do not leak
// into row addressing.
func (s *Store) ReadRows(ctx context.Context) ([]ledger.Row, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT queue, issued_at, status
		FROM ledger_rows
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, ledger.Unavailable("read", err)
	}
	defer rows.Close()

	var result []ledger.Row
	for rows.Next() {
		row := ledger.Row{Position: len(result) + 1}
		if err := rows.Scan(&row.Values[0], &row.Values[1], &row.Values[2]); err != nil {
			return nil, ledger.Unavailable("read", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, ledger.Unavailable("read", err)
	}
	return result, nil
}

func (s *Store) AppendRows(ctx context.Context, rows []ledger.Row) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO ledger_rows (queue, issued_at, status) VALUES ($1, $2, $3)
		`, row.Values[0], row.Values[1], row.Values[2])
	}
	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return ledger.Unavailable("append", err)
	}
	return nil
}

func (s *Store) UpdateCell(ctx context.Context, position int, column ledger.Column, value string) error {
	if err := ledger.ValidateCell(position, column); err != nil {
		return err
	}
	name := columnNames[column]
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE ledger_rows SET %s = $1
		WHERE position = (
			SELECT position FROM ledger_rows ORDER BY position ASC OFFSET $2 LIMIT 1
		)
	`, name), value, position-1)
	if err != nil {
		return ledger.Unavailable("update", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", ledger.ErrInvalidPosition, position)
	}
	return nil
}

// NextNumber advances the per-scope counter in a single statement, so
// concurrent issuers across processes never receive the same number.
func (s *Store) NextNumber(ctx context.Context, key string, floor int) (int, error) {
	var next int64
	row := s.pool.QueryRow(ctx, `
		INSERT INTO ticket_sequences (scope_key, next_number)
		VALUES ($1, $2::bigint + 1)
		ON CONFLICT (scope_key)
		DO UPDATE SET next_number = GREATEST(ticket_sequences.next_number + 1, $2::bigint + 1)
		RETURNING next_number
	`, key, int64(floor))
	if err := row.Scan(&next); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ledger.Unavailable("sequence", fmt.Errorf("no sequence returned for %q", key))
		}
		return 0, ledger.Unavailable("sequence", err)
	}
	return int(next), nil
}
