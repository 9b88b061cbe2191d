// Package sqlite keeps the ledger in a local SQLite file, for single-box
// deployments without a spreadsheet.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"qms/ticket-queue/internal/ledger"
)

const schema = `
CREATE TABLE IF NOT EXISTS ledger_rows (
    position INTEGER PRIMARY KEY AUTOINCREMENT,
    queue TEXT NOT NULL DEFAULT '',
    issued_at TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS ticket_sequences (
    scope_key TEXT PRIMARY KEY,
    next_number INTEGER NOT NULL
);
`

// Store wraps a SQLite database connection.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dataSourceName and applies the
// schema.
func Open(ctx context.Context, dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ReadRows(ctx context.Context) ([]ledger.Row, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT queue, issued_at, status FROM ledger_rows ORDER BY position ASC`)
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Unavailable("append", err)
	}
	defer func() { _ = tx.Rollback() }()
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO ledger_rows (queue, issued_at, status) VALUES (?, ?, ?)`,
			row.Values[0], row.Values[1], row.Values[2]); err != nil {
			return ledger.Unavailable("append", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ledger.Unavailable("append", err)
	}
	return nil
}

var columnNames = map[ledger.Column]string{
	ledger.ColumnQueue:     "queue",
	ledger.ColumnTimestamp: "issued_at",
	ledger.ColumnStatus:    "status",
}

func (s *Store) UpdateCell(ctx context.Context, position int, column ledger.Column, value string) error {
	if err := ledger.ValidateCell(position, column); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE ledger_rows SET %s = ?
		WHERE position = (SELECT position FROM ledger_rows ORDER BY position ASC LIMIT 1 OFFSET ?)
	`, columnNames[column]), value, position-1)
	if err != nil {
		return ledger.Unavailable("update", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return ledger.Unavailable("update", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %d", ledger.ErrInvalidPosition, position)
	}
	return nil
}

func (s *Store) NextNumber(ctx context.Context, key string, floor int) (int, error) {
	var next int
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO ticket_sequences (scope_key, next_number) VALUES (?1, ?2 + 1)
		ON CONFLICT (scope_key) DO UPDATE SET next_number = MAX(next_number + 1, ?2 + 1)
		RETURNING next_number
	`, key, floor).Scan(&next)
	if err != nil {
		return 0, ledger.Unavailable("sequence", err)
	}
	return next, nil
}
