// Package memory keeps the ledger in process memory. It backs local
// development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"qms/ticket-queue/internal/ledger"
)

type Ledger struct {
	mu        sync.Mutex
	rows      [][ledger.Width]string
	sequences map[string]int
}

func New(rows ...ledger.Row) *Ledger {
	l := &Ledger{sequences: make(map[string]int)}
	for _, row := range rows {
		l.rows = append(l.rows, row.Values)
	}
	return l
}

func (l *Ledger) ReadRows(ctx context.Context) ([]ledger.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, ledger.Unavailable("read", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rows := make([]ledger.Row, len(l.rows))
	for i, values := range l.rows {
		rows[i] = ledger.Row{Position: i + 1, Values: values}
	}
	return rows, nil
}

func (l *Ledger) AppendRows(ctx context.Context, rows []ledger.Row) error {
	if err := ctx.Err(); err != nil {
		return ledger.Unavailable("append", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, row := range rows {
		l.rows = append(l.rows, row.Values)
	}
	return nil
}

func (l *Ledger) UpdateCell(ctx context.Context, position int, column ledger.Column, value string) error {
	if err := ctx.Err(); err != nil {
		return ledger.Unavailable("update", err)
	}
	if err := ledger.ValidateCell(position, column); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if position > len(l.rows) {
		return fmt.Errorf("%w: %d", ledger.ErrInvalidPosition, position)
	}
	l.rows[position-1][column] = value
	return nil
}

func (l *Ledger) NextNumber(ctx context.Context, key string, floor int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, ledger.Unavailable("sequence", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.sequences[key] + 1
	if next <= floor {
		next = floor + 1
	}
	l.sequences[key] = next
	return next, nil
}
