// Package ledger defines the row-oriented store that persists issued tickets.
//
// A ledger is an ordered table of three columns (queue, timestamp, status).
// Rows are addressed by their 1-based position, the way a spreadsheet
// addresses them, and are only ever appended; the status column is the one
// cell a caller may rewrite in place.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

type Column int

const (
	ColumnQueue Column = iota
	ColumnTimestamp
	ColumnStatus
)

// Letter returns the spreadsheet column letter.
func (c Column) Letter() string {
	switch c {
	case ColumnQueue:
		return "A"
	case ColumnTimestamp:
		return "B"
	case ColumnStatus:
		return "C"
	default:
		return ""
	}
}

func (c Column) String() string {
	switch c {
	case ColumnQueue:
		return "queue"
	case ColumnTimestamp:
		return "timestamp"
	case ColumnStatus:
		return "status"
	default:
		return fmt.Sprintf("column(%d)", int(c))
	}
}

const Width = 3

type Row struct {
	Position int
	Values   [Width]string
}

func (r Row) Get(c Column) string {
	if c < 0 || int(c) >= Width {
		return ""
	}
	return r.Values[c]
}

// NewRow builds an unpositioned row for AppendRows.
func NewRow(queue, timestamp, status string) Row {
	return Row{Values: [Width]string{queue, timestamp, status}}
}

type Ledger interface {
	ReadRows(ctx context.Context) ([]Row, error)
	AppendRows(ctx context.Context, rows []Row) error
	UpdateCell(ctx context.Context, position int, column Column, value string) error
}

// Sequencer is implemented by backends that can hand out ticket numbers
// atomically. NextNumber returns a number strictly greater than both the
// previous number issued for key and floor.
type Sequencer interface {
	NextNumber(ctx context.Context, key string, floor int) (int, error)
}

var (
	ErrUnavailable     = errors.New("ledger unavailable")
	ErrInvalidPosition = errors.New("invalid row position")
	ErrInvalidColumn   = errors.New("invalid column")
)

// Unavailable wraps a backend failure so callers can match ErrUnavailable
// while keeping the backend message.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

func ValidateCell(position int, column Column) error {
	if position < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, position)
	}
	if column < 0 || int(column) >= Width {
		return fmt.Errorf("%w: %d", ErrInvalidColumn, int(column))
	}
	return nil
}
