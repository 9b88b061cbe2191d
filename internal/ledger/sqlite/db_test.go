package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"qms/ticket-queue/internal/ledger"
)

// NewTestDB opens an in-memory ledger that is closed with the test.
func NewTestDB(t *testing.T) *Store {
	t.Helper()
	st, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestStore_AppendAndRead(t *testing.T) {
	st := NewTestDB(t)
	ctx := context.Background()

	rows, err := st.ReadRows(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)

	err = st.AppendRows(ctx, []ledger.Row{
		ledger.NewRow("A001", "2026-10-17T09:00:00+09:00", ""),
		ledger.NewRow("A002", "2026-10-17T09:01:00+09:00", ""),
	})
	require.NoError(t, err)

	rows, err = st.ReadRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, 1, rows[0].Position)
	require.Equal(t, "A002", rows[1].Get(ledger.ColumnQueue))
}

func TestStore_UpdateCell(t *testing.T) {
	st := NewTestDB(t)
	ctx := context.Background()

	require.NoError(t, st.AppendRows(ctx, []ledger.Row{
		ledger.NewRow("A001", "t1", ""),
		ledger.NewRow("A002", "t2", ""),
	}))
	require.NoError(t, st.UpdateCell(ctx, 2, ledger.ColumnStatus, "absent"))

	rows, err := st.ReadRows(ctx)
	require.NoError(t, err)
	require.Equal(t, "", rows[0].Get(ledger.ColumnStatus))
	require.Equal(t, "absent", rows[1].Get(ledger.ColumnStatus))
}

func TestStore_UpdateCellMissingRow(t *testing.T) {
	st := NewTestDB(t)
	err := st.UpdateCell(context.Background(), 5, ledger.ColumnStatus, "attend")
	require.ErrorIs(t, err, ledger.ErrInvalidPosition)
}

func TestStore_NextNumber(t *testing.T) {
	st := NewTestDB(t)
	ctx := context.Background()

	n, err := st.NextNumber(ctx, "2026-10-17", 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = st.NextNumber(ctx, "2026-10-17", 0)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = st.NextNumber(ctx, "2026-10-17", 9)
	require.NoError(t, err)
	require.Equal(t, 10, n)

	n, err = st.NextNumber(ctx, "2026-10-18", 0)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}
