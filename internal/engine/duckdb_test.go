package engine

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/ddl"
)

func TestStagingName(t *testing.T) {
	a := StagingName("stage")
	b := StagingName("stage")
	assert.NotEqual(t, a, b)
	require.NoError(t, ddl.ValidateIdentifier(a))
	assert.Regexp(t, `^stage_[0-9a-f]{32}$`, a)
}

func TestAppendRows(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDuckDB(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	table := StagingName("t")
	ts := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	err = WithConn(ctx, db, func(conn *sql.Conn) error {
		stmt, err := ddl.CreateStagingTable(table, []ddl.ColumnDef{
			{Name: "id", Type: "BIGINT"},
			{Name: "nome", Type: "VARCHAR"},
			{Name: "preco", Type: "DOUBLE"},
			{Name: "ativo", Type: "BOOLEAN"},
			{Name: "data", Type: "TIMESTAMP"},
		})
		require.NoError(t, err)
		_, err = conn.ExecContext(ctx, stmt)
		require.NoError(t, err)
		defer DropQuietly(ctx, conn, table)

		require.NoError(t, AppendRows(ctx, conn, table, [][]any{
			{int64(1), "Notebook", 3500.0, true, ts},
			{int64(2), nil, nil, false, nil},
		}))

		var n int
		var total sql.NullFloat64
		require.NoError(t, conn.QueryRowContext(ctx, `SELECT count(*), sum(preco) FROM `+ddl.QuoteIdentifier(table)).Scan(&n, &total))
		assert.Equal(t, 2, n)
		assert.InDelta(t, 3500.0, total.Float64, 1e-9)
		return nil
	})
	require.NoError(t, err)
}

func TestAppendRows_RejectsBadTableName(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDuckDB(ctx, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	err = WithConn(ctx, db, func(conn *sql.Conn) error {
		return AppendRows(ctx, conn, "bad name", nil)
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid table name")
}
