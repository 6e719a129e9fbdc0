// Package engine opens the embedded DuckDB database used for CSV parsing and
// Parquet I/O, and provides the staging helpers shared by its callers.
package engine

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/duckdb/duckdb-go/v2"
	"github.com/google/uuid"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/ddl"
)

// OpenDuckDB opens a DuckDB database at path; an empty path is in-memory.
// All pooled connections share the same database instance.
func OpenDuckDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// StagingName returns a unique identifier-safe table name with the given prefix.
func StagingName(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// WithConn pins one pooled connection for the duration of fn so that tables
// and appenders created by fn stay on the same session.
func WithConn(ctx context.Context, db *sql.DB, fn func(conn *sql.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire duckdb connection: %w", err)
	}
	defer conn.Close() //nolint:errcheck
	return fn(conn)
}

// DropQuietly drops a staging table, ignoring failures.
func DropQuietly(ctx context.Context, conn *sql.Conn, table string) {
	stmt, err := ddl.DropTable(table)
	if err != nil {
		return
	}
	_, _ = conn.ExecContext(context.WithoutCancel(ctx), stmt)
}

// AppendRows bulk-loads rows into an existing table through the DuckDB
// appender. Each row must match the table's column order and types.
func AppendRows(ctx context.Context, conn *sql.Conn, table string, rows [][]any) error {
	if err := ddl.ValidateIdentifier(table); err != nil {
		return fmt.Errorf("invalid table name: %w", err)
	}
	return conn.Raw(func(raw any) error {
		driverConn, ok := raw.(driver.Conn)
		if !ok {
			return fmt.Errorf("unexpected raw conn type %T", raw)
		}

		appender, err := duckdb.NewAppenderFromConn(driverConn, "", table)
		if err != nil {
			return fmt.Errorf("create %s appender: %w", table, err)
		}

		vals := make([]driver.Value, 0, 16)
		for i, row := range rows {
			if i%1024 == 0 {
				if err := ctx.Err(); err != nil {
					_ = appender.Close()
					return err
				}
			}
			vals = vals[:0]
			for _, v := range row {
				vals = append(vals, v)
			}
			if err := appender.AppendRow(vals...); err != nil {
				_ = appender.Close()
				return fmt.Errorf("append row %d to %s: %w", i, table, err)
			}
		}
		if err := appender.Close(); err != nil {
			return fmt.Errorf("flush %s appender: %w", table, err)
		}
		return nil
	})
}
