// Package datamart writes optimized tables as Snappy-compressed Parquet files
// through DuckDB and maintains the catalog describing them.
package datamart

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/ddl"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/engine"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/intermediate"
)

// CatalogFile is the catalog written by the Consolidator. It is never a dataset.
const CatalogFile = "metadados_datamart.parquet"

const parquetExt = ".parquet"

// Writer persists tables as <dir>/<name>.parquet, replacing whole files.
type Writer struct {
	db     *sql.DB
	dir    string
	locks  *keyedMutex
	logger *slog.Logger
}

// NewWriter creates a Writer for dir.
func NewWriter(db *sql.DB, dir string, logger *slog.Logger) *Writer {
	return &Writer{db: db, dir: dir, locks: newKeyedMutex(), logger: logger}
}

// Path returns the file a dataset name is written to.
func (w *Writer) Path(name string) string {
	return filepath.Join(w.dir, intermediate.SafeName(name)+parquetExt)
}

// Write stages t in DuckDB, copies it to a temp Parquet file with the
// optimized column types and renames it over the previous file. Writes to
// the same path are serialized.
func (w *Writer) Write(ctx context.Context, t *domain.Table) (*domain.DatamartFile, error) {
	target := w.Path(t.Name)
	if filepath.Base(target) == CatalogFile {
		return nil, domain.ErrValidation("dataset name %q is reserved for the catalog", t.Name)
	}
	if len(t.Columns) == 0 {
		return nil, domain.ErrValidation("dataset %q has no columns", t.Name)
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", w.dir, err)
	}

	unlock := w.locks.Lock(target)
	defer unlock()

	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	// DuckDB identifiers are case-insensitive.
	names = domain.UniqueColumnNames(names)

	staging := engine.StagingName("dm")
	defs := make([]ddl.ColumnDef, len(t.Columns))
	exprs := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		if names[i] != c.Name {
			w.logger.Warn("column renamed", "dataset", t.Name, "from", c.Name, "to", names[i])
		}
		defs[i] = ddl.ColumnDef{Name: names[i], Type: stagingType(c.Kind)}
		expr, err := ddl.CastExpr(names[i], string(c.Type), c.EnumLabels)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", t.Name, err)
		}
		exprs[i] = expr
	}
	create, err := ddl.CreateStagingTable(staging, defs)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", t.Name, err)
	}
	tmp := target + ".tmp"
	copyStmt, err := ddl.CopyToParquet(staging, exprs, tmp)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", t.Name, err)
	}

	err = engine.WithConn(ctx, w.db, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("create staging table: %w", err)
		}
		defer engine.DropQuietly(ctx, conn, staging)

		if err := engine.AppendRows(ctx, conn, staging, stagingRows(t)); err != nil {
			return err
		}
		_ = os.Remove(tmp)
		if _, err := conn.ExecContext(ctx, copyStmt); err != nil {
			return fmt.Errorf("copy to parquet: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("write dataset %s: %w", t.Name, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("replace %s: %w", target, err)
	}

	info, err := os.Stat(target)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", target, err)
	}
	w.logger.Info("datamart file written", "dataset", t.Name, "path", target, "rows", len(t.Rows), "bytes", info.Size())
	return &domain.DatamartFile{
		Dataset: t.Name,
		Path:    target,
		Rows:    len(t.Rows),
		Columns: len(t.Columns),
		Bytes:   info.Size(),
		Written: info.ModTime(),
	}, nil
}

// stagingType is the wide type cells of a kind are appended as; the COPY
// casts them to the optimized type.
func stagingType(kind domain.ColumnKind) string {
	switch kind {
	case domain.KindBoolean:
		return string(domain.StorageBoolean)
	case domain.KindInteger:
		return string(domain.StorageBigInt)
	case domain.KindFloat:
		return string(domain.StorageDouble)
	case domain.KindTimestamp:
		return string(domain.StorageTimestamp)
	default:
		return string(domain.StorageVarchar)
	}
}

// stagingRows converts cells to the driver types of their staging column.
func stagingRows(t *domain.Table) [][]any {
	rows := make([][]any, len(t.Rows))
	for i, r := range t.Rows {
		row := make([]any, len(t.Columns))
		for j, c := range t.Columns {
			if j < len(r) {
				row[j] = stagingValue(r[j], c.Kind)
			}
		}
		rows[i] = row
	}
	return rows
}

func stagingValue(v any, kind domain.ColumnKind) any {
	if v == nil {
		return nil
	}
	switch kind {
	case domain.KindInteger:
		switch x := v.(type) {
		case int64:
			return x
		case float64:
			return int64(x)
		}
	case domain.KindFloat:
		switch x := v.(type) {
		case float64:
			return x
		case int64:
			return float64(x)
		}
	case domain.KindBoolean:
		if b, ok := v.(bool); ok {
			return b
		}
	case domain.KindTimestamp:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC()
		}
	}
	if kind == domain.KindText || kind == domain.KindNull {
		return domain.CellString(v)
	}
	return nil
}

// IsDatasetFile reports whether name is a dataset Parquet file.
func IsDatasetFile(name string) bool {
	return strings.HasSuffix(name, parquetExt) && name != CatalogFile
}
