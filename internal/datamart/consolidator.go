package datamart

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/ddl"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/engine"
)

const bytesPerMB = 1024 * 1024

// catalogColumns is the fixed layout of the catalog file. The reporting
// front end reads these names.
var catalogColumns = []ddl.ColumnDef{
	{Name: "dataset", Type: "VARCHAR"},
	{Name: "linhas", Type: "BIGINT"},
	{Name: "colunas", Type: "INTEGER"},
	{Name: "colunas_nomes", Type: "VARCHAR[]"},
	{Name: "tipos_dados", Type: "MAP(VARCHAR, VARCHAR)"},
	{Name: "memoria_mb", Type: "DOUBLE"},
	{Name: "tamanho_mb", Type: "DOUBLE"},
	{Name: "data_criacao", Type: "TIMESTAMP"},
}

// Consolidator regenerates the datamart catalog from the files on disk.
type Consolidator struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewConsolidator creates a Consolidator.
func NewConsolidator(db *sql.DB, logger *slog.Logger) *Consolidator {
	return &Consolidator{db: db, logger: logger}
}

// Consolidate describes every dataset file in dir and writes the catalog
// next to them. It must run after all writes to dir have finished.
func (c *Consolidator) Consolidate(ctx context.Context, dir string) ([]domain.CatalogEntry, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, domain.ErrPath(dir, err, "cannot create datamart directory")
	}
	files, err := ListDatasetFiles(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.CatalogEntry, 0, len(files))
	err = engine.WithConn(ctx, c.db, func(conn *sql.Conn) error {
		for _, path := range files {
			entry, err := describe(ctx, conn, path)
			if err != nil {
				return err
			}
			entries = append(entries, *entry)
		}
		return c.writeCatalog(ctx, conn, filepath.Join(dir, CatalogFile), entries)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("datamart consolidated", "dir", dir, "datasets", len(entries))
	return entries, nil
}

// ListDatasetFiles returns the sorted dataset Parquet files in dir.
func ListDatasetFiles(dir string) ([]string, error) {
	dirents, err := os.ReadDir(dir)
	if err != nil {
		return nil, domain.ErrPath(dir, err, "cannot list datamart directory")
	}
	var files []string
	for _, d := range dirents {
		if d.Type().IsRegular() && IsDatasetFile(d.Name()) {
			files = append(files, filepath.Join(dir, d.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func describe(ctx context.Context, conn *sql.Conn, path string) (*domain.CatalogEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	name := filepath.Base(path)
	entry := &domain.CatalogEntry{
		Dataset:     name[:len(name)-len(parquetExt)],
		ColumnTypes: map[string]string{},
		SizeMB:      float64(info.Size()) / bytesPerMB,
		CreatedAt:   info.ModTime().UTC().Truncate(time.Microsecond),
	}

	countStmt, err := ddl.ParquetRowCount(path)
	if err != nil {
		return nil, err
	}
	if err := conn.QueryRowContext(ctx, countStmt).Scan(&entry.Rows); err != nil {
		return nil, fmt.Errorf("count rows of %s: %w", path, err)
	}

	descStmt, err := ddl.DescribeParquet(path)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, descStmt)
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", path, err)
	}
	defer rows.Close() //nolint:errcheck
	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", path, err)
	}
	for rows.Next() {
		// DESCRIBE returns column_name, column_type, then nullability and key info.
		var colName, colType string
		dest := make([]any, len(cols))
		for i := range dest {
			dest[i] = new(any)
		}
		dest[0], dest[1] = &colName, &colType
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("describe %s: %w", path, err)
		}
		entry.ColumnNames = append(entry.ColumnNames, colName)
		entry.ColumnTypes[colName] = colType
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("describe %s: %w", path, err)
	}
	entry.Columns = len(entry.ColumnNames)

	footStmt, err := ddl.ParquetFootprint(path)
	if err != nil {
		return nil, err
	}
	var footprint int64
	if err := conn.QueryRowContext(ctx, footStmt).Scan(&footprint); err != nil {
		return nil, fmt.Errorf("read metadata of %s: %w", path, err)
	}
	entry.MemoryMB = float64(footprint) / bytesPerMB
	return entry, nil
}

func (c *Consolidator) writeCatalog(ctx context.Context, conn *sql.Conn, target string, entries []domain.CatalogEntry) error {
	staging := engine.StagingName("catalog")
	create, err := ddl.CreateStagingTable(staging, catalogColumns)
	if err != nil {
		return err
	}
	if _, err := conn.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create catalog staging table: %w", err)
	}
	defer engine.DropQuietly(ctx, conn, staging)

	for _, e := range entries {
		types := make([][2]string, len(e.ColumnNames))
		for i, n := range e.ColumnNames {
			types[i] = [2]string{n, e.ColumnTypes[n]}
		}
		insert, err := ddl.InsertValues(staging, []string{
			ddl.QuoteLiteral(e.Dataset),
			strconv.FormatInt(e.Rows, 10),
			strconv.Itoa(e.Columns),
			ddl.ListLiteral(e.ColumnNames),
			ddl.MapLiteral(types),
			strconv.FormatFloat(e.MemoryMB, 'g', -1, 64),
			strconv.FormatFloat(e.SizeMB, 'g', -1, 64),
			ddl.TimestampLiteral(e.CreatedAt),
		})
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, insert); err != nil {
			return fmt.Errorf("insert catalog entry %s: %w", e.Dataset, err)
		}
	}

	exprs := make([]string, len(catalogColumns))
	for i, col := range catalogColumns {
		exprs[i] = ddl.QuoteIdentifier(col.Name)
	}
	tmp := target + ".tmp"
	copyStmt, err := ddl.CopyToParquet(staging, exprs, tmp)
	if err != nil {
		return err
	}
	_ = os.Remove(tmp)
	if _, err := conn.ExecContext(ctx, copyStmt); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write catalog: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", target, err)
	}
	return nil
}

// ReadCatalog reads the catalog file in dir back into entries ordered by
// dataset name.
func (c *Consolidator) ReadCatalog(ctx context.Context, dir string) ([]domain.CatalogEntry, error) {
	path := filepath.Join(dir, CatalogFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNotFound("catalog %s does not exist", path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	stmt, err := ddl.SelectCatalog(path)
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []domain.CatalogEntry
	for rows.Next() {
		var (
			e            domain.CatalogEntry
			names, types string
		)
		if err := rows.Scan(&e.Dataset, &e.Rows, &e.Columns, &names, &types, &e.MemoryMB, &e.SizeMB, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan catalog: %w", err)
		}
		if err := json.Unmarshal([]byte(names), &e.ColumnNames); err != nil {
			return nil, fmt.Errorf("decode colunas_nomes of %s: %w", e.Dataset, err)
		}
		if err := json.Unmarshal([]byte(types), &e.ColumnTypes); err != nil {
			return nil, fmt.Errorf("decode tipos_dados of %s: %w", e.Dataset, err)
		}
		e.CreatedAt = e.CreatedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
