package extract

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/ddl"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/engine"
)

// Compile-time check.
var _ domain.CSVReader = (*DuckDBCSVReader)(nil)

// DuckDBCSVReader parses CSV files with DuckDB's read_csv sniffer, which
// detects delimiter, quoting and column types.
type DuckDBCSVReader struct {
	db     *sql.DB
	tmpDir string
}

// NewDuckDBCSVReader creates a reader backed by db. Non-UTF-8 files are
// transcoded into tmpDir first; an empty tmpDir uses the OS default.
func NewDuckDBCSVReader(db *sql.DB, tmpDir string) *DuckDBCSVReader {
	return &DuckDBCSVReader{db: db, tmpDir: tmpDir}
}

// ReadCSV loads the file into a staging table, then reads back rows, native
// types, null counts and numeric summaries.
func (r *DuckDBCSVReader) ReadCSV(ctx context.Context, path, encoding string) (*domain.TabularContent, error) {
	src := path
	if encoding != "" && encoding != EncodingUTF8 {
		tmp, err := TranscodeToUTF8(path, encoding, r.tmpDir)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp) //nolint:errcheck
		src = tmp
	}

	readExpr, err := ddl.ReadCSV(src)
	if err != nil {
		return nil, err
	}
	table := engine.StagingName("csv")

	var content *domain.TabularContent
	err = engine.WithConn(ctx, r.db, func(conn *sql.Conn) error {
		create, err := ddl.CreateTableAs(table, readExpr)
		if err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, create); err != nil {
			return fmt.Errorf("read_csv: %w", err)
		}
		defer engine.DropQuietly(ctx, conn, table)

		sel, err := ddl.SelectAll(table)
		if err != nil {
			return err
		}
		rows, err := conn.QueryContext(ctx, sel)
		if err != nil {
			return fmt.Errorf("select staged csv: %w", err)
		}
		content, err = scanTabular(rows)
		if err != nil {
			return err
		}

		content.Stats = make(map[string]domain.ColumnStats)
		for i, col := range content.Columns {
			if t := content.Types[i]; t != domain.TypeBigInt && t != domain.TypeDouble {
				continue
			}
			stats, ok, err := numericSummary(ctx, conn, table, col)
			if err != nil {
				return err
			}
			if ok {
				content.Stats[col] = stats
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	content.Engine = "duckdb"
	content.Encoding = encoding
	return content, nil
}

func numericSummary(ctx context.Context, conn *sql.Conn, table, column string) (domain.ColumnStats, bool, error) {
	q, err := ddl.NumericSummary(table, column)
	if err != nil {
		return domain.ColumnStats{}, false, err
	}
	var (
		count                                int64
		mean, std, minV, q25, q50, q75, maxV sql.NullFloat64
	)
	if err := conn.QueryRowContext(ctx, q).Scan(&count, &mean, &std, &minV, &q25, &q50, &q75, &maxV); err != nil {
		return domain.ColumnStats{}, false, fmt.Errorf("summarize %q: %w", column, err)
	}
	if count == 0 {
		return domain.ColumnStats{}, false, nil
	}
	return domain.ColumnStats{
		Count: int(count),
		Mean:  mean.Float64,
		Std:   std.Float64,
		Min:   minV.Float64,
		Q25:   q25.Float64,
		Q50:   q50.Float64,
		Q75:   q75.Float64,
		Max:   maxV.Float64,
	}, true, nil
}

// scanTabular drains rows into a TabularContent, mapping driver types onto
// the small native type set and counting nulls per column.
func scanTabular(rows *sql.Rows) (*domain.TabularContent, error) {
	defer rows.Close() //nolint:errcheck

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("column types: %w", err)
	}
	content := &domain.TabularContent{
		Columns:    make([]string, len(colTypes)),
		Types:      make([]string, len(colTypes)),
		NullCounts: make(map[string]int, len(colTypes)),
	}
	for i, ct := range colTypes {
		content.Columns[i] = ct.Name()
		content.Types[i] = nativeType(ct.DatabaseTypeName())
		content.NullCounts[ct.Name()] = 0
	}

	dest := make([]any, len(colTypes))
	ptrs := make([]any, len(colTypes))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make([]any, len(dest))
		for i, v := range dest {
			row[i] = normalizeCell(v)
			if row[i] == nil {
				content.NullCounts[content.Columns[i]]++
			}
		}
		content.Rows = append(content.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return content, nil
}

// nativeTypes maps DuckDB type names onto the native type set. Names not
// listed, INTERVAL and nested types among them, read as VARCHAR.
var nativeTypes = map[string]string{
	"BOOLEAN":                  domain.TypeBoolean,
	"TINYINT":                  domain.TypeBigInt,
	"SMALLINT":                 domain.TypeBigInt,
	"INTEGER":                  domain.TypeBigInt,
	"BIGINT":                   domain.TypeBigInt,
	"HUGEINT":                  domain.TypeBigInt,
	"UTINYINT":                 domain.TypeBigInt,
	"USMALLINT":                domain.TypeBigInt,
	"UINTEGER":                 domain.TypeBigInt,
	"UBIGINT":                  domain.TypeBigInt,
	"UHUGEINT":                 domain.TypeBigInt,
	"FLOAT":                    domain.TypeDouble,
	"REAL":                     domain.TypeDouble,
	"DOUBLE":                   domain.TypeDouble,
	"DECIMAL":                  domain.TypeDouble,
	"DATE":                     domain.TypeTimestamp,
	"TIMESTAMP":                domain.TypeTimestamp,
	"TIMESTAMP_S":              domain.TypeTimestamp,
	"TIMESTAMP_MS":             domain.TypeTimestamp,
	"TIMESTAMP_NS":             domain.TypeTimestamp,
	"TIMESTAMPTZ":              domain.TypeTimestamp,
	"TIMESTAMP WITH TIME ZONE": domain.TypeTimestamp,
}

func nativeType(dbType string) string {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	// DECIMAL carries its precision, e.g. DECIMAL(18,3).
	if i := strings.IndexByte(t, '('); i > 0 && t[:i] == "DECIMAL" {
		t = "DECIMAL"
	}
	if nt, ok := nativeTypes[t]; ok {
		return nt
	}
	return domain.TypeVarchar
}

// normalizeCell narrows driver values to int64, float64, bool, string,
// time.Time or nil.
func normalizeCell(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64, float64, bool, string, time.Time:
		return domain.CleanCell(x)
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		if x > 1<<63-1 {
			return float64(x)
		}
		return int64(x)
	case float32:
		return domain.CleanCell(float64(x))
	case *big.Int:
		if x.IsInt64() {
			return x.Int64()
		}
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
