// Package ddl builds DuckDB statements for CSV ingestion, staging tables and Parquet I/O.
package ddl

import (
	"fmt"
	"strings"
	"time"
)

// ColumnDef describes a column for CREATE TABLE.
type ColumnDef struct {
	Name string
	Type string
}

// CSVTypeCandidates are the only types the CSV sniffer may assign. Dates stay
// VARCHAR so temporal conversion is decided by the optimizer alone.
var CSVTypeCandidates = []string{"BOOLEAN", "BIGINT", "DOUBLE", "VARCHAR"}

// ReadCSV returns a read_csv table function call for a UTF-8 file with a header row.
func ReadCSV(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("source path is required")
	}
	candidates := make([]string, len(CSVTypeCandidates))
	for i, c := range CSVTypeCandidates {
		candidates[i] = QuoteLiteral(c)
	}
	return fmt.Sprintf("read_csv(%s, header = true, sample_size = -1, auto_type_candidates = [%s])",
		QuoteLiteral(path), strings.Join(candidates, ", ")), nil
}

// CreateTableAs returns CREATE OR REPLACE TABLE "<name>" AS SELECT * FROM <source>.
func CreateTableAs(name, source string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if source == "" {
		return "", fmt.Errorf("source is required")
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s", QuoteIdentifier(name), source), nil
}

// CreateStagingTable returns CREATE OR REPLACE TABLE "<name>" ("<col>" TYPE, ...).
// Column names are quoted, not validated, since they come from source headers.
func CreateStagingTable(name string, columns []ColumnDef) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}

	colDefs := make([]string, 0, len(columns))
	seen := make(map[string]bool, len(columns))
	for _, c := range columns {
		if c.Name == "" {
			return "", fmt.Errorf("column name is required")
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return "", fmt.Errorf("duplicate column name %q", c.Name)
		}
		seen[key] = true
		if err := ValidateColumnType(c.Type); err != nil {
			return "", fmt.Errorf("invalid type for column %q: %w", c.Name, err)
		}
		colDefs = append(colDefs, fmt.Sprintf("%s %s", QuoteIdentifier(c.Name), c.Type))
	}
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", QuoteIdentifier(name), strings.Join(colDefs, ", ")), nil
}

// DropTable returns DROP TABLE IF EXISTS "<name>".
func DropTable(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s", QuoteIdentifier(name)), nil
}

// SelectAll returns SELECT * FROM "<name>".
func SelectAll(name string) (string, error) {
	if err := ValidateIdentifier(name); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	return fmt.Sprintf("SELECT * FROM %s", QuoteIdentifier(name)), nil
}

// NumericSummary returns a query producing count, mean, sample standard
// deviation, min, quartiles and max of one numeric column.
func NumericSummary(table, column string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if column == "" {
		return "", fmt.Errorf("column name is required")
	}
	c := "CAST(" + QuoteIdentifier(column) + " AS DOUBLE)"
	return fmt.Sprintf(
		"SELECT count(%[1]s), avg(%[1]s), stddev_samp(%[1]s), min(%[1]s), "+
			"quantile_cont(%[1]s, 0.25), quantile_cont(%[1]s, 0.5), quantile_cont(%[1]s, 0.75), max(%[1]s) FROM %[2]s",
		c, QuoteIdentifier(table)), nil
}

// CastExpr returns CAST("<column>" AS <type>) AS "<column>". ENUM targets
// take their labels inline.
func CastExpr(column, targetType string, enumLabels []string) (string, error) {
	if column == "" {
		return "", fmt.Errorf("column name is required")
	}
	q := QuoteIdentifier(column)
	if strings.EqualFold(targetType, "ENUM") {
		if len(enumLabels) == 0 {
			return "", fmt.Errorf("enum column %q has no labels", column)
		}
		labels := make([]string, len(enumLabels))
		for i, l := range enumLabels {
			labels[i] = QuoteLiteral(l)
		}
		return fmt.Sprintf("CAST(%s AS ENUM(%s)) AS %s", q, strings.Join(labels, ", "), q), nil
	}
	if err := ValidateColumnType(targetType); err != nil {
		return "", fmt.Errorf("invalid type for column %q: %w", column, err)
	}
	return fmt.Sprintf("CAST(%s AS %s) AS %s", q, targetType, q), nil
}

// CopyToParquet returns COPY (SELECT <exprs> FROM "<table>") TO '<path>'
// (FORMAT PARQUET, COMPRESSION SNAPPY).
func CopyToParquet(table string, exprs []string, path string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if len(exprs) == 0 {
		return "", fmt.Errorf("at least one column is required")
	}
	if path == "" {
		return "", fmt.Errorf("target path is required")
	}
	return fmt.Sprintf("COPY (SELECT %s FROM %s) TO %s (FORMAT PARQUET, COMPRESSION SNAPPY)",
		strings.Join(exprs, ", "), QuoteIdentifier(table), QuoteLiteral(path)), nil
}

// DescribeParquet generates a DESCRIBE statement to discover column metadata
// from a Parquet file.
func DescribeParquet(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("source path is required")
	}
	return fmt.Sprintf("DESCRIBE SELECT * FROM read_parquet([%s])", QuoteLiteral(path)), nil
}

// ParquetRowCount returns SELECT count(*) over a Parquet file.
func ParquetRowCount(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("source path is required")
	}
	return fmt.Sprintf("SELECT count(*) FROM read_parquet([%s])", QuoteLiteral(path)), nil
}

// ParquetFootprint returns the summed uncompressed column-chunk size of a
// Parquet file, the closest on-disk proxy for its in-memory footprint.
func ParquetFootprint(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("source path is required")
	}
	return fmt.Sprintf("SELECT CAST(COALESCE(SUM(total_uncompressed_size), 0) AS BIGINT) FROM parquet_metadata(%s)", QuoteLiteral(path)), nil
}

// SelectParquet returns SELECT * FROM read_parquet('<path>').
func SelectParquet(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("source path is required")
	}
	return fmt.Sprintf("SELECT * FROM read_parquet([%s])", QuoteLiteral(path)), nil
}

// InsertValues returns INSERT INTO "<table>" VALUES (<values>). Values must
// already be SQL literals.
func InsertValues(table string, values []string) (string, error) {
	if err := ValidateIdentifier(table); err != nil {
		return "", fmt.Errorf("invalid table name: %w", err)
	}
	if len(values) == 0 {
		return "", fmt.Errorf("at least one value is required")
	}
	return fmt.Sprintf("INSERT INTO %s VALUES (%s)", QuoteIdentifier(table), strings.Join(values, ", ")), nil
}

// ListLiteral returns a VARCHAR[] literal.
func ListLiteral(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = QuoteLiteral(v)
	}
	return "CAST([" + strings.Join(quoted, ", ") + "] AS VARCHAR[])"
}

// MapLiteral returns a MAP(VARCHAR, VARCHAR) literal with entries in the given order.
func MapLiteral(entries [][2]string) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = QuoteLiteral(e[0]) + ": " + QuoteLiteral(e[1])
	}
	return "CAST(MAP {" + strings.Join(parts, ", ") + "} AS MAP(VARCHAR, VARCHAR))"
}

// TimestampLiteral returns a TIMESTAMP literal in UTC with microseconds.
func TimestampLiteral(t time.Time) string {
	return "TIMESTAMP " + QuoteLiteral(t.UTC().Format("2006-01-02 15:04:05.000000"))
}

// SelectCatalog reads a catalog file with its list and map columns rendered
// as JSON text, ordered by dataset.
func SelectCatalog(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("source path is required")
	}
	return fmt.Sprintf("SELECT dataset, linhas, colunas, CAST(to_json(colunas_nomes) AS VARCHAR), "+
		"CAST(to_json(tipos_dados) AS VARCHAR), memoria_mb, tamanho_mb, data_criacao "+
		"FROM read_parquet([%s]) ORDER BY dataset", QuoteLiteral(path)), nil
}
