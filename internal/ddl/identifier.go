package ddl

import (
	"fmt"
	"regexp"
	"strings"
)

// tableNameRe covers the staging and catalog table names this package builds
// statements for. Column names are free text and are always quoted instead.
var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,127}$`)

// columnTypes is every type a staging table, cast or catalog column may use.
// ENUM is handled by CastExpr with its labels.
var columnTypes = map[string]struct{}{
	"UTINYINT":              {},
	"TINYINT":               {},
	"SMALLINT":              {},
	"INTEGER":               {},
	"BIGINT":                {},
	"FLOAT":                 {},
	"DOUBLE":                {},
	"BOOLEAN":               {},
	"TIMESTAMP":             {},
	"VARCHAR":               {},
	"VARCHAR[]":             {},
	"MAP(VARCHAR, VARCHAR)": {},
}

// ValidateIdentifier reports whether name can be used unquoted as a table
// name: ASCII letters, digits and underscores, not starting with a digit, at
// most 128 bytes.
func ValidateIdentifier(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("table name is required")
	case !tableNameRe.MatchString(name):
		return fmt.Errorf("table name %q must match [A-Za-z_][A-Za-z0-9_]* (max 128)", name)
	}
	return nil
}

// QuoteIdentifier double-quotes name, doubling embedded quotes.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral single-quotes value, doubling embedded quotes.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// ValidateColumnType accepts only the types in columnTypes, case-insensitively.
func ValidateColumnType(typeName string) error {
	if typeName == "" {
		return fmt.Errorf("column type is required")
	}
	if _, ok := columnTypes[strings.ToUpper(typeName)]; !ok {
		return fmt.Errorf("column type %q is not supported", typeName)
	}
	return nil
}
