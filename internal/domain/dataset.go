package domain

import (
	"strconv"
	"strings"
	"time"
)

// ColumnKind is the logical value kind of a normalized column.
type ColumnKind string

// Column kinds, ordered loosely from narrowest to widest.
const (
	KindNull      ColumnKind = "null"
	KindBoolean   ColumnKind = "boolean"
	KindInteger   ColumnKind = "integer"
	KindFloat     ColumnKind = "float"
	KindTimestamp ColumnKind = "timestamp"
	KindText      ColumnKind = "text"
)

// Provenance columns appended to every dataset.
const (
	ColumnSource      = "arquivo_origem"
	ColumnProcessedAt = "data_processamento"
)

// DatasetColumn is a named column with its inferred kind.
type DatasetColumn struct {
	Name string
	Kind ColumnKind
}

// Dataset is a rectangular table with a uniform column set.
// Every row has exactly len(Columns) cells.
type Dataset struct {
	Name     string
	Columns  []DatasetColumn
	Rows     [][]any
	Sources  []string
	Warnings []string
}

// ColumnIndex returns the position of name, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// StorageType is the physical column type written to the datamart.
type StorageType string

// Storage types, named after their DuckDB/Parquet logical types.
const (
	StorageUTinyInt  StorageType = "UTINYINT"
	StorageTinyInt   StorageType = "TINYINT"
	StorageSmallInt  StorageType = "SMALLINT"
	StorageInteger   StorageType = "INTEGER"
	StorageBigInt    StorageType = "BIGINT"
	StorageFloat     StorageType = "FLOAT"
	StorageDouble    StorageType = "DOUBLE"
	StorageBoolean   StorageType = "BOOLEAN"
	StorageTimestamp StorageType = "TIMESTAMP"
	StorageVarchar   StorageType = "VARCHAR"
	StorageEnum      StorageType = "ENUM"
)

// ColumnProfile holds per-column facts the optimizer decides on.
type ColumnProfile struct {
	Name        string
	Kind        ColumnKind
	Temporal    bool
	Rows        int
	Nulls       int
	Distinct    int
	Min         float64
	Max         float64
	AllIntegral bool
}

// TableColumn is an optimized column. Kind is the kind of the cells held in
// Table.Rows after optimization; Type is the storage type to write.
type TableColumn struct {
	Name       string
	Kind       ColumnKind
	Type       StorageType
	EnumLabels []string
}

// Table is an optimized dataset ready to be written.
type Table struct {
	Name     string
	Columns  []TableColumn
	Rows     [][]any
	Warnings []string
}

// DatamartFile describes one written columnar file.
type DatamartFile struct {
	Dataset string    `json:"dataset"`
	Path    string    `json:"path"`
	Rows    int       `json:"rows"`
	Columns int       `json:"columns"`
	Bytes   int64     `json:"bytes"`
	Written time.Time `json:"written_at"`
}

// CatalogEntry describes one datamart file as read back from disk.
type CatalogEntry struct {
	Dataset     string            `json:"dataset"`
	Rows        int64             `json:"linhas"`
	Columns     int               `json:"colunas"`
	ColumnNames []string          `json:"colunas_nomes"`
	ColumnTypes map[string]string `json:"tipos_dados"`
	MemoryMB    float64           `json:"memoria_mb"`
	SizeMB      float64           `json:"tamanho_mb"`
	CreatedAt   time.Time         `json:"data_criacao"`
}

// UniqueColumnNames trims names, replaces blanks with coluna_<n> (1-based
// position) and suffixes case-insensitive duplicates with _2, _3, ...
func UniqueColumnNames(names []string) []string {
	out := make([]string, len(names))
	seen := make(map[string]int, len(names))
	for i, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			n = "coluna_" + strconv.Itoa(i+1)
		}
		base := n
		for k := 2; seen[strings.ToLower(n)] > 0; k++ {
			n = base + "_" + strconv.Itoa(k)
		}
		seen[strings.ToLower(n)]++
		out[i] = n
	}
	return out
}
