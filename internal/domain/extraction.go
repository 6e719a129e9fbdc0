package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Category is the handler family a file extension maps to.
type Category string

// Supported categories.
const (
	CategoryPDF         Category = "pdf"
	CategoryWord        Category = "word"
	CategoryTabular     Category = "tabular"
	CategoryUnsupported Category = "unsupported"
)

// Method records which extraction strategy produced a result.
type Method string

// Extraction strategies.
const (
	MethodPrimary  Method = "primary"
	MethodFallback Method = "fallback"
)

// ResultKind tags the shape of an ExtractionResult.
type ResultKind string

// Result shapes.
const (
	ResultDocument ResultKind = "document"
	ResultTabular  ResultKind = "tabular"
	ResultWorkbook ResultKind = "workbook"
)

// Native column type names reported by the tabular engines.
const (
	TypeBoolean   = "BOOLEAN"
	TypeBigInt    = "BIGINT"
	TypeDouble    = "DOUBLE"
	TypeVarchar   = "VARCHAR"
	TypeTimestamp = "TIMESTAMP"
)

// ExtractionResult is the output of one extractor for one source file.
// Optional sections are populated according to Kind.
type ExtractionResult struct {
	Path       string          `json:"arquivo"`
	Kind       ResultKind      `json:"tipo"`
	Category   Category        `json:"categoria"`
	Format     string          `json:"formato"`
	Method     Method          `json:"metodo"`
	Text       string          `json:"texto,omitempty"`
	Pages      []PageText      `json:"paginas,omitempty"`
	Tables     []TableGrid     `json:"tabelas,omitempty"`
	Paragraphs []Paragraph     `json:"paragrafos,omitempty"`
	Metadata   Metadata        `json:"metadados"`
	Tabular    *TabularContent `json:"dados,omitempty"`
	Sheets     []SheetContent  `json:"planilhas,omitempty"`
	Warnings   []string        `json:"avisos,omitempty"`
}

// PageText is the text of one PDF page.
type PageText struct {
	Number int    `json:"pagina"`
	Text   string `json:"texto"`
}

// TableGrid is a table found inside a document, as rows of cell strings.
// Page is zero for formats without pages.
type TableGrid struct {
	Page  int        `json:"pagina,omitempty"`
	Index int        `json:"tabela_num"`
	Rows  [][]string `json:"dados"`
}

// Paragraph is one Word paragraph with its resolved style name.
type Paragraph struct {
	Number int    `json:"numero"`
	Text   string `json:"texto"`
	Style  string `json:"estilo,omitempty"`
}

// Metadata holds document-level facts. Fields a format does not provide stay zero.
type Metadata struct {
	Author     string   `json:"autor,omitempty"`
	Title      string   `json:"titulo,omitempty"`
	Subject    string   `json:"assunto,omitempty"`
	Creator    string   `json:"criador,omitempty"`
	Producer   string   `json:"produtor,omitempty"`
	Created    string   `json:"criado,omitempty"`
	Modified   string   `json:"modificado,omitempty"`
	Pages      int      `json:"num_paginas,omitempty"`
	Paragraphs int      `json:"num_paragrafos,omitempty"`
	Tables     int      `json:"num_tabelas,omitempty"`
	Sheets     int      `json:"num_planilhas,omitempty"`
	SheetNames []string `json:"nomes_planilhas,omitempty"`
	Rows       int      `json:"linhas,omitempty"`
	Columns    int      `json:"colunas,omitempty"`
	Encoding   string   `json:"encoding,omitempty"`
	FileSize   int64    `json:"tamanho_bytes,omitempty"`
}

// ColumnStats is the numeric summary of one column.
type ColumnStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	Std   float64 `json:"std"`
	Min   float64 `json:"min"`
	Q25   float64 `json:"25%"`
	Q50   float64 `json:"50%"`
	Q75   float64 `json:"75%"`
	Max   float64 `json:"max"`
}

// TabularContent is a typed grid read from a CSV file or a workbook sheet.
// Cells hold int64, float64, bool, string, time.Time or nil.
type TabularContent struct {
	Columns    []string               `json:"colunas"`
	Types      []string               `json:"tipos"`
	Rows       [][]any                `json:"registros"`
	NullCounts map[string]int         `json:"valores_nulos,omitempty"`
	Stats      map[string]ColumnStats `json:"estatisticas,omitempty"`
	Encoding   string                 `json:"encoding,omitempty"`
	Engine     string                 `json:"engine,omitempty"`
}

// SheetContent is one workbook sheet.
type SheetContent struct {
	Name string         `json:"planilha"`
	Data TabularContent `json:"dados"`
}

// IsEmpty reports whether the result carries no usable content.
func (r *ExtractionResult) IsEmpty() bool {
	if strings.TrimSpace(r.Text) != "" || len(r.Tables) > 0 || len(r.Sheets) > 0 {
		return false
	}
	if r.Tabular != nil && (len(r.Tabular.Columns) > 0 || len(r.Tabular.Rows) > 0) {
		return false
	}
	return true
}

// NumRecords returns the number of logical records in the result.
func (r *ExtractionResult) NumRecords() int {
	switch r.Kind {
	case ResultTabular:
		if r.Tabular == nil {
			return 0
		}
		return len(r.Tabular.Rows)
	case ResultWorkbook:
		n := 0
		for _, s := range r.Sheets {
			n += len(s.Data.Rows)
		}
		return n
	default:
		return 1
	}
}

// CleanCell replaces values that cannot be represented in JSON or Parquet
// with nil.
func CleanCell(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	if f, ok := v.(float32); ok && (math.IsNaN(float64(f)) || math.IsInf(float64(f), 0)) {
		return nil
	}
	return v
}

// UnmarshalJSON decodes rows and restores cell types from Types, so numbers
// round-trip as int64 or float64 instead of the generic float64.
func (t *TabularContent) UnmarshalJSON(data []byte) error {
	type plain TabularContent
	var raw plain
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	for i, row := range raw.Rows {
		for j, cell := range row {
			typ := ""
			if j < len(raw.Types) {
				typ = raw.Types[j]
			}
			v, err := coerceCell(cell, typ)
			if err != nil {
				return fmt.Errorf("row %d column %d: %w", i, j, err)
			}
			row[j] = v
		}
	}
	*t = TabularContent(raw)
	return nil
}

func coerceCell(v any, typ string) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case json.Number:
		switch typ {
		case TypeDouble:
			return x.Float64()
		case TypeVarchar:
			return x.String(), nil
		default:
			if n, err := x.Int64(); err == nil {
				return n, nil
			}
			return x.Float64()
		}
	case string:
		if typ == TypeTimestamp {
			ts, err := time.Parse(time.RFC3339Nano, x)
			if err != nil {
				return nil, err
			}
			return ts, nil
		}
		return x, nil
	default:
		return x, nil
	}
}
