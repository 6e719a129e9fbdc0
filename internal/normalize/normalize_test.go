package normalize

import (
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/intermediate"
)

var fixedNow = time.Date(2025, 3, 10, 14, 0, 0, 123456789, time.UTC)

func newNormalizer() *Normalizer {
	return New(slog.New(slog.DiscardHandler), func() time.Time { return fixedNow })
}

func record(kv ...any) *domain.Record {
	r := domain.NewRecord()
	for i := 0; i < len(kv); i += 2 {
		r.Set(kv[i].(string), kv[i+1])
	}
	return r
}

func columnNames(ds *domain.Dataset) []string {
	names := make([]string, len(ds.Columns))
	for i, c := range ds.Columns {
		names[i] = c.Name
	}
	return names
}

func TestNormalize_UnionFillsNulls(t *testing.T) {
	in := Input{Dataset: "vendas_dados", Source: "/raw/vendas.json", Records: []*domain.Record{
		record("Produto", "A", "Qtd", int64(2)),
		record("Produto", "B", "Preco", 3.5),
	}}
	ds, err := newNormalizer().Normalize("vendas_dados", in)
	require.NoError(t, err)

	assert.Equal(t, []string{"Produto", "Qtd", "Preco", domain.ColumnSource, domain.ColumnProcessedAt}, columnNames(ds))
	require.Len(t, ds.Rows, 2)
	stamp := fixedNow.Truncate(time.Microsecond)
	assert.Equal(t, []any{"A", int64(2), nil, "vendas_dados", stamp}, ds.Rows[0])
	assert.Equal(t, []any{"B", nil, 3.5, "vendas_dados", stamp}, ds.Rows[1])
	assert.Equal(t, domain.KindInteger, ds.Columns[1].Kind)
	assert.Equal(t, domain.KindFloat, ds.Columns[2].Kind)
	assert.Equal(t, domain.KindTimestamp, ds.Columns[4].Kind)
	assert.Equal(t, []string{"/raw/vendas.json"}, ds.Sources)
	assert.Empty(t, ds.Warnings)
}

func TestNormalize_FlattensNestedMapping(t *testing.T) {
	nested := record("app", record("nome", "sonai", "limites", record("max", int64(5))), "tags", []any{"a", int64(1)})
	ds, err := newNormalizer().Normalize("config", Input{Dataset: "config", Records: []*domain.Record{nested}})
	require.NoError(t, err)

	assert.Equal(t, []string{"app.nome", "app.limites.max", "tags", domain.ColumnSource, domain.ColumnProcessedAt}, columnNames(ds))
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "sonai", ds.Rows[0][0])
	assert.Equal(t, int64(5), ds.Rows[0][1])
	assert.Equal(t, `["a",1]`, ds.Rows[0][2])
}

func TestNormalize_SchemaConflictWidens(t *testing.T) {
	a := Input{Dataset: "d", Source: "/raw/a.csv", Records: []*domain.Record{record("v", int64(1), "w", int64(7))}}
	b := Input{Dataset: "d", Source: "/raw/b.csv", Records: []*domain.Record{record("v", 2.5, "w", "sete")}}
	ds, err := newNormalizer().Normalize("d", a, b)
	require.NoError(t, err)

	assert.Equal(t, domain.KindFloat, ds.Columns[0].Kind)
	assert.Equal(t, domain.KindText, ds.Columns[1].Kind)
	assert.Equal(t, []any{1.0, "7"}, ds.Rows[0][:2])
	assert.Equal(t, []any{2.5, "sete"}, ds.Rows[1][:2])
	require.Len(t, ds.Warnings, 2)
	assert.True(t, strings.HasPrefix(ds.Warnings[0], string(domain.KindSchemaConflict)))
	assert.Contains(t, ds.Warnings[1], `"w"`)
	assert.Equal(t, []string{"/raw/a.csv", "/raw/b.csv"}, ds.Sources)
}

func TestNormalize_ProvenanceOverridesSourceColumns(t *testing.T) {
	in := Input{Dataset: "x", Records: []*domain.Record{record(domain.ColumnSource, "antigo", "v", true)}}
	ds, err := newNormalizer().Normalize("x", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"v", domain.ColumnSource, domain.ColumnProcessedAt}, columnNames(ds))
	assert.Equal(t, "x", ds.Rows[0][1])
}

func TestNormalize_RejectsEmptyName(t *testing.T) {
	_, err := newNormalizer().Normalize(" ")
	assert.Error(t, err)
}

func TestPlan(t *testing.T) {
	tabular := &domain.ExtractionResult{
		Path: "/raw/vendas.csv",
		Kind: domain.ResultTabular,
		Tabular: &domain.TabularContent{
			Columns: []string{"a", "b"},
			Rows:    [][]any{{int64(1), "x"}, {int64(2)}},
		},
	}
	inputs, err := Plan(tabular)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "vendas_dados", inputs[0].Dataset)
	require.Len(t, inputs[0].Records, 2)
	v, ok := inputs[0].Records[1].Get("b")
	assert.True(t, ok)
	assert.Nil(t, v)

	book := &domain.ExtractionResult{
		Path: "/raw/plan.xlsx",
		Kind: domain.ResultWorkbook,
		Sheets: []domain.SheetContent{
			{Name: "Jan", Data: domain.TabularContent{Columns: []string{"v"}, Rows: [][]any{{1.0}}}},
			{Name: "Fev/Mar", Data: domain.TabularContent{Columns: []string{"v"}}},
		},
	}
	inputs, err = Plan(book)
	require.NoError(t, err)
	require.Len(t, inputs, 2)
	assert.Equal(t, "plan_Jan", inputs[0].Dataset)
	assert.Equal(t, "plan_Fev_Mar", inputs[1].Dataset)

	doc := &domain.ExtractionResult{
		Path:     "/raw/ata.pdf",
		Kind:     domain.ResultDocument,
		Format:   "pdf",
		Method:   domain.MethodFallback,
		Text:     "ola",
		Metadata: domain.Metadata{Author: "Ana", Pages: 2},
		Tables: []domain.TableGrid{
			{Page: 1, Index: 1, Rows: [][]string{{"Nome", "Nome"}, {"a", "b"}, {"c"}}},
			{Page: 2, Index: 1, Rows: [][]string{{"x"}}},
		},
	}
	inputs, err = Plan(doc)
	require.NoError(t, err)
	require.Len(t, inputs, 3)
	assert.Equal(t, "ata_dados", inputs[0].Dataset)
	assert.Equal(t, "ata_tabela_1", inputs[1].Dataset)
	assert.Equal(t, "ata_tabela_2", inputs[2].Dataset)
	assert.Equal(t, []string{"Nome", "Nome_2"}, inputs[1].Columns)
	assert.Len(t, inputs[1].Records, 2)
	assert.Empty(t, inputs[2].Records)

	ds, err := newNormalizer().Normalize("ata_dados", inputs[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"arquivo", "formato", "metodo", "texto", "metadados.autor", "metadados.num_paginas", domain.ColumnSource, domain.ColumnProcessedAt}, columnNames(ds))
	assert.Equal(t, []any{"ata.pdf", "pdf", "fallback", "ola", "Ana", int64(2)}, ds.Rows[0][:6])
}

func TestPlanAs_SameStemSourcesStaySeparate(t *testing.T) {
	csv := &domain.ExtractionResult{
		Path:    "/raw/foo.csv",
		Kind:    domain.ResultTabular,
		Tabular: &domain.TabularContent{Columns: []string{"v"}, Rows: [][]any{{int64(1)}}},
	}
	doc := &domain.ExtractionResult{Path: "/raw/foo.pdf", Kind: domain.ResultDocument, Format: "pdf", Text: "ola"}
	stems := intermediate.Stems([]string{csv.Path, doc.Path})

	var inputs []Input
	for _, r := range []*domain.ExtractionResult{csv, doc} {
		in, err := PlanAs(r, stems[r.Path])
		require.NoError(t, err)
		inputs = append(inputs, in...)
	}
	datasets, err := newNormalizer().NormalizeAll(inputs)
	require.NoError(t, err)
	require.Len(t, datasets, 2)
	assert.Equal(t, "foo_csv_dados", datasets[0].Name)
	assert.Equal(t, "foo_pdf_dados", datasets[1].Name)
	assert.Len(t, datasets[0].Rows, 1)
	assert.Len(t, datasets[1].Rows, 1)
}

func TestNormalizeAll_RowCountMatchesRecords(t *testing.T) {
	results := []*domain.ExtractionResult{
		{Path: "/raw/b.csv", Kind: domain.ResultTabular, Tabular: &domain.TabularContent{Columns: []string{"v"}, Rows: [][]any{{int64(1)}, {int64(2)}, {int64(3)}}}},
		{Path: "/raw/a.docx", Kind: domain.ResultDocument, Text: "t"},
		{Path: "/raw/c.xlsx", Kind: domain.ResultWorkbook, Sheets: []domain.SheetContent{
			{Name: "S1", Data: domain.TabularContent{Columns: []string{"v"}, Rows: [][]any{{1.0}, {2.0}}}},
		}},
	}
	var inputs []Input
	for _, r := range results {
		in, err := Plan(r)
		require.NoError(t, err)
		inputs = append(inputs, in...)
	}

	datasets, err := newNormalizer().NormalizeAll(inputs)
	require.NoError(t, err)
	require.Len(t, datasets, 3)
	assert.Equal(t, "a_dados", datasets[0].Name)
	assert.Equal(t, "b_dados", datasets[1].Name)
	assert.Equal(t, "c_S1", datasets[2].Name)
	for _, r := range results {
		total := 0
		for _, ds := range datasets {
			for _, s := range ds.Sources {
				if s == r.Path {
					total += len(ds.Rows)
				}
			}
		}
		assert.Equal(t, r.NumRecords(), total, r.Path)
	}
}

func TestPlanSource_Foreign(t *testing.T) {
	src := &intermediate.Source{Path: "/p/lista.json", Name: "lista", Records: []*domain.Record{record("a", int64(1))}}
	inputs, err := PlanSource(src)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "lista", inputs[0].Dataset)
}
