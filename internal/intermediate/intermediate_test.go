package intermediate

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

func newWriter(t *testing.T) *Writer {
	t.Helper()
	return NewWriter(t.TempDir(), slog.New(slog.DiscardHandler))
}

func read(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"text", FormatText},
		{"TXT", FormatText},
		{"structured", FormatStructured},
		{"json", FormatStructured},
		{"", FormatStructured},
		{"tabular", FormatTabular},
		{" csv ", FormatTabular},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
	_, err := ParseFormat("xml")
	assert.Error(t, err)
}

func TestStem(t *testing.T) {
	assert.Equal(t, "Relatorio_projetos", Stem("/data/raw/Relatorio_projetos.csv"))
	assert.Equal(t, "archive.tar", Stem("archive.tar.gz"))
	assert.Equal(t, "noext", Stem("noext"))
}

func TestStems(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  map[string]string
	}{
		{
			name:  "unique names keep their stem",
			paths: []string{"/raw/a.csv", "/raw/b.pdf"},
			want:  map[string]string{"/raw/a.csv": "a", "/raw/b.pdf": "b"},
		},
		{
			name:  "extension separates same stem",
			paths: []string{"/raw/foo.xlsx", "/raw/foo.csv", "/raw/bar.csv"},
			want:  map[string]string{"/raw/foo.csv": "foo_csv", "/raw/foo.xlsx": "foo_xlsx", "/raw/bar.csv": "bar"},
		},
		{
			name:  "same file name in subdirectories is numbered",
			paths: []string{"/raw/sul/precos.csv", "/raw/norte/precos.csv"},
			want:  map[string]string{"/raw/norte/precos.csv": "precos_csv", "/raw/sul/precos.csv": "precos_csv_2"},
		},
		{
			name:  "suffix never takes another source's stem",
			paths: []string{"/raw/foo.csv", "/raw/foo.pdf", "/raw/foo_csv.docx"},
			want:  map[string]string{"/raw/foo.csv": "foo_csv_2", "/raw/foo.pdf": "foo_pdf", "/raw/foo_csv.docx": "foo_csv"},
		},
		{
			name:  "repeated path counts once",
			paths: []string{"/raw/a.csv", "/raw/a.csv"},
			want:  map[string]string{"/raw/a.csv": "a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Stems(tt.paths))
		})
	}
}

func csvResult() *domain.ExtractionResult {
	return &domain.ExtractionResult{
		Path:     "/raw/vendas.csv",
		Kind:     domain.ResultTabular,
		Category: domain.CategoryTabular,
		Format:   "csv",
		Method:   domain.MethodPrimary,
		Metadata: domain.Metadata{Rows: 2, Columns: 3, Encoding: "cp1252"},
		Tabular: &domain.TabularContent{
			Columns: []string{"Produto", "Quantidade", "Data"},
			Types:   []string{domain.TypeVarchar, domain.TypeBigInt, domain.TypeTimestamp},
			Rows: [][]any{
				{"Café", int64(2), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
				{"Mouse", nil, time.Date(2024, 1, 16, 9, 30, 0, 0, time.UTC)},
			},
			Encoding: "cp1252",
			Engine:   "duckdb",
		},
	}
}

func TestWriter_StructuredRoundTrip(t *testing.T) {
	w := newWriter(t)
	paths, err := w.Write(csvResult(), FormatStructured)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(w.Dir(), "vendas_dados.json")}, paths)

	src, err := Load(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "vendas_dados", src.Name)
	require.NotNil(t, src.Result)
	assert.Nil(t, src.Records)
	assert.Equal(t, csvResult().Tabular.Rows, src.Result.Tabular.Rows)
	assert.Equal(t, "cp1252", src.Result.Metadata.Encoding)
}

func TestWriter_WriteAs(t *testing.T) {
	w := newWriter(t)
	paths, err := w.WriteAs(csvResult(), "vendas_csv", FormatStructured)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(w.Dir(), "vendas_csv_dados.json")}, paths)
	assert.NoFileExists(t, filepath.Join(w.Dir(), "vendas_dados.json"))
}

func TestWriter_Text(t *testing.T) {
	w := newWriter(t)
	doc := &domain.ExtractionResult{Path: "/raw/relatorio.pdf", Kind: domain.ResultDocument, Category: domain.CategoryPDF, Text: "--- Página 1 ---\nola\n"}
	paths, err := w.Write(doc, FormatText)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "relatorio_extraido.txt", filepath.Base(paths[0]))
	assert.Equal(t, doc.Text, read(t, paths[0]))

	paths, err = w.Write(csvResult(), FormatText)
	require.NoError(t, err)
	assert.Equal(t, "vendas_resumo.txt", filepath.Base(paths[0]))
	summary := read(t, paths[0])
	assert.Contains(t, summary, "=== Resumo do arquivo: vendas.csv ===")
	assert.Contains(t, summary, "Encoding: cp1252")
	assert.Contains(t, summary, "  - Quantidade\n")
}

func TestWriter_TabularPDF(t *testing.T) {
	w := newWriter(t)
	res := &domain.ExtractionResult{
		Path:     "/raw/r.pdf",
		Kind:     domain.ResultDocument,
		Category: domain.CategoryPDF,
		Pages:    []domain.PageText{{Number: 1, Text: "Titulo\n\nCorpo"}, {Number: 2, Text: "Fim"}},
		Tables:   []domain.TableGrid{{Page: 2, Index: 1, Rows: [][]string{{"a", "b"}, {"1", "2"}}}},
	}
	paths, err := w.Write(res, FormatTabular)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "pagina,paragrafo,texto\n1,1,Titulo\n1,2,Corpo\n2,1,Fim\n", read(t, paths[0]))
	assert.Equal(t, "r_tabela_p2_t1.csv", filepath.Base(paths[1]))
	assert.Equal(t, "a,b\n1,2\n", read(t, paths[1]))
}

func TestWriter_TabularWord(t *testing.T) {
	w := newWriter(t)
	res := &domain.ExtractionResult{
		Path:       "/raw/ata.docx",
		Kind:       domain.ResultDocument,
		Category:   domain.CategoryWord,
		Paragraphs: []domain.Paragraph{{Number: 1, Text: "Ata, reunião", Style: "heading 1"}},
		Tables:     []domain.TableGrid{{Index: 1, Rows: [][]string{{"x"}}}},
	}
	paths, err := w.Write(res, FormatTabular)
	require.NoError(t, err)
	require.Len(t, paths, 2)
	assert.Equal(t, "ata_paragrafos.csv", filepath.Base(paths[0]))
	assert.Equal(t, "numero,estilo,texto\n1,heading 1,\"Ata, reunião\"\n", read(t, paths[0]))
	assert.Equal(t, "ata_tabela_1.csv", filepath.Base(paths[1]))
}

func TestWriter_TabularData(t *testing.T) {
	w := newWriter(t)
	paths, err := w.Write(csvResult(), FormatTabular)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "vendas_limpo.csv", filepath.Base(paths[0]))
	assert.Equal(t, "Produto,Quantidade,Data\nCafé,2,2024-01-15\nMouse,,2024-01-16 09:30:00\n", read(t, paths[0]))

	book := &domain.ExtractionResult{
		Path: "/raw/plan.xlsx",
		Kind: domain.ResultWorkbook,
		Sheets: []domain.SheetContent{
			{Name: "Vendas", Data: domain.TabularContent{Columns: []string{"v"}, Rows: [][]any{{1.5}}}},
			{Name: "Vazia", Data: domain.TabularContent{Columns: []string{"v"}}},
		},
	}
	paths, err = w.Write(book, FormatTabular)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, "plan_Vendas.csv", filepath.Base(paths[0]))
	assert.Equal(t, "v\n1.5\n", read(t, paths[0]))
}

func TestLoad_ForeignDocuments(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	src, err := Load(write("vendas_dados.json", `{"dados": [{"Produto": "A", "Qtd": 2}, {"Produto": "B"}], "metadados": {"num_linhas": 2}}`))
	require.NoError(t, err)
	assert.Nil(t, src.Result)
	require.Len(t, src.Records, 2)
	assert.Equal(t, []string{"Produto", "Qtd"}, src.Records[0].Keys())

	src, err = Load(write("lista.json", `[{"a": 1}, {"b": 2.5}]`))
	require.NoError(t, err)
	require.Len(t, src.Records, 2)

	src, err = Load(write("config.json", `{"app": {"nome": "x", "versao": 2}}`))
	require.NoError(t, err)
	require.Len(t, src.Records, 1)

	_, err = Load(write("escalar.json", `42`))
	assert.Equal(t, domain.KindExtraction, domain.KindOf(err))

	_, err = Load(filepath.Join(dir, "nada.json"))
	assert.Equal(t, domain.KindPath, domain.KindOf(err))

	paths, err := ListStructured(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "config.json"),
		filepath.Join(dir, "escalar.json"),
		filepath.Join(dir, "lista.json"),
		filepath.Join(dir, "vendas_dados.json"),
	}, paths)
}
