package pipeline

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

func TestWriteBatchReport(t *testing.T) {
	r := &domain.BatchReport{
		FinishedAt:  time.Date(2025, 3, 10, 14, 5, 9, 0, time.UTC),
		Processed:   []string{"/raw/a.pdf", "/raw/b.docx", "/raw/c.csv", "/raw/d.xlsx"},
		Failed:      []string{"/raw/quebrado.pdf"},
		Unsupported: []string{"/raw/foto.png"},
		Extractors:  []string{"pdf", "tabular", "word"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteBatchReport(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "=== RELATÓRIO DE PROCESSAMENTO ===")
	assert.Contains(t, out, "Data: 2025-03-10 14:05:09")
	assert.Contains(t, out, "Arquivos processados com sucesso: 4")
	assert.Contains(t, out, "Arquivos com erro: 1")
	assert.Contains(t, out, "Arquivos não suportados: 1")
	assert.Contains(t, out, "ERROS:\n  quebrado.pdf\n")
	assert.Contains(t, out, "NÃO SUPORTADOS:\n  foto.png\n")
	assert.Contains(t, out, "Extratores disponíveis: pdf, tabular, word")
	assert.NotContains(t, out, "/raw/")
}

func TestWriteBatchReport_NamesRelativeToSource(t *testing.T) {
	r := &domain.BatchReport{
		SourceDir:   "/data/raw",
		Processed:   []string{"/data/raw/norte/precos.csv", "/data/raw/sul/precos.csv"},
		Failed:      []string{"/data/raw/2024/ata.pdf"},
		Unsupported: []string{"/data/raw/leia-me.txt", "/outro/foto.png"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteBatchReport(&buf, r))
	out := buf.String()

	sep := string(filepath.Separator)
	assert.Contains(t, out, "PROCESSADOS:\n  norte"+sep+"precos.csv\n  sul"+sep+"precos.csv\n")
	assert.Contains(t, out, "ERROS:\n  2024"+sep+"ata.pdf\n")
	assert.Contains(t, out, "NÃO SUPORTADOS:\n  leia-me.txt\n  foto.png\n")
	assert.NotContains(t, out, "/data/raw")
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		root, path, want string
	}{
		{"/raw", "/raw/a.pdf", "a.pdf"},
		{"/raw", filepath.Join("/raw", "x", "a.pdf"), filepath.Join("x", "a.pdf")},
		{"/raw", "/other/a.pdf", "a.pdf"},
		{"/raw", "/raw/..b/a.pdf", filepath.Join("..b", "a.pdf")},
		{"", "/raw/x/a.pdf", "a.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, displayName(tt.root, tt.path))
		})
	}
}

func TestWriteBatchReport_OmitsEmptySections(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBatchReport(&buf, &domain.BatchReport{Processed: []string{"/raw/a.csv"}}))
	assert.NotContains(t, buf.String(), "ERROS:")
	assert.NotContains(t, buf.String(), "NÃO SUPORTADOS:")
}

func TestWriteStatus(t *testing.T) {
	st := &Status{
		RawDir:       "data/raw",
		ProcessedDir: "data/processed",
		DatamartDir:  "data/datamart",
		Extractors:   []string{"pdf", "tabular", "word"},
		Files: map[domain.Category][]string{
			domain.CategoryPDF:  {"r/1.pdf", "r/2.pdf", "r/3.pdf", "r/4.pdf", "r/5.pdf"},
			domain.CategoryWord: {"r/a.docx"},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteStatus(&buf, st))
	out := buf.String()

	assert.Contains(t, out, "Pasta origem: data/raw")
	assert.Contains(t, out, "PDF: 5 arquivo(s)")
	assert.Contains(t, out, "    - 3.pdf\n")
	assert.NotContains(t, out, "4.pdf")
	assert.Contains(t, out, "... e mais 2 arquivo(s)")
	assert.Contains(t, out, "TABULAR: 0 arquivo(s)")
	assert.NotContains(t, out, "UNSUPPORTED")
	assert.NotContains(t, out, "Última execução")
}

func TestWriteDatamartReport(t *testing.T) {
	r := &DatamartReport{
		Dir: "data/datamart",
		Entries: []domain.CatalogEntry{
			{Dataset: "vendas_dados", Rows: 1234567, Columns: 7, SizeMB: 1.5,
				ColumnNames: []string{"a", "b", "c", "d", "e", "f", "g"}},
			{Dataset: "clientes_dados", Rows: 2, Columns: 2, SizeMB: 0.25, ColumnNames: []string{"nome", "idade"}},
		},
		TotalRows:   1234569,
		TotalSizeMB: 1.75,
	}
	var buf bytes.Buffer
	require.NoError(t, WriteDatamartReport(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "vendas_dados.parquet:")
	assert.Contains(t, out, "Registros: 1,234,567")
	assert.Contains(t, out, "Colunas: a, b, c, d, e...")
	assert.Contains(t, out, "Colunas: nome, idade\n")
	assert.Contains(t, out, "Tamanho total: 1.75 MB")
	assert.Contains(t, out, "Compressão: Snappy")

	buf.Reset()
	require.NoError(t, WriteDatamartReport(&buf, &DatamartReport{}))
	assert.True(t, strings.Contains(buf.String(), "Nenhum arquivo Parquet encontrado!"))
}

func TestGroupThousands(t *testing.T) {
	for in, want := range map[int64]string{0: "0", 999: "999", 1000: "1,000", 1234567: "1,234,567", -45000: "-45,000"} {
		assert.Equal(t, want, groupThousands(in))
	}
}
