package pipeline

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

const reportTimeLayout = "2006-01-02 15:04:05"

// statusPreview is how many file names Status prints per category.
const statusPreview = 3

var categoryOrder = []domain.Category{
	domain.CategoryPDF,
	domain.CategoryWord,
	domain.CategoryTabular,
	domain.CategoryUnsupported,
}

// WriteBatchReport renders the plain-text report of one extraction batch.
func WriteBatchReport(w io.Writer, r *domain.BatchReport) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw)
	fmt.Fprintln(bw, "=== RELATÓRIO DE PROCESSAMENTO ===")
	fmt.Fprintf(bw, "Data: %s\n\n", r.FinishedAt.Format(reportTimeLayout))
	fmt.Fprintf(bw, "Arquivos processados com sucesso: %d\n", len(r.Processed))
	fmt.Fprintf(bw, "Arquivos com erro: %d\n", len(r.Failed))
	fmt.Fprintf(bw, "Arquivos não suportados: %d\n\n", len(r.Unsupported))

	fmt.Fprintln(bw, "PROCESSADOS:")
	writeNames(bw, r.SourceDir, r.Processed)
	if len(r.Failed) > 0 {
		fmt.Fprintln(bw, "\nERROS:")
		writeNames(bw, r.SourceDir, r.Failed)
	}
	if len(r.Unsupported) > 0 {
		fmt.Fprintln(bw, "\nNÃO SUPORTADOS:")
		writeNames(bw, r.SourceDir, r.Unsupported)
	}
	fmt.Fprintf(bw, "\nExtratores disponíveis: %s\n", strings.Join(r.Extractors, ", "))
	return bw.Flush()
}

func writeNames(w io.Writer, root string, paths []string) {
	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", displayName(root, p))
	}
}

// displayName is p relative to root, so files in subdirectories stay
// distinguishable. Paths outside root fall back to the base name.
func displayName(root, p string) string {
	if root != "" {
		rel, err := filepath.Rel(root, p)
		if err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return rel
		}
	}
	return filepath.Base(p)
}

// WriteStatus renders the directories, extractors and raw files found.
func WriteStatus(w io.Writer, st *Status) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "=== STATUS DO SISTEMA ===")
	fmt.Fprintf(bw, "Pasta origem: %s\n", st.RawDir)
	fmt.Fprintf(bw, "Pasta destino: %s\n", st.ProcessedDir)
	fmt.Fprintf(bw, "Pasta datamart: %s\n\n", st.DatamartDir)

	fmt.Fprintf(bw, "Extratores disponíveis: %s\n\n", strings.Join(st.Extractors, ", "))

	fmt.Fprintln(bw, "Arquivos encontrados:")
	for _, c := range categoryOrder {
		files := st.Files[c]
		if len(files) == 0 && c == domain.CategoryUnsupported {
			continue
		}
		fmt.Fprintf(bw, "  %s: %d arquivo(s)\n", strings.ToUpper(string(c)), len(files))
		for _, f := range files[:min(len(files), statusPreview)] {
			fmt.Fprintf(bw, "    - %s\n", displayName(st.RawDir, f))
		}
		if len(files) > statusPreview {
			fmt.Fprintf(bw, "    ... e mais %d arquivo(s)\n", len(files)-statusPreview)
		}
	}

	if st.LatestRun != nil {
		run := st.LatestRun
		fmt.Fprintf(bw, "\nÚltima execução: %s (%s) em %s\n",
			run.ID, run.Status, run.StartedAt.Local().Format(reportTimeLayout))
	}
	return bw.Flush()
}

// WriteDatamartReport renders the catalog summary of the datamart.
func WriteDatamartReport(w io.Writer, r *DatamartReport) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, strings.Repeat("=", 60))
	fmt.Fprintln(bw, "RELATÓRIO DO DATAMART GERADO")
	fmt.Fprintln(bw, strings.Repeat("=", 60))

	if len(r.Entries) == 0 {
		fmt.Fprintln(bw, "Nenhum arquivo Parquet encontrado!")
		return bw.Flush()
	}

	fmt.Fprintf(bw, "\nLocalização: %s\n", r.Dir)
	fmt.Fprintf(bw, "Total de arquivos: %d\n", len(r.Entries))
	for _, e := range r.Entries {
		fmt.Fprintf(bw, "\n%s.parquet:\n", e.Dataset)
		fmt.Fprintf(bw, "   • Registros: %s\n", groupThousands(e.Rows))
		fmt.Fprintf(bw, "   • Colunas: %d\n", e.Columns)
		fmt.Fprintf(bw, "   • Tamanho: %.2f MB\n", e.SizeMB)
		fmt.Fprintf(bw, "   • Colunas: %s\n", previewColumns(e.ColumnNames, 5))
	}

	fmt.Fprintln(bw, "\nRESUMO TOTAL:")
	fmt.Fprintf(bw, "   • Total de registros: %s\n", groupThousands(r.TotalRows))
	fmt.Fprintf(bw, "   • Tamanho total: %.2f MB\n", r.TotalSizeMB)
	fmt.Fprintln(bw, "   • Compressão: Snappy")
	fmt.Fprintln(bw, "   • Formato: Parquet")
	return bw.Flush()
}

func previewColumns(names []string, n int) string {
	if len(names) <= n {
		return strings.Join(names, ", ")
	}
	return strings.Join(names[:n], ", ") + "..."
}

// groupThousands formats n with comma separators.
func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
