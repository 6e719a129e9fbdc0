package intermediate

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Writer writes intermediate files for extraction results into one directory.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, logger: logger}
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Write stores res in the requested format under the stem of its source
// path and returns the written paths. Existing files of the same name are
// replaced.
func (w *Writer) Write(res *domain.ExtractionResult, format Format) ([]string, error) {
	return w.WriteAs(res, Stem(res.Path), format)
}

// WriteAs is Write with an explicit file name stem, as assigned by Stems.
func (w *Writer) WriteAs(res *domain.ExtractionResult, stem string, format Format) ([]string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", w.dir, err)
	}

	var (
		paths []string
		err   error
	)
	switch format {
	case FormatStructured:
		paths, err = w.one(stem+SuffixStructured, func(out io.Writer) error {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(res)
		})
	case FormatText:
		if res.Kind == domain.ResultDocument {
			paths, err = w.one(stem+SuffixText, func(out io.Writer) error {
				_, err := io.WriteString(out, res.Text)
				return err
			})
		} else {
			paths, err = w.one(stem+SuffixSummary, func(out io.Writer) error {
				return writeSummary(out, res)
			})
		}
	case FormatTabular:
		paths, err = w.tabular(stem, res)
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return nil, err
	}
	w.logger.Debug("intermediate written", "source", res.Path, "format", format, "files", len(paths))
	return paths, nil
}

func (w *Writer) tabular(stem string, res *domain.ExtractionResult) ([]string, error) {
	var paths []string
	add := func(name string, header []string, rows [][]string) error {
		p, err := w.one(name, func(out io.Writer) error { return writeCSV(out, header, rows) })
		paths = append(paths, p...)
		return err
	}

	switch res.Kind {
	case domain.ResultDocument:
		if res.Category == domain.CategoryPDF {
			if err := add(stem+SuffixPDFText, []string{"pagina", "paragrafo", "texto"}, pdfLines(res)); err != nil {
				return nil, err
			}
			for _, t := range res.Tables {
				if err := add(fmt.Sprintf("%s_tabela_p%d_t%d.csv", stem, t.Page, t.Index), nil, t.Rows); err != nil {
					return nil, err
				}
			}
			return paths, nil
		}
		rows := make([][]string, 0, len(res.Paragraphs))
		for _, p := range res.Paragraphs {
			rows = append(rows, []string{strconv.Itoa(p.Number), p.Style, p.Text})
		}
		if err := add(stem+SuffixParagraphs, []string{"numero", "estilo", "texto"}, rows); err != nil {
			return nil, err
		}
		for _, t := range res.Tables {
			if err := add(fmt.Sprintf("%s_tabela_%d.csv", stem, t.Index), nil, t.Rows); err != nil {
				return nil, err
			}
		}
	case domain.ResultTabular:
		if res.Tabular != nil && len(res.Tabular.Rows) > 0 {
			if err := add(stem+SuffixCleanCSV, res.Tabular.Columns, stringRows(res.Tabular.Rows)); err != nil {
				return nil, err
			}
		}
	case domain.ResultWorkbook:
		for _, s := range res.Sheets {
			if len(s.Data.Rows) == 0 {
				continue
			}
			name := fmt.Sprintf("%s_%s.csv", stem, SafeName(s.Name))
			if err := add(name, s.Data.Columns, stringRows(s.Data.Rows)); err != nil {
				return nil, err
			}
		}
	}
	return paths, nil
}

// pdfLines numbers the non-blank lines of each page.
func pdfLines(res *domain.ExtractionResult) [][]string {
	pages := res.Pages
	if len(pages) == 0 && strings.TrimSpace(res.Text) != "" {
		pages = []domain.PageText{{Number: 1, Text: res.Text}}
	}
	var rows [][]string
	for _, p := range pages {
		n := 0
		for _, line := range strings.Split(p.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			n++
			rows = append(rows, []string{strconv.Itoa(p.Number), strconv.Itoa(n), line})
		}
	}
	return rows
}

func stringRows(rows [][]any) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		cells := make([]string, len(r))
		for j, v := range r {
			cells[j] = domain.CellString(v)
		}
		out[i] = cells
	}
	return out
}

func writeCSV(out io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(out)
	if header != nil {
		if err := cw.Write(header); err != nil {
			return err
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	return cw.Error()
}

func writeSummary(out io.Writer, res *domain.ExtractionResult) error {
	bw := bufio.NewWriter(out)
	fmt.Fprintf(bw, "=== Resumo do arquivo: %s ===\n\n", filepath.Base(res.Path))
	if res.Kind == domain.ResultWorkbook {
		fmt.Fprintf(bw, "Tipo: XLSX\n")
		fmt.Fprintf(bw, "Planilhas: %d\n\n", len(res.Sheets))
		for _, s := range res.Sheets {
			fmt.Fprintf(bw, "Planilha: %s\n", s.Name)
			fmt.Fprintf(bw, "  Linhas: %d\n", len(s.Data.Rows))
			fmt.Fprintf(bw, "  Colunas: %d\n", len(s.Data.Columns))
			fmt.Fprintf(bw, "  Nomes:\n")
			for _, c := range s.Data.Columns {
				fmt.Fprintf(bw, "    - %s\n", c)
			}
			fmt.Fprintln(bw)
		}
		return bw.Flush()
	}

	var cols []string
	if res.Tabular != nil {
		cols = res.Tabular.Columns
	}
	encoding := res.Metadata.Encoding
	if encoding == "" {
		encoding = "N/A"
	}
	fmt.Fprintf(bw, "Tipo: CSV\n")
	fmt.Fprintf(bw, "Linhas: %d\n", res.Metadata.Rows)
	fmt.Fprintf(bw, "Colunas: %d\n", res.Metadata.Columns)
	fmt.Fprintf(bw, "Encoding: %s\n\n", encoding)
	fmt.Fprintf(bw, "Colunas:\n")
	for _, c := range cols {
		fmt.Fprintf(bw, "  - %s\n", c)
	}
	return bw.Flush()
}

// one writes a single file through a temp file and rename.
func (w *Writer) one(name string, fill func(io.Writer) error) ([]string, error) {
	target := filepath.Join(w.dir, name)
	if err := WriteAtomic(target, fill); err != nil {
		return nil, err
	}
	return []string{target}, nil
}

// WriteAtomic writes target via a temp file in the same directory, renaming
// it into place only after fill succeeds.
func WriteAtomic(target string, fill func(io.Writer) error) error {
	f, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", target, err)
	}
	tmp := f.Name()
	defer os.Remove(tmp) //nolint:errcheck

	if err := f.Chmod(0o644); err != nil {
		_ = f.Close()
		return fmt.Errorf("chmod %s: %w", tmp, err)
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", target, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename %s: %w", target, err)
	}
	return nil
}
