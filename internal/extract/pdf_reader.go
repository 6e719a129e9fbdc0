package extract

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Compile-time checks.
var (
	_ domain.TextExtractor     = (*LedongthucBackend)(nil)
	_ domain.TableExtractor    = (*LedongthucBackend)(nil)
	_ domain.MetadataExtractor = (*LedongthucBackend)(nil)
	_ pageExtractor            = (*LedongthucBackend)(nil)
)

// Horizontal distances, in text-space units, that separate two words and two
// cells on the same row.
const (
	wordGap = 1.5
	cellGap = 12.0
)

// LedongthucBackend is the primary PDF backend: page text, row-based table
// detection and Info dictionary metadata.
type LedongthucBackend struct{}

func openPDF(path string) (*os.File, *pdf.Reader, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the directory walk
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		_ = f.Close()
		return nil, nil, fmt.Errorf("open pdf: %w", err)
	}
	return f, r, nil
}

// ExtractPages returns the text of every non-empty page.
func (LedongthucBackend) ExtractPages(ctx context.Context, path string) (pages []domain.PageText, err error) {
	f, r, err := openPDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text := pageText(r.Page(i))
		if text == "" {
			continue
		}
		pages = append(pages, domain.PageText{Number: i, Text: text})
	}
	return pages, nil
}

// pageText never panics; unreadable pages yield "".
func pageText(p pdf.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	if p.V.IsNull() {
		return ""
	}
	s, err := p.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

// ExtractText implements domain.TextExtractor.
func (b LedongthucBackend) ExtractText(ctx context.Context, path string) (string, error) {
	pages, err := b.ExtractPages(ctx, path)
	if err != nil {
		return "", err
	}
	return joinPages(pages), nil
}

// ExtractTables implements domain.TableExtractor.
func (LedongthucBackend) ExtractTables(ctx context.Context, path string) (tables []domain.TableGrid, err error) {
	f, r, err := openPDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			continue
		}
		lines := make([][]string, 0, len(rows))
		for _, row := range rows {
			spans := make([]textSpan, 0, len(row.Content))
			for _, t := range row.Content {
				spans = append(spans, textSpan{X: t.X, W: t.W, S: t.S})
			}
			lines = append(lines, splitCells(spans, cellGap))
		}
		for n, grid := range detectGrids(lines) {
			tables = append(tables, domain.TableGrid{Page: i, Index: n + 1, Rows: grid})
		}
	}
	return tables, nil
}

// ExtractMetadata implements domain.MetadataExtractor.
func (LedongthucBackend) ExtractMetadata(_ context.Context, path string) (meta domain.Metadata, err error) {
	f, r, err := openPDF(path)
	if err != nil {
		return domain.Metadata{}, err
	}
	defer f.Close() //nolint:errcheck
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	meta.Pages = r.NumPage()
	info := r.Trailer().Key("Info")
	if info.IsNull() {
		return meta, nil
	}
	meta.Author = info.Key("Author").Text()
	meta.Title = info.Key("Title").Text()
	meta.Subject = info.Key("Subject").Text()
	meta.Creator = info.Key("Creator").Text()
	meta.Producer = info.Key("Producer").Text()
	meta.Created = info.Key("CreationDate").Text()
	meta.Modified = info.Key("ModDate").Text()
	return meta, nil
}

// textSpan is one positioned glyph run on a row.
type textSpan struct {
	X, W float64
	S    string
}

// splitCells orders spans left to right and starts a new cell whenever the
// gap to the previous span exceeds gap. Blank cells are dropped.
func splitCells(spans []textSpan, gap float64) []string {
	if len(spans) == 0 {
		return nil
	}
	sorted := append([]textSpan(nil), spans...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })

	var (
		cells []string
		cur   strings.Builder
		end   = sorted[0].X
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			cells = append(cells, s)
		}
		cur.Reset()
	}
	for _, s := range sorted {
		switch d := s.X - end; {
		case d > gap:
			flush()
		case d > wordGap && cur.Len() > 0 && !strings.HasSuffix(cur.String(), " "):
			cur.WriteByte(' ')
		}
		cur.WriteString(s.S)
		if e := s.X + s.W; e > end {
			end = e
		}
	}
	flush()
	return cells
}

// detectGrids groups consecutive rows that share a cell count of at least
// two. A run of two or more such rows is a table.
func detectGrids(lines [][]string) [][][]string {
	var (
		grids [][][]string
		run   [][]string
	)
	closeRun := func() {
		if len(run) >= 2 {
			grids = append(grids, run)
		}
		run = nil
	}
	for _, cells := range lines {
		if len(cells) < 2 {
			closeRun()
			continue
		}
		if len(run) > 0 && len(run[0]) != len(cells) {
			closeRun()
		}
		run = append(run, cells)
	}
	closeRun()
	return grids
}

// joinPages renders pages with a header line per page.
func joinPages(pages []domain.PageText) string {
	var b strings.Builder
	for _, p := range pages {
		fmt.Fprintf(&b, "--- Página %d ---\n%s\n", p.Number, p.Text)
	}
	return b.String()
}
