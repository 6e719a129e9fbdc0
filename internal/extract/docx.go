package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Compile-time checks.
var (
	_ domain.TextExtractor     = (*DocxBackend)(nil)
	_ domain.TableExtractor    = (*DocxBackend)(nil)
	_ domain.MetadataExtractor = (*DocxBackend)(nil)
	_ domain.TextExtractor     = (*DocxStreamBackend)(nil)
)

// Package parts read from a .docx archive.
const (
	partDocument = "word/document.xml"
	partStyles   = "word/styles.xml"
	partCore     = "docProps/core.xml"
)

const defaultParagraphStyle = "Normal"

var errPartMissing = errors.New("part not found in archive")

// WordDocument is the structured content of one .docx body.
type WordDocument struct {
	// Paragraphs holds non-blank body paragraphs; Number counts every body
	// paragraph, blank ones included.
	Paragraphs []domain.Paragraph
	// ParagraphCount is the total number of body paragraphs.
	ParagraphCount int
	Tables         []domain.TableGrid
}

// Text joins the paragraph texts, one per line.
func (d *WordDocument) Text() string {
	var b strings.Builder
	for _, p := range d.Paragraphs {
		b.WriteString(p.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// DocxBackend is the primary Word backend. It walks word/document.xml
// keeping body paragraphs with their style names and top-level tables;
// text boxes are not part of the body and are skipped.
type DocxBackend struct{}

// ParseDocument reads paragraphs and tables from the archive at path.
func (DocxBackend) ParseDocument(ctx context.Context, path string) (*WordDocument, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close() //nolint:errcheck

	styles, err := readStyles(&zr.Reader)
	if err != nil && !errors.Is(err, errPartMissing) {
		return nil, err
	}
	rc, err := openPart(&zr.Reader, partDocument)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	return walkDocument(ctx, xml.NewDecoder(rc), styles)
}

// ExtractText implements domain.TextExtractor.
func (b DocxBackend) ExtractText(ctx context.Context, path string) (string, error) {
	doc, err := b.ParseDocument(ctx, path)
	if err != nil {
		return "", err
	}
	return doc.Text(), nil
}

// ExtractTables implements domain.TableExtractor.
func (b DocxBackend) ExtractTables(ctx context.Context, path string) ([]domain.TableGrid, error) {
	doc, err := b.ParseDocument(ctx, path)
	if err != nil {
		return nil, err
	}
	return doc.Tables, nil
}

// coreProperties maps docProps/core.xml. Element names match in any namespace.
type coreProperties struct {
	Title    string `xml:"title"`
	Subject  string `xml:"subject"`
	Creator  string `xml:"creator"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

// ExtractMetadata implements domain.MetadataExtractor. A missing core part
// yields empty metadata.
func (DocxBackend) ExtractMetadata(_ context.Context, path string) (domain.Metadata, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return domain.Metadata{}, fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close() //nolint:errcheck

	rc, err := openPart(&zr.Reader, partCore)
	if errors.Is(err, errPartMissing) {
		return domain.Metadata{}, nil
	}
	if err != nil {
		return domain.Metadata{}, err
	}
	defer rc.Close() //nolint:errcheck

	var props coreProperties
	if err := xml.NewDecoder(rc).Decode(&props); err != nil {
		return domain.Metadata{}, fmt.Errorf("decode %s: %w", partCore, err)
	}
	return domain.Metadata{
		Author:   strings.TrimSpace(props.Creator),
		Creator:  strings.TrimSpace(props.Creator),
		Title:    strings.TrimSpace(props.Title),
		Subject:  strings.TrimSpace(props.Subject),
		Created:  strings.TrimSpace(props.Created),
		Modified: strings.TrimSpace(props.Modified),
	}, nil
}

func openPart(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", name, err)
			}
			return rc, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", name, errPartMissing)
}

// styleSheet resolves paragraph style ids to display names.
type styleSheet struct {
	names        map[string]string
	defaultStyle string
}

func (s styleSheet) resolve(id string) string {
	if id == "" {
		if s.defaultStyle != "" {
			return s.defaultStyle
		}
		return defaultParagraphStyle
	}
	if n, ok := s.names[id]; ok {
		return n
	}
	return id
}

type stylesPart struct {
	Styles []struct {
		Type    string `xml:"type,attr"`
		ID      string `xml:"styleId,attr"`
		Default string `xml:"default,attr"`
		Name    struct {
			Val string `xml:"val,attr"`
		} `xml:"name"`
	} `xml:"style"`
}

func readStyles(zr *zip.Reader) (styleSheet, error) {
	sheet := styleSheet{names: map[string]string{}}
	rc, err := openPart(zr, partStyles)
	if err != nil {
		return sheet, err
	}
	defer rc.Close() //nolint:errcheck

	var part stylesPart
	if err := xml.NewDecoder(rc).Decode(&part); err != nil {
		return sheet, fmt.Errorf("decode %s: %w", partStyles, err)
	}
	for _, st := range part.Styles {
		if st.Type != "" && st.Type != "paragraph" {
			continue
		}
		name := st.Name.Val
		if name == "" {
			name = st.ID
		}
		sheet.names[st.ID] = name
		if st.Default == "1" || st.Default == "true" {
			sheet.defaultStyle = name
		}
	}
	return sheet, nil
}

// docWalker holds the token-walk state for walkDocument.
type docWalker struct {
	styles styleSheet
	doc    WordDocument

	tblDepth  int
	txbxDepth int
	inText    bool
	inProps   bool

	para  strings.Builder
	style string

	table    [][]string
	row      []string
	cellText []string
}

func walkDocument(ctx context.Context, dec *xml.Decoder, styles styleSheet) (*WordDocument, error) {
	w := &docWalker{styles: styles}
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", partDocument, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			w.start(t)
		case xml.EndElement:
			w.end(t)
		case xml.CharData:
			if w.inText && w.txbxDepth == 0 {
				w.para.Write(t)
			}
		}
	}
	return &w.doc, nil
}

func (w *docWalker) start(t xml.StartElement) {
	switch t.Name.Local {
	case "txbxContent":
		w.txbxDepth++
	case "tbl":
		w.tblDepth++
		if w.tblDepth == 1 {
			w.table = nil
		}
	case "tr":
		if w.tblDepth == 1 {
			w.row = nil
		}
	case "tc":
		if w.tblDepth == 1 {
			w.cellText = nil
		}
	case "p":
		if w.txbxDepth == 0 {
			w.para.Reset()
			w.style = ""
		}
	case "pPr":
		w.inProps = true
	case "pStyle":
		if w.txbxDepth == 0 {
			w.style = attr(t, "val")
		}
	case "t":
		w.inText = true
	case "tab":
		// Tab stops declared in paragraph properties are not content.
		if w.txbxDepth == 0 && !w.inProps {
			w.para.WriteByte('\t')
		}
	case "br", "cr":
		if w.txbxDepth == 0 {
			w.para.WriteByte('\n')
		}
	}
}

func (w *docWalker) end(t xml.EndElement) {
	switch t.Name.Local {
	case "txbxContent":
		w.txbxDepth--
	case "pPr":
		w.inProps = false
	case "t":
		w.inText = false
	case "p":
		if w.txbxDepth > 0 {
			return
		}
		text := w.para.String()
		switch w.tblDepth {
		case 0:
			w.doc.ParagraphCount++
			if s := strings.TrimSpace(text); s != "" {
				w.doc.Paragraphs = append(w.doc.Paragraphs, domain.Paragraph{
					Number: w.doc.ParagraphCount,
					Text:   s,
					Style:  w.styles.resolve(w.style),
				})
			}
		case 1:
			w.cellText = append(w.cellText, text)
		}
	case "tc":
		if w.tblDepth == 1 {
			w.row = append(w.row, strings.TrimSpace(strings.Join(w.cellText, "\n")))
		}
	case "tr":
		if w.tblDepth == 1 {
			w.table = append(w.table, w.row)
		}
	case "tbl":
		if w.tblDepth == 1 && len(w.table) > 0 {
			w.doc.Tables = append(w.doc.Tables, domain.TableGrid{
				Index: len(w.doc.Tables) + 1,
				Rows:  w.table,
			})
		}
		w.tblDepth--
	}
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// DocxStreamBackend is the Word fallback: every w:p anywhere in the
// document, its w:t runs concatenated, one paragraph per line.
type DocxStreamBackend struct{}

// ExtractText implements domain.TextExtractor.
func (DocxStreamBackend) ExtractText(ctx context.Context, path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close() //nolint:errcheck

	rc, err := openPart(&zr.Reader, partDocument)
	if err != nil {
		return "", err
	}
	defer rc.Close() //nolint:errcheck

	var (
		out    strings.Builder
		para   strings.Builder
		depth  int
		inText bool
	)
	dec := xml.NewDecoder(rc)
	for n := 0; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("decode %s: %w", partDocument, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				// Text-box paragraphs nest inside body paragraphs; each is
				// emitted on its own.
				if depth > 0 {
					flushParagraph(&out, &para)
				}
				depth++
			case "t":
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "p":
				flushParagraph(&out, &para)
				depth--
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText && depth > 0 {
				para.Write(t)
			}
		}
	}
	return out.String(), nil
}

func flushParagraph(out, para *strings.Builder) {
	if strings.TrimSpace(para.String()) != "" {
		out.WriteString(para.String())
		out.WriteByte('\n')
	}
	para.Reset()
}
