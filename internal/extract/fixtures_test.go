package extract

import (
	"archive/zip"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

// writeDocx zips parts into a .docx archive.
func writeDocx(t *testing.T, dir, name string, parts map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for n, body := range parts {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return writeFile(t, dir, name, buf.Bytes())
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func documentXML(body string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`
}

const stylesXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:styles ` + wordNS + `>
  <w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/></w:style>
  <w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/></w:style>
  <w:style w:type="character" w:styleId="Strong"><w:name w:val="Strong"/></w:style>
</w:styles>`

const coreXML = `<?xml version="1.0" encoding="UTF-8"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties"
  xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/">
  <dc:title>Relatorio</dc:title>
  <dc:subject>Projetos</dc:subject>
  <dc:creator>Equipe Dados</dc:creator>
  <dcterms:created>2025-09-01T10:00:00Z</dcterms:created>
  <dcterms:modified>2025-09-02T11:30:00Z</dcterms:modified>
</cp:coreProperties>`

// minimalPDF renders a PDF with one Helvetica text object per page and an
// Info dictionary. Offsets in the xref table are computed, so the file is
// well formed.
func minimalPDF(title, author string, pages ...string) []byte {
	n := len(pages)
	fontObj := 3
	firstPage := 4
	infoObj := firstPage + 2*n
	objs := make([]string, infoObj)

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", firstPage+2*i)
	}
	objs[0] = "<< /Type /Catalog /Pages 2 0 R >>"
	objs[1] = fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, n)
	objs[2] = "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"
	for i, text := range pages {
		pageNr := firstPage + 2*i
		content := fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		objs[pageNr-1] = fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
			"/Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, pageNr+1)
		objs[pageNr] = fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content)
	}
	objs[infoObj-1] = fmt.Sprintf("<< /Title (%s) /Author (%s) >>", title, author)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, body := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R /Info %d 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objs)+1, infoObj, xref)
	return buf.Bytes()
}
