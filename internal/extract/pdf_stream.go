package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Compile-time checks.
var (
	_ domain.TextExtractor = (*PdfcpuBackend)(nil)
	_ pageExtractor        = (*PdfcpuBackend)(nil)
)

// PdfcpuBackend is the PDF fallback. It validates the document with pdfcpu
// and scans each page's content stream for text-showing operators. Fonts and
// encodings are not interpreted, so only simple literal strings survive.
type PdfcpuBackend struct{}

// ExtractPages returns the text of every page that yields any.
func (PdfcpuBackend) ExtractPages(ctx context.Context, path string) (pages []domain.PageText, err error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the directory walk
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	pctx, err := api.ReadValidateAndOptimize(f, model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	for i := 1; i <= pctx.PageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r, err := pdfcpu.ExtractPageContent(pctx, i)
		if err != nil || r == nil {
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			continue
		}
		if text := streamText(data); text != "" {
			pages = append(pages, domain.PageText{Number: i, Text: text})
		}
	}
	return pages, nil
}

// ExtractText implements domain.TextExtractor.
func (b PdfcpuBackend) ExtractText(ctx context.Context, path string) (string, error) {
	pages, err := b.ExtractPages(ctx, path)
	if err != nil {
		return "", err
	}
	return joinPages(pages), nil
}

// streamText walks a content stream token by token. String operands are
// buffered and emitted when a show operator (Tj, TJ, ', ") consumes them;
// line-moving operators start a new line.
func streamText(data []byte) string {
	var (
		out     strings.Builder
		operand []string
	)
	newline := func() {
		if out.Len() > 0 && !strings.HasSuffix(out.String(), "\n") {
			out.WriteByte('\n')
		}
	}
	for i := 0; i < len(data); {
		c := data[i]
		switch {
		case c == '(':
			s, n := readLiteral(data[i:])
			operand = append(operand, s)
			i += n
		case c == '%':
			for i < len(data) && data[i] != '\n' && data[i] != '\r' {
				i++
			}
		case c == '<' && i+1 < len(data) && data[i+1] == '<':
			i += 2
		case c == '<':
			// Hex strings need the font's encoding to decode; skip them.
			for i < len(data) && data[i] != '>' {
				i++
			}
			i++
		case isOperatorByte(c):
			start := i
			for i < len(data) && isOperatorByte(data[i]) {
				i++
			}
			switch string(data[start:i]) {
			case "Tj", "TJ":
				out.WriteString(strings.Join(operand, ""))
			case "'", `"`:
				newline()
				out.WriteString(strings.Join(operand, ""))
			case "Td", "TD", "T*", "ET":
				newline()
			}
			operand = operand[:0]
		default:
			i++
		}
	}
	return tidyLines(out.String())
}

func isOperatorByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '*' || c == '\'' || c == '"'
}

// readLiteral decodes a parenthesised string starting at data[0] and returns
// it with the number of bytes consumed. Nested parentheses are balanced.
func readLiteral(data []byte) (string, int) {
	var b strings.Builder
	depth := 0
	i := 0
	for ; i < len(data); i++ {
		c := data[i]
		switch c {
		case '(':
			depth++
			if depth == 1 {
				continue
			}
		case ')':
			depth--
			if depth == 0 {
				return b.String(), i + 1
			}
		case '\\':
			if i+1 >= len(data) {
				continue
			}
			i++
			switch e := data[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\n':
			case '\r':
				if i+1 < len(data) && data[i+1] == '\n' {
					i++
				}
			default:
				if e >= '0' && e <= '7' {
					v := 0
					for k := 0; k < 3 && i < len(data) && data[i] >= '0' && data[i] <= '7'; k++ {
						v = v*8 + int(data[i]-'0')
						i++
					}
					i--
					b.WriteRune(rune(byte(v)))
				} else {
					b.WriteByte(e)
				}
			}
			continue
		}
		b.WriteRune(rune(c))
	}
	return b.String(), i
}

// tidyLines collapses runs of whitespace, drops unprintable runes and blank
// lines.
func tidyLines(s string) string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return ' '
			}
			if !unicode.IsPrint(r) {
				return -1
			}
			return r
		}, line)
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
