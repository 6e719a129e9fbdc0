package extract

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Compile-time check.
var _ domain.CSVReader = (*StdCSVReader)(nil)

// errInvalidText marks input that is not valid text after decoding.
var errInvalidText = errors.New("invalid text after decoding")

// StdCSVReader is the minimal line-oriented fallback. Every value is text;
// it reports neither null counts nor statistics.
type StdCSVReader struct{}

// ReadCSV reads path under the named encoding. The delimiter is ';' when the
// header line has more semicolons than commas, else ','.
func (StdCSVReader) ReadCSV(ctx context.Context, path, encoding string) (*domain.TabularContent, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the directory walk
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	dec, err := NewDecodingReader(f, encoding)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(dec)
	head, _ := br.Peek(4096)

	r := csv.NewReader(br)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1
	r.Comma = sniffDelimiter(head)

	content := &domain.TabularContent{Engine: "csv", Encoding: encoding}
	for n := 0; ; n++ {
		if n%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		for _, field := range rec {
			if !utf8.ValidString(field) {
				return nil, fmt.Errorf("line %d: %w", n+1, errInvalidText)
			}
		}
		if content.Columns == nil {
			content.Columns = domain.UniqueColumnNames(rec)
			continue
		}
		row := make([]any, len(content.Columns))
		for i := range row {
			if i < len(rec) {
				row[i] = rec[i]
			} else {
				row[i] = ""
			}
		}
		content.Rows = append(content.Rows, row)
	}
	if content.Columns == nil {
		return nil, fmt.Errorf("read csv: no header row")
	}
	content.Types = make([]string, len(content.Columns))
	for i := range content.Types {
		content.Types[i] = domain.TypeVarchar
	}
	return content, nil
}

func sniffDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}
