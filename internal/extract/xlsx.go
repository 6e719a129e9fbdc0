package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Compile-time check.
var _ domain.WorkbookReader = (*ExcelizeWorkbookReader)(nil)

// ExcelizeWorkbookReader reads .xlsx workbooks sheet by sheet.
type ExcelizeWorkbookReader struct{}

// ReadWorkbook parses every sheet independently. A sheet that cannot be read
// is skipped and reported as a warning; an unreadable workbook is an error.
func (ExcelizeWorkbookReader) ReadWorkbook(ctx context.Context, path string) ([]domain.SheetContent, []string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close() //nolint:errcheck

	var (
		sheets   []domain.SheetContent
		warnings []string
	)
	for _, name := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		content, err := readSheet(f, name)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("planilha %q ignorada: %v", name, err))
			continue
		}
		sheets = append(sheets, domain.SheetContent{Name: name, Data: *content})
	}
	return sheets, warnings, nil
}

func readSheet(f *excelize.File, sheet string) (*domain.TabularContent, error) {
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	content := &domain.TabularContent{
		Engine:     "excelize",
		NullCounts: map[string]int{},
		Stats:      map[string]domain.ColumnStats{},
	}
	if len(raw) == 0 {
		return content, nil
	}

	content.Columns = domain.UniqueColumnNames(raw[0])
	body := raw[1:]
	width := len(content.Columns)
	content.Types = make([]string, width)
	content.Rows = make([][]any, len(body))
	for r := range body {
		content.Rows[r] = make([]any, width)
	}

	for c := 0; c < width; c++ {
		cells := make([]string, len(body))
		for r, row := range body {
			if c < len(row) {
				cells[r] = strings.TrimSpace(row[c])
			}
		}
		typ := inferCellType(cells)
		if (typ == domain.TypeBigInt || typ == domain.TypeDouble) && isDateColumn(f, sheet, c, body) {
			typ = domain.TypeTimestamp
		}
		content.Types[c] = typ

		nulls := 0
		for r, s := range cells {
			v := convertCell(s, typ)
			if v == nil {
				nulls++
			}
			content.Rows[r][c] = v
		}
		content.NullCounts[content.Columns[c]] = nulls

		if typ == domain.TypeBigInt || typ == domain.TypeDouble {
			if vals := numericValues(content.Rows, c); len(vals) > 0 {
				content.Stats[content.Columns[c]] = summarize(vals)
			}
		}
	}
	return content, nil
}

// inferCellType picks BIGINT when every non-empty cell is an integer, DOUBLE
// when every one is numeric, else VARCHAR. An all-empty column is VARCHAR.
func inferCellType(cells []string) string {
	seen, allInt, allNum := false, true, true
	for _, s := range cells {
		if s == "" {
			continue
		}
		seen = true
		if _, err := strconv.ParseInt(s, 10, 64); err != nil {
			allInt = false
			if _, err := strconv.ParseFloat(s, 64); err != nil {
				allNum = false
				break
			}
		}
	}
	switch {
	case !seen || !allNum:
		return domain.TypeVarchar
	case allInt:
		return domain.TypeBigInt
	default:
		return domain.TypeDouble
	}
}

// isDateColumn reports whether the first non-empty data cell of column col
// carries a date number format. Workbooks store dates as serial numbers.
func isDateColumn(f *excelize.File, sheet string, col int, body [][]string) bool {
	for r, row := range body {
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, r+2)
		if err != nil {
			return false
		}
		idx, err := f.GetCellStyle(sheet, cell)
		if err != nil {
			return false
		}
		style, err := f.GetStyle(idx)
		if err != nil || style == nil {
			return false
		}
		return isDateFormat(style.NumFmt, style.CustomNumFmt)
	}
	return false
}

// isDateFormat recognises the built-in date/time formats 14-22 and custom
// formats that mention a day, month or year token.
func isDateFormat(numFmt int, custom *string) bool {
	if numFmt >= 14 && numFmt <= 22 {
		return true
	}
	if custom == nil {
		return false
	}
	// Quoted literals and bracketed sections never carry date tokens.
	var b strings.Builder
	quoted, bracket := false, false
	for _, r := range strings.ToLower(*custom) {
		switch {
		case r == '"':
			quoted = !quoted
		case r == '[' && !quoted:
			bracket = true
		case r == ']' && !quoted:
			bracket = false
		case !quoted && !bracket:
			b.WriteRune(r)
		}
	}
	return strings.ContainsAny(b.String(), "ydm")
}

// convertCell turns a raw cell into the Go value for typ; empty is nil.
func convertCell(s, typ string) any {
	if s == "" {
		return nil
	}
	switch typ {
	case domain.TypeBigInt:
		n, _ := strconv.ParseInt(s, 10, 64)
		return n
	case domain.TypeDouble:
		f, _ := strconv.ParseFloat(s, 64)
		return domain.CleanCell(f)
	case domain.TypeTimestamp:
		f, _ := strconv.ParseFloat(s, 64)
		t, err := excelize.ExcelDateToTime(f, false)
		if err != nil {
			return nil
		}
		return t
	default:
		return s
	}
}
