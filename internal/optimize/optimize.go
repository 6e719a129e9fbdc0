// Package optimize picks the narrowest storage type for each dataset column.
//
// Rules run per column in priority order: date-like names are parsed as
// timestamps, floats become BIGINT when all values are integral and FLOAT
// otherwise, integers get the smallest width that holds their range, and
// low-cardinality text becomes ENUM.
package optimize

import (
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// EnumRatio is the distinct/rows ratio below which text becomes ENUM.
const EnumRatio = 0.5

// temporalTokens mark a column name as date-like.
var temporalTokens = []string{"data", "date"}

// timeLayouts are tried in order when parsing temporal text. Day-first
// slashed dates follow the pt-BR convention of the source documents.
var timeLayouts = []string{
	time.RFC3339Nano,
	domain.DateTimeLayout,
	"2006-01-02T15:04:05",
	domain.DateLayout,
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2006/01/02",
}

// Optimizer narrows dataset columns into a Table.
type Optimizer struct {
	logger *slog.Logger
}

// New creates an Optimizer.
func New(logger *slog.Logger) *Optimizer {
	return &Optimizer{logger: logger}
}

// Optimize returns a Table with one storage type per column. The dataset is
// not modified; converted cells are written to new rows.
func (o *Optimizer) Optimize(ds *domain.Dataset) *domain.Table {
	t := &domain.Table{
		Name:     ds.Name,
		Columns:  make([]domain.TableColumn, len(ds.Columns)),
		Rows:     make([][]any, len(ds.Rows)),
		Warnings: append([]string(nil), ds.Warnings...),
	}
	for i := range ds.Rows {
		t.Rows[i] = make([]any, len(ds.Columns))
	}
	values := make([]any, len(ds.Rows))
	for j, col := range ds.Columns {
		for i, row := range ds.Rows {
			values[i] = row[j]
		}
		tc, out := OptimizeColumn(col, values)
		t.Columns[j] = tc
		for i := range t.Rows {
			t.Rows[i][j] = out[i]
		}
		o.logger.Debug("column optimized", "dataset", ds.Name, "column", col.Name, "kind", col.Kind, "type", tc.Type)
	}
	return t
}

// Profile computes the facts the rules decide on.
func Profile(col domain.DatasetColumn, values []any) domain.ColumnProfile {
	p := domain.ColumnProfile{
		Name:        col.Name,
		Kind:        col.Kind,
		Temporal:    IsTemporalName(col.Name),
		Rows:        len(values),
		AllIntegral: true,
		Min:         math.Inf(1),
		Max:         math.Inf(-1),
	}
	distinct := map[any]struct{}{}
	numeric := false
	for _, v := range values {
		if v == nil {
			p.Nulls++
			continue
		}
		distinct[v] = struct{}{}
		var f float64
		switch x := v.(type) {
		case int64:
			f = float64(x)
		case float64:
			f = x
			if x != math.Trunc(x) || math.Abs(x) >= 1<<63 {
				p.AllIntegral = false
			}
		default:
			continue
		}
		numeric = true
		p.Min = math.Min(p.Min, f)
		p.Max = math.Max(p.Max, f)
	}
	p.Distinct = len(distinct)
	if !numeric {
		p.Min, p.Max = 0, 0
		p.AllIntegral = false
	}
	return p
}

// IsTemporalName reports whether a column name suggests a date.
func IsTemporalName(name string) bool {
	lower := strings.ToLower(name)
	for _, tok := range temporalTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// OptimizeColumn applies the rules to one column and returns its storage
// type with the converted cells.
func OptimizeColumn(col domain.DatasetColumn, values []any) (domain.TableColumn, []any) {
	p := Profile(col, values)
	tc := domain.TableColumn{Name: col.Name, Kind: col.Kind, Type: wideType(col.Kind)}
	out := append([]any(nil), values...)

	if p.Temporal {
		if ts, ok := parseTimestamps(values); ok && p.Rows > p.Nulls {
			tc.Kind, tc.Type = domain.KindTimestamp, domain.StorageTimestamp
			return tc, ts
		}
		return tc, out
	}

	switch col.Kind {
	case domain.KindFloat:
		if p.AllIntegral {
			for i, v := range out {
				if f, ok := v.(float64); ok {
					out[i] = int64(f)
				}
			}
			tc.Kind, tc.Type = domain.KindInteger, domain.StorageBigInt
			return tc, out
		}
		tc.Type = domain.StorageFloat
	case domain.KindInteger:
		if lo, hi, ok := intRange(values); ok {
			tc.Type = IntegerType(lo, hi)
		}
	case domain.KindText:
		if p.Rows > 0 && float64(p.Distinct)/float64(p.Rows) < EnumRatio {
			tc.Type = domain.StorageEnum
			tc.EnumLabels = enumLabels(values)
		}
	}
	return tc, out
}

// IntegerType returns the narrowest integer type for [lo, hi]. The unsigned
// type is tried first and only for the 8-bit bucket.
func IntegerType(lo, hi int64) domain.StorageType {
	switch {
	case lo >= 0 && hi < 256:
		return domain.StorageUTinyInt
	case lo >= math.MinInt8 && hi <= math.MaxInt8:
		return domain.StorageTinyInt
	case lo >= math.MinInt16 && hi <= math.MaxInt16:
		return domain.StorageSmallInt
	case lo >= math.MinInt32 && hi <= math.MaxInt32:
		return domain.StorageInteger
	default:
		return domain.StorageBigInt
	}
}

// intRange is exact where the float64 profile bounds are not.
func intRange(values []any) (lo, hi int64, ok bool) {
	for _, v := range values {
		n, isInt := v.(int64)
		if !isInt {
			continue
		}
		if !ok || n < lo {
			lo = n
		}
		if !ok || n > hi {
			hi = n
		}
		ok = true
	}
	return lo, hi, ok
}

func wideType(kind domain.ColumnKind) domain.StorageType {
	switch kind {
	case domain.KindBoolean:
		return domain.StorageBoolean
	case domain.KindInteger:
		return domain.StorageBigInt
	case domain.KindFloat:
		return domain.StorageDouble
	case domain.KindTimestamp:
		return domain.StorageTimestamp
	default:
		return domain.StorageVarchar
	}
}

// parseTimestamps converts every non-null value or reports failure. Numbers
// and booleans never parse.
func parseTimestamps(values []any) ([]any, bool) {
	out := make([]any, len(values))
	for i, v := range values {
		switch x := v.(type) {
		case nil:
		case time.Time:
			out[i] = x
		case string:
			ts, ok := parseTime(strings.TrimSpace(x))
			if !ok {
				return nil, false
			}
			out[i] = ts
		default:
			return nil, false
		}
	}
	return out, true
}

func parseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC().Truncate(time.Microsecond), true
		}
	}
	return time.Time{}, false
}

func enumLabels(values []any) []string {
	seen := map[string]bool{}
	var labels []string
	for _, v := range values {
		s, ok := v.(string)
		if !ok || seen[s] {
			continue
		}
		seen[s] = true
		labels = append(labels, s)
	}
	sort.Strings(labels)
	return labels
}
