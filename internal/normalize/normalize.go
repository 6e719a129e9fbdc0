// Package normalize turns extraction output into rectangular datasets with
// a uniform column set and provenance columns.
package normalize

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Normalizer builds datasets. now stamps the processing-time provenance column.
type Normalizer struct {
	now    func() time.Time
	logger *slog.Logger
}

// New creates a Normalizer. A nil clock uses time.Now.
func New(logger *slog.Logger, now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{now: now, logger: logger}
}

// NormalizeAll groups inputs by dataset name and normalizes each group with
// one shared processing timestamp. Datasets are returned sorted by name.
func (n *Normalizer) NormalizeAll(inputs []Input) ([]*domain.Dataset, error) {
	groups := make(map[string][]Input)
	for _, in := range inputs {
		groups[in.Dataset] = append(groups[in.Dataset], in)
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	at := n.now()
	out := make([]*domain.Dataset, 0, len(names))
	for _, name := range names {
		ds, err := n.normalize(name, groups[name], at)
		if err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, nil
}

// Normalize merges inputs into one dataset called name.
func (n *Normalizer) Normalize(name string, inputs ...Input) (*domain.Dataset, error) {
	return n.normalize(name, inputs, n.now())
}

type columnState struct {
	kind  domain.ColumnKind
	kinds map[domain.ColumnKind]bool
}

func (n *Normalizer) normalize(name string, inputs []Input, at time.Time) (*domain.Dataset, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domain.ErrValidation("dataset name is required")
	}

	var (
		order   []string
		index   = map[string]int{}
		states  []*columnState
		flat    []*domain.Record
		sources = map[string]bool{}
	)
	addColumn := func(col string) {
		if _, ok := index[col]; ok || col == domain.ColumnSource || col == domain.ColumnProcessedAt {
			return
		}
		index[col] = len(order)
		order = append(order, col)
		states = append(states, &columnState{kind: domain.KindNull, kinds: map[domain.ColumnKind]bool{}})
	}

	for _, in := range inputs {
		if in.Source != "" {
			sources[in.Source] = true
		}
		for _, col := range in.Columns {
			addColumn(col)
		}
		for _, rec := range in.Records {
			f, err := flatten(rec)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: %w", name, err)
			}
			for _, col := range f.Keys() {
				addColumn(col)
				if col == domain.ColumnSource || col == domain.ColumnProcessedAt {
					continue
				}
				v, _ := f.Get(col)
				v = cleanValue(v)
				f.Set(col, v)
				st := states[index[col]]
				k := kindOf(v)
				if k != domain.KindNull {
					st.kinds[k] = true
				}
				st.kind = widen(st.kind, k)
			}
			flat = append(flat, f)
		}
	}

	ds := &domain.Dataset{Name: name}
	for i, col := range order {
		st := states[i]
		ds.Columns = append(ds.Columns, domain.DatasetColumn{Name: col, Kind: st.kind})
		if len(st.kinds) > 1 {
			seen := make([]string, 0, len(st.kinds))
			for k := range st.kinds {
				seen = append(seen, string(k))
			}
			sort.Strings(seen)
			w := domain.ErrSchemaConflict(name, "column %q mixes %s; widened to %s", col, strings.Join(seen, ", "), st.kind).Error()
			ds.Warnings = append(ds.Warnings, w)
			n.logger.Warn("schema conflict", "dataset", name, "column", col, "kinds", seen, "widened_to", st.kind)
		}
	}
	ds.Columns = append(ds.Columns,
		domain.DatasetColumn{Name: domain.ColumnSource, Kind: domain.KindText},
		domain.DatasetColumn{Name: domain.ColumnProcessedAt, Kind: domain.KindTimestamp},
	)

	// Parquet timestamps carry microseconds.
	stamp := at.Truncate(time.Microsecond)
	ds.Rows = make([][]any, 0, len(flat))
	for _, f := range flat {
		row := make([]any, len(order)+2)
		for i, col := range order {
			v, _ := f.Get(col)
			row[i] = coerce(v, states[i].kind)
		}
		row[len(order)] = name
		row[len(order)+1] = stamp
		ds.Rows = append(ds.Rows, row)
	}

	for s := range sources {
		ds.Sources = append(ds.Sources, s)
	}
	sort.Strings(ds.Sources)

	n.logger.Debug("dataset normalized", "dataset", name, "rows", len(ds.Rows), "columns", len(ds.Columns))
	return ds, nil
}

// flatten joins nested object keys with "."; arrays become JSON text.
func flatten(rec *domain.Record) (*domain.Record, error) {
	out := domain.NewRecord()
	if err := flattenInto(out, "", rec); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out *domain.Record, prefix string, rec *domain.Record) error {
	for _, k := range rec.Keys() {
		v, _ := rec.Get(k)
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch x := v.(type) {
		case *domain.Record:
			if err := flattenInto(out, key, x); err != nil {
				return err
			}
		case []any:
			b, err := json.Marshal(x)
			if err != nil {
				return fmt.Errorf("encode %s: %w", key, err)
			}
			out.Set(key, string(b))
		default:
			out.Set(key, v)
		}
	}
	return nil
}

func cleanValue(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return nil
		}
		return float64(x)
	default:
		return domain.CleanCell(v)
	}
}

func kindOf(v any) domain.ColumnKind {
	switch v.(type) {
	case nil:
		return domain.KindNull
	case bool:
		return domain.KindBoolean
	case int64:
		return domain.KindInteger
	case float64:
		return domain.KindFloat
	case time.Time:
		return domain.KindTimestamp
	default:
		return domain.KindText
	}
}

// widen returns the narrowest kind holding both a and b.
func widen(a, b domain.ColumnKind) domain.ColumnKind {
	switch {
	case a == domain.KindNull:
		return b
	case b == domain.KindNull, a == b:
		return a
	case (a == domain.KindInteger && b == domain.KindFloat) || (a == domain.KindFloat && b == domain.KindInteger):
		return domain.KindFloat
	default:
		return domain.KindText
	}
}

func coerce(v any, kind domain.ColumnKind) any {
	if v == nil {
		return nil
	}
	switch kind {
	case domain.KindFloat:
		if i, ok := v.(int64); ok {
			return float64(i)
		}
	case domain.KindText:
		if _, ok := v.(string); !ok {
			return domain.CellString(v)
		}
	}
	return v
}
