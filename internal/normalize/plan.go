package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/intermediate"
)

// Input is one source's contribution to a dataset.
type Input struct {
	Dataset string
	Source  string
	// Columns fixes the leading column order; keys not listed follow in
	// first-seen order.
	Columns []string
	Records []*domain.Record
}

// Plan maps an extraction result to the dataset inputs it contributes:
// tabular content to {stem}_dados, each workbook sheet to {stem}_{sheet},
// a document to one {stem}_dados record plus {stem}_tabela_{n} per table.
func Plan(res *domain.ExtractionResult) ([]Input, error) {
	return PlanAs(res, intermediate.Stem(res.Path))
}

// PlanAs is Plan with an explicit stem, as assigned by intermediate.Stems.
func PlanAs(res *domain.ExtractionResult, stem string) ([]Input, error) {
	switch res.Kind {
	case domain.ResultTabular:
		if res.Tabular == nil {
			return nil, nil
		}
		return []Input{gridInput(stem+"_dados", res.Path, res.Tabular)}, nil
	case domain.ResultWorkbook:
		inputs := make([]Input, 0, len(res.Sheets))
		for i := range res.Sheets {
			s := &res.Sheets[i]
			inputs = append(inputs, gridInput(stem+"_"+intermediate.SafeName(s.Name), res.Path, &s.Data))
		}
		return inputs, nil
	case domain.ResultDocument:
		rec, err := documentRecord(res)
		if err != nil {
			return nil, err
		}
		inputs := []Input{{Dataset: stem + "_dados", Source: res.Path, Records: []*domain.Record{rec}}}
		for i, t := range res.Tables {
			inputs = append(inputs, tableInput(fmt.Sprintf("%s_tabela_%d", stem, i+1), res.Path, t))
		}
		return inputs, nil
	default:
		return nil, fmt.Errorf("unknown result kind %q", res.Kind)
	}
}

// PlanSource maps a loaded intermediate to its inputs. Foreign record files
// become one dataset named after the file.
func PlanSource(src *intermediate.Source) ([]Input, error) {
	if src.Result != nil {
		return Plan(src.Result)
	}
	return []Input{{Dataset: src.Name, Source: src.Path, Records: src.Records}}, nil
}

func gridInput(name, source string, tc *domain.TabularContent) Input {
	in := Input{Dataset: name, Source: source, Columns: tc.Columns, Records: make([]*domain.Record, 0, len(tc.Rows))}
	for _, row := range tc.Rows {
		rec := domain.NewRecord()
		for j, col := range tc.Columns {
			var v any
			if j < len(row) {
				v = row[j]
			}
			rec.Set(col, v)
		}
		in.Records = append(in.Records, rec)
	}
	return in
}

// tableInput treats the first grid row as the header.
func tableInput(name, source string, t domain.TableGrid) Input {
	in := Input{Dataset: name, Source: source}
	if len(t.Rows) == 0 {
		return in
	}
	in.Columns = domain.UniqueColumnNames(t.Rows[0])
	for _, row := range t.Rows[1:] {
		rec := domain.NewRecord()
		for j, col := range in.Columns {
			var v any
			if j < len(row) {
				v = row[j]
			}
			rec.Set(col, v)
		}
		in.Records = append(in.Records, rec)
	}
	return in
}

// documentRecord builds the single nested record describing a document.
func documentRecord(res *domain.ExtractionResult) (*domain.Record, error) {
	rec := domain.NewRecord()
	rec.Set("arquivo", filepath.Base(res.Path))
	rec.Set("formato", res.Format)
	rec.Set("metodo", string(res.Method))
	rec.Set("texto", res.Text)

	data, err := json.Marshal(res.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	meta, err := domain.DecodeJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	rec.Set("metadados", meta)
	return rec, nil
}
