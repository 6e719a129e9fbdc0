package intermediate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Source is one decoded structured intermediate. Exactly one of Result and
// Records is set: Result for files this package wrote, Records for any other
// JSON document found in the processed directory.
type Source struct {
	Path    string
	Name    string
	Result  *domain.ExtractionResult
	Records []*domain.Record
}

// ListStructured returns every *.json file directly under dir, sorted.
// A missing directory yields no files.
func ListStructured(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Load decodes one structured intermediate. Foreign documents may be a list
// of records, an object with a "dados" list of records, or a single (possibly
// nested) object, which becomes one record.
func Load(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.ErrPath(path, err, "cannot read intermediate")
	}
	src := &Source{Path: path, Name: Stem(path)}

	v, err := domain.DecodeJSON(bytes.NewReader(data))
	if err != nil {
		return nil, domain.ErrExtraction(path, err, "invalid JSON")
	}

	switch doc := v.(type) {
	case *domain.Record:
		if isExtractionResult(doc) {
			var res domain.ExtractionResult
			if err := json.Unmarshal(data, &res); err != nil {
				return nil, domain.ErrExtraction(path, err, "invalid extraction result")
			}
			src.Result = &res
			return src, nil
		}
		if dados, ok := doc.Get("dados"); ok {
			if list, ok := dados.([]any); ok {
				src.Records, err = recordList(list)
				if err != nil {
					return nil, domain.ErrExtraction(path, err, "invalid \"dados\" list")
				}
				return src, nil
			}
		}
		src.Records = []*domain.Record{doc}
	case []any:
		src.Records, err = recordList(doc)
		if err != nil {
			return nil, domain.ErrExtraction(path, err, "invalid record list")
		}
	default:
		return nil, domain.ErrExtraction(path, nil, "top-level JSON value is %T, want object or list", v)
	}
	return src, nil
}

func isExtractionResult(r *domain.Record) bool {
	_, hasKind := r.Get("tipo")
	_, hasPath := r.Get("arquivo")
	return hasKind && hasPath
}

func recordList(list []any) ([]*domain.Record, error) {
	out := make([]*domain.Record, 0, len(list))
	for i, item := range list {
		rec, ok := item.(*domain.Record)
		if !ok {
			return nil, fmt.Errorf("item %d is %T, want object", i, item)
		}
		out = append(out, rec)
	}
	return out, nil
}
