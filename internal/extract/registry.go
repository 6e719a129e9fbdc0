package extract

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Registry maps each category to exactly one extractor. It is built once at
// startup and read-only afterwards.
type Registry struct {
	byCategory map[domain.Category]domain.Extractor
}

// NewRegistry registers extractors by their Category. Registering two
// extractors for one category, or one for CategoryUnsupported, is an error.
func NewRegistry(extractors ...domain.Extractor) (*Registry, error) {
	r := &Registry{byCategory: make(map[domain.Category]domain.Extractor, len(extractors))}
	for _, e := range extractors {
		c := e.Category()
		if c == domain.CategoryUnsupported {
			return nil, fmt.Errorf("extractor %q claims the unsupported category", e.Name())
		}
		if prev, ok := r.byCategory[c]; ok {
			return nil, fmt.Errorf("category %q already handled by %q", c, prev.Name())
		}
		r.byCategory[c] = e
	}
	return r, nil
}

// Lookup returns the extractor for category.
func (r *Registry) Lookup(category domain.Category) (domain.Extractor, bool) {
	e, ok := r.byCategory[category]
	return e, ok
}

// Names lists the registered extractor names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byCategory))
	for _, e := range r.byCategory {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

// Options configures the default extractors.
type Options struct {
	// ProbeBytes is the encoding-detection window for CSV files.
	ProbeBytes int
	// TempDir receives transcoded CSV copies; empty uses the OS default.
	TempDir string
}

// NewDefaultRegistry builds the PDF, Word and tabular extractors. db is the
// DuckDB handle used by the CSV engine.
func NewDefaultRegistry(db *sql.DB, opts Options, logger *slog.Logger) *Registry {
	r, err := NewRegistry(
		NewPDFExtractor(logger),
		NewWordExtractor(logger),
		NewTabularExtractor(NewDuckDBCSVReader(db, opts.TempDir), StdCSVReader{}, ExcelizeWorkbookReader{}, opts.ProbeBytes, logger),
	)
	if err != nil {
		// The default set has one extractor per category.
		panic(err)
	}
	return r
}
