// Package extract turns raw source files into domain.ExtractionResult values.
//
// Each format category has one Extractor composed from interchangeable
// backends: a primary backend that recovers as much structure as it can and
// a lower-fidelity fallback used only when the primary yields no content.
package extract

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// extensionCategories maps lowercase extensions to handler categories.
// Legacy .doc and .xls are routed to their extractors, which reject them.
var extensionCategories = map[string]domain.Category{
	".pdf":  domain.CategoryPDF,
	".docx": domain.CategoryWord,
	".doc":  domain.CategoryWord,
	".csv":  domain.CategoryTabular,
	".xlsx": domain.CategoryTabular,
	".xls":  domain.CategoryTabular,
}

// Detect classifies path by its extension, case-insensitively.
func Detect(path string) domain.Category {
	if c, ok := extensionCategories[strings.ToLower(filepath.Ext(path))]; ok {
		return c
	}
	return domain.CategoryUnsupported
}

// SupportedExtensions returns the recognised extensions per category, sorted.
func SupportedExtensions() map[domain.Category][]string {
	out := make(map[domain.Category][]string)
	for ext, c := range extensionCategories {
		out[c] = append(out[c], ext)
	}
	for c := range out {
		sort.Strings(out[c])
	}
	return out
}
