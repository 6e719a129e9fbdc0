// Package intermediate writes per-file extraction outputs to the processed
// directory and reads structured ones back for datamart builds.
package intermediate

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

// Format selects which intermediate files are written for a result.
type Format string

// Output formats.
const (
	FormatText       Format = "text"
	FormatStructured Format = "structured"
	FormatTabular    Format = "tabular"
)

// File name suffixes appended to the source stem.
const (
	SuffixStructured = "_dados.json"
	SuffixText       = "_extraido.txt"
	SuffixSummary    = "_resumo.txt"
	SuffixPDFText    = "_texto.csv"
	SuffixParagraphs = "_paragrafos.csv"
	SuffixCleanCSV   = "_limpo.csv"
)

// ParseFormat accepts a format name or its short alias (txt, json, csv).
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "txt":
		return FormatText, nil
	case "structured", "json", "":
		return FormatStructured, nil
	case "tabular", "csv":
		return FormatTabular, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text|txt, structured|json, tabular|csv)", s)
	}
}

// Stem returns the file name of path without directory and extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Stems assigns each distinct path a stem no other path in the set shares.
// A unique Stem is kept as is. Colliding sources take their extension as a
// suffix (foo.csv, foo.xlsx become foo_csv, foo_xlsx) and any remaining
// clash is numbered in path order (foo_csv, foo_csv_2). The result depends
// only on the set of paths, so a rebuild from the processed directory
// assigns the same stems as the run that wrote it.
func Stems(paths []string) map[string]string {
	sorted := slices.Clone(paths)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	byStem := make(map[string]int, len(sorted))
	for _, p := range sorted {
		byStem[Stem(p)]++
	}
	out := make(map[string]string, len(sorted))
	taken := make(map[string]bool, len(sorted))
	for _, p := range sorted {
		if stem := Stem(p); byStem[stem] == 1 {
			out[p] = stem
			taken[stem] = true
		}
	}
	for _, p := range sorted {
		if _, ok := out[p]; ok {
			continue
		}
		base := Stem(p)
		if ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(p), ".")); ext != "" {
			base += "_" + ext
		}
		stem := base
		for n := 2; taken[stem] || (byStem[stem] > 0 && stem != Stem(p)); n++ {
			stem = fmt.Sprintf("%s_%d", base, n)
		}
		out[p] = stem
		taken[stem] = true
	}
	return out
}

var unsafeName = strings.NewReplacer("/", "_", `\`, "_", ":", "_", "*", "_", "?", "_", `"`, "_", "<", "_", ">", "_", "|", "_")

// SafeName replaces characters that cannot appear in a file name.
func SafeName(s string) string {
	return unsafeName.Replace(strings.TrimSpace(s))
}
