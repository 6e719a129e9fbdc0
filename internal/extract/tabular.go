package extract

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Compile-time check.
var _ domain.Extractor = (*TabularExtractor)(nil)

// TabularExtractor handles CSV files and .xlsx workbooks.
type TabularExtractor struct {
	csv         domain.CSVReader
	csvFallback domain.CSVReader
	workbook    domain.WorkbookReader
	probeBytes  int
	logger      *slog.Logger
}

// NewTabularExtractor composes the CSV engine, its fallback and the workbook
// reader. probeBytes <= 0 uses DefaultProbeBytes.
func NewTabularExtractor(csv, csvFallback domain.CSVReader, workbook domain.WorkbookReader, probeBytes int, logger *slog.Logger) *TabularExtractor {
	if probeBytes <= 0 {
		probeBytes = DefaultProbeBytes
	}
	return &TabularExtractor{
		csv:         csv,
		csvFallback: csvFallback,
		workbook:    workbook,
		probeBytes:  probeBytes,
		logger:      logger,
	}
}

// Name implements domain.Extractor.
func (e *TabularExtractor) Name() string { return "tabular" }

// Category implements domain.Extractor.
func (e *TabularExtractor) Category() domain.Category { return domain.CategoryTabular }

// Extract implements domain.Extractor.
func (e *TabularExtractor) Extract(ctx context.Context, path string) (*domain.ExtractionResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.ErrPath(path, err, "cannot read file")
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return e.extractCSV(ctx, path, info.Size())
	case ".xlsx":
		return e.extractWorkbook(ctx, path, info.Size())
	case ".xls":
		return nil, domain.ErrUnsupportedFormat(path, "legacy .xls workbooks are not supported; convert to .xlsx first")
	default:
		return nil, domain.ErrUnsupportedFormat(path, "extension %q is not tabular", ext)
	}
}

func (e *TabularExtractor) extractCSV(ctx context.Context, path string, size int64) (*domain.ExtractionResult, error) {
	enc, detected, err := DetectFileEncoding(path, e.probeBytes)
	if err != nil {
		return nil, domain.ErrPath(path, err, "cannot read file")
	}
	logger := e.logger.With("path", path, "encoding", enc)
	if !detected {
		logger.Warn("no candidate encoding decoded the probe; using default")
	}

	result := &domain.ExtractionResult{
		Path:     path,
		Kind:     domain.ResultTabular,
		Category: domain.CategoryTabular,
		Format:   "csv",
		Method:   domain.MethodPrimary,
	}

	content, primaryErr := e.csv.ReadCSV(ctx, path, enc)
	if primaryErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn("csv engine failed; using fallback reader", "error", primaryErr)
		var fallbackErr error
		content, fallbackErr = e.csvFallback.ReadCSV(ctx, path, enc)
		if fallbackErr != nil {
			if !detected || errors.Is(fallbackErr, errInvalidText) {
				return nil, domain.ErrDecodeFailure(path, fallbackErr, "cannot decode as %s", enc)
			}
			return nil, domain.ErrExtraction(path, errors.Join(primaryErr, fallbackErr), "both csv readers failed")
		}
		result.Method = domain.MethodFallback
		result.Warnings = append(result.Warnings, "csv engine failed: "+primaryErr.Error())
	}

	result.Tabular = content
	result.Metadata = domain.Metadata{
		Rows:     len(content.Rows),
		Columns:  len(content.Columns),
		Encoding: enc,
		FileSize: size,
	}
	return result, nil
}

func (e *TabularExtractor) extractWorkbook(ctx context.Context, path string, size int64) (*domain.ExtractionResult, error) {
	sheets, warnings, err := e.workbook.ReadWorkbook(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, domain.ErrExtraction(path, err, "cannot read workbook")
	}
	for _, w := range warnings {
		e.logger.Warn("workbook sheet skipped", "path", path, "detail", w)
	}

	names := make([]string, len(sheets))
	rows := 0
	for i, s := range sheets {
		names[i] = s.Name
		rows += len(s.Data.Rows)
	}
	return &domain.ExtractionResult{
		Path:     path,
		Kind:     domain.ResultWorkbook,
		Category: domain.CategoryTabular,
		Format:   "xlsx",
		Method:   domain.MethodPrimary,
		Sheets:   sheets,
		Warnings: warnings,
		Metadata: domain.Metadata{
			Sheets:     len(sheets),
			SheetNames: names,
			Rows:       rows,
			FileSize:   size,
		},
	}, nil
}
