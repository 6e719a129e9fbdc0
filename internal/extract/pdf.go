package extract

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/DaviMelooficial/CESAR-PROJETO-SONAI/internal/domain"
)

// Compile-time check.
var _ domain.Extractor = (*PDFExtractor)(nil)

// pageExtractor is a text backend that keeps page boundaries.
type pageExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]domain.PageText, error)
}

// PDFExtractor reads text, tables and metadata from PDF files. Text comes
// from the primary backend, or from the fallback when the primary yields
// none; tables and metadata have no fallback.
type PDFExtractor struct {
	primary  pageExtractor
	fallback pageExtractor
	tables   domain.TableExtractor
	meta     domain.MetadataExtractor
	logger   *slog.Logger
}

// NewPDFExtractor wires the ledongthuc backend as primary and pdfcpu as fallback.
func NewPDFExtractor(logger *slog.Logger) *PDFExtractor {
	primary := LedongthucBackend{}
	return &PDFExtractor{
		primary:  primary,
		fallback: PdfcpuBackend{},
		tables:   primary,
		meta:     primary,
		logger:   logger,
	}
}

// Name implements domain.Extractor.
func (e *PDFExtractor) Name() string { return "pdf" }

// Category implements domain.Extractor.
func (e *PDFExtractor) Category() domain.Category { return domain.CategoryPDF }

// Extract implements domain.Extractor.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (*domain.ExtractionResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.ErrPath(path, err, "cannot read file")
	}
	logger := e.logger.With("path", path)
	result := &domain.ExtractionResult{
		Path:     path,
		Kind:     domain.ResultDocument,
		Category: domain.CategoryPDF,
		Format:   "pdf",
		Method:   domain.MethodPrimary,
	}

	pages, primaryErr := e.primary.ExtractPages(ctx, path)
	if primaryErr != nil {
		logger.Warn("primary pdf text extraction failed", "error", primaryErr)
		result.Warnings = append(result.Warnings, "texto primario: "+primaryErr.Error())
	}
	if strings.TrimSpace(joinPages(pages)) == "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Warn("primary backend found no text; trying fallback")
		fb, err := e.fallback.ExtractPages(ctx, path)
		switch {
		case err != nil && primaryErr != nil:
			return nil, domain.ErrExtraction(path, err, "both pdf backends failed")
		case err != nil:
			logger.Warn("fallback pdf text extraction failed", "error", err)
			result.Warnings = append(result.Warnings, "texto alternativo: "+err.Error())
		default:
			pages = fb
			result.Method = domain.MethodFallback
		}
	}
	result.Pages = pages
	result.Text = joinPages(pages)

	if tables, err := e.tables.ExtractTables(ctx, path); err != nil {
		logger.Warn("pdf table detection failed", "error", err)
		result.Warnings = append(result.Warnings, "tabelas: "+err.Error())
	} else {
		result.Tables = tables
	}

	meta, err := e.meta.ExtractMetadata(ctx, path)
	if err != nil {
		logger.Warn("pdf metadata unavailable", "error", err)
	}
	meta.Tables = len(result.Tables)
	meta.FileSize = info.Size()
	result.Metadata = meta
	return result, nil
}
