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
var _ domain.Extractor = (*WordExtractor)(nil)

// documentParser is a Word backend that returns paragraphs and tables in one pass.
type documentParser interface {
	ParseDocument(ctx context.Context, path string) (*WordDocument, error)
}

// WordExtractor reads .docx files. Legacy .doc files are rejected.
type WordExtractor struct {
	primary  documentParser
	fallback domain.TextExtractor
	meta     domain.MetadataExtractor
	logger   *slog.Logger
}

// NewWordExtractor wires the structured backend as primary and the token
// stream backend as fallback.
func NewWordExtractor(logger *slog.Logger) *WordExtractor {
	return &WordExtractor{
		primary:  DocxBackend{},
		fallback: DocxStreamBackend{},
		meta:     DocxBackend{},
		logger:   logger,
	}
}

// Name implements domain.Extractor.
func (e *WordExtractor) Name() string { return "word" }

// Category implements domain.Extractor.
func (e *WordExtractor) Category() domain.Category { return domain.CategoryWord }

// Extract implements domain.Extractor.
func (e *WordExtractor) Extract(ctx context.Context, path string) (*domain.ExtractionResult, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, domain.ErrPath(path, err, "cannot read file")
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".docx":
	case ".doc":
		return nil, domain.ErrUnsupportedFormat(path, "legacy .doc documents are not supported; convert to .docx first")
	default:
		return nil, domain.ErrUnsupportedFormat(path, "extension %q is not a word document", ext)
	}

	logger := e.logger.With("path", path)
	result := &domain.ExtractionResult{
		Path:     path,
		Kind:     domain.ResultDocument,
		Category: domain.CategoryWord,
		Format:   "docx",
		Method:   domain.MethodPrimary,
	}

	doc, primaryErr := e.primary.ParseDocument(ctx, path)
	if primaryErr != nil {
		logger.Warn("primary docx parse failed", "error", primaryErr)
		result.Warnings = append(result.Warnings, "leitura estruturada: "+primaryErr.Error())
		doc = &WordDocument{}
	}
	result.Paragraphs = doc.Paragraphs
	result.Tables = doc.Tables
	result.Text = doc.Text()

	if strings.TrimSpace(result.Text) == "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Warn("primary backend found no text; trying fallback")
		text, err := e.fallback.ExtractText(ctx, path)
		switch {
		case err != nil && primaryErr != nil:
			return nil, domain.ErrExtraction(path, errors.Join(primaryErr, err), "both docx backends failed")
		case err != nil:
			logger.Warn("fallback docx read failed", "error", err)
			result.Warnings = append(result.Warnings, "leitura alternativa: "+err.Error())
		default:
			result.Text = text
			result.Method = domain.MethodFallback
		}
	}

	meta, err := e.meta.ExtractMetadata(ctx, path)
	if err != nil {
		logger.Warn("docx metadata unavailable", "error", err)
	}
	meta.Paragraphs = doc.ParagraphCount
	meta.Tables = len(doc.Tables)
	meta.FileSize = info.Size()
	result.Metadata = meta
	return result, nil
}
