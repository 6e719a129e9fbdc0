package domain

import "context"

// Extractor turns one source file into an ExtractionResult.
// Implemented by extract.PDFExtractor, extract.WordExtractor and
// extract.TabularExtractor.
type Extractor interface {
	Name() string
	Category() Category
	Extract(ctx context.Context, path string) (*ExtractionResult, error)
}

// TextExtractor is a backend that recovers plain text from a document.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// TableExtractor is a backend that recovers grid-shaped tables from a document.
type TableExtractor interface {
	ExtractTables(ctx context.Context, path string) ([]TableGrid, error)
}

// MetadataExtractor is a backend that reads document-level metadata.
type MetadataExtractor interface {
	ExtractMetadata(ctx context.Context, path string) (Metadata, error)
}

// DatamartPublisher copies finished datamart files to an external location.
// Implemented by publish.S3Publisher, publish.GCSPublisher,
// publish.AzurePublisher and publish.FilePublisher.
type DatamartPublisher interface {
	Publish(ctx context.Context, localPath, name string) (string, error)
	Target() string
}

// CSVReader parses a CSV file already known to be in the named encoding.
type CSVReader interface {
	ReadCSV(ctx context.Context, path, encoding string) (*TabularContent, error)
}

// WorkbookReader parses every sheet of a workbook. Sheets that fail are
// skipped and described in the returned warnings.
type WorkbookReader interface {
	ReadWorkbook(ctx context.Context, path string) ([]SheetContent, []string, error)
}
