package intake

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"medmap-backend/application/ports"
	pkgerrors "medmap-backend/pkg/errors"
)

// Extraction errors surfaced to API clients. The messages are part of the
// public contract and must not change.
var (
	ErrPDFNotSupported = pkgerrors.NewDomainError(
		pkgerrors.DomainValidationError,
		"PDF_EXTRACTION_NOT_SUPPORTED",
		"PDF text extraction not implemented in this demo. Please use .txt",
	)

	ErrDocxNotSupported = pkgerrors.NewDomainError(
		pkgerrors.DomainValidationError,
		"DOCX_EXTRACTION_NOT_SUPPORTED",
		"DOCX text extraction not implemented in this demo. Please use .txt",
	)
)

// ExtractorRegistry dispatches text extraction by file extension. Unknown
// extensions are rejected with the upload allow-list error before any
// extractor runs.
type ExtractorRegistry struct {
	byExtension map[string]ports.TextExtractor
}

// NewExtractorRegistry returns a registry with the default extractors
// registered: plain text plus the pdf and docx placeholders.
func NewExtractorRegistry() *ExtractorRegistry {
	r := &ExtractorRegistry{
		byExtension: make(map[string]ports.TextExtractor),
	}
	r.Register("txt", NewPlainTextExtractor())
	r.Register("pdf", NewPDFExtractor())
	r.Register("docx", NewDocxExtractor())
	return r
}

// Register adds or replaces the extractor for an extension
func (r *ExtractorRegistry) Register(extension string, extractor ports.TextExtractor) {
	r.byExtension[normalizeExtension(extension)] = extractor
}

// Extract dispatches to the extractor registered for the extension
func (r *ExtractorRegistry) Extract(ctx context.Context, reader io.Reader, extension string) (string, error) {
	extractor, ok := r.byExtension[normalizeExtension(extension)]
	if !ok {
		return "", pkgerrors.ErrFileTypeNotAllowed.Clone().
			WithDetail("extension", extension)
	}
	return extractor.Extract(ctx, reader, extension)
}

// Supports checks whether an extractor is registered for the extension
func (r *ExtractorRegistry) Supports(extension string) bool {
	_, ok := r.byExtension[normalizeExtension(extension)]
	return ok
}

// normalizeExtension lowercases and strips a leading dot
func normalizeExtension(extension string) string {
	return strings.TrimPrefix(strings.ToLower(extension), ".")
}

// PlainTextExtractor reads the upload as UTF-8 text
type PlainTextExtractor struct{}

// NewPlainTextExtractor creates a plain text extractor
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

// Extract reads the whole upload and validates the encoding
func (e *PlainTextExtractor) Extract(ctx context.Context, reader io.Reader, extension string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("reading document: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("document is not valid UTF-8 text")
	}
	return string(data), nil
}

// Supports reports whether the extension is plain text
func (e *PlainTextExtractor) Supports(extension string) bool {
	return normalizeExtension(extension) == "txt"
}

// PDFExtractor rejects PDF uploads with the documented placeholder error
type PDFExtractor struct{}

// NewPDFExtractor creates a pdf extractor placeholder
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract always fails, pdf extraction is not available
func (e *PDFExtractor) Extract(ctx context.Context, reader io.Reader, extension string) (string, error) {
	return "", ErrPDFNotSupported
}

// Supports reports whether the extension is pdf
func (e *PDFExtractor) Supports(extension string) bool {
	return normalizeExtension(extension) == "pdf"
}

// DocxExtractor rejects DOCX uploads with the documented placeholder error
type DocxExtractor struct{}

// NewDocxExtractor creates a docx extractor placeholder
func NewDocxExtractor() *DocxExtractor {
	return &DocxExtractor{}
}

// Extract always fails, docx extraction is not available
func (e *DocxExtractor) Extract(ctx context.Context, reader io.Reader, extension string) (string, error) {
	return "", ErrDocxNotSupported
}

// Supports reports whether the extension is docx
func (e *DocxExtractor) Supports(extension string) bool {
	return normalizeExtension(extension) == "docx"
}
