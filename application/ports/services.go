package ports

import (
	"context"
	"io"
	"time"
)

// FileStore defines the interface for raw upload storage
type FileStore interface {
	// Save writes an upload and returns the stored path
	Save(ctx context.Context, userID, filename string, r io.Reader) (string, error)

	// Open reads back a stored upload
	Open(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes a stored upload
	Delete(ctx context.Context, path string) error

	// ListOlderThan returns stored files last modified before the cutoff
	ListOlderThan(ctx context.Context, cutoff time.Time) ([]StoredFile, error)
}

// StoredFile describes a file held by a FileStore
type StoredFile struct {
	Path       string
	SizeBytes  int64
	ModifiedAt time.Time
}

// TextExtractor defines the interface for pulling plain text out of uploads
type TextExtractor interface {
	// Extract reads the upload and returns its text content
	Extract(ctx context.Context, r io.Reader, extension string) (string, error)

	// Supports checks whether the extension can be extracted
	Supports(extension string) bool
}

// Summarizer defines the interface for abstractive text summarization
type Summarizer interface {
	// Summarize condenses a chunk of text within the given length bounds
	Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error)
}

// Embedder defines the interface for sentence embedding generation
type Embedder interface {
	// Embed returns one vector per input text
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
