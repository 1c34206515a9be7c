package entities

import (
	"fmt"
	"strings"
	"time"

	"medmap-backend/domain/config"
	"medmap-backend/domain/core/valueobjects"
	"medmap-backend/domain/events"
	pkgerrors "medmap-backend/pkg/errors"
)

// DocumentStatus represents the processing state of an uploaded document
type DocumentStatus string

const (
	StatusReceived  DocumentStatus = "received"
	StatusProcessed DocumentStatus = "processed"
	StatusFailed    DocumentStatus = "failed"
)

// Document is the entity representing an uploaded source document.
// This is a rich domain model with encapsulated business logic.
type Document struct {
	// Private fields ensure encapsulation
	id         valueobjects.DocumentID
	userID     string
	filename   string
	extension  string
	storedPath string
	sizeBytes  int64
	charCount  int
	createdAt  time.Time
	updatedAt  time.Time
	version    int
	status     DocumentStatus

	// Domain events that occurred during this entity's lifetime
	events []events.DomainEvent
}

// NewDocument creates a new document with full business rule validation
func NewDocument(userID, filename string, sizeBytes int64) (*Document, error) {
	return NewDocumentWithConfig(userID, filename, sizeBytes, config.DefaultDomainConfig())
}

// NewDocumentWithConfig creates a new document validated against configuration
func NewDocumentWithConfig(userID, filename string, sizeBytes int64, cfg *config.DomainConfig) (*Document, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}

	if strings.TrimSpace(filename) == "" {
		return nil, pkgerrors.ErrFilenameRequired
	}

	if len(filename) > cfg.MaxFilenameLength {
		return nil, pkgerrors.NewValidationError(
			fmt.Sprintf("filename exceeds %d characters", cfg.MaxFilenameLength))
	}

	extension := extensionOf(filename)
	if !cfg.IsExtensionAllowed(extension) {
		return nil, pkgerrors.ErrFileTypeNotAllowed
	}

	if sizeBytes < 0 {
		return nil, pkgerrors.NewValidationError("size cannot be negative")
	}

	if sizeBytes > cfg.MaxUploadBytes {
		return nil, pkgerrors.NewPayloadTooLargeError(cfg.MaxUploadBytes)
	}

	now := time.Now()
	doc := &Document{
		id:        valueobjects.NewDocumentID(),
		userID:    userID,
		filename:  filename,
		extension: extension,
		sizeBytes: sizeBytes,
		createdAt: now,
		updatedAt: now,
		version:   1,
		status:    StatusReceived,
		events:    []events.DomainEvent{},
	}

	doc.addEvent(events.NewDocumentUploaded(
		doc.id,
		userID,
		filename,
		extension,
		sizeBytes,
		now,
	))

	return doc, nil
}

// ReconstructDocument reconstructs a document from repository data with preserved timestamps
func ReconstructDocument(
	id valueobjects.DocumentID,
	userID string,
	filename string,
	extension string,
	storedPath string,
	sizeBytes int64,
	charCount int,
	createdAt, updatedAt time.Time,
	status DocumentStatus,
) (*Document, error) {
	if userID == "" {
		return nil, pkgerrors.NewValidationError("userID cannot be empty")
	}

	if filename == "" {
		return nil, pkgerrors.NewValidationError("filename cannot be empty")
	}

	doc := &Document{
		id:         id,
		userID:     userID,
		filename:   filename,
		extension:  extension,
		storedPath: storedPath,
		sizeBytes:  sizeBytes,
		charCount:  charCount,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
		version:    1,
		status:     status,
		events:     []events.DomainEvent{},
	}

	return doc, nil
}

// ID returns the document's unique identifier
func (d *Document) ID() valueobjects.DocumentID {
	return d.id
}

// UserID returns the owner's ID
func (d *Document) UserID() string {
	return d.userID
}

// Filename returns the document's original filename
func (d *Document) Filename() string {
	return d.filename
}

// Extension returns the lowercased file extension without the dot
func (d *Document) Extension() string {
	return d.extension
}

// StoredPath returns where the raw upload was persisted
func (d *Document) StoredPath() string {
	return d.storedPath
}

// SizeBytes returns the upload size in bytes
func (d *Document) SizeBytes() int64 {
	return d.sizeBytes
}

// CharCount returns the extracted text length in runes, zero until processed
func (d *Document) CharCount() int {
	return d.charCount
}

// Status returns the document's current status
func (d *Document) Status() DocumentStatus {
	return d.status
}

// Version returns the document's version for optimistic locking
func (d *Document) Version() int {
	return d.version
}

// SetStoredPath records where the upload was written on storage
func (d *Document) SetStoredPath(path string) {
	d.storedPath = path
	d.updatedAt = time.Now()
}

// MarkProcessed transitions the document to processed after text extraction
func (d *Document) MarkProcessed(charCount int) error {
	if d.status == StatusFailed {
		return pkgerrors.NewValidationError("cannot process a rejected document")
	}

	if d.status == StatusProcessed {
		return nil // Already processed
	}

	if charCount < 0 {
		return pkgerrors.NewValidationError("character count cannot be negative")
	}

	d.charCount = charCount
	d.status = StatusProcessed
	d.updatedAt = time.Now()
	d.version++

	d.addEvent(events.NewDocumentProcessed(d.id, d.userID, charCount, d.updatedAt))

	return nil
}

// MarkFailed transitions the document to failed with the rejection reason
func (d *Document) MarkFailed(reason string) error {
	if d.status == StatusFailed {
		return nil // Already failed
	}

	if reason == "" {
		reason = "unknown"
	}

	d.status = StatusFailed
	d.updatedAt = time.Now()
	d.version++

	d.addEvent(events.NewDocumentRejected(d.id, d.userID, reason, d.updatedAt))

	return nil
}

// IsProcessed reports whether text extraction completed successfully
func (d *Document) IsProcessed() bool {
	return d.status == StatusProcessed
}

// CreatedAt returns when the document was uploaded
func (d *Document) CreatedAt() time.Time {
	return d.createdAt
}

// UpdatedAt returns when the document was last updated
func (d *Document) UpdatedAt() time.Time {
	return d.updatedAt
}

// GetUncommittedEvents returns all uncommitted domain events
func (d *Document) GetUncommittedEvents() []events.DomainEvent {
	return d.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (d *Document) MarkEventsAsCommitted() {
	d.events = []events.DomainEvent{}
}

// addEvent adds a domain event to the uncommitted list
func (d *Document) addEvent(event events.DomainEvent) {
	d.events = append(d.events, event)
}

// extensionOf returns the lowercased extension after the final dot, or ""
// when the filename has no extension. Matches the upload allow-list check,
// which treats "archive.tar.gz" as "gz".
func extensionOf(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
