package events

import (
	"time"

	"medmap-backend/domain/core/valueobjects"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// Document Events

// DocumentUploaded is raised when a document is accepted for processing
type DocumentUploaded struct {
	BaseEvent
	DocumentID valueobjects.DocumentID `json:"document_id"`
	UserID     string                  `json:"user_id"`
	Filename   string                  `json:"filename"`
	Extension  string                  `json:"extension"`
	SizeBytes  int64                   `json:"size_bytes"`
}

// NewDocumentUploaded creates a DocumentUploaded event
func NewDocumentUploaded(documentID valueobjects.DocumentID, userID, filename, extension string, sizeBytes int64, timestamp time.Time) DocumentUploaded {
	return DocumentUploaded{
		BaseEvent: BaseEvent{
			AggregateID: documentID.String(),
			EventType:   "document.uploaded",
			Timestamp:   timestamp,
			Version:     1,
		},
		DocumentID: documentID,
		UserID:     userID,
		Filename:   filename,
		Extension:  extension,
		SizeBytes:  sizeBytes,
	}
}

// DocumentProcessed is raised when a document's text has been extracted
type DocumentProcessed struct {
	BaseEvent
	DocumentID valueobjects.DocumentID `json:"document_id"`
	UserID     string                  `json:"user_id"`
	CharCount  int                     `json:"char_count"`
}

// NewDocumentProcessed creates a DocumentProcessed event
func NewDocumentProcessed(documentID valueobjects.DocumentID, userID string, charCount int, timestamp time.Time) DocumentProcessed {
	return DocumentProcessed{
		BaseEvent: BaseEvent{
			AggregateID: documentID.String(),
			EventType:   "document.processed",
			Timestamp:   timestamp,
			Version:     1,
		},
		DocumentID: documentID,
		UserID:     userID,
		CharCount:  charCount,
	}
}

// DocumentRejected is raised when a document fails validation or extraction
type DocumentRejected struct {
	BaseEvent
	DocumentID valueobjects.DocumentID `json:"document_id"`
	UserID     string                  `json:"user_id"`
	Reason     string                  `json:"reason"`
}

// NewDocumentRejected creates a DocumentRejected event
func NewDocumentRejected(documentID valueobjects.DocumentID, userID, reason string, timestamp time.Time) DocumentRejected {
	return DocumentRejected{
		BaseEvent: BaseEvent{
			AggregateID: documentID.String(),
			EventType:   "document.rejected",
			Timestamp:   timestamp,
			Version:     1,
		},
		DocumentID: documentID,
		UserID:     userID,
		Reason:     reason,
	}
}

// Mind Map Events

// MindMapGenerated is raised when a mind map has been built from a document
type MindMapGenerated struct {
	BaseEvent
	MapID      valueobjects.MapID      `json:"map_id"`
	DocumentID valueobjects.DocumentID `json:"document_id"`
	UserID     string                  `json:"user_id"`
	NodeCount  int                     `json:"node_count"`
}

// NewMindMapGenerated creates a MindMapGenerated event
func NewMindMapGenerated(mapID valueobjects.MapID, documentID valueobjects.DocumentID, userID string, nodeCount int, timestamp time.Time) MindMapGenerated {
	return MindMapGenerated{
		BaseEvent: BaseEvent{
			AggregateID: mapID.String(),
			EventType:   "mindmap.generated",
			Timestamp:   timestamp,
			Version:     1,
		},
		MapID:      mapID,
		DocumentID: documentID,
		UserID:     userID,
		NodeCount:  nodeCount,
	}
}

// MindMapRenamed is raised when a mind map's title changes
type MindMapRenamed struct {
	BaseEvent
	MapID    valueobjects.MapID `json:"map_id"`
	UserID   string             `json:"user_id"`
	OldTitle string             `json:"old_title"`
	NewTitle string             `json:"new_title"`
}

// NewMindMapRenamed creates a MindMapRenamed event
func NewMindMapRenamed(mapID valueobjects.MapID, userID, oldTitle, newTitle string, timestamp time.Time) MindMapRenamed {
	return MindMapRenamed{
		BaseEvent: BaseEvent{
			AggregateID: mapID.String(),
			EventType:   "mindmap.renamed",
			Timestamp:   timestamp,
			Version:     1,
		},
		MapID:    mapID,
		UserID:   userID,
		OldTitle: oldTitle,
		NewTitle: newTitle,
	}
}

// MindMapDeleted is raised when a mind map is deleted
type MindMapDeleted struct {
	BaseEvent
	MapID  valueobjects.MapID `json:"map_id"`
	UserID string             `json:"user_id"`
	Title  string             `json:"title"`
}

// NewMindMapDeleted creates a MindMapDeleted event
func NewMindMapDeleted(mapID valueobjects.MapID, userID, title string, timestamp time.Time) MindMapDeleted {
	return MindMapDeleted{
		BaseEvent: BaseEvent{
			AggregateID: mapID.String(),
			EventType:   "mindmap.deleted",
			Timestamp:   timestamp,
			Version:     1,
		},
		MapID:  mapID,
		UserID: userID,
		Title:  title,
	}
}

// Generation Events

// GenerationStarted is raised when a generation run begins
type GenerationStarted struct {
	BaseEvent
	DocumentID valueobjects.DocumentID `json:"document_id"`
	UserID     string                  `json:"user_id"`
}

// NewGenerationStarted creates a GenerationStarted event
func NewGenerationStarted(documentID valueobjects.DocumentID, userID string, timestamp time.Time) GenerationStarted {
	return GenerationStarted{
		BaseEvent: BaseEvent{
			AggregateID: documentID.String(),
			EventType:   "generation.started",
			Timestamp:   timestamp,
			Version:     1,
		},
		DocumentID: documentID,
		UserID:     userID,
	}
}

// GenerationFailed is raised when a generation run fails after the
// document was accepted
type GenerationFailed struct {
	BaseEvent
	DocumentID valueobjects.DocumentID `json:"document_id"`
	UserID     string                  `json:"user_id"`
	Stage      string                  `json:"stage"`
	Reason     string                  `json:"reason"`
}

// NewGenerationFailed creates a GenerationFailed event
func NewGenerationFailed(documentID valueobjects.DocumentID, userID, stage, reason string, timestamp time.Time) GenerationFailed {
	return GenerationFailed{
		BaseEvent: BaseEvent{
			AggregateID: documentID.String(),
			EventType:   "generation.failed",
			Timestamp:   timestamp,
			Version:     1,
		},
		DocumentID: documentID,
		UserID:     userID,
		Stage:      stage,
		Reason:     reason,
	}
}

// Maintenance Events

// UploadsCleaned is raised after stale uploads have been removed
type UploadsCleaned struct {
	BaseEvent
	UserID       string `json:"user_id,omitempty"`
	FilesRemoved int    `json:"files_removed"`
	BytesFreed   int64  `json:"bytes_freed"`
}

// NewUploadsCleaned creates an UploadsCleaned event. UserID is empty for
// system-wide sweeps.
func NewUploadsCleaned(userID string, filesRemoved int, bytesFreed int64, timestamp time.Time) UploadsCleaned {
	return UploadsCleaned{
		BaseEvent: BaseEvent{
			AggregateID: "uploads",
			EventType:   "uploads.cleaned",
			Timestamp:   timestamp,
			Version:     1,
		},
		UserID:       userID,
		FilesRemoved: filesRemoved,
		BytesFreed:   bytesFreed,
	}
}
