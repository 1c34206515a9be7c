package queries

import "errors"

// ListMindMapsQuery represents a query to list a user's mind maps
type ListMindMapsQuery struct {
	UserID string
	Limit  int
	Offset int
	SortBy string // "created", "updated", "title"
	Order  string // "asc", "desc"
}

// Validate validates the query
func (q ListMindMapsQuery) Validate() error {
	if q.UserID == "" {
		return errors.New("user ID is required")
	}
	if q.Limit < 0 {
		return errors.New("limit cannot be negative")
	}
	if q.Offset < 0 {
		return errors.New("offset cannot be negative")
	}
	if q.SortBy != "" && q.SortBy != "created" && q.SortBy != "updated" && q.SortBy != "title" {
		return errors.New("invalid sort field")
	}
	if q.Order != "" && q.Order != "asc" && q.Order != "desc" {
		return errors.New("invalid sort order")
	}
	return nil
}

// ListMindMapsResult represents the result of listing mind maps
type ListMindMapsResult struct {
	MindMaps   []MindMapSummary `json:"mindmaps"`
	TotalCount int              `json:"totalCount"`
	Limit      int              `json:"limit"`
	Offset     int              `json:"offset"`
}

// MindMapSummary represents a summary of a mind map without its tree
type MindMapSummary struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	NodeCount      int    `json:"nodeCount"`
	DocumentID     string `json:"documentId,omitempty"`
	SourceFilename string `json:"sourceFilename,omitempty"`
	Version        int    `json:"version"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}
