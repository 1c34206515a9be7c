package commands

import "errors"

// BulkDeleteMindMapsCommand represents the command to delete several mind maps
// in one transaction
type BulkDeleteMindMapsCommand struct {
	UserID string   `json:"user_id" validate:"required"`
	MapIDs []string `json:"map_ids" validate:"required,min=1,max=100,dive,uuid"`
}

// Validate validates the command
func (cmd BulkDeleteMindMapsCommand) Validate() error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if len(cmd.MapIDs) == 0 {
		return errors.New("at least one map ID is required")
	}
	if len(cmd.MapIDs) > 100 {
		return errors.New("too many map IDs in a single request")
	}
	return nil
}

// BulkDeleteMindMapsResult reports the outcome of a bulk delete
type BulkDeleteMindMapsResult struct {
	DeletedCount int      `json:"deleted_count"`
	FailedIDs    []string `json:"failed_ids,omitempty"`
	Errors       []string `json:"errors,omitempty"`
}
