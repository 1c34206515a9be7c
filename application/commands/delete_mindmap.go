package commands

import "errors"

// DeleteMindMapCommand represents the command to delete a mind map and its
// document association
type DeleteMindMapCommand struct {
	UserID string `json:"user_id" validate:"required"`
	MapID  string `json:"map_id" validate:"required,uuid"`
}

// Validate validates the command
func (cmd DeleteMindMapCommand) Validate() error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if cmd.MapID == "" {
		return errors.New("map ID is required")
	}
	return nil
}
