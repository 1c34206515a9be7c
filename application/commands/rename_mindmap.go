package commands

import "errors"

// RenameMindMapCommand represents the command to change a mind map's title
type RenameMindMapCommand struct {
	UserID string `json:"user_id" validate:"required"`
	MapID  string `json:"map_id" validate:"required,uuid"`
	Title  string `json:"title" validate:"required,min=1,max=200"`
}

// Validate validates the command
func (cmd RenameMindMapCommand) Validate() error {
	if cmd.UserID == "" {
		return errors.New("user ID is required")
	}
	if cmd.MapID == "" {
		return errors.New("map ID is required")
	}
	if cmd.Title == "" {
		return errors.New("title is required")
	}
	return nil
}
