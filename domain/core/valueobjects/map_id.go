package valueobjects

import (
	"errors"

	"github.com/google/uuid"
)

// MapID is a value object representing a unique mind map identifier
// Value objects are immutable and have no identity beyond their value
type MapID struct {
	value string
}

// NewMapID creates a new random MapID
func NewMapID() MapID {
	return MapID{value: uuid.New().String()}
}

// NewMapIDFromString creates a MapID from an existing string
func NewMapIDFromString(id string) (MapID, error) {
	if id == "" {
		return MapID{}, errors.New("map ID cannot be empty")
	}
	if !isValidUUID(id) {
		return MapID{}, errors.New("map ID must be a valid UUID")
	}
	return MapID{value: id}, nil
}

// String returns the string representation of the MapID
func (id MapID) String() string {
	return id.value
}

// Equals checks if two MapIDs are equal
func (id MapID) Equals(other MapID) bool {
	return id.value == other.value
}

// IsZero checks if the MapID is the zero value
func (id MapID) IsZero() bool {
	return id.value == ""
}

// MarshalJSON implements json.Marshaler
func (id MapID) MarshalJSON() ([]byte, error) {
	return []byte(`"` + id.value + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (id *MapID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return errors.New("MapID must be a string")
	}
	id.value = string(data[1 : len(data)-1])
	return nil
}

// isValidUUID validates if a string is a valid UUID
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
