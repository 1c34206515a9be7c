package valueobjects

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"medmap-backend/domain/config"
	pkgerrors "medmap-backend/pkg/errors"
)

// SourceText is a value object for the text extracted from a document.
// Lengths are measured in runes, not bytes, so multi-byte characters
// count once.
type SourceText struct {
	value string
}

// NewSourceText creates source text with validation using default configuration
func NewSourceText(raw string) (SourceText, error) {
	return NewSourceTextWithConfig(raw, config.DefaultDomainConfig())
}

// NewSourceTextWithConfig creates source text with validation and configuration
func NewSourceTextWithConfig(raw string, cfg *config.DomainConfig) (SourceText, error) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	if raw == "" {
		return SourceText{}, pkgerrors.NewValidationError("document text cannot be empty")
	}

	if utf8.RuneCountInString(raw) < cfg.MinContentLength {
		return SourceText{}, pkgerrors.NewValidationError(
			fmt.Sprintf("document text must be at least %d characters", cfg.MinContentLength))
	}

	return SourceText{value: raw}, nil
}

// Value returns the raw text
func (t SourceText) Value() string {
	return t.value
}

// RuneCount returns the text length in runes
func (t SourceText) RuneCount() int {
	return utf8.RuneCountInString(t.value)
}

// IsEmpty checks if the text is empty
func (t SourceText) IsEmpty() bool {
	return t.value == ""
}

// Equals checks if two source texts are equal
func (t SourceText) Equals(other SourceText) bool {
	return t.value == other.value
}

// WordCount returns the approximate word count
func (t SourceText) WordCount() int {
	return len(strings.Fields(t.value))
}

// Preview returns a truncated preview of the text for logging
func (t SourceText) Preview(maxLength int) string {
	if maxLength <= 0 {
		return ""
	}

	if utf8.RuneCountInString(t.value) <= maxLength {
		return t.value
	}

	runes := []rune(t.value)
	return string(runes[:maxLength-3]) + "..."
}
