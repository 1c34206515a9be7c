package validators

import (
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"medmap-backend/domain/config"
	"medmap-backend/domain/core/aggregates"
	"medmap-backend/pkg/errors"
)

// DocumentValidator validates upload-related domain rules
type DocumentValidator struct {
	minContentLength  int
	maxUploadBytes    int64
	maxFilenameLength int
	allowedExtensions []string
}

// NewDocumentValidator creates a new document validator with default rules
func NewDocumentValidator() *DocumentValidator {
	return NewDocumentValidatorFromConfig(config.DefaultDomainConfig())
}

// NewDocumentValidatorFromConfig creates a document validator with configured rules
func NewDocumentValidatorFromConfig(cfg *config.DomainConfig) *DocumentValidator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &DocumentValidator{
		minContentLength:  cfg.MinContentLength,
		maxUploadBytes:    cfg.MaxUploadBytes,
		maxFilenameLength: cfg.MaxFilenameLength,
		allowedExtensions: cfg.AllowedExtensions,
	}
}

// ValidateUpload validates an incoming file before any content is read
func (v *DocumentValidator) ValidateUpload(filename string, sizeBytes int64) error {
	validationErrors := errors.NewValidationErrors()

	if err := v.validateFilename(filename); err != nil {
		if domainErr, ok := err.(*errors.DomainError); ok {
			validationErrors.AddError(domainErr)
		} else {
			validationErrors.Add("filename", err.Error())
		}
	}

	if err := v.validateSize(sizeBytes); err != nil {
		if domainErr, ok := err.(*errors.DomainError); ok {
			validationErrors.AddError(domainErr)
		} else {
			validationErrors.Add("size", err.Error())
		}
	}

	if validationErrors.HasErrors() {
		return validationErrors
	}

	return nil
}

// ValidateContent validates extracted document text before generation.
// Length is measured in runes to match how users count characters.
func (v *DocumentValidator) ValidateContent(text string) error {
	runeCount := utf8.RuneCountInString(text)
	if runeCount < v.minContentLength {
		return errors.ErrDocumentTooShort.Clone().
			WithDetail("actual_chars", runeCount)
	}
	return nil
}

// validateFilename validates the upload filename and extension
func (v *DocumentValidator) validateFilename(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return errors.ErrFilenameRequired
	}

	if len(filename) > v.maxFilenameLength {
		return errors.NewDomainError(
			errors.DomainValidationError,
			"FILENAME_TOO_LONG",
			fmt.Sprintf("Filename exceeds maximum length of %d characters", v.maxFilenameLength),
		).WithDetail("field", "filename").WithDetail("actual_length", len(filename))
	}

	extension := fileExtension(filename)
	if !v.isExtensionAllowed(extension) {
		return errors.ErrFileTypeNotAllowed.Clone().
			WithDetail("extension", extension).
			WithDetail("allowed", v.allowedExtensions)
	}

	return nil
}

// validateSize validates the upload size in bytes
func (v *DocumentValidator) validateSize(sizeBytes int64) error {
	if sizeBytes < 0 {
		return errors.NewDomainError(
			errors.DomainValidationError,
			"INVALID_UPLOAD_SIZE",
			"Upload size cannot be negative",
		).WithDetail("field", "size")
	}

	if sizeBytes > v.maxUploadBytes {
		return errors.NewDomainError(
			errors.DomainValidationError,
			"PAYLOAD_TOO_LARGE",
			fmt.Sprintf("Upload exceeds maximum size of %d bytes", v.maxUploadBytes),
		).WithDetail("max_bytes", v.maxUploadBytes).
			WithDetail("actual_bytes", sizeBytes).
			WithStatusCode(http.StatusRequestEntityTooLarge)
	}

	return nil
}

// isExtensionAllowed checks the extension against the allow list
func (v *DocumentValidator) isExtensionAllowed(extension string) bool {
	for _, allowed := range v.allowedExtensions {
		if extension == allowed {
			return true
		}
	}
	return false
}

// TitleValidator validates mind map title rules
type TitleValidator struct {
	titleMinLength int
	titleMaxLength int
}

// NewTitleValidator creates a new title validator
func NewTitleValidator() *TitleValidator {
	cfg := config.DefaultDomainConfig()
	return &TitleValidator{
		titleMinLength: cfg.MinTitleLength,
		titleMaxLength: cfg.MaxTitleLength,
	}
}

// ValidateTitle validates a mind map title
func (v *TitleValidator) ValidateTitle(title string) error {
	title = strings.TrimSpace(title)

	if utf8.RuneCountInString(title) < v.titleMinLength {
		return errors.ErrMapTitleRequired
	}

	if utf8.RuneCountInString(title) > v.titleMaxLength {
		return errors.ErrMapTitleTooLong.Clone().
			WithDetail("actual_length", utf8.RuneCountInString(title)).
			WithDetail("max_length", v.titleMaxLength)
	}

	return nil
}

// TreeValidator validates generated mind map trees
type TreeValidator struct {
	maxNodesPerMap int
}

// NewTreeValidator creates a new tree validator
func NewTreeValidator() *TreeValidator {
	return &TreeValidator{
		maxNodesPerMap: config.DefaultDomainConfig().MaxNodesPerMap,
	}
}

// ValidateTree validates a generated tree before it is persisted
func (v *TreeValidator) ValidateTree(root *aggregates.MapNode) error {
	if root == nil {
		return errors.NewDomainError(
			errors.DomainValidationError,
			"EMPTY_TREE",
			"Generated tree has no root node",
		)
	}

	if root.ID != aggregates.RootNodeID {
		return errors.NewDomainError(
			errors.DomainValidationError,
			"INVALID_TREE_ROOT",
			"Generated tree root has an unexpected identifier",
		).WithDetail("id", root.ID)
	}

	if err := v.ValidateNodeCount(root.Count()); err != nil {
		return err
	}

	// Check for duplicate node IDs
	seen := make(map[string]bool)
	duplicate := ""
	root.Walk(func(node *aggregates.MapNode, _ int) bool {
		if seen[node.ID] {
			duplicate = node.ID
			return false
		}
		seen[node.ID] = true
		return true
	})
	if duplicate != "" {
		return errors.NewDomainError(
			errors.DomainValidationError,
			"DUPLICATE_NODE_ID",
			"Generated tree contains a duplicate node identifier",
		).WithDetail("id", duplicate)
	}

	return nil
}

// ValidateNodeCount validates the number of nodes in a tree
func (v *TreeValidator) ValidateNodeCount(count int) error {
	if count > v.maxNodesPerMap {
		return errors.ErrMapNodeLimitExceeded.Clone().
			WithDetail("current", count).
			WithDetail("limit", v.maxNodesPerMap)
	}

	return nil
}

// fileExtension returns the lowercased extension after the final dot, or ""
func fileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}
