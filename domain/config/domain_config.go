package config

import (
	"errors"
	"time"
)

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Document constraints
	MinContentLength  int
	MaxUploadBytes    int64
	AllowedExtensions []string
	MaxFilenameLength int

	// Outline constraints
	ChunkSize           int
	SummaryMaxLength    int
	SummaryMinLength    int
	MaxSubNodesPerTopic int
	FallbackTopicCount  int
	TopicKeywords       []string

	// Mind map constraints
	MaxNodesPerMap int
	MaxTitleLength int
	MinTitleLength int
	MaxMapsPerUser int

	// Time constraints
	GenerationTimeout time.Duration
	UploadRetention   time.Duration
	SessionTimeout    time.Duration

	// Validation settings
	SanitizeFilenames bool
	RequireOwnership  bool

	// Feature flags
	EnableEmbeddings         bool
	EnableExtractiveFallback bool
	EnableEventPublishing    bool
}

// defaultTopicKeywords are the terms that mark a summary sentence as a
// main topic. Order matters: the first match wins for each sentence.
var defaultTopicKeywords = []string{
	"disease", "syndrome", "therapy", "treatment", "diagnosis",
	"patient", "cell", "organ", "system", "medicine", "drug",
	"condition", "pathology", "physiology",
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		// Document constraints
		MinContentLength:  50,
		MaxUploadBytes:    16 * 1024 * 1024,
		AllowedExtensions: []string{"txt", "pdf", "docx"},
		MaxFilenameLength: 255,

		// Outline constraints
		ChunkSize:           1024,
		SummaryMaxLength:    150,
		SummaryMinLength:    30,
		MaxSubNodesPerTopic: 3,
		FallbackTopicCount:  3,
		TopicKeywords:       defaultTopicKeywords,

		// Mind map constraints
		MaxNodesPerMap: 5000,
		MaxTitleLength: 200,
		MinTitleLength: 1,
		MaxMapsPerUser: 1000,

		// Time constraints
		GenerationTimeout: 2 * time.Minute,
		UploadRetention:   24 * time.Hour,
		SessionTimeout:    24 * time.Hour,

		// Validation settings
		SanitizeFilenames: true,
		RequireOwnership:  true,

		// Feature flags
		EnableEmbeddings:         false,
		EnableExtractiveFallback: true,
		EnableEventPublishing:    true,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Tighter limits for production
	config.MaxNodesPerMap = 2000
	config.MaxMapsPerUser = 500
	config.GenerationTimeout = 90 * time.Second
	config.UploadRetention = 12 * time.Hour

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// More permissive for development
	config.MaxNodesPerMap = 50000
	config.MaxMapsPerUser = 100000
	config.RequireOwnership = false
	config.UploadRetention = time.Hour

	// Enable all features for testing
	config.EnableEmbeddings = true

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}
	if c.SummaryMinLength <= 0 || c.SummaryMaxLength <= c.SummaryMinLength {
		return errors.New("summary length bounds are invalid")
	}
	if c.MinContentLength < 0 {
		return errors.New("minimum content length cannot be negative")
	}
	if c.MaxUploadBytes <= 0 {
		return errors.New("maximum upload size must be positive")
	}
	if len(c.AllowedExtensions) == 0 {
		return errors.New("at least one allowed extension is required")
	}
	if len(c.TopicKeywords) == 0 {
		return errors.New("topic keywords cannot be empty")
	}
	if c.MaxSubNodesPerTopic <= 0 {
		return errors.New("max sub-nodes per topic must be positive")
	}
	if c.FallbackTopicCount <= 0 {
		return errors.New("fallback topic count must be positive")
	}
	if c.MinTitleLength < 1 || c.MaxTitleLength < c.MinTitleLength {
		return errors.New("title length bounds are invalid")
	}
	if c.GenerationTimeout <= 0 {
		return errors.New("generation timeout must be positive")
	}
	return nil
}

// IsExtensionAllowed reports whether the lowercased extension is accepted for upload
func (c *DomainConfig) IsExtensionAllowed(extension string) bool {
	for _, allowed := range c.AllowedExtensions {
		if extension == allowed {
			return true
		}
	}
	return false
}
