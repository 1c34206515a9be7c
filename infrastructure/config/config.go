package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Summarizer providers selectable via SUMMARIZER_PROVIDER
const (
	SummarizerHugot      = "hugot"
	SummarizerExtractive = "extractive"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Port        int
	Environment string

	// AWS configuration
	AWSRegion     string
	DynamoDBTable string
	IndexName     string // GSI1 - user-level queries
	GSI2IndexName string // GSI2 - document and event-type lookups
	EventBusName  string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// Content configuration
	UploadDir string
	StaticDir string

	// Summarizer configuration
	SummarizerProvider string
	ModelPath          string

	// Logging
	LogLevel string

	// Authentication
	JWTSecret   string
	JWTIssuer   string
	JWTAudience []string

	// HTTP configuration
	CORSOrigins        []string
	RateLimitPerMinute int

	// Feature flags
	EnableEvents         bool
	EnableMetrics        bool
	EnableTracing        bool
	EnableCORS           bool
	AllowAnonymous       bool
	DistributedRateLimit bool
}

// defaultConfig returns the built-in defaults before any file or
// environment overrides are applied.
func defaultConfig() *Config {
	return &Config{
		Port:               8080,
		Environment:        "development",
		AWSRegion:          "us-west-2",
		DynamoDBTable:      "medmap",
		IndexName:          "GSI1",
		GSI2IndexName:      "GSI2",
		EventBusName:       "",
		UploadDir:          "uploads",
		StaticDir:          "frontend",
		SummarizerProvider: SummarizerExtractive,
		ModelPath:          "",
		LogLevel:           "info",
		JWTIssuer:          "medmap-backend",
		CORSOrigins:        []string{"*"},
		RateLimitPerMinute: 100,
		EnableCORS:         true,
		AllowAnonymous:     true,
	}
}

// applyEnv overlays environment variables onto the configuration.
// Unset variables leave the current values untouched.
func applyEnv(cfg *Config) {
	cfg.Port = getEnvInt("PORT", cfg.Port)
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	cfg.AWSRegion = getEnv("AWS_REGION", cfg.AWSRegion)
	cfg.DynamoDBTable = getEnv("TABLE_NAME", getEnv("DYNAMODB_TABLE", cfg.DynamoDBTable))
	cfg.IndexName = getEnv("INDEX_NAME", cfg.IndexName)
	cfg.GSI2IndexName = getEnv("GSI2_INDEX_NAME", cfg.GSI2IndexName)
	cfg.EventBusName = getEnv("EVENT_BUS_NAME", cfg.EventBusName)

	cfg.IsLambda = getEnvBool("IS_LAMBDA", cfg.IsLambda)
	cfg.LambdaFunctionName = getEnv("AWS_LAMBDA_FUNCTION_NAME", cfg.LambdaFunctionName)

	cfg.UploadDir = getEnv("UPLOAD_DIR", cfg.UploadDir)
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)

	cfg.SummarizerProvider = getEnv("SUMMARIZER_PROVIDER", cfg.SummarizerProvider)
	cfg.ModelPath = getEnv("MODEL_PATH", cfg.ModelPath)

	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	cfg.JWTSecret = getEnv("JWT_SECRET", cfg.JWTSecret)
	cfg.JWTIssuer = getEnv("JWT_ISSUER", cfg.JWTIssuer)
	cfg.JWTAudience = getEnvList("JWT_AUDIENCE", cfg.JWTAudience)

	cfg.CORSOrigins = getEnvList("CORS_ORIGINS", cfg.CORSOrigins)
	cfg.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", cfg.RateLimitPerMinute)

	cfg.EnableEvents = getEnvBool("ENABLE_EVENTS", cfg.EnableEvents)
	cfg.EnableMetrics = getEnvBool("ENABLE_METRICS", cfg.EnableMetrics)
	cfg.EnableTracing = getEnvBool("ENABLE_TRACING", cfg.EnableTracing)
	cfg.EnableCORS = getEnvBool("ENABLE_CORS", cfg.EnableCORS)
	cfg.AllowAnonymous = getEnvBool("ALLOW_ANONYMOUS", cfg.AllowAnonymous)
	cfg.DistributedRateLimit = getEnvBool("DISTRIBUTED_RATE_LIMIT", cfg.DistributedRateLimit)
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig for backwards compatibility
func Load() (*Config, error) {
	return LoadConfig()
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("PORT must be positive, got %d", c.Port)
	}

	switch c.SummarizerProvider {
	case SummarizerHugot, SummarizerExtractive:
	default:
		return fmt.Errorf("unknown summarizer provider %q", c.SummarizerProvider)
	}

	if c.SummarizerProvider == SummarizerHugot && c.ModelPath == "" {
		return fmt.Errorf("MODEL_PATH is required for the hugot summarizer")
	}

	if c.Environment == "production" {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.DynamoDBTable == "" {
			return fmt.Errorf("DYNAMODB_TABLE is required")
		}
		if c.EnableEvents && c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated environment variable with a default value
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
