package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// fileOverlay mirrors the tunable subset of Config for the YAML layer.
// Pointer fields distinguish "absent" from zero values, so a file only
// overrides what it mentions. Secrets stay in the environment.
type fileOverlay struct {
	Port        *int    `yaml:"port"`
	Environment *string `yaml:"environment"`

	AWSRegion     *string `yaml:"aws_region"`
	DynamoDBTable *string `yaml:"dynamodb_table"`
	EventBusName  *string `yaml:"event_bus_name"`

	UploadDir *string `yaml:"upload_dir"`
	StaticDir *string `yaml:"static_dir"`

	SummarizerProvider *string `yaml:"summarizer_provider"`
	ModelPath          *string `yaml:"model_path"`

	LogLevel *string `yaml:"log_level"`

	JWTIssuer   *string  `yaml:"jwt_issuer"`
	JWTAudience []string `yaml:"jwt_audience"`

	CORSOrigins        []string `yaml:"cors_origins"`
	RateLimitPerMinute *int     `yaml:"rate_limit_per_minute"`

	EnableEvents         *bool `yaml:"enable_events"`
	EnableMetrics        *bool `yaml:"enable_metrics"`
	EnableTracing        *bool `yaml:"enable_tracing"`
	EnableCORS           *bool `yaml:"enable_cors"`
	AllowAnonymous       *bool `yaml:"allow_anonymous"`
	DistributedRateLimit *bool `yaml:"distributed_rate_limit"`
}

// LoadConfigWithOverlay loads configuration in layers: built-in defaults,
// then the YAML file at path (if it exists), then environment variables.
// A missing file is not an error; a malformed one is.
func LoadConfigWithOverlay(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		if err := applyFile(cfg, path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFile overlays the YAML file at path onto the configuration
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if overlay.Port != nil {
		cfg.Port = *overlay.Port
	}
	if overlay.Environment != nil {
		cfg.Environment = *overlay.Environment
	}
	if overlay.AWSRegion != nil {
		cfg.AWSRegion = *overlay.AWSRegion
	}
	if overlay.DynamoDBTable != nil {
		cfg.DynamoDBTable = *overlay.DynamoDBTable
	}
	if overlay.EventBusName != nil {
		cfg.EventBusName = *overlay.EventBusName
	}
	if overlay.UploadDir != nil {
		cfg.UploadDir = *overlay.UploadDir
	}
	if overlay.StaticDir != nil {
		cfg.StaticDir = *overlay.StaticDir
	}
	if overlay.SummarizerProvider != nil {
		cfg.SummarizerProvider = *overlay.SummarizerProvider
	}
	if overlay.ModelPath != nil {
		cfg.ModelPath = *overlay.ModelPath
	}
	if overlay.LogLevel != nil {
		cfg.LogLevel = *overlay.LogLevel
	}
	if overlay.JWTIssuer != nil {
		cfg.JWTIssuer = *overlay.JWTIssuer
	}
	if len(overlay.JWTAudience) > 0 {
		cfg.JWTAudience = overlay.JWTAudience
	}
	if len(overlay.CORSOrigins) > 0 {
		cfg.CORSOrigins = overlay.CORSOrigins
	}
	if overlay.RateLimitPerMinute != nil {
		cfg.RateLimitPerMinute = *overlay.RateLimitPerMinute
	}
	if overlay.EnableEvents != nil {
		cfg.EnableEvents = *overlay.EnableEvents
	}
	if overlay.EnableMetrics != nil {
		cfg.EnableMetrics = *overlay.EnableMetrics
	}
	if overlay.EnableTracing != nil {
		cfg.EnableTracing = *overlay.EnableTracing
	}
	if overlay.EnableCORS != nil {
		cfg.EnableCORS = *overlay.EnableCORS
	}
	if overlay.AllowAnonymous != nil {
		cfg.AllowAnonymous = *overlay.AllowAnonymous
	}
	if overlay.DistributedRateLimit != nil {
		cfg.DistributedRateLimit = *overlay.DistributedRateLimit
	}

	return nil
}
