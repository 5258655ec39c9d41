// Package config defines the application configuration and its
// loading from environment variables and optional config files.
package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"     validate:"required"`
	Engine   EngineConfig   `mapstructure:"engine"   validate:"required"`
}

// ServerConfig contains all HTTP server related settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the durable task store settings. An empty
// URL runs the engine with in-memory persistence only.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// AuthConfig contains the settings for verifying role claims issued
// by the external identity provider.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
}

// EngineConfig contains the task engine settings.
type EngineConfig struct {
	// WorkerCount is the number of concurrent task executors.
	WorkerCount int `mapstructure:"worker_count" validate:"required,gt=0"`

	// CacheCapacity bounds the result cache entry count; zero means
	// unbounded.
	CacheCapacity int `mapstructure:"cache_capacity" validate:"gte=0"`

	// DefaultTTLSeconds is the result cache TTL for task types that
	// do not set their own.
	DefaultTTLSeconds int `mapstructure:"default_ttl_seconds" validate:"required,gt=0"`

	// TaskTimeoutSeconds bounds a single task execution.
	TaskTimeoutSeconds int `mapstructure:"task_timeout_seconds" validate:"required,gt=0"`

	// Retry defaults for task types without their own policy.
	RetryMaxAttempts int     `mapstructure:"retry_max_attempts"  validate:"required,gt=0"`
	RetryBaseDelayMs int     `mapstructure:"retry_base_delay_ms" validate:"required,gt=0"`
	RetryMultiplier  float64 `mapstructure:"retry_multiplier"    validate:"required,gte=1"`
	RetryMaxDelayMs  int     `mapstructure:"retry_max_delay_ms"  validate:"gte=0"`
}
