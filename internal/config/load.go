package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for environment variable overrides, e.g.
// TASKMAN_SERVER_PORT.
const envPrefix = "TASKMAN"

// Load reads configuration from an optional config.yaml in the
// working directory and from environment variables, with environment
// variables taking precedence. Returns a validated Config.
func Load() (*Config, error) {
	return LoadFromFile("")
}

// LoadFromFile behaves like Load but reads the given config file
// instead of searching the working directory. Tests use it to avoid
// chdir games.
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; env vars and defaults carry.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind the keys that may only arrive via environment,
	// since AutomaticEnv alone does not surface them to Unmarshal.
	for _, key := range []string{
		"server.port",
		"server.log_level",
		"database.url",
		"auth.jwt_secret",
		"engine.worker_count",
		"engine.cache_capacity",
		"engine.default_ttl_seconds",
		"engine.task_timeout_seconds",
		"engine.retry_max_attempts",
		"engine.retry_base_delay_ms",
		"engine.retry_multiplier",
		"engine.retry_max_delay_ms",
	} {
		envVar := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envVar); err != nil {
			return nil, fmt.Errorf("error binding environment variable %s: %w", envVar, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("engine.worker_count", 2)
	v.SetDefault("engine.cache_capacity", 1024)
	v.SetDefault("engine.default_ttl_seconds", 300)
	v.SetDefault("engine.task_timeout_seconds", 60)
	v.SetDefault("engine.retry_max_attempts", 3)
	v.SetDefault("engine.retry_base_delay_ms", 1000)
	v.SetDefault("engine.retry_multiplier", 2.0)
	v.SetDefault("engine.retry_max_delay_ms", 60000)
}
