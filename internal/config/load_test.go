package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "thisisalongsecretkeythatis32charsormore"

func TestLoad_DefaultsWithSecretFromEnv(t *testing.T) {
	t.Setenv("TASKMAN_AUTH_JWT_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Empty(t, cfg.Database.URL)
	assert.Equal(t, testSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, 2, cfg.Engine.WorkerCount)
	assert.Equal(t, 1024, cfg.Engine.CacheCapacity)
	assert.Equal(t, 300, cfg.Engine.DefaultTTLSeconds)
	assert.Equal(t, 60, cfg.Engine.TaskTimeoutSeconds)
	assert.Equal(t, 3, cfg.Engine.RetryMaxAttempts)
	assert.Equal(t, 1000, cfg.Engine.RetryBaseDelayMs)
	assert.Equal(t, 2.0, cfg.Engine.RetryMultiplier)
	assert.Equal(t, 60000, cfg.Engine.RetryMaxDelayMs)
}

func TestLoad_EnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("TASKMAN_AUTH_JWT_SECRET", testSecret)
	t.Setenv("TASKMAN_SERVER_PORT", "9999")
	t.Setenv("TASKMAN_SERVER_LOG_LEVEL", "debug")
	t.Setenv("TASKMAN_ENGINE_WORKER_COUNT", "8")
	t.Setenv("TASKMAN_ENGINE_RETRY_MAX_ATTEMPTS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, 8, cfg.Engine.WorkerCount)
	assert.Equal(t, 5, cfg.Engine.RetryMaxAttempts)
}

func TestLoadFromFile_ReadsYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 4000
  log_level: warn
auth:
  jwt_secret: `+testSecret+`
engine:
  worker_count: 4
  cache_capacity: 64
`), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Server.LogLevel)
	assert.Equal(t, 4, cfg.Engine.WorkerCount)
	assert.Equal(t, 64, cfg.Engine.CacheCapacity)
	// Keys the file omits keep their defaults.
	assert.Equal(t, 300, cfg.Engine.DefaultTTLSeconds)
}

func TestLoadFromFile_EnvironmentBeatsFile(t *testing.T) {
	t.Setenv("TASKMAN_AUTH_JWT_SECRET", testSecret)
	t.Setenv("TASKMAN_SERVER_PORT", "7777")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 4000
  log_level: info
`), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.Server.Port)
}

func TestLoad_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing jwt secret",
			env:  map[string]string{},
		},
		{
			name: "jwt secret too short",
			env:  map[string]string{"TASKMAN_AUTH_JWT_SECRET": "short"},
		},
		{
			name: "invalid log level",
			env: map[string]string{
				"TASKMAN_AUTH_JWT_SECRET":  testSecret,
				"TASKMAN_SERVER_LOG_LEVEL": "verbose",
			},
		},
		{
			name: "zero workers",
			env: map[string]string{
				"TASKMAN_AUTH_JWT_SECRET":     testSecret,
				"TASKMAN_ENGINE_WORKER_COUNT": "0",
			},
		},
		{
			name: "retry multiplier below one",
			env: map[string]string{
				"TASKMAN_AUTH_JWT_SECRET":         testSecret,
				"TASKMAN_ENGINE_RETRY_MULTIPLIER": "0.5",
			},
		},
		{
			name: "malformed database url",
			env: map[string]string{
				"TASKMAN_AUTH_JWT_SECRET": testSecret,
				"TASKMAN_DATABASE_URL":    "not a url",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}
