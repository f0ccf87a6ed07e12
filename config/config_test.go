package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Adapter)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, time.Hour, cfg.Progression.SnapshotInterval)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PROGRESSKIT_ENV", "staging")
	t.Setenv("PROGRESSKIT_SERVER_ADDR", ":7070")
	t.Setenv("PROGRESSKIT_STORAGE_ADAPTER", "file")
	t.Setenv("PROGRESSKIT_STORAGE_FILE_PATH", "/tmp/progress.json")
	t.Setenv("PROGRESSKIT_ASYNC_EVENTS", "true")
	t.Setenv("PROGRESSKIT_WEBHOOK_ENDPOINTS", "http://a.example/hook, http://b.example/hook")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvStaging, cfg.Environment)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "file", cfg.Storage.Adapter)
	assert.Equal(t, "/tmp/progress.json", cfg.Storage.File.Path)
	assert.True(t, cfg.Progression.AsyncEvents)
	assert.Equal(t, []string{"http://a.example/hook", "http://b.example/hook"}, cfg.Progression.WebhookEndpoints)
}

func TestLoadFromFile(t *testing.T) {
	configContent := `{
		"environment": "testing",
		"server": {
			"address": ":9090"
		},
		"storage": {
			"adapter": "memory"
		},
		"progression": {
			"catalog_path": "./catalog.json"
		}
	}`

	tmpFile, err := os.CreateTemp("", "config_test_*.json")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	_, err = tmpFile.WriteString(configContent)
	require.NoError(t, err)
	tmpFile.Close()

	cfg, err := LoadFromFile(tmpFile.Name())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, EnvTesting, cfg.Environment)
	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, "./catalog.json", cfg.Progression.CatalogPath)
}

func TestLoadFromFileRejectsBadPath(t *testing.T) {
	_, err := LoadFromFile("")
	assert.Error(t, err)

	_, err = LoadFromFile("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config { return DefaultConfig() }

	t.Run("default is valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("empty environment", func(t *testing.T) {
		cfg := valid()
		cfg.Environment = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad adapter", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Adapter = "cassandra"
		assert.Error(t, cfg.Validate())
	})

	t.Run("sql adapter without dsn", func(t *testing.T) {
		cfg := valid()
		cfg.Storage.Adapter = "sql"
		cfg.Storage.SQL.DSN = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("rate limit enabled without rpm", func(t *testing.T) {
		cfg := valid()
		cfg.Security.EnableRateLimit = true
		cfg.Security.RateLimit.RequestsPerMinute = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("negative snapshot interval", func(t *testing.T) {
		cfg := valid()
		cfg.Progression.SnapshotInterval = -time.Minute
		assert.Error(t, cfg.Validate())
	})
}

func TestConfig_StringRedactsSecrets(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.SQL.DSN = "postgres://user:hunter2@db/progress"
	cfg.Storage.Redis.Password = "hunter2"
	cfg.Progression.WebhookSecret = "hunter2"

	out := cfg.String()
	assert.False(t, strings.Contains(out, "hunter2"))
	assert.True(t, strings.Contains(out, "[REDACTED]"))
}
