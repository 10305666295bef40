package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Config Loading Tests
// =============================================================================

func TestLoadConfig_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8089", cfg.API.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.Timeout)
	assert.Empty(t, cfg.API.Headers)
	assert.Equal(t, 500*time.Millisecond, cfg.UI.Debounce)
	assert.Zero(t, cfg.UI.RefreshInterval)
	assert.False(t, cfg.ROR.Verify)
	assert.Equal(t, 5*time.Second, cfg.ROR.Timeout)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_FromFile(t *testing.T) {
	clearEnv(t)

	configContent := `
api:
  base_url: "https://topology-institutions.osg-htc.org/api"
  timeout: 30s
  headers:
    X-Forwarded-User: admin
ui:
  debounce: 250ms
  refresh_interval: 1m
ror:
  verify: true
  timeout: 2s
log:
  level: "debug"
  format: "json"
`
	tmpFile := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte(configContent), 0644))

	cfg, err := LoadConfig(tmpFile, "")
	require.NoError(t, err)

	assert.Equal(t, "https://topology-institutions.osg-htc.org/api", cfg.API.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.API.Timeout)
	// viper lower-cases map keys; HTTP header names are case-insensitive.
	assert.Equal(t, map[string]string{"x-forwarded-user": "admin"}, cfg.API.Headers)
	assert.Equal(t, 250*time.Millisecond, cfg.UI.Debounce)
	assert.Equal(t, time.Minute, cfg.UI.RefreshInterval)
	assert.True(t, cfg.ROR.Verify)
	assert.Equal(t, 2*time.Second, cfg.ROR.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	clearEnv(t)

	t.Setenv("INSTADMIN_API_BASE_URL", "http://backend:8089")
	t.Setenv("INSTADMIN_API_TIMEOUT", "3s")
	t.Setenv("INSTADMIN_UI_DEBOUNCE", "1s")
	t.Setenv("INSTADMIN_ROR_VERIFY", "true")
	t.Setenv("INSTADMIN_LOG_LEVEL", "error")

	cfg, err := LoadConfig("", "")
	require.NoError(t, err)

	assert.Equal(t, "http://backend:8089", cfg.API.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.API.Timeout)
	assert.Equal(t, time.Second, cfg.UI.Debounce)
	assert.True(t, cfg.ROR.Verify)
	assert.Equal(t, "error", cfg.Log.Level)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	clearEnv(t)

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("INSTADMIN_API_BASE_URL=http://from-env-file:8089\nINSTADMIN_LOG_FORMAT=json\n"), 0644))
	t.Setenv("INSTADMIN_LOG_FORMAT", "text")

	cfg, err := LoadConfig("", envFile)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env-file:8089", cfg.API.BaseURL)
	// Variables already in the environment win over the file.
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadConfig_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("", filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8089", cfg.API.BaseURL)
}

func TestLoadConfig_FileNotFound_UsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig("/nonexistent/path/config.yaml", "")
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8089", cfg.API.BaseURL)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	clearEnv(t)

	tmpFile := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(tmpFile, []byte("invalid: yaml: content: [[["), 0644))

	_, err := LoadConfig(tmpFile, "")
	assert.Error(t, err)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTADMIN_API_TIMEOUT", "soon")

	_, err := LoadConfig("", "")
	assert.Error(t, err)
}

// =============================================================================
// Logger Setup Tests
// =============================================================================

func TestSetupLogger_WritesToGivenWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&Config{Log: LogConfig{Level: "info", Format: "json"}}, &buf)

	logger.Info("hello", "component", "test")

	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestSetupLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		debugSeen bool
		warnSeen  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warn", false, true},
		{"error", false, false},
		{"invalid", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := SetupLogger(&Config{Log: LogConfig{Level: tt.level, Format: "text"}}, &buf)

			logger.Debug("debug-line")
			logger.Warn("warn-line")

			assert.Equal(t, tt.debugSeen, bytes.Contains(buf.Bytes(), []byte("debug-line")))
			assert.Equal(t, tt.warnSeen, bytes.Contains(buf.Bytes(), []byte("warn-line")))
		})
	}
}

// =============================================================================
// Test Helpers
// =============================================================================

func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"INSTADMIN_API_BASE_URL",
		"INSTADMIN_API_TIMEOUT",
		"INSTADMIN_UI_DEBOUNCE",
		"INSTADMIN_UI_REFRESH_INTERVAL",
		"INSTADMIN_ROR_VERIFY",
		"INSTADMIN_ROR_TIMEOUT",
		"INSTADMIN_LOG_LEVEL",
		"INSTADMIN_LOG_FORMAT",
	}
	for _, v := range envVars {
		// Setenv restores the original value when the test ends.
		t.Setenv(v, "")
		os.Unsetenv(v)
	}
}
