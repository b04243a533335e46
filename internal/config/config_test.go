package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 5000, cfg.Pipeline.ChunkSize)
	assert.EqualValues(t, 104857600, cfg.Pipeline.MaxUploadBytes)
	assert.Equal(t, 10, cfg.Pipeline.TopN)
	assert.EqualValues(t, 4, cfg.Pipeline.MaxConcurrentRuns)
	assert.Equal(t, time.Hour, cfg.Pipeline.SessionTTL)
	assert.True(t, cfg.Security.RateLimit.Enabled)
	assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TRAFFICLENS_SERVER_PORT", "9090")
	t.Setenv("TRAFFICLENS_LOGGING_LEVEL", "debug")
	t.Setenv("TRAFFICLENS_PIPELINE_CHUNK_SIZE", "100")
	t.Setenv("TRAFFICLENS_PIPELINE_SESSION_TTL", "30m")
	t.Setenv("TRAFFICLENS_SECURITY_RATE_LIMIT_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 100, cfg.Pipeline.ChunkSize)
	assert.Equal(t, 30*time.Minute, cfg.Pipeline.SessionTTL)
	assert.False(t, cfg.Security.RateLimit.Enabled)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trafficlens.yml")
	yamlData := `
server:
  port: 7070
pipeline:
  top_n: 25
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0o644))
	t.Setenv("TRAFFICLENS_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 25, cfg.Pipeline.TopN)
	// Untouched keys still get their defaults.
	assert.Equal(t, 5000, cfg.Pipeline.ChunkSize)
}

func TestLoadEnvWinsOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trafficlens.yml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o644))
	t.Setenv("TRAFFICLENS_CONFIG_FILE", path)
	t.Setenv("TRAFFICLENS_SERVER_PORT", "9191")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "TRAFFICLENS_SERVER_PORT", "70000"},
		{"zero chunk size", "TRAFFICLENS_PIPELINE_CHUNK_SIZE", "0"},
		{"zero max upload", "TRAFFICLENS_PIPELINE_MAX_UPLOAD_BYTES", "0"},
		{"zero concurrent runs", "TRAFFICLENS_PIPELINE_MAX_CONCURRENT_RUNS", "0"},
		{"unknown trace exporter", "TRAFFICLENS_TELEMETRY_TRACE_EXPORTER", "jaeger"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
		})
	}
}
