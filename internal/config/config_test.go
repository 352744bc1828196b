package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.API.Port)
	assert.Equal(t, "events:__global__", cfg.Redis.GlobalStream)
	assert.Equal(t, 150, cfg.Decay.ReflectionThreshold)
	assert.Equal(t, 720, cfg.Retention.ColdHours)
	assert.Equal(t, "graph-projection", cfg.Worker.GroupProjection)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	raw := map[string]any{
		"api":   map[string]any{"port": 9090},
		"redis": map[string]any{"addr": "redis.internal:6379"},
	}
	data, err := yaml.Marshal(raw)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "atlas.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.API.Port)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Addr)
	// Untouched defaults survive.
	assert.Equal(t, "idx:events", cfg.Redis.EventIndex)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	raw := map[string]any{"api": map[string]any{"port": 9090}}
	data, err := yaml.Marshal(raw)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "atlas.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	t.Setenv("CG_API_PORT", "7070")
	t.Setenv("CG_REDIS_GLOBAL_STREAM", "events:test")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.API.Port)
	assert.Equal(t, "events:test", cfg.Redis.GlobalStream)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/atlas.yaml")
	require.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.API.Port = 0 }},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }},
		{"retention ceiling below hot window", func(c *Config) { c.Redis.RetentionCeilingDays = 1 }},
		{"unordered tiers", func(c *Config) { c.Retention.WarmHours = 10 }},
		{"zero stability", func(c *Config) { c.Decay.StabilityBaseHours = 0 }},
		{"tracing without endpoint", func(c *Config) { c.Tracing.Enabled = true }},
		{"tiny block timeout", func(c *Config) { c.Worker.BlockTimeoutMs = 10 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
