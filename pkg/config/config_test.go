package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "data/config/video-systems.json", cfg.Video.ConfigPath)
	assert.Equal(t, "file", cfg.Video.Store)
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.HTTP.MaxConcurrent = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty address", func(c *Config) { c.Server.Address = "" }},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }},
		{"unknown store", func(c *Config) { c.Video.Store = "s3" }},
		{"file store without path", func(c *Config) { c.Video.ConfigPath = "" }},
		{"redis store without redis", func(c *Config) { c.Video.Store = "redis" }},
		{"empty recordings dir", func(c *Config) { c.Recordings.Dir = "" }},
		{"zero upload limit", func(c *Config) { c.Recordings.MaxUploadBytes = 0 }},
		{"pong before ping", func(c *Config) { c.Events.PongTimeout = c.Events.PingInterval }},
		{"zero event buffer", func(c *Config) { c.Events.BufferSize = 0 }},
		{"half port range", func(c *Config) { c.WebRTC.PortRange.Min = 10000 }},
		{"inverted port range", func(c *Config) {
			c.WebRTC.PortRange.Min = 20000
			c.WebRTC.PortRange.Max = 10000
		}},
		{"tracing sample rate", func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.SampleRate = 1.5
		}},
		{"empty jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"http rps must be > 0", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.RequestsPerSecond = 0
		}},
		{"http max concurrent must be >= 0", func(c *Config) {
			c.RateLimiting.Enabled = true
			c.RateLimiting.HTTP.MaxConcurrent = -1
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yamlData := `
server:
  address: ":9000"
video:
  config_path: "/var/lib/kalon/video-systems.json"
recordings:
  dir: "/var/lib/kalon/recordings"
  max_upload_bytes: 1048576
events:
  ping_interval: 5s
  pong_timeout: 15s
`
	require.NoError(t, os.WriteFile(path, []byte(yamlData), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, "/var/lib/kalon/video-systems.json", cfg.Video.ConfigPath)
	assert.Equal(t, int64(1048576), cfg.Recordings.MaxUploadBytes)
	assert.Equal(t, 5*time.Second, cfg.Events.PingInterval)
	// untouched sections keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not, a, map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("KALON_SERVER_ADDRESS", ":7070")
	t.Setenv("KALON_VIDEO_CONFIG_PATH", "/tmp/video.json")
	t.Setenv("KALON_MAX_UPLOAD_BYTES", "4096")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Address)
	assert.Equal(t, "/tmp/video.json", cfg.Video.ConfigPath)
	assert.Equal(t, int64(4096), cfg.Recordings.MaxUploadBytes)
}

func TestLoadFirst_SkipsBrokenPaths(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("server: [oops"), 0644))
	require.NoError(t, os.WriteFile(good, []byte("server:\n  address: \":8181\"\n"), 0644))

	cfg, path, err := LoadFirst(broken, good)
	require.NoError(t, err)
	assert.Equal(t, good, path)
	assert.Equal(t, ":8181", cfg.Server.Address)
}
