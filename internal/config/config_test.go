package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeShell, cfg.Mode)
	assert.False(t, cfg.ShouldServe())
	assert.True(t, cfg.Bootstrap.UsersTable)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"serve defaults", func(c *Config) { c.Mode = ModeServe }, false},
		{"bad mode", func(c *Config) { c.Mode = "daemon" }, true},
		{"serve without http addr", func(c *Config) { c.Mode = ModeServe; c.HTTP.Addr = "" }, true},
		{"grpc without addr", func(c *Config) { c.Mode = ModeServe; c.GRPC.Addr = "" }, true},
		{"grpc disabled without addr", func(c *Config) { c.Mode = ModeServe; c.GRPC.Enabled = false; c.GRPC.Addr = "" }, false},
		{"same addr", func(c *Config) { c.Mode = ModeServe; c.GRPC.Addr = c.HTTP.Addr }, true},
		{"both ephemeral", func(c *Config) { c.Mode = ModeServe; c.HTTP.Addr = "127.0.0.1:0"; c.GRPC.Addr = "127.0.0.1:0" }, false},
		{"missing static dir", func(c *Config) { c.HTTP.StaticDir = filepath.Join(t.TempDir(), "nope") }, true},
		{"static dir", func(c *Config) { c.HTTP.StaticDir = t.TempDir() }, false},
		{"zero stats window", func(c *Config) { c.Stats.Window = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minirel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode: serve
http:
  addr: ":8123"
  read_timeout: 5s
grpc:
  enabled: false
bootstrap:
  users_table: false
`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ModeServe, cfg.Mode)
	assert.Equal(t, ":8123", cfg.HTTP.Addr)
	assert.Equal(t, 5*time.Second, cfg.HTTP.ReadTimeout)
	assert.Equal(t, 60*time.Second, cfg.HTTP.WriteTimeout, "unset fields keep defaults")
	assert.False(t, cfg.GRPC.Enabled)
	assert.False(t, cfg.Bootstrap.UsersTable)
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "minirel.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mode": "serve", "grpc": {"addr": ":7000", "enabled": true}}`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.GRPC.Addr)
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	toml := filepath.Join(dir, "minirel.toml")
	require.NoError(t, os.WriteFile(toml, []byte("mode = 'serve'"), 0o644))
	_, err = LoadFromFile(toml)
	assert.ErrorContains(t, err, "unsupported config file format")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("mode: [serve"), 0o644))
	_, err = LoadFromFile(bad)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("MINIREL_MODE", "serve")
	t.Setenv("MINIREL_HTTP_ADDR", ":8555")
	t.Setenv("MINIREL_HTTP_IDLE_TIMEOUT", "2m")
	t.Setenv("MINIREL_GRPC_ENABLED", "false")
	t.Setenv("MINIREL_SHELL_COLOR", "0")
	t.Setenv("MINIREL_STATS_WINDOW", "10m")

	cfg := DefaultConfig()
	require.NoError(t, LoadFromEnv(cfg))
	assert.Equal(t, ModeServe, cfg.Mode)
	assert.Equal(t, ":8555", cfg.HTTP.Addr)
	assert.Equal(t, 2*time.Minute, cfg.HTTP.IdleTimeout)
	assert.False(t, cfg.GRPC.Enabled)
	assert.False(t, cfg.Shell.Color)
	assert.Equal(t, 10*time.Minute, cfg.Stats.Window)
}

func TestLoadFromEnv_Malformed(t *testing.T) {
	t.Setenv("MINIREL_GRPC_ENABLED", "maybe")
	t.Setenv("MINIREL_STATS_WINDOW", "forever")

	cfg := DefaultConfig()
	err := LoadFromEnv(cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "MINIREL_GRPC_ENABLED")
	assert.ErrorContains(t, err, "MINIREL_STATS_WINDOW")
	assert.True(t, cfg.GRPC.Enabled, "malformed values leave defaults")
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("MINIREL_HTTP_ADDR=:8999\nMINIREL_GRPC_ADDR=:7777\n"), 0o644))

	t.Setenv("MINIREL_GRPC_ADDR", ":1111")
	t.Setenv("MINIREL_HTTP_ADDR", "")
	os.Unsetenv("MINIREL_HTTP_ADDR")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, ":8999", os.Getenv("MINIREL_HTTP_ADDR"))
	assert.Equal(t, ":1111", os.Getenv("MINIREL_GRPC_ADDR"), "existing variables win")

	assert.NoError(t, LoadDotEnv(filepath.Join(dir, "absent.env")))
}
