package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaultConfig_ValidAfterResolve(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Resolve()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, filepath.Join(cfg.DataDir, "local-registry"), cfg.LocalRegistryPath())
	assert.Equal(t, filepath.Join(cfg.DataDir, "registry"), cfg.Registry.Root)
	assert.Equal(t, "127.0.0.1:50051", cfg.RemoteAddr())
}

func TestLoadFromFile_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nebula.yaml", `
data_dir: /srv/nebula
remote:
  host: registry.example.org
  port: 6000
sync:
  page_size: 25
  interval: 5m
registry:
  backend: sqlite
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/nebula", cfg.DataDir)
	assert.Equal(t, "registry.example.org", cfg.Remote.Host)
	assert.Equal(t, 6000, cfg.Remote.Port)
	assert.Equal(t, 25, cfg.Sync.PageSize)
	assert.Equal(t, 5*time.Minute, cfg.Sync.Interval)
	assert.Equal(t, BackendSQLite, cfg.Registry.Backend)

	// Untouched sections keep their defaults.
	assert.Equal(t, ":50051", cfg.Registry.GRPCAddr)
}

func TestLoadFromFile_TOML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nebula.toml", `
data_dir = "/var/lib/nebula"

[remote]
host = "10.0.0.7"
port = 7000

[storage]
type = "s3"

[storage.s3]
bucket = "packages"
region = "eu-central-1"
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/nebula", cfg.DataDir)
	assert.Equal(t, "10.0.0.7", cfg.Remote.Host)
	assert.Equal(t, 7000, cfg.Remote.Port)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "packages", cfg.Storage.S3.Bucket)
}

func TestLoadFromFile_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "nebula.json", `{"remote": {"host": "json-host", "port": 9000}}`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "json-host", cfg.Remote.Host)
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := writeFile(t, dir, "nebula.ini", "x=1")
	_, err = LoadFromFile(bad)
	assert.ErrorContains(t, err, "unsupported config file format")
}

func TestLoadLayered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
remote:
  host: base-host
  port: 1000
`)
	writeFile(t, dir, "production.yaml", `
remote:
  host: prod-host
`)

	cfg, err := LoadLayered(dir, "Production")
	require.NoError(t, err)
	assert.Equal(t, "prod-host", cfg.Remote.Host)
	assert.Equal(t, 1000, cfg.Remote.Port)

	// An environment without its own file falls back to base.
	cfg, err = LoadLayered(dir, "local")
	require.NoError(t, err)
	assert.Equal(t, "base-host", cfg.Remote.Host)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("NEBULA_DATA", "/env/data")
	t.Setenv("NEBULA_REMOTE_HOST", "env-host")
	t.Setenv("NEBULA_REMOTE_PORT", "4242")
	t.Setenv("NEBULA_SYNC_PAGE_SIZE", "7")
	t.Setenv("NEBULA_LOGGING_LEVEL", "debug")

	cfg := DefaultConfig()
	require.NoError(t, LoadFromEnv(cfg))

	assert.Equal(t, "/env/data", cfg.DataDir)
	assert.Equal(t, "env-host", cfg.Remote.Host)
	assert.Equal(t, 4242, cfg.Remote.Port)
	assert.Equal(t, 7, cfg.Sync.PageSize)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Variables that are not set leave the value alone.
	assert.Equal(t, ":50051", cfg.Registry.GRPCAddr)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad backend", func(c *Config) { c.Registry.Backend = "postgres" }, "invalid registry backend"},
		{"bad port", func(c *Config) { c.Remote.Port = 0 }, "remote.port"},
		{"bad storage", func(c *Config) { c.Storage.Type = "gcs" }, "invalid storage type"},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, "s3.bucket"},
		{"bad page size", func(c *Config) { c.Sync.PageSize = 0 }, "sync.page_size"},
		{"upstream without interval", func(c *Config) { c.Sync.Upstream = "up:1"; c.Sync.Interval = 0 }, "sync.interval"},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.DataDir = t.TempDir()
			cfg.Resolve()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.errMsg)
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	base := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = filepath.Join(base, "data")
	cfg.ConfigDir = filepath.Join(base, "config")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, cfg.DataDir)
	assert.DirExists(t, cfg.ConfigDir)
}
