// Package config provides unified configuration for the nebula CLI and the
// registry server.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/blackportal-ai/nebula/internal/logging"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "NEBULA"

// Backend selects the metadata source a registry serves.
type Backend string

const (
	BackendRootFolder Backend = "rootfolder"
	BackendSQLite     Backend = "sqlite"
	BackendObject     Backend = "object"
)

// Config holds the unified configuration.
type Config struct {
	// DataDir is the base directory for all data files
	DataDir string `json:"data_dir" yaml:"data_dir" toml:"data_dir" envconfig:"DATA"`

	// ConfigDir holds configuration files and the CLI log
	ConfigDir string `json:"config_dir" yaml:"config_dir" toml:"config_dir" envconfig:"CONFIG"`

	// Registry server configuration
	Registry RegistryConfig `json:"registry" yaml:"registry" toml:"registry"`

	// Remote registry the CLI talks to
	Remote RemoteConfig `json:"remote" yaml:"remote" toml:"remote"`

	// Object storage for the object backend
	Storage StorageConfig `json:"storage" yaml:"storage" toml:"storage"`

	// Sync engine configuration
	Sync SyncConfig `json:"sync" yaml:"sync" toml:"sync"`

	// Logging configuration
	Logging logging.Config `json:"logging" yaml:"logging" toml:"logging"`
}

// RegistryConfig holds registry server configuration.
type RegistryConfig struct {
	// Root is the directory served by the rootfolder backend
	Root string `json:"root" yaml:"root" toml:"root"`

	// Backend is rootfolder, sqlite or object
	Backend Backend `json:"backend" yaml:"backend" toml:"backend"`

	// GRPCAddr is the gRPC listen address
	GRPCAddr string `json:"grpc_addr" yaml:"grpc_addr" toml:"grpc_addr" envconfig:"GRPC_ADDR"`

	// HTTPAddr is the HTTP listen address; empty disables the HTTP API
	HTTPAddr string `json:"http_addr" yaml:"http_addr" toml:"http_addr" envconfig:"HTTP_ADDR"`

	ReadTimeout     time.Duration `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" toml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// RemoteConfig holds the address of the remote registry.
type RemoteConfig struct {
	Host    string        `json:"host" yaml:"host" toml:"host"`
	Port    int           `json:"port" yaml:"port" toml:"port"`
	Timeout time.Duration `json:"timeout" yaml:"timeout" toml:"timeout"`
}

// StorageConfig holds object storage configuration.
type StorageConfig struct {
	// Type is the storage type: local, s3
	Type string `json:"type" yaml:"type" toml:"type"`

	// Path is the local storage path (for local type)
	Path string `json:"path" yaml:"path" toml:"path"`

	// S3 configuration (for s3 type)
	S3 S3Config `json:"s3" yaml:"s3" toml:"s3"`
}

// S3Config holds S3 storage configuration.
type S3Config struct {
	Bucket       string `json:"bucket" yaml:"bucket" toml:"bucket"`
	Region       string `json:"region" yaml:"region" toml:"region"`
	Endpoint     string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Prefix       string `json:"prefix" yaml:"prefix" toml:"prefix"`
	UsePathStyle bool   `json:"use_path_style" yaml:"use_path_style" toml:"use_path_style" envconfig:"USE_PATH_STYLE"`
}

// SyncConfig holds sync engine configuration.
type SyncConfig struct {
	// PageSize is the number of packages requested per list call
	PageSize int `json:"page_size" yaml:"page_size" toml:"page_size" envconfig:"PAGE_SIZE"`

	// Interval between mirror runs when Upstream is set
	Interval time.Duration `json:"interval" yaml:"interval" toml:"interval"`

	// Upstream is the host:port of a registry to mirror; empty disables mirroring
	Upstream string `json:"upstream" yaml:"upstream" toml:"upstream"`

	// RateLimit caps list requests per second; zero means unlimited
	RateLimit float64 `json:"rate_limit" yaml:"rate_limit" toml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// DefaultConfig returns the default configuration. Directory fields are left
// empty and filled in by Resolve.
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			Backend:         BackendRootFolder,
			GRPCAddr:        ":50051",
			HTTPAddr:        ":8080",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Remote: RemoteConfig{
			Host:    "127.0.0.1",
			Port:    50051,
			Timeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Type: "local",
		},
		Sync: SyncConfig{
			PageSize: 100,
			Interval: 15 * time.Minute,
		},
		Logging: logging.DefaultConfig(),
	}
}

// Resolve fills empty directories from the user's platform directories and
// derives the paths that hang off DataDir.
func (c *Config) Resolve() {
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.ConfigDir == "" {
		c.ConfigDir = defaultConfigDir()
	}
	if c.Registry.Root == "" {
		c.Registry.Root = filepath.Join(c.DataDir, "registry")
	}
	if c.Storage.Path == "" {
		c.Storage.Path = filepath.Join(c.DataDir, "objects")
	}
}

// LocalRegistryPath is the root folder of the CLI's local package cache.
func (c *Config) LocalRegistryPath() string {
	return filepath.Join(c.DataDir, "local-registry")
}

// CatalogPath returns the path of the SQLite catalog database.
func (c *Config) CatalogPath() string {
	return filepath.Join(c.DataDir, "catalog.db")
}

// LogPath returns the path of the CLI log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.DataDir, "nebula.log")
}

// RemoteAddr returns the remote registry as host:port.
func (c *Config) RemoteAddr() string {
	return fmt.Sprintf("%s:%d", c.Remote.Host, c.Remote.Port)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}

	switch c.Registry.Backend {
	case BackendRootFolder, BackendSQLite, BackendObject:
	default:
		return fmt.Errorf("invalid registry backend: %s (must be rootfolder, sqlite, or object)", c.Registry.Backend)
	}

	if c.Registry.GRPCAddr == "" {
		return fmt.Errorf("registry.grpc_addr is required")
	}

	if c.Remote.Port <= 0 || c.Remote.Port > 65535 {
		return fmt.Errorf("remote.port must be between 1 and 65535, got %d", c.Remote.Port)
	}

	if c.Storage.Type != "local" && c.Storage.Type != "s3" {
		return fmt.Errorf("invalid storage type: %s (must be local or s3)", c.Storage.Type)
	}

	if c.Storage.Type == "s3" && c.Storage.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when storage type is s3")
	}

	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("sync.page_size must be positive, got %d", c.Sync.PageSize)
	}

	if c.Sync.Upstream != "" && c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive when sync.upstream is set")
	}

	if c.Sync.RateLimit < 0 {
		return fmt.Errorf("sync.rate_limit must not be negative")
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}

	return nil
}

// LoadFromFile loads configuration from a YAML, JSON or TOML file on top of
// the defaults.
func LoadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := cfg.mergeFile(path); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadLayered reads dir/base.yaml and then dir/<environment>.yaml on top of
// it. Missing files are skipped.
func LoadLayered(dir, environment string) (*Config, error) {
	cfg := DefaultConfig()
	files := []string{"base.yaml"}
	if environment != "" {
		files = append(files, strings.ToLower(environment)+".yaml")
	}
	for _, name := range files {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), c); err != nil {
			return fmt.Errorf("failed to parse TOML config: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}
	return nil
}

// LoadFromEnv overlays environment variables on cfg. Variables use the
// NEBULA_ prefix and the section name, e.g. NEBULA_REMOTE_HOST or
// NEBULA_SYNC_PAGE_SIZE. NEBULA_DATA and NEBULA_CONFIG set the directories.
func LoadFromEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to load config from environment: %w", err)
	}
	return nil
}

// Load builds the effective configuration: defaults, then the file at path
// if one is given, then the environment. The result is resolved and validated.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Resolve()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// EnsureDirectories creates all required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.DataDir,
		c.ConfigDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

func defaultDataDir() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return filepath.Join(v, "nebula")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "nebula")
	}
	return filepath.Join(".", ".data")
}

func defaultConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "nebula")
	}
	return filepath.Join(".", ".config")
}
