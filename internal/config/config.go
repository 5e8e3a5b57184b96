// Package config provides configuration management for kbexport.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/kbexport/internal/util"
)

const (
	// ConfigFileName is the default config file name
	ConfigFileName = "config.yaml"
	// Dir is the project configuration directory
	Dir = ".kbexport"
	// EnvPrefix prefixes every environment variable override.
	EnvPrefix = "KBX"
)

// Config represents the kbexport configuration.
type Config struct {
	// Environment is "development", "production" or "test". Development
	// pretty-prints JSON archive entries.
	Environment string         `yaml:"environment"`
	Database    DatabaseConfig `yaml:"database"`
	Blob        BlobConfig     `yaml:"blob"`
	Export      ExportConfig   `yaml:"export"`
	Server      ServerConfig   `yaml:"server"`
}

// DatabaseConfig selects the knowledge base store.
type DatabaseConfig struct {
	// Driver is "sqlite" or "postgres".
	Driver string `yaml:"driver"`
	// Path is the SQLite data directory.
	Path string `yaml:"path"`
	// DSN is the PostgreSQL connection string.
	DSN string `yaml:"dsn,omitempty"`
}

// BlobConfig selects where attachment content is read from.
type BlobConfig struct {
	// Driver is "fs" or "gcs".
	Driver          string          `yaml:"driver"`
	Dir             string          `yaml:"dir"`
	Bucket          string          `yaml:"bucket,omitempty"`
	Project         string          `yaml:"project,omitempty"`
	CredentialsFile string          `yaml:"credentials_file,omitempty"`
	Cache           BlobCacheConfig `yaml:"cache"`
}

// BlobCacheConfig configures the local read-through cache.
type BlobCacheConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Dir      string        `yaml:"dir"`
	InMemory bool          `yaml:"in_memory"`
	TTL      time.Duration `yaml:"ttl"`
}

// ExportConfig holds export defaults.
type ExportConfig struct {
	// Format is "json" or "markdown".
	Format string `yaml:"format"`
	// Archive is "zip" or "tar.zst".
	Archive               string `yaml:"archive"`
	AttachmentConcurrency int    `yaml:"attachment_concurrency"`
	// TempDir receives archives while they are built. Empty uses the
	// system temp dir.
	TempDir string `yaml:"temp_dir"`
}

// ServerConfig configures `kbexport serve`.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Environment: "production",
		Database: DatabaseConfig{
			Driver: "sqlite",
			Path:   filepath.Join(Dir, "data"),
		},
		Blob: BlobConfig{
			Driver: "fs",
			Dir:    filepath.Join(Dir, "blobs"),
			Cache: BlobCacheConfig{
				Dir: filepath.Join(Dir, "cache"),
				TTL: 24 * time.Hour,
			},
		},
		Export: ExportConfig{
			Format:                "json",
			Archive:               "zip",
			AttachmentConcurrency: 8,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
	}
}

// LoadFrom loads the config from a specific path on top of the defaults.
// A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SaveTo writes the config to path atomically.
func (c *Config) SaveTo(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Init writes the default config into dir/.kbexport/config.yaml.
func Init(dir string, force bool) (string, error) {
	path := filepath.Join(dir, Dir, ConfigFileName)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	if err := Default().SaveTo(path); err != nil {
		return "", err
	}
	return path, nil
}
