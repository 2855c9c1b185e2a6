package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultLogLevel is the default logging level.
	DefaultLogLevel = "info"

	// DefaultOutDir is the default directory for run logs and artifacts.
	DefaultOutDir = "./results"

	// DefaultListen is the default results server listen address.
	DefaultListen = ":8080"

	// DefaultSQLitePath is the default run index database path.
	DefaultSQLitePath = "./testoor-index.db"
)

// Config is the root configuration for testoor. Everything here is
// ambient: the per-run settings (suites, targets, dry-run) come from the
// command line as Settings.
type Config struct {
	LogLevel string       `yaml:"log_level"`
	Index    IndexConfig  `yaml:"index"`
	Server   ServerConfig `yaml:"server"`
	Upload   UploadConfig `yaml:"upload"`
}

// IndexConfig configures the optional run history index.
type IndexConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty"`
	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty"`
}

// ServerConfig contains results server settings.
type ServerConfig struct {
	Listen      string          `yaml:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig configures per-IP rate limiting on the results server.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// UploadConfig contains S3 settings for uploading run artifacts.
type UploadConfig struct {
	EndpointURL     string `yaml:"endpoint_url,omitempty"`
	Region          string `yaml:"region,omitempty"`
	Bucket          string `yaml:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	Prefix          string `yaml:"prefix,omitempty"`
	StorageClass    string `yaml:"storage_class,omitempty"`
	ACL             string `yaml:"acl,omitempty"`
}

// Load reads and parses a configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.ApplyDefaults()

	return &cfg, nil
}

// Default returns a configuration with all defaults applied, used when
// no config file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()

	return cfg
}

// ApplyDefaults sets default values for unspecified configuration options.
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}

	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}

	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerMinute == 0 {
		c.Server.RateLimit.RequestsPerMinute = 120
	}

	if c.Index.Database.Driver == "" {
		c.Index.Database.Driver = "sqlite"
	}

	if c.Index.Database.SQLite.Path == "" {
		c.Index.Database.SQLite.Path = DefaultSQLitePath
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	switch c.Index.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("index: unknown database driver %q", c.Index.Database.Driver)
	}

	if c.Index.Enabled && c.Index.Database.Driver == "postgres" {
		if c.Index.Database.Postgres.Host == "" {
			return fmt.Errorf("index: postgres host is required")
		}
	}

	return nil
}
