package webapi

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the full service configuration.
type Config struct {
	Listen      string `yaml:"listen"`
	DBPath      string `yaml:"db_path"`
	UploadDir   string `yaml:"upload_dir"`
	MaxUploadMB int    `yaml:"max_upload_mb"`
	LogLevel    string `yaml:"log_level"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:      ":8086",
		DBPath:      "data/analyzer.db",
		UploadDir:   os.TempDir(),
		MaxUploadMB: 200,
		LogLevel:    "info",
	}
}

// LoadConfig reads and parses a YAML config file, merged over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be > 0")
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log_level %q", c.LogLevel)
	}
	return nil
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 { return int64(c.MaxUploadMB) * 1024 * 1024 }
