package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration loaded from sorter.yaml. Command-line flags
// override these values.
type Config struct {
	TargetDir string   `yaml:"target_dir"`
	Workers   int      `yaml:"workers"`
	Walkers   int      `yaml:"walkers"`
	ChunkSize int      `yaml:"chunk_size"`
	Exclude   []string `yaml:"exclude"`
	LogLevel  string   `yaml:"log_level"`
	// DBPath enables run history when set. serve falls back to DefaultDBPath.
	DBPath   string `yaml:"db_path"`
	HTTPAddr string `yaml:"http_addr"`
	Schedule string `yaml:"schedule"`
}

// DefaultDBPath is the run-history database used by serve when none is set.
const DefaultDBPath = "sorter.db"

// applyDefaults fills zero/empty fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.TargetDir == "" {
		c.TargetDir = "dist"
	}
	if c.Workers == 0 {
		c.Workers = 32
	}
	if c.Walkers == 0 {
		c.Walkers = 4
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = 64 * 1024
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTPAddr == "" {
		c.HTTPAddr = ":8080"
	}
	if c.Schedule == "" {
		c.Schedule = "@every 15m"
	}
}

// Validate rejects values that cannot be used.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Walkers < 1 {
		return fmt.Errorf("walkers must be at least 1, got %d", c.Walkers)
	}
	if c.ChunkSize < 1 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	return nil
}

// Default returns a Config with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads and parses the YAML config file at path.
// If the file does not exist, Load returns a default Config so the sorter
// runs without any config file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open config %q: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %q: %w", path, err)
	}
	return &cfg, nil
}
