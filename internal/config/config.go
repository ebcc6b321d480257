package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/trawlkit/trawl/internal/progress"
	"github.com/trawlkit/trawl/pkg/fetch"
)

// Config defines configuration for the trawl CLI.
type Config struct {
	Project         string   `yaml:"project"`
	Bucket          string   `yaml:"bucket"`
	Prefix          string   `yaml:"prefix"`
	Dest            string   `yaml:"dest"`
	Parallelism     int      `yaml:"parallelism"`
	Workers         int      `yaml:"workers"`
	MaxComposeBytes int64    `yaml:"max_compose_bytes"`
	Strategy        string   `yaml:"strategy"`
	Classes         []string `yaml:"classes"`
	Progress        bool     `yaml:"progress"`
	LogLevel        string   `yaml:"log_level"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Parallelism:     16,
		Workers:         16,
		MaxComposeBytes: fetch.DefaultMaxComposeBytes,
		Strategy:        string(fetch.StrategyParallel),
		Classes:         []string{"STANDARD"},
		LogLevel:        "warn",
	}
}

// yamlConfig is used for YAML unmarshaling with string byte sizes.
type yamlConfig struct {
	Project         string   `yaml:"project"`
	Bucket          string   `yaml:"bucket"`
	Prefix          string   `yaml:"prefix"`
	Dest            string   `yaml:"dest"`
	Parallelism     int      `yaml:"parallelism"`
	Workers         int      `yaml:"workers"`
	MaxComposeBytes string   `yaml:"max_compose_bytes"`
	Strategy        string   `yaml:"strategy"`
	Classes         []string `yaml:"classes"`
	Progress        bool     `yaml:"progress"`
	LogLevel        string   `yaml:"log_level"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.Project != "" {
		cfg.Project = yc.Project
	}
	if yc.Bucket != "" {
		cfg.Bucket = yc.Bucket
	}
	if yc.Prefix != "" {
		cfg.Prefix = yc.Prefix
	}
	if yc.Dest != "" {
		cfg.Dest = yc.Dest
	}
	if yc.Parallelism != 0 {
		cfg.Parallelism = yc.Parallelism
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.MaxComposeBytes != "" {
		size, err := progress.ParseBytes(yc.MaxComposeBytes)
		if err != nil {
			return Config{}, fmt.Errorf("parse max_compose_bytes: %w", err)
		}
		cfg.MaxComposeBytes = size
	}
	if yc.Strategy != "" {
		cfg.Strategy = yc.Strategy
	}
	if len(yc.Classes) != 0 {
		cfg.Classes = yc.Classes
	}
	cfg.Progress = yc.Progress
	if yc.LogLevel != "" {
		cfg.LogLevel = yc.LogLevel
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TRAWL_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("TRAWL_PROJECT"); v != "" {
		c.Project = v
	}
	if v := os.Getenv("TRAWL_BUCKET"); v != "" {
		c.Bucket = v
	}
	if v := os.Getenv("TRAWL_PREFIX"); v != "" {
		c.Prefix = v
	}
	if v := os.Getenv("TRAWL_DEST"); v != "" {
		c.Dest = v
	}
	if v := os.Getenv("TRAWL_PARALLELISM"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TRAWL_PARALLELISM: %w", err)
		}
		c.Parallelism = n
	}
	if v := os.Getenv("TRAWL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse TRAWL_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("TRAWL_MAX_COMPOSE_BYTES"); v != "" {
		size, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse TRAWL_MAX_COMPOSE_BYTES: %w", err)
		}
		c.MaxComposeBytes = size
	}
	if v := os.Getenv("TRAWL_STRATEGY"); v != "" {
		c.Strategy = v
	}
	if v := os.Getenv("TRAWL_CLASSES"); v != "" {
		c.Classes = SplitClasses(v)
	}
	if v := os.Getenv("TRAWL_PROGRESS"); v != "" {
		c.Progress = v == "true" || v == "1"
	}
	if v := os.Getenv("TRAWL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("config: bucket is required")
	}
	if c.Parallelism <= 0 {
		return errors.New("config: parallelism must be positive")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.MaxComposeBytes < 0 {
		return errors.New("config: max_compose_bytes must be non-negative")
	}
	if _, err := fetch.ParseStrategy(c.Strategy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.Project != "" {
		c.Project = override.Project
	}
	if override.Bucket != "" {
		c.Bucket = override.Bucket
	}
	if override.Prefix != "" {
		c.Prefix = override.Prefix
	}
	if override.Dest != "" {
		c.Dest = override.Dest
	}
	if override.Parallelism != 0 {
		c.Parallelism = override.Parallelism
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.MaxComposeBytes != 0 {
		c.MaxComposeBytes = override.MaxComposeBytes
	}
	if override.Strategy != "" {
		c.Strategy = override.Strategy
	}
	if len(override.Classes) != 0 {
		c.Classes = override.Classes
	}
	if override.Progress {
		c.Progress = override.Progress
	}
	if override.LogLevel != "" {
		c.LogLevel = override.LogLevel
	}
	return c
}

// SplitClasses parses a comma-separated storage class list.
func SplitClasses(s string) []string {
	var classes []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			classes = append(classes, strings.ToUpper(c))
		}
	}
	return classes
}
