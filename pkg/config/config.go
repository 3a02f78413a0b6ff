package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/storyeval/storyeval/pkg/cost"
	"github.com/storyeval/storyeval/pkg/models"
)

// Config holds all storyeval configuration.
type Config struct {
	Listen  string              `yaml:"listen" validate:"required"`
	DBPath  string              `yaml:"db_path" validate:"required"`
	Log     LogConfig           `yaml:"log"`
	Store   StoreConfig         `yaml:"store"`
	Stats   StatsConfig         `yaml:"stats"`
	Pricing models.PricingTable `yaml:"pricing"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level   string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format  string `yaml:"format" validate:"omitempty,oneof=json text"`
	Service string `yaml:"service"`
}

// StoreConfig controls the entry log.
type StoreConfig struct {
	MaxEntries int `yaml:"max_entries" validate:"gt=0"`
}

// StatsConfig controls the aggregation engine.
type StatsConfig struct {
	RecentLimit int `yaml:"recent_limit" validate:"gte=0"`
	// CacheSize is the number of reports memoised per store revision; 0 disables caching.
	CacheSize int64 `yaml:"cache_size" validate:"gte=0"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Listen: ":3000",
		DBPath: "storyeval.db",
		Log: LogConfig{
			Level:   "info",
			Format:  "json",
			Service: "storyeval",
		},
		Store: StoreConfig{
			MaxEntries: 1000,
		},
		Stats: StatsConfig{
			RecentLimit: 10,
			CacheSize:   64,
		},
		Pricing: cost.DefaultTable(),
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads path when set, otherwise returns Default.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
