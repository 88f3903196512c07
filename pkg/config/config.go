// Package config loads the backend configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// TypesenseConfig contains connection details for the Typesense backend.
type TypesenseConfig struct {
	URL         string `yaml:"url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// Config is the root configuration for both the setup pipeline and the
// query server.
type Config struct {
	// SchemeRegistry is the registry used to discover schemes (BARTOC).
	SchemeRegistry string `yaml:"scheme_registry"`
	// MappingRegistries are the registries whose mapping dumps get ingested.
	MappingRegistries []string `yaml:"mapping_registries"`
	// Cache is the directory holding downloaded dumps and the database.
	Cache string `yaml:"cache"`
	// Database is the SQLite file for the label cache and scheme table.
	Database string `yaml:"database"`
	// Downloads maps vocabulary notations to concept dump URLs.
	Downloads map[string]string `yaml:"downloads"`

	Typesense TypesenseConfig `yaml:"typesense"`

	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// Load reads the config file at path. A missing file yields the defaults.
// A .env file and environment variables override the file:
// SUGGEST_TYPESENSE_URL, SUGGEST_TYPESENSE_API_KEY, SUGGEST_DATABASE,
// SUGGEST_PORT.
func Load(path string) (*Config, error) {
	// Load .env if exists
	_ = godotenv.Load()

	// Unmarshal into a zero config so file-provided maps replace the
	// defaults instead of merging into them; applyDefaults fills the gaps.
	cfg := &Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyDefaults(cfg)

	if v := os.Getenv("SUGGEST_TYPESENSE_URL"); v != "" {
		cfg.Typesense.URL = v
	}
	if v := os.Getenv("SUGGEST_TYPESENSE_API_KEY"); v != "" {
		cfg.Typesense.APIKey = v
	}
	if v := os.Getenv("SUGGEST_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("SUGGEST_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid SUGGEST_PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		SchemeRegistry: "https://bartoc.org/api",
		MappingRegistries: []string{
			"https://coli-conc.gbv.de/api",
		},
		Cache: "./cache",
		Downloads: map[string]string{
			"BK":  "https://api.dante.gbv.de/export/download/bk/default/bk__default.jskos.ndjson",
			"RVK": "https://coli-conc.gbv.de/rvk/data/2023_4/rvko_2023_4.ndjson",
		},
		Typesense: TypesenseConfig{URL: "http://localhost:8108"},
		Port:      3021,
		LogLevel:  "info",
	}
}

func applyDefaults(cfg *Config) {
	def := defaultConfig()
	if cfg.SchemeRegistry == "" {
		cfg.SchemeRegistry = def.SchemeRegistry
	}
	if len(cfg.MappingRegistries) == 0 {
		cfg.MappingRegistries = def.MappingRegistries
	}
	if cfg.Cache == "" {
		cfg.Cache = def.Cache
	}
	if cfg.Database == "" {
		cfg.Database = cfg.Cache + "/mapping-concept-cache.db"
	}
	if cfg.Downloads == nil {
		cfg.Downloads = def.Downloads
	}
	if cfg.Typesense.URL == "" {
		cfg.Typesense.URL = def.Typesense.URL
	}
	if cfg.Port == 0 {
		cfg.Port = def.Port
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
}

// SlogLevel translates the configured log level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
