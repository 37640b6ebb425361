package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. LIFEAXES_SERVER_PORT.
const EnvPrefix = "LIFEAXES_"

// Config holds all lifeaxes configuration. Values come from defaults, then
// the YAML file, then environment variables.
type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Database DatabaseConfig `yaml:"database" envPrefix:"DATABASE_"`
	Catalog  CatalogConfig  `yaml:"catalog" envPrefix:"CATALOG_"`
	Pipeline PipelineConfig `yaml:"pipeline" envPrefix:"PIPELINE_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
}

type ServerConfig struct {
	Bind string `yaml:"bind" env:"BIND"`
	Port int    `yaml:"port" env:"PORT"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" env:"PATH"` // empty resolves to store.DefaultDBPath()
}

type CatalogConfig struct {
	Path  string `yaml:"path" env:"PATH"` // empty uses the built-in catalog
	Watch bool   `yaml:"watch" env:"WATCH"`
}

type PipelineConfig struct {
	DefaultWindow   string        `yaml:"default_window" env:"DEFAULT_WINDOW"`
	Timezone        string        `yaml:"timezone" env:"TIMEZONE"` // IANA name; empty is the host zone
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"REFRESH_INTERVAL"`
	Concurrency     int           `yaml:"concurrency" env:"CONCURRENCY"`
}

type LogConfig struct {
	Level       string `yaml:"level" env:"LEVEL"` // debug, info, warn, error
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37780,
		},
		Catalog: CatalogConfig{
			Watch: true,
		},
		Pipeline: PipelineConfig{
			DefaultWindow:   "90d",
			RefreshInterval: 24 * time.Hour,
			Concurrency:     4,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns ~/.lifeaxes/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".lifeaxes", "config.yaml"), nil
}

// Load builds the configuration. An empty path reads the default file if it
// exists; an explicit path must exist.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err == nil {
			path = p
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist) && !explicit:
		default:
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Pipeline.RefreshInterval < 0 {
		return fmt.Errorf("pipeline.refresh_interval must not be negative")
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// Location resolves the configured timezone used for calendar days.
func (c *Config) Location() (*time.Location, error) {
	if c.Pipeline.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return nil, fmt.Errorf("pipeline.timezone: %w", err)
	}
	return loc, nil
}
