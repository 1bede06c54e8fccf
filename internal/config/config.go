// Package config loads service configuration from TOML files with
// environment-specific overlays and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/tendant/simple-image-handler/internal/logging"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvServiceEnv      = "IMAGE_HANDLER_ENV"
	EnvShutdownTimeout = "IMAGE_HANDLER_SHUTDOWN_TIMEOUT"
	EnvLogLevel        = "IMAGE_HANDLER_LOG_LEVEL"
	EnvLogFormat       = "IMAGE_HANDLER_LOG_FORMAT"
)

// Config is the root configuration.
type Config struct {
	Server          ServerConfig     `toml:"server"`
	Logging         logging.Config   `toml:"logging"`
	Components      ComponentsConfig `toml:"components"`
	Cache           CacheConfig      `toml:"cache"`
	Provider        ProviderConfig   `toml:"provider"`
	Store           StoreConfig      `toml:"store"`
	Tool            ToolConfig       `toml:"tool"`
	DBOS            DBOSConfig       `toml:"dbos"`
	Ledger          LedgerConfig     `toml:"ledger"`
	ShutdownTimeout string           `toml:"shutdown_timeout"`
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads .env, then config.toml from dir and the overlay named by
// IMAGE_HANDLER_ENV. A missing base file yields an empty configuration. The
// result is finalized.
func Load(dir string) (*Config, error) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	cfg, err := load(filepath.Join(dir, BaseConfigFile))
	if errors.Is(err, fs.ErrNotExist) {
		cfg, err = &Config{}, nil
	}
	if err != nil {
		return nil, err
	}

	if path := overlayPath(dir); path != "" {
		overlay, err := load(path)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a single TOML file without overlays and finalizes it.
func LoadFile(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns a finalized configuration built from defaults and
// environment variables only.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize applies defaults, environment overrides, and validation to every
// section.
func (c *Config) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Logging.Finalize(&logging.Env{Level: EnvLogLevel, Format: EnvLogFormat}); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Components.Finalize(); err != nil {
		return fmt.Errorf("components: %w", err)
	}
	if err := c.Cache.Finalize(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Provider.Finalize(); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	if err := c.Store.Finalize(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Tool.Finalize(); err != nil {
		return fmt.Errorf("tool: %w", err)
	}
	if err := c.DBOS.Finalize(); err != nil {
		return fmt.Errorf("dbos: %w", err)
	}
	if err := c.Ledger.Finalize(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}

// Merge applies non-zero values from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	c.Server.Merge(&overlay.Server)
	c.Logging.Merge(&overlay.Logging)
	c.Components.Merge(&overlay.Components)
	c.Cache.Merge(&overlay.Cache)
	c.Provider.Merge(&overlay.Provider)
	c.Store.Merge(&overlay.Store)
	c.Tool.Merge(&overlay.Tool)
	c.DBOS.Merge(&overlay.DBOS)
	c.Ledger.Merge(&overlay.Ledger)
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func overlayPath(dir string) string {
	if env := os.Getenv(EnvServiceEnv); env != "" {
		path := filepath.Join(dir, fmt.Sprintf(OverlayConfigPattern, env))
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
