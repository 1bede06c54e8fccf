package config

import (
	"fmt"
	"os"
	"regexp"
)

const (
	EnvStoreBasePath    = "IMAGE_HANDLER_STORE_BASE_PATH"
	EnvStoreDatabaseURL = "IMAGE_HANDLER_STORE_DATABASE_URL"
	EnvStoreSQLitePath  = "IMAGE_HANDLER_STORE_SQLITE_PATH"
	EnvStoreTable       = "IMAGE_HANDLER_STORE_TABLE"
)

var tablePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// StoreConfig configures where derived images are cached.
type StoreConfig struct {
	BasePath    string `toml:"base_path"`
	DatabaseURL string `toml:"database_url"`
	SQLitePath  string `toml:"sqlite_path"`
	Table       string `toml:"table"`
}

func (c *StoreConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *StoreConfig) Merge(overlay *StoreConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.DatabaseURL != "" {
		c.DatabaseURL = overlay.DatabaseURL
	}
	if overlay.SQLitePath != "" {
		c.SQLitePath = overlay.SQLitePath
	}
	if overlay.Table != "" {
		c.Table = overlay.Table
	}
}

func (c *StoreConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = ".data/cache"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = ".data/cache.db"
	}
	if c.Table == "" {
		c.Table = "image_cache"
	}
}

func (c *StoreConfig) loadEnv() {
	if v := os.Getenv(EnvStoreBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvStoreDatabaseURL); v != "" {
		c.DatabaseURL = v
	}
	if v := os.Getenv(EnvStoreSQLitePath); v != "" {
		c.SQLitePath = v
	}
	if v := os.Getenv(EnvStoreTable); v != "" {
		c.Table = v
	}
}

func (c *StoreConfig) validate() error {
	if !tablePattern.MatchString(c.Table) {
		return fmt.Errorf("invalid table name %q", c.Table)
	}
	return nil
}
