package config

import (
	"fmt"
	"os"
	"time"

	"github.com/docker/go-units"
)

const (
	EnvProviderBasePath      = "IMAGE_HANDLER_PROVIDER_BASE_PATH"
	EnvProviderBaseURL       = "IMAGE_HANDLER_PROVIDER_BASE_URL"
	EnvProviderMaxSourceSize = "IMAGE_HANDLER_MAX_SOURCE_SIZE"
	EnvProviderTimeout       = "IMAGE_HANDLER_PROVIDER_TIMEOUT"
	EnvContentStorageDir     = "IMAGE_HANDLER_CONTENT_STORAGE_DIR"
)

// ProviderConfig configures where source images are fetched from.
type ProviderConfig struct {
	// BasePath is the root directory of the filesystem provider.
	BasePath string `toml:"base_path"`
	// BaseURL prefixes locators for the http provider. Empty means locators
	// must be absolute URLs.
	BaseURL       string `toml:"base_url"`
	MaxSourceSize string `toml:"max_source_size"`
	Timeout       string `toml:"timeout"`
	// ContentStorageDir backs the content provider's development preset.
	ContentStorageDir string `toml:"content_storage_dir"`

	maxSourceSizeVal int64
}

// MaxSourceSizeBytes returns the parsed source size limit.
func (c *ProviderConfig) MaxSourceSizeBytes() int64 {
	return c.maxSourceSizeVal
}

func (c *ProviderConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

func (c *ProviderConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

func (c *ProviderConfig) Merge(overlay *ProviderConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.MaxSourceSize != "" {
		c.MaxSourceSize = overlay.MaxSourceSize
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.ContentStorageDir != "" {
		c.ContentStorageDir = overlay.ContentStorageDir
	}
}

func (c *ProviderConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = ".data/sources"
	}
	if c.MaxSourceSize == "" {
		c.MaxSourceSize = "20MB"
	}
	if c.Timeout == "" {
		c.Timeout = "15s"
	}
	if c.ContentStorageDir == "" {
		c.ContentStorageDir = ".data/content"
	}
}

func (c *ProviderConfig) loadEnv() {
	if v := os.Getenv(EnvProviderBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvProviderBaseURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvProviderMaxSourceSize); v != "" {
		c.MaxSourceSize = v
	}
	if v := os.Getenv(EnvProviderTimeout); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv(EnvContentStorageDir); v != "" {
		c.ContentStorageDir = v
	}
}

func (c *ProviderConfig) validate() error {
	size, err := units.FromHumanSize(c.MaxSourceSize)
	if err != nil {
		return fmt.Errorf("invalid max_source_size: %w", err)
	}
	if size <= 0 {
		return fmt.Errorf("max_source_size must be positive")
	}
	c.maxSourceSizeVal = size

	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
