package config

import (
	"fmt"
	"os"
	"strconv"
)

const (
	EnvProviderType   = "IMAGE_HANDLER_PROVIDER"
	EnvToolType       = "IMAGE_HANDLER_TOOL"
	EnvStoreType      = "IMAGE_HANDLER_STORE"
	EnvParametersType = "IMAGE_HANDLER_PARAMETERS"

	EnvCacheKeyLength      = "IMAGE_HANDLER_CACHE_KEY_LENGTH"
	EnvCacheCoalesceMisses = "IMAGE_HANDLER_CACHE_COALESCE_MISSES"
)

// ComponentsConfig names the implementation used for each component kind.
type ComponentsConfig struct {
	Provider   string `toml:"provider"`
	Tool       string `toml:"tool"`
	Store      string `toml:"store"`
	Parameters string `toml:"parameters"`
}

func (c *ComponentsConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return nil
}

func (c *ComponentsConfig) Merge(overlay *ComponentsConfig) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.Tool != "" {
		c.Tool = overlay.Tool
	}
	if overlay.Store != "" {
		c.Store = overlay.Store
	}
	if overlay.Parameters != "" {
		c.Parameters = overlay.Parameters
	}
}

func (c *ComponentsConfig) loadDefaults() {
	if c.Provider == "" {
		c.Provider = "filesystem"
	}
	if c.Tool == "" {
		c.Tool = "imaging"
	}
	if c.Store == "" {
		c.Store = "filesystem"
	}
	if c.Parameters == "" {
		c.Parameters = "simple"
	}
}

func (c *ComponentsConfig) loadEnv() {
	if v := os.Getenv(EnvProviderType); v != "" {
		c.Provider = v
	}
	if v := os.Getenv(EnvToolType); v != "" {
		c.Tool = v
	}
	if v := os.Getenv(EnvStoreType); v != "" {
		c.Store = v
	}
	if v := os.Getenv(EnvParametersType); v != "" {
		c.Parameters = v
	}
}

// CacheConfig controls cache keys and miss handling.
type CacheConfig struct {
	KeyLength      int   `toml:"key_length"`
	CoalesceMisses *bool `toml:"coalesce_misses"`
}

// Coalesce reports whether concurrent misses for one key share a render.
func (c *CacheConfig) Coalesce() bool {
	return c.CoalesceMisses != nil && *c.CoalesceMisses
}

func (c *CacheConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

func (c *CacheConfig) Merge(overlay *CacheConfig) {
	if overlay.KeyLength != 0 {
		c.KeyLength = overlay.KeyLength
	}
	if overlay.CoalesceMisses != nil {
		v := *overlay.CoalesceMisses
		c.CoalesceMisses = &v
	}
}

func (c *CacheConfig) loadDefaults() {
	if c.KeyLength == 0 {
		c.KeyLength = 64
	}
	if c.CoalesceMisses == nil {
		v := false
		c.CoalesceMisses = &v
	}
}

func (c *CacheConfig) loadEnv() error {
	if v := os.Getenv(EnvCacheKeyLength); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCacheKeyLength, err)
		}
		c.KeyLength = n
	}
	if v := os.Getenv(EnvCacheCoalesceMisses); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvCacheCoalesceMisses, err)
		}
		c.CoalesceMisses = &b
	}
	return nil
}

func (c *CacheConfig) validate() error {
	if c.KeyLength < 8 || c.KeyLength > 64 {
		return fmt.Errorf("key_length must be between 8 and 64, got %d", c.KeyLength)
	}
	return nil
}
