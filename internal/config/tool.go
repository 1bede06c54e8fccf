package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const (
	EnvToolFilters       = "IMAGE_HANDLER_FILTERS"
	EnvToolJPEGQuality   = "IMAGE_HANDLER_JPEG_QUALITY"
	EnvToolDefaultFormat = "IMAGE_HANDLER_DEFAULT_FORMAT"
	EnvToolMaxPixels     = "IMAGE_HANDLER_MAX_SOURCE_PIXELS"
)

// ToolConfig configures the image tool and its filter chain.
type ToolConfig struct {
	// Filters is the ordered filter chain. Empty uses the built-in order.
	Filters       []string `toml:"filters"`
	JPEGQuality   int      `toml:"jpeg_quality"`
	MaxWidth      int      `toml:"max_width"`
	MaxHeight     int      `toml:"max_height"`
	DefaultFormat string   `toml:"default_format"`
	// MaxSourcePixels rejects sources whose width*height exceeds it before
	// decoding.
	MaxSourcePixels int64 `toml:"max_source_pixels"`
}

func (c *ToolConfig) Finalize() error {
	c.loadDefaults()
	if err := c.loadEnv(); err != nil {
		return err
	}
	return c.validate()
}

func (c *ToolConfig) Merge(overlay *ToolConfig) {
	if len(overlay.Filters) > 0 {
		c.Filters = append([]string(nil), overlay.Filters...)
	}
	if overlay.JPEGQuality != 0 {
		c.JPEGQuality = overlay.JPEGQuality
	}
	if overlay.MaxWidth != 0 {
		c.MaxWidth = overlay.MaxWidth
	}
	if overlay.MaxHeight != 0 {
		c.MaxHeight = overlay.MaxHeight
	}
	if overlay.DefaultFormat != "" {
		c.DefaultFormat = overlay.DefaultFormat
	}
	if overlay.MaxSourcePixels != 0 {
		c.MaxSourcePixels = overlay.MaxSourcePixels
	}
}

func (c *ToolConfig) loadDefaults() {
	if c.JPEGQuality == 0 {
		c.JPEGQuality = 85
	}
	if c.MaxWidth == 0 {
		c.MaxWidth = 4096
	}
	if c.MaxHeight == 0 {
		c.MaxHeight = 4096
	}
	if c.DefaultFormat == "" {
		c.DefaultFormat = "png"
	}
	if c.MaxSourcePixels == 0 {
		c.MaxSourcePixels = 50_000_000
	}
}

func (c *ToolConfig) loadEnv() error {
	if v := os.Getenv(EnvToolFilters); v != "" {
		c.Filters = nil
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				c.Filters = append(c.Filters, name)
			}
		}
	}
	if v := os.Getenv(EnvToolJPEGQuality); v != "" {
		q, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvToolJPEGQuality, err)
		}
		c.JPEGQuality = q
	}
	if v := os.Getenv(EnvToolDefaultFormat); v != "" {
		c.DefaultFormat = v
	}
	if v := os.Getenv(EnvToolMaxPixels); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvToolMaxPixels, err)
		}
		c.MaxSourcePixels = n
	}
	return nil
}

func (c *ToolConfig) validate() error {
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("jpeg_quality must be between 1 and 100, got %d", c.JPEGQuality)
	}
	if c.MaxWidth < 0 || c.MaxHeight < 0 {
		return fmt.Errorf("max_width and max_height must not be negative")
	}
	if c.MaxSourcePixels < 0 {
		return fmt.Errorf("max_source_pixels must not be negative")
	}
	return nil
}
