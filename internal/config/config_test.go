package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-image-handler/internal/logging"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeoutDuration())
	assert.Equal(t, logging.LevelInfo, cfg.Logging.Level)
	assert.Equal(t, "filesystem", cfg.Components.Provider)
	assert.Equal(t, "imaging", cfg.Components.Tool)
	assert.Equal(t, "filesystem", cfg.Components.Store)
	assert.Equal(t, "simple", cfg.Components.Parameters)
	assert.Equal(t, 64, cfg.Cache.KeyLength)
	assert.False(t, cfg.Cache.Coalesce())
	assert.Equal(t, int64(20_000_000), cfg.Provider.MaxSourceSizeBytes())
	assert.Equal(t, 15*time.Second, cfg.Provider.TimeoutDuration())
	assert.Equal(t, "image_cache", cfg.Store.Table)
	assert.Equal(t, 85, cfg.Tool.JPEGQuality)
	assert.Equal(t, int64(50_000_000), cfg.Tool.MaxSourcePixels)
	assert.False(t, cfg.DBOS.Enabled())
	assert.False(t, cfg.Ledger.Enabled())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad_FileAndOverlay(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, BaseConfigFile, `
shutdown_timeout = "5s"

[server]
addr = ":9000"

[components]
provider = "http"
store = "memory"

[cache]
key_length = 32
coalesce_misses = true

[provider]
base_url = "https://images.example.com"
max_source_size = "1MB"

[tool]
filters = ["resize", "crop"]
max_width = 800
`)
	writeFile(t, dir, "config.staging.toml", `
[server]
addr = ":9100"

[cache]
coalesce_misses = false
`)
	t.Setenv(EnvServiceEnv, "staging")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeoutDuration())
	assert.Equal(t, "http", cfg.Components.Provider)
	assert.Equal(t, "memory", cfg.Components.Store)
	assert.Equal(t, 32, cfg.Cache.KeyLength)
	assert.False(t, cfg.Cache.Coalesce())
	assert.Equal(t, int64(1_000_000), cfg.Provider.MaxSourceSizeBytes())
	assert.Equal(t, []string{"resize", "crop"}, cfg.Tool.Filters)
	assert.Equal(t, 800, cfg.Tool.MaxWidth)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv(EnvStoreType, "sqlite")
	t.Setenv(EnvCacheCoalesceMisses, "true")
	t.Setenv(EnvToolFilters, "resize, effect")
	t.Setenv(EnvDBOSDatabaseURL, "postgres://localhost/dbos")
	t.Setenv(EnvLogFormat, "json")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Components.Store)
	assert.True(t, cfg.Cache.Coalesce())
	assert.Equal(t, []string{"resize", "effect"}, cfg.Tool.Filters)
	assert.True(t, cfg.DBOS.Enabled())
	assert.Equal(t, logging.FormatJSON, cfg.Logging.Format)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", EnvServerAddr+"=:7070\n")
	t.Setenv(EnvServerAddr, "")
	os.Unsetenv(EnvServerAddr)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
}

func TestFinalize_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"shutdown timeout", Config{ShutdownTimeout: "soon"}},
		{"key length", Config{Cache: CacheConfig{KeyLength: 100}}},
		{"source size", Config{Provider: ProviderConfig{MaxSourceSize: "huge"}}},
		{"table", Config{Store: StoreConfig{Table: "drop table;"}}},
		{"quality", Config{Tool: ToolConfig{JPEGQuality: 101}}},
		{"source pixels", Config{Tool: ToolConfig{MaxSourcePixels: -1}}},
		{"log level", Config{Logging: logging.Config{Level: "chatty"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Finalize())
		})
	}
}

func TestLoadFile_ParseError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.toml", "[server\naddr=")

	_, err := LoadFile(filepath.Join(dir, "bad.toml"))
	assert.ErrorContains(t, err, "parse config")
}
