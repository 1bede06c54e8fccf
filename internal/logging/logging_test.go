package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	var cfg Config
	require.NoError(t, cfg.Finalize(nil))
	assert.Equal(t, LevelInfo, cfg.Level)
	assert.Equal(t, FormatText, cfg.Format)
}

func TestConfig_EnvOverride(t *testing.T) {
	t.Setenv("TEST_LOG_LEVEL", "DEBUG")
	t.Setenv("TEST_LOG_FORMAT", "json")

	cfg := Config{Level: LevelWarn}
	require.NoError(t, cfg.Finalize(&Env{Level: "TEST_LOG_LEVEL", Format: "TEST_LOG_FORMAT"}))
	assert.Equal(t, LevelDebug, cfg.Level)
	assert.Equal(t, FormatJSON, cfg.Format)
}

func TestConfig_Invalid(t *testing.T) {
	cfg := Config{Level: "loud"}
	assert.Error(t, cfg.Finalize(nil))

	cfg = Config{Format: "xml"}
	assert.Error(t, cfg.Finalize(nil))
}

func TestConfig_Merge(t *testing.T) {
	base := Config{Level: LevelInfo, Format: FormatText}
	base.Merge(&Config{Format: FormatJSON})
	assert.Equal(t, LevelInfo, base.Level)
	assert.Equal(t, FormatJSON, base.Format)
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&Config{Level: LevelWarn, Format: FormatJSON}, &buf)

	logger.Info("dropped")
	logger.Warn("kept", "system", "render")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "render", entry["system"])
}

func TestLevel_ToSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelDebug.ToSlogLevel())
	assert.Equal(t, slog.LevelError, LevelError.ToSlogLevel())
	assert.Equal(t, slog.LevelInfo, Level("other").ToSlogLevel())
}
