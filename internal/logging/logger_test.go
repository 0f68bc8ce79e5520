package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seagrayinc/u3stream/internal/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestJSONLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := NewWithWriter(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)
	defer closer.Close()

	logger.Info("dropped")
	logger.Warn("kept", slog.Int("packet", 3))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, float64(3), rec["packet"])
}

func TestTextLoggerWritesRollingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "u3stream.log")
	var buf bytes.Buffer
	logger, closer := NewWithWriter(config.LoggingConfig{
		Level:  "info",
		Format: "text",
		File:   config.LumberjackConfig{Filename: path, MaxSizeMB: 1},
	}, &buf)

	logger.Info("stream configured", slog.Int("channels", 5))
	require.NoError(t, closer.Close())

	assert.Contains(t, buf.String(), "msg=\"stream configured\" channels=5")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, buf.String(), string(data))
}
