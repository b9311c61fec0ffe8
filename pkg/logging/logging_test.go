package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/jvs-project/mops/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := logging.ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.Options{Level: logging.LevelInfo, Format: logging.FormatJSON})

	logger.Info("workspace saved", "client_id", "acme", "ts", int64(1700))
	logger.Debug("hidden")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "workspace saved", entry["msg"])
	assert.Equal(t, "acme", entry["client_id"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNew_TextHasNoColorForBuffers(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.Options{Level: logging.LevelDebug})

	logger.Debug("restore", "client_id", "acme", "empty", "")

	out := buf.String()
	assert.Contains(t, out, "restore")
	assert.Contains(t, out, "client_id=acme")
	assert.NotContains(t, out, "empty=")
	assert.NotContains(t, out, "\x1b[")
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(&buf, logging.Options{Level: logging.LevelError, Format: logging.FormatJSON})
	logger.Warn("dropped")
	assert.Empty(t, buf.String())
	logger.Error("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestDiscard(t *testing.T) {
	logger := logging.Discard()
	assert.NotPanics(t, func() { logger.Info("nothing") })
	assert.False(t, logger.Enabled(t.Context(), slog.LevelError))
}
