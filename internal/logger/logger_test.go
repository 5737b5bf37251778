package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, parseLevel(" warn "))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
	require.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestNewJSONIncludesService(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "worker", "info", "")
	log.Debug("hidden")
	log.Info("hello", "k", 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "worker", entry["service"])
	require.Equal(t, "hello", entry["msg"])
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log := newWithWriter(&buf, "api", "debug", "text")
	log.Debug("visible")
	require.Contains(t, buf.String(), "service=api")
	require.Contains(t, buf.String(), "msg=visible")
}
