package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	require.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	require.Equal(t, slog.LevelError, ParseLevel(" error "))
	require.Equal(t, slog.LevelInfo, ParseLevel(""))
	require.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestNewJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "warn", "json")

	log.Info("dropped")
	log.Warn("user lookup failed", "user_id", int64(7))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "user lookup failed", line["msg"])
	require.Equal(t, float64(7), line["user_id"])
}

func TestPrettyHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := New(&buf, "debug", "text").With("service", "gateway").WithGroup("req")

	log.Debug("request completed", "status", 200, "duration", 150*time.Millisecond)

	out := buf.String()
	require.Contains(t, out, "request completed")
	require.Contains(t, out, "service")
	require.Contains(t, out, "=gateway")
	require.Contains(t, out, "req.status")
	require.Contains(t, out, "=150ms")
}

func TestPrettyHandlerRespectsLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))

	log.Debug("hidden")
	require.Empty(t, buf.String())

	log.Info("shown")
	require.Contains(t, buf.String(), "shown")
}
