package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type logEntry map[string]any

func TestLoggerInfoWithFields(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "info", HumanReadable: false, Writer: buf})
	require.NoError(t, err)

	log = log.WithFields(map[string]any{"model": "house-prices", "engine": "linreg"})
	log.Info("training started")

	var entry logEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "training started", entry["message"])
	require.Equal(t, "house-prices", entry["model"])
	require.Equal(t, "linreg", entry["engine"])
	require.Equal(t, "info", entry["level"])
}

func TestLoggerDebugRespectsLevel(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "info", HumanReadable: false, Writer: buf})
	require.NoError(t, err)

	log.Debug("this should not appear")
	require.Equal(t, "", strings.TrimSpace(buf.String()))
}

func TestLoggerErrorIncludesContext(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	log, err := New(Options{Level: "debug", HumanReadable: false, Writer: buf})
	require.NoError(t, err)

	log = log.WithFields(map[string]any{"model": "churn"})
	log.Error(errors.New("boom"), "training failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry logEntry
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "training failed", entry["message"])
	require.Equal(t, "churn", entry["model"])
	require.Equal(t, "boom", entry["error"])
}

func TestLoggerInvalidLevel(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Level: "chatty"})
	require.Error(t, err)
}

func TestLoggerFileSinkStaysJSON(t *testing.T) {
	t.Parallel()

	buf := &bytes.Buffer{}
	path := filepath.Join(t.TempDir(), "modelroom.log")
	log, err := New(Options{Level: "info", HumanReadable: true, Writer: buf, FilePath: path})
	require.NoError(t, err)
	defer log.Close()

	log.WithFields(map[string]any{"model": "demand"}).Info("snapshot written")

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry logEntry
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	require.Equal(t, "snapshot written", entry["message"])
	require.Equal(t, "demand", entry["model"])

	// The console copy went through the human-readable writer, not raw
	// JSON.
	require.NotContains(t, buf.String(), `"message"`)
}

func TestLoggerFileSinkAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "modelroom.log")

	first, err := New(Options{Level: "info", FilePath: path, Writer: &bytes.Buffer{}})
	require.NoError(t, err)
	first.Info("one")
	require.NoError(t, first.Close())

	second, err := New(Options{Level: "info", FilePath: path, Writer: &bytes.Buffer{}})
	require.NoError(t, err)
	second.Info("two")
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
}

func TestNilLoggerIsSafe(t *testing.T) {
	t.Parallel()

	var log *Logger
	require.Nil(t, log.WithFields(map[string]any{"a": 1}))
	log.Info("ignored")
	log.Debug("ignored")
	log.Warn("ignored")
	log.Error(errors.New("x"), "ignored")
	require.NoError(t, log.Close())
}
