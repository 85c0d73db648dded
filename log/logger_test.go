/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ssgreg/logf"
	"github.com/stretchr/testify/require"
)

func captureJSONEntries(t *testing.T, level Level, logFn func(logger FieldLogger)) []map[string]interface{} {
	t.Helper()

	var buf bytes.Buffer
	appender := logf.NewWriteAppender(&buf, logf.NewJSONEncoder(logf.JSONEncoderConfig{
		FieldKeyTime: "time",
	}))
	channel, closeFunc := logf.NewChannelWriter(logf.ChannelWriterConfig{Appender: appender})
	logger := &LogfAdapter{logf.NewLogger(convertLevelToLogfLevel(level), channel)}

	logFn(logger)
	closeFunc()

	var entries []map[string]interface{}
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(line, &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestLogfAdapterLevels(t *testing.T) {
	entries := captureJSONEntries(t, LevelInfo, func(logger FieldLogger) {
		logger.Debug("debug message")
		logger.Info("info message", Int("n", 1))
		logger.Warn("warn message")
		logger.Error("error message")
	})

	require.Len(t, entries, 3, "debug should be filtered out at info level")
	require.Equal(t, "info message", entries[0]["msg"])
	require.EqualValues(t, 1, entries[0]["n"])
	require.Equal(t, "warn message", entries[1]["msg"])
	require.Equal(t, "error message", entries[2]["msg"])
}

func TestLogfAdapterWith(t *testing.T) {
	entries := captureJSONEntries(t, LevelDebug, func(logger FieldLogger) {
		logger.With(String("component", "cache")).Infof("formatted %d", 42)
	})

	require.Len(t, entries, 1)
	require.Equal(t, "formatted 42", entries[0]["msg"])
	require.Equal(t, "cache", entries[0]["component"])
}

func TestLogfAdapterWithLevel(t *testing.T) {
	entries := captureJSONEntries(t, LevelDebug, func(logger FieldLogger) {
		restricted := logger.WithLevel(LevelWarn)
		restricted.Info("should be dropped")
		restricted.Warn("should be logged")
	})

	require.Len(t, entries, 1)
	require.Equal(t, "should be logged", entries[0]["msg"])
}

func TestNewLoggerFileOutput(t *testing.T) {
	logFilePath := filepath.Join(t.TempDir(), "test.log")
	cfg := NewDefaultConfig()
	cfg.Output = OutputFile
	cfg.File.Path = logFilePath

	logger, closeFn := NewLogger(cfg)
	logger.Info("hello from file", String("key", "value"))
	closeFn()

	data, err := os.ReadFile(logFilePath)
	require.NoError(t, err)
	require.Contains(t, string(data), "hello from file")
	require.Contains(t, string(data), `"key":"value"`)
}

func TestNewDisabledLogger(t *testing.T) {
	logger := NewDisabledLogger()
	logger.Error("must not panic", String("key", "value"))
}

func TestResolvePlaceholders(t *testing.T) {
	resolved := resolvePlaceholders("/var/log/app-{{pid}}.log")
	require.NotContains(t, resolved, "{{pid}}")
	require.Contains(t, resolved, "/var/log/app-")
}
