// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xkilldash9x/bidrunner/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newBufferSink returns an in-memory console writer for Initialize.
func newBufferSink() (*bytes.Buffer, zapcore.WriteSyncer) {
	var buf bytes.Buffer
	return &buf, zapcore.AddSync(&buf)
}

func TestInitialize(t *testing.T) {
	t.Run("console output is colorized", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := newBufferSink()

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "bidrunner",
			Colors:      config.ColorConfig{Info: "green"},
		}, sink)
		GetLogger().Info("row complete")
		Sync()

		out := buf.String()
		assert.Contains(t, out, "row complete")
		assert.Contains(t, out, ansiColors["green"]+"INFO"+ansiReset)
		assert.Contains(t, out, "bidrunner.")
	})

	t.Run("unknown color names leave the level plain", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := newBufferSink()

		Initialize(config.LoggerConfig{Level: "info", Format: "console", Colors: config.ColorConfig{Warn: "mauve"}}, sink)
		GetLogger().Warn("careful")

		assert.Contains(t, buf.String(), "WARN")
		assert.NotContains(t, buf.String(), ansiReset)
	})

	t.Run("json output", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := newBufferSink()

		Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "JSONTest"}, sink)
		GetLogger().Warn("price cap exceeded", zap.Int64("price", 1200))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "JSONTest", entry["logger"])
		assert.Equal(t, "price cap exceeded", entry["msg"])
		assert.EqualValues(t, 1200, entry["price"])
	})

	t.Run("level filter", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := newBufferSink()

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, sink)
		GetLogger().Info("hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("file core", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		_, sink := newBufferSink()
		path := filepath.Join(t.TempDir(), "bidrunner.log")

		Initialize(config.LoggerConfig{Level: "debug", Format: "console", LogFile: path, MaxSize: 1}, sink)
		GetLogger().Error("written to file")
		Sync()

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), `"msg":"written to file"`)
	})

	t.Run("only the first call takes effect", func(t *testing.T) {
		ResetForTest()
		t.Cleanup(ResetForTest)
		buf, sink := newBufferSink()

		Initialize(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "First"}, sink)
		first := GetLogger()
		Initialize(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "Second"}, sink)
		assert.Same(t, first, GetLogger())

		GetLogger().Info("test")
		assert.Contains(t, buf.String(), "First")
		assert.NotContains(t, buf.String(), "Second")
	})
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	logger := GetLogger()
	require.NotNil(t, logger)
	assert.Nil(t, globalLogger.Load())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zap.DebugLevel, ParseLevel("debug").Level())
	assert.Equal(t, zap.ErrorLevel, ParseLevel("error").Level())
	assert.Equal(t, zap.InfoLevel, ParseLevel("loud").Level())
}

func TestIsBenignSyncError(t *testing.T) {
	assert.True(t, isBenignSyncError(errors.New("sync /dev/stdout: invalid argument")))
	assert.False(t, isBenignSyncError(errors.New("disk full")))
}
