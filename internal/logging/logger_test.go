package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerDefaultConfig(t *testing.T) {
	logger := NewLogger(nil)
	require.NotNil(t, logger)
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelWarn, Output: &buf})

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	require.Empty(t, buf.String())

	logger.Warn("warn message", "oid", 3)
	out := buf.String()
	require.Contains(t, out, "[WARN]")
	require.Contains(t, out, "warn message")
	require.Contains(t, out, "oid=3")
}

func TestLoggerErrorAlwaysPasses(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelError, Output: &buf})

	logger.Error("device failure", "did", 1, "bid", 2)
	out := buf.String()
	require.Contains(t, out, "[ERROR]")
	require.True(t, strings.Contains(out, "did=1 bid=2") || strings.Contains(out, "did=1") && strings.Contains(out, "bid=2"))
}

func TestLoggerPrintfVariants(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&Config{Level: LevelDebug, Output: &buf})

	logger.Debugf("slot %d of device %d", 1, 0)
	require.Contains(t, buf.String(), "slot 1 of device 0")

	buf.Reset()
	logger.Printf("fallback %s", "path")
	require.Contains(t, buf.String(), "fallback path")
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	require.NotPanics(t, func() {
		logger.Debug("no-op")
		logger.Info("no-op")
		logger.Warn("no-op")
		logger.Error("no-op")
	})
}

func TestDefaultAndSetDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := Default()
	t.Cleanup(func() { SetDefault(prev) })

	SetDefault(NewLogger(&Config{Level: LevelDebug, Output: &buf}))

	Info("global info message", "key", "value")
	out := buf.String()
	require.Contains(t, out, "global info message")
	require.Contains(t, out, "key=value")
}
