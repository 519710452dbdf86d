package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"firdscli/internal/config"
)

func lastJSONLine(t *testing.T, content []byte) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestNewLogger(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	var console bytes.Buffer

	logger, closeFn, err := NewLogger(config.LoggingConfig{
		Level:    "info",
		Output:   "both",
		FilePath: logFile,
	}, &console)
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("test message", "key", "value")
	require.NoError(t, closeFn())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	entry := lastJSONLine(t, content)
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])

	// both outputs receive the same record
	assert.Equal(t, strings.TrimSpace(string(content)), strings.TrimSpace(console.String()))
}

func TestNewLoggerConsoleOnly(t *testing.T) {
	var console bytes.Buffer
	logger, closeFn, err := NewLogger(config.LoggingConfig{Level: "warn", Output: "console"}, &console)
	require.NoError(t, err)
	defer closeFn()

	logger.Info("dropped")
	logger.Warn("kept")

	assert.NotContains(t, console.String(), "dropped")
	assert.Equal(t, "kept", lastJSONLine(t, console.Bytes())["msg"])
}

func TestNewLoggerFileWithoutPath(t *testing.T) {
	_, _, err := NewLogger(config.LoggingConfig{Level: "info", Output: "file"}, nil)
	assert.Error(t, err)
}

func TestRunAndTraceIDInjection(t *testing.T) {
	var console bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Level: "debug", Output: "console"}, &console)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider()
	defer tp.Shutdown(context.Background())

	ctx := WithRunID(context.Background(), "run-123")
	ctx, span := tp.Tracer("test").Start(ctx, "op")
	defer span.End()

	logger.InfoContext(ctx, "with ids")

	entry := lastJSONLine(t, console.Bytes())
	assert.Equal(t, "run-123", entry["run_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), entry["trace_id"])

	// without context values nothing is injected
	logger.Info("plain")
	entry = lastJSONLine(t, console.Bytes())
	assert.NotContains(t, entry, "run_id")
	assert.NotContains(t, entry, "trace_id")
}

func TestTraceHandlerKeepsWrappingThroughWith(t *testing.T) {
	var console bytes.Buffer
	logger, _, err := NewLogger(config.LoggingConfig{Level: "info", Output: "console"}, &console)
	require.NoError(t, err)

	ctx := WithRunID(context.Background(), "run-456")
	WithComponent(logger, "extractor").WithGroup("stats").InfoContext(ctx, "grouped", "rows", 3)

	entry := lastJSONLine(t, console.Bytes())
	assert.Equal(t, "extractor", entry["component"])
	assert.Contains(t, console.String(), "run-456")
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"ERROR", "ERROR"},
		{"bogus", "INFO"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.level).String())
		})
	}
}

func TestRunIDHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RunIDFromContext(ctx))

	ctx = EnsureRunID(ctx)
	first := RunIDFromContext(ctx)
	assert.Len(t, first, 36)

	// an existing ID is preserved
	assert.Equal(t, first, RunIDFromContext(EnsureRunID(ctx)))
	assert.NotEqual(t, first, GenerateRunID())
}
