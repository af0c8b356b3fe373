package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":   LogLevelDebug,
		"INFO":    LogLevelInfo,
		"":        LogLevelInfo,
		"warning": LogLevelWarn,
		"error":   LogLevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelInfo, Format: FormatJSON, Output: &buf, Component: "engine"})

	logger.Debug("hidden")
	logger.Info("engine.run.start", "thread_id", "t1")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "engine.run.start", entry["msg"])
	assert.Equal(t, "t1", entry["thread_id"])
	assert.Equal(t, "engine", entry["component"])
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LogLevelDebug, Format: FormatConsole, Output: &buf, NoColor: true})

	logger.Warn("tool.call.error", "tool", "calculator", "error", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "tool.call.error")
	assert.Contains(t, out, "tool=calculator")
	assert.Contains(t, out, "boom")
}

func TestWith(t *testing.T) {
	var buf bytes.Buffer
	logger := With(NewLogger(&LoggerConfig{Format: FormatText, Output: &buf}), "run_id", "r1")

	logger.Info("engine.model.call")
	assert.Contains(t, buf.String(), "run_id=r1")

	var noop Logger = NoOpLogger{}
	assert.Equal(t, noop, With(noop, "k", "v"))
}

func TestNewDefaultSlogLogger(t *testing.T) {
	logger := NewDefaultSlogLogger()
	_, ok := logger.(*SlogAdapter)
	assert.True(t, ok)
	assert.NotPanics(t, func() { With(logger, "component", "test").Debug("logging.test") })
}
