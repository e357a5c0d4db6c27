package logger

import (
	"bytes"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(level LogLevel) (*bytes.Buffer, Logger) {
	var buf bytes.Buffer
	return &buf, NewStandardLogger(log.New(&buf, "", 0), level, "[test]")
}

func TestLevelFiltering(t *testing.T) {
	buf, l := newBufferLogger(Warn)

	l.Debug("debug message")
	l.Info("info message")
	assert.Empty(t, buf.String())

	l.Warn("warn message")
	l.Error("error message")
	out := buf.String()
	assert.Contains(t, out, "[WARN] warn message")
	assert.Contains(t, out, "[ERROR] error message")
}

func TestKeyValueFormatting(t *testing.T) {
	buf, l := newBufferLogger(Info)

	l.Info("recipient resolved", "plugin", "redis", "attempts", 2)
	assert.Contains(t, buf.String(), "plugin=redis")
	assert.Contains(t, buf.String(), "attempts=2")
}

func TestDanglingKeyRendersAsMissing(t *testing.T) {
	buf, l := newBufferLogger(Info)

	l.Info("odd arguments", "key")
	assert.Contains(t, buf.String(), "key=(missing)")
}

func TestLogModeReturnsIndependentLogger(t *testing.T) {
	buf, l := newBufferLogger(Silent)

	verbose := l.LogMode(Debug)
	verbose.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	buf.Reset()
	l.Debug("still silent")
	assert.Empty(t, buf.String())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected LogLevel
	}{
		{"silent", Silent},
		{"error", Error},
		{"warn", Warn},
		{"warning", Warn},
		{"debug", Debug},
		{"", Info},
		{"bogus", Info},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.name), "level %q", tt.name)
	}
}
