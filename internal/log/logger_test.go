package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(buf *bytes.Buffer, level Level) *DefaultLogger {
	l := New(LoggerConfig{Level: level, Output: buf})
	l.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestLogger_TextOutput(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, InfoLevel)

	l.Warn("unsupported statement", "kind", "CASE", "line", 12)

	assert.Equal(t, "[2024-05-01 12:00:00] WARN: unsupported statement kind=CASE line=12\n", buf.String())
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, WarnLevel)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Error("shown")
	assert.Contains(t, buf.String(), "ERROR: shown")

	buf.Reset()
	l.SetLevel(DebugLevel)
	l.Debug("now shown")
	assert.Contains(t, buf.String(), "DEBUG: now shown")
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, InfoLevel)
	l.SetJSONOutput(true)

	l.Info("analyzed", "function", "f(integer)", "nodes", 6)

	var entry map[string]string
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "analyzed", entry["message"])
	assert.Equal(t, "f(integer)", entry["function"])
	assert.Equal(t, "6", entry["nodes"])
}

func TestFormatMessage(t *testing.T) {
	tests := []struct {
		name string
		msg  string
		args []interface{}
		want string
	}{
		{"no args", "hello", nil, "hello"},
		{"pairs", "hello", []interface{}{"a", 1, "b", "x"}, "hello a=1 b=x"},
		{"odd leading value", "hello", []interface{}{"lead", "a", 1}, "hello lead a=1"},
		{"non-string key skipped", "hello", []interface{}{3, 4}, "hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatMessage(tt.msg, tt.args...); got != tt.want {
				t.Errorf("formatMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("Warning")
	require.NoError(t, err)
	assert.Equal(t, WarnLevel, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}

func TestDiscard(t *testing.T) {
	l := Discard()
	l.Error("dropped")
	assert.False(t, l.colors)
}
