package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for raw, want := range cases {
		assert.Equal(t, want, parseLevel(raw), raw)
	}
}

func TestNewWithWriterFormats(t *testing.T) {
	t.Parallel()

	var jsonBuf bytes.Buffer
	NewWithWriter(&jsonBuf, "info", "json").Info("hello", slog.String("k", "v"))
	assert.Contains(t, jsonBuf.String(), `"msg":"hello"`)
	assert.Contains(t, jsonBuf.String(), `"k":"v"`)

	var textBuf bytes.Buffer
	NewWithWriter(&textBuf, "info", "text").Info("hello", slog.String("k", "v"))
	assert.Contains(t, textBuf.String(), "msg=hello")
	assert.Contains(t, textBuf.String(), "k=v")
}

func TestLevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", "text")
	log.Info("dropped")
	log.Warn("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
