package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	dec := json.NewDecoder(buf)
	for dec.More() {
		var m map[string]any
		require.NoError(t, dec.Decode(&m))
		out = append(out, m)
	}
	return out
}

func TestSlogLogger_LevelsAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info")
	ctx := context.Background()

	log.Debug(ctx, "hidden")
	log.Info(ctx, "started", "addr", ":8080")
	log.Warn(ctx, "slow")
	log.Error(ctx, "failed", "error", "boom")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "started", lines[0]["msg"])
	assert.Equal(t, ":8080", lines[0]["addr"])
	assert.Equal(t, "WARN", lines[1]["level"])
	assert.Equal(t, "boom", lines[2]["error"])
}

func TestSlogLogger_With(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "debug").With("component", "sessions")

	log.Debug(context.Background(), "purged", "count", 3)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "sessions", lines[0]["component"])
	assert.EqualValues(t, 3, lines[0]["count"])
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "level %q", in)
	}
}

func TestDiscard(t *testing.T) {
	var log Logger = Discard()
	log.Error(context.Background(), "dropped")
}
