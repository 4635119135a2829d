package correlation

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	seen := make(map[string]struct{}, 200)
	for range 200 {
		id := NewID()
		require.Len(t, id, 8)
		_, ok := Parse(id)
		require.True(t, ok, "generated IDs must survive Parse: %q", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 200)
}

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{"a1b2c3d4", true},
		{"req-2026.10_19", true},
		{"", false},
		{"has space", false},
		{"line\nbreak", false},
		{"quote\"", false},
		{"ünicode", false},
		{strings.Repeat("x", 64), true},
		{strings.Repeat("x", 65), false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Parse(tt.raw)
			assert.Equal(t, tt.want, ok)
			if tt.want {
				assert.Equal(t, tt.raw, got)
			} else {
				assert.Empty(t, got)
			}
		})
	}
}

func TestID(t *testing.T) {
	_, ok := ID(context.Background())
	assert.False(t, ok)

	_, ok = ID(WithID(context.Background(), ""))
	assert.False(t, ok, "an empty ID counts as absent")

	id, ok := ID(WithID(context.Background(), "kiosk-3"))
	assert.True(t, ok)
	assert.Equal(t, "kiosk-3", id)
}

func TestHandler_StampsRecords(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewJSONHandler(&buf, nil))).With("component", "hub")

	logger.InfoContext(WithID(context.Background(), "abcd1234"), "Snapshot sent", "subscribers", 3)
	logger.InfoContext(context.Background(), "Pulse")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, "abcd1234", first["correlation_id"])
	assert.Equal(t, "hub", first["component"])
	assert.InDelta(t, 3, first["subscribers"], 0)
	assert.NotContains(t, second, "correlation_id")
}

func TestHandler_WithGroupKeepsStamping(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil))).WithGroup("req")

	logger.InfoContext(WithID(context.Background(), "grp00001"), "Request", "path", "/api/contents")

	assert.Contains(t, buf.String(), "correlation_id=grp00001")
	assert.Contains(t, buf.String(), "req.path=/api/contents")
}

func TestHandler_RespectsLevel(t *testing.T) {
	h := NewHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
}
