package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/0x-mperego/unimec-display/internal/platform/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"error":   slog.LevelError,
		"info+2":  slog.LevelInfo + 2,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), "%q", in)
	}
}

func TestNew_JSONCarriesCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "info", "JSON")

	ctx := correlation.WithID(context.Background(), "abcd1234")
	logger.InfoContext(ctx, "Content swapped", "item_id", "x")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "Content swapped", record["msg"])
	assert.Equal(t, "abcd1234", record["correlation_id"])
	assert.Equal(t, "x", record["item_id"])
	assert.NotContains(t, record, slog.SourceKey)
}

func TestNew_DebugAddsSource(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug", FormatJSON).Debug("Pulse sent")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Contains(t, record, slog.SourceKey)
}

func TestNew_TextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", "logfmt")

	logger.Info("hidden")
	assert.Empty(t, buf.String())

	logger.Warn("shown", "kind", "image")
	assert.Contains(t, buf.String(), "msg=shown kind=image")
}

func TestSetup_InstallsDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := Setup(&buf, "info", FormatText)
	slog.Info("via default")

	assert.Same(t, logger, slog.Default())
	assert.Contains(t, buf.String(), "via default")
}
