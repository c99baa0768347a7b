package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "rmq", Module: "engine", Level: "info", Writer: &buf})

	l.Info("index built", "name", "org", "tour_length", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "index built", entry["msg"])
	assert.Equal(t, "rmq", entry["service"])
	assert.Equal(t, "engine", entry["module"])
	assert.Contains(t, entry, "timestamp")
}

func TestSetLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "rmq", Module: "test", Level: "warn", Writer: &buf})

	l.Info("dropped")
	assert.Zero(t, buf.Len())

	SetLevel("debug")
	t.Cleanup(func() { SetLevel("info") })
	l.Debug("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestTraceHandlerInjectsIDs(t *testing.T) {
	var buf bytes.Buffer
	l := NewFromConfig(Config{Service: "rmq", Module: "test", Level: "info", Writer: &buf})

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1, 2, 3},
		SpanID:     trace.SpanID{4, 5, 6},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)
	l.InfoContext(ctx, "traced")

	assert.Contains(t, buf.String(), sc.TraceID().String())
	assert.Contains(t, buf.String(), sc.SpanID().String())
}

func TestFileOutput(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "rmq.log")
	l := NewFromConfig(Config{Service: "rmq", Module: "test", File: path, MaxSize: 1, Writer: &buf})

	l.Named("registry").Info("both sinks")
	assert.Contains(t, buf.String(), `"component":"registry"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestFanoutRespectsPerHandlerLevel(t *testing.T) {
	var verbose, errorsOnly bytes.Buffer
	l := slog.New(newFanoutHandler(
		slog.NewJSONHandler(&verbose, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewJSONHandler(&errorsOnly, &slog.HandlerOptions{Level: slog.LevelError}),
	)).With("index", "org")

	l.Info("built")
	assert.Contains(t, verbose.String(), `"index":"org"`)
	assert.Zero(t, errorsOnly.Len())

	l.Error("evicted")
	assert.Contains(t, errorsOnly.String(), "evicted")
}
