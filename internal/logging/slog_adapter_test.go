package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestSlogHandlerWritesThroughZerolog(t *testing.T) {
	var buf bytes.Buffer
	zl := NewTestLogger(&buf)
	slogger := slog.New(NewSlogHandlerWithLogger(zl))

	slogger.Info("hello from slog", "component", "test")

	require.Contains(t, buf.String(), "hello from slog")
	require.Contains(t, buf.String(), "component")
}

func TestSlogHandlerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	zl := NewTestLogger(&buf).Level(zerolog.WarnLevel)
	handler := NewSlogHandlerWithLogger(zl)

	require.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
	require.True(t, handler.Enabled(context.Background(), slog.LevelError))
}

func TestNewSlogLoggerReturnsUsableLogger(t *testing.T) {
	slogger := NewSlogLogger()
	require.NotNil(t, slogger)
}

func TestSlogHandlerWithGroupNestsKeys(t *testing.T) {
	var buf bytes.Buffer
	zl := NewTestLogger(&buf)
	handler := NewSlogHandlerWithLogger(zl).WithGroup("request")
	slogger := slog.New(handler)

	slogger.Info("grouped", "status", 200)

	require.Contains(t, buf.String(), "request.status")
}
