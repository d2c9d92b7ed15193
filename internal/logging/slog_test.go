package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels_WriteExpectedOutput(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "chunk", "offset", 1)
	log.Info(ctx, "uploaded", "status", 200)
	log.Warn(ctx, "skipped", "mime", "form")
	log.Error(ctx, "failed", "status", 500)

	out := buf.String()

	tests := []struct {
		level string
		msg   string
		attr  string
	}{
		{"DEBUG", "chunk", "offset=1"},
		{"INFO", "uploaded", "status=200"},
		{"WARN", "skipped", "mime=form"},
		{"ERROR", "failed", "status=500"},
	}

	for _, tc := range tests {
		assert.Contains(t, out, "level="+tc.level)
		assert.Contains(t, out, "msg="+tc.msg)
		assert.Contains(t, out, tc.attr)
	}
}

func TestSlogLogger_With_AddsAttributes(t *testing.T) {
	log, buf := newTestLogger(t)

	log.With("run_id", "r1", "branch", "reforma").Info(context.Background(), "hello", "k", "v")

	out := buf.String()
	for _, s := range []string{"level=INFO", "msg=hello", "run_id=r1", "branch=reforma", "k=v"} {
		assert.Contains(t, out, s)
	}
}

func TestNewNop_DiscardsWithoutPanic(t *testing.T) {
	log := NewNop()
	ctx := context.TODO()
	log.Debug(ctx, "x")
	log.With("a", 1).Error(ctx, "y")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"debug", slog.LevelDebug, false},
		{"WARN", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_Formats(t *testing.T) {
	orig := isTerminal
	t.Cleanup(func() { isTerminal = orig })

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(&buf, slog.LevelInfo, FormatJSON)
		require.NoError(t, err)
		l.Info(context.Background(), "done", "processed", 2)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "done", line["msg"])
		assert.EqualValues(t, 2, line["processed"])
	})

	t.Run("auto without terminal is json", func(t *testing.T) {
		isTerminal = func(io.Writer) bool { return false }
		var buf bytes.Buffer
		l, err := New(&buf, slog.LevelInfo, FormatAuto)
		require.NoError(t, err)
		l.Info(context.Background(), "done")
		assert.True(t, strings.HasPrefix(buf.String(), "{"))
	})

	t.Run("auto on terminal is pretty", func(t *testing.T) {
		isTerminal = func(io.Writer) bool { return true }
		var buf bytes.Buffer
		l, err := New(&buf, slog.LevelInfo, FormatAuto)
		require.NoError(t, err)
		l.Info(context.Background(), "done")
		assert.Contains(t, buf.String(), "done")
		assert.False(t, strings.HasPrefix(buf.String(), "{"))
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		l, err := New(&buf, slog.LevelWarn, FormatText)
		require.NoError(t, err)
		l.Info(context.Background(), "hidden")
		assert.Empty(t, buf.String())
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := New(io.Discard, slog.LevelInfo, "xml")
		require.Error(t, err)
	})
}
