package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFromContext_DefaultWhenMissing(t *testing.T) {
	t.Parallel()
	if FromContext(context.Background()) == nil {
		t.Fatal("expected non-nil default logger")
	}
}

func TestWithLogger_RoundTrip(t *testing.T) {
	t.Parallel()
	l := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	ctx := WithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("expected the stored logger back")
	}
}

func TestNewWithWriter_JSONDefault(t *testing.T) {
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("LOG_FILE", "")

	var buf bytes.Buffer
	NewWithWriter(&buf).Info("hello", slog.String("batch_id", "b1"))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if rec["batch_id"] != "b1" {
		t.Errorf("batch_id: got %v", rec["batch_id"])
	}
}

func TestNewWithWriter_TeesToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resumechat.log")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("LOG_LEVEL", "info")
	t.Setenv("LOG_FILE", path)

	var buf bytes.Buffer
	log := NewWithWriter(&buf).With(slog.String("component", "test"))
	log.Debug("dropped")
	log.Info("kept")

	if !strings.Contains(buf.String(), "kept") {
		t.Errorf("console output missing record: %q", buf.String())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"component":"test"`) {
		t.Errorf("log file missing attrs: %q", data)
	}
	if strings.Contains(string(data), "dropped") {
		t.Errorf("debug record should be filtered: %q", data)
	}
}
