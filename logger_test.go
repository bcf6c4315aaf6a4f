package goSala

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tc := range tests {
		if got := parseLogLevel(tc.in); got != tc.want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(LogConfig{Level: "info"}, &buf).Info("client.login", "user_id", 7)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if line["msg"] != "client.login" {
		t.Fatalf("unexpected msg %v", line["msg"])
	}

	buf.Reset()
	l := NewLogger(LogConfig{Level: "warn", Format: "text"}, &buf)
	l.Info("hidden")
	l.Warn("client.refresh.fail", "queued", 2)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "msg=client.refresh.fail") {
		t.Fatalf("unexpected text output %q", out)
	}
}
