package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestSetupWritesJSONAtLevel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup(Config{Level: "warn", Output: &buf})

	slog.Info("dropped")
	slog.Warn("kept", "assignment_id", "asg-1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected exactly one JSON line, got %q: %v", buf.String(), err)
	}
	if entry["msg"] != "kept" {
		t.Errorf("msg = %v, want kept", entry["msg"])
	}
	if entry["assignment_id"] != "asg-1" {
		t.Errorf("assignment_id = %v", entry["assignment_id"])
	}
	if ts, _ := entry["time"].(string); len(ts) != len("2006-01-02 15:04:05") {
		t.Errorf("time = %q, want custom format", ts)
	}
}

func TestGetLevel(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"Warn":    "WARN",
		"ERROR":   "ERROR",
		"warning": "WARN",
		"verbose": "INFO",
		"":        "INFO",
	}
	for in, want := range tests {
		if got := GetLevel(in); got != want {
			t.Errorf("GetLevel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNewAttachesServiceAttributes(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "debug", Output: &buf, Service: "review-flow", Env: "test"})

	l.Debug("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if entry["service"] != "review-flow" || entry["env"] != "test" {
		t.Errorf("missing static attributes: %v", entry)
	}
}

func TestComponentUsesDefault(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	Setup(Config{Output: &buf})
	Component("scheduler").Info("tick")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid JSON %q: %v", buf.String(), err)
	}
	if entry["component"] != "scheduler" {
		t.Errorf("component = %v", entry["component"])
	}
}
