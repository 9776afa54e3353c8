package telemetry

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInfoWritesJSONLineWithFields(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "info")
	defer SetOutput(&bytes.Buffer{}, "info")

	Info("pipeline.item.received", map[string]any{"user_id": "u-1", "partition": 2})

	var payload map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &payload); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if payload["msg"] != "pipeline.item.received" {
		t.Fatalf("unexpected msg: %v", payload["msg"])
	}
	if payload["level"] != "info" {
		t.Fatalf("unexpected level: %v", payload["level"])
	}
	if payload["user_id"] != "u-1" {
		t.Fatalf("unexpected user_id: %v", payload["user_id"])
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("missing ts field")
	}
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "warn")
	defer SetOutput(&bytes.Buffer{}, "info")

	Debug("hidden", nil)
	Info("hidden", nil)
	Error("visible", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 || !strings.Contains(lines[0], `"visible"`) {
		t.Fatalf("expected only the error line, got %q", buf.String())
	}
}
