package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewToJSON(t *testing.T) {
	var buf bytes.Buffer
	lg, err := NewTo(&buf, "info", "json")
	if err != nil {
		t.Fatal(err)
	}
	lg.Debug("hidden")
	lg.Info("boot", zap.String("mode", "normal"), Redacted("password", "hunter22"))
	_ = lg.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want one line (debug filtered), got %d: %q", len(lines), buf.String())
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &m); err != nil {
		t.Fatal(err)
	}
	if m["message"] != "boot" || m["level"] != "info" || m["mode"] != "normal" {
		t.Fatalf("unexpected entry: %v", m)
	}
	if _, ok := m["timestamp"]; !ok {
		t.Fatal("missing timestamp key")
	}
	if m["password_len"] != float64(8) {
		t.Fatalf("password_len = %v", m["password_len"])
	}
	if strings.Contains(buf.String(), "hunter22") {
		t.Fatal("secret leaked into log")
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := NewTo(&bytes.Buffer{}, "loud", "json"); err == nil {
		t.Fatal("expected level error")
	}
	if _, err := NewTo(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Fatal("expected format error")
	}
}
