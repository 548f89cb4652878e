package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/calder-systems/terminal-core/internal/infrastructure/config"
)

// captureLogger builds a logger writing into buf through the real
// constructor path, so tests see exactly what production emits.
func captureLogger(t *testing.T, cfg config.LoggingConfig, buf *bytes.Buffer) *Logger {
	t.Helper()
	return newWriterLogger(cfg, "test", buf)
}

func TestJSONOutputCarriesServiceFields(t *testing.T) {
	var buf bytes.Buffer
	log := captureLogger(t, config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	log.Info("poll cycle complete", "device_id", "bay1-flowcomp", "registers", 12)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if entry["service"] != "termcore" {
		t.Errorf("service = %v, want termcore", entry["service"])
	}
	if entry["version"] != "test" {
		t.Errorf("version = %v, want test", entry["version"])
	}
	if entry["msg"] != "poll cycle complete" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["device_id"] != "bay1-flowcomp" {
		t.Errorf("device_id = %v", entry["device_id"])
	}
}

func TestTextFormatSelected(t *testing.T) {
	var buf bytes.Buffer
	log := captureLogger(t, config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	log.Info("device connected", "device_id", "tank-gauge-3")

	out := buf.String()
	if strings.HasPrefix(strings.TrimSpace(out), "{") {
		t.Fatalf("expected text output, got JSON: %s", out)
	}
	if !strings.Contains(out, "device_id=tank-gauge-3") {
		t.Errorf("missing attribute in text output: %s", out)
	}
}

func TestLevelGateSuppressesDebug(t *testing.T) {
	var buf bytes.Buffer
	log := captureLogger(t, config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	log.Debug("raw frame", "bytes", 8)
	log.Info("poll cycle complete")
	if buf.Len() != 0 {
		t.Fatalf("info/debug leaked through warn gate: %s", buf.String())
	}

	log.Warn("poll timeout", "device_id", "dev-1")
	if buf.Len() == 0 {
		t.Fatal("warn line was suppressed")
	}
}

func TestWithTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	log := captureLogger(t, config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	log.With("component", "blend").Info("operation started", "operation_id", "op-1")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["component"] != "blend" {
		t.Errorf("component = %v, want blend", entry["component"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
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

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestDefaultIsUsableBeforeConfig(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default() returned nil")
	}
}
