package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer

	logger := New(Options{
		Level:       "debug",
		Format:      TEXT,
		Output:      &buf,
		DefaultTags: map[string]interface{}{"test": true},
	})

	logger.Debug("This is a debug message")
	if !strings.Contains(buf.String(), "level=DEBUG") || !strings.Contains(buf.String(), "This is a debug message") {
		t.Errorf("Expected debug message in log output, got: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "test=true") {
		t.Errorf("Expected default tag in log output, got: %s", buf.String())
	}

	buf.Reset()
	Component(logger, "pipeline").Warn("This is a warning")
	if !strings.Contains(buf.String(), "level=WARN") || !strings.Contains(buf.String(), "component=pipeline") {
		t.Errorf("Expected warning with component in log output, got: %s", buf.String())
	}

	buf.Reset()
	jsonLogger := New(Options{Level: "info", Format: JSON, Output: &buf})
	jsonLogger.Info("JSON message")
	if !strings.Contains(buf.String(), "\"level\":\"INFO\"") ||
		!strings.Contains(buf.String(), "\"msg\":\"JSON message\"") {
		t.Errorf("Expected JSON formatted log, got: %s", buf.String())
	}
}

func TestLogLevels(t *testing.T) {
	var buf bytes.Buffer

	logger := New(Options{Level: "info", Output: &buf})

	logger.Debug("Should not appear")
	if buf.Len() > 0 {
		t.Errorf("DEBUG message should not have been logged, got: %s", buf.String())
	}

	logger.Info("Should appear")
	if buf.Len() == 0 {
		t.Errorf("INFO message should have been logged")
	}

	if ParseLevel("DEBUG") != slog.LevelDebug {
		t.Errorf("Failed to parse DEBUG level")
	}
	if ParseLevel("warning") != slog.LevelWarn {
		t.Errorf("Failed to parse warning level")
	}
	if ParseLevel("unknown") != slog.LevelInfo {
		t.Errorf("Unknown level should default to info")
	}
	if ParseFormat("JSON") != JSON || ParseFormat("") != TEXT {
		t.Errorf("Unexpected format parsing")
	}
}
