package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", "text", &buf)

	logger.Info("datagram received", KeyBytes, 12)

	output := buf.String()
	if !strings.Contains(output, "datagram received") {
		t.Errorf("expected message in output, got: %s", output)
	}
	if !strings.Contains(output, "bytes=12") {
		t.Errorf("expected bytes=12 in output, got: %s", output)
	}
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", "JSON", &buf)

	logger.Info("session started", KeyPort, 9090)

	output := buf.String()
	if !strings.Contains(output, `"msg":"session started"`) {
		t.Errorf("expected JSON msg field, got: %s", output)
	}
	if !strings.Contains(output, `"port":9090`) {
		t.Errorf("expected JSON port field, got: %s", output)
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	tests := []struct {
		name         string
		configLevel  string
		logLevel     slog.Level
		shouldAppear bool
	}{
		{"debug at debug level", "debug", slog.LevelDebug, true},
		{"debug at info level", "info", slog.LevelDebug, false},
		{"info at info level", "info", slog.LevelInfo, true},
		{"info at warn level", "warn", slog.LevelInfo, false},
		{"error at warn level", "warn", slog.LevelError, true},
		{"warn at error level", "error", slog.LevelWarn, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter(tc.configLevel, "text", &buf)

			logger.Log(context.Background(), tc.logLevel, "probe")

			if got := buf.Len() > 0; got != tc.shouldAppear {
				t.Errorf("level %s at config %s: appeared=%v, want %v",
					tc.logLevel, tc.configLevel, got, tc.shouldAppear)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" info ", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			if got := ParseLevel(tc.input); got != tc.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tc.input, got, tc.expected)
			}
		})
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	if logger == nil {
		t.Fatal("NopLogger returned nil")
	}
	logger.Error("discarded")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := Component(NewLoggerWithWriter("info", "text", &buf), "udp")

	logger.Info("bound", KeyLocalAddr, "0.0.0.0:9090")

	output := buf.String()
	if !strings.Contains(output, "component=udp") {
		t.Errorf("expected component attribute, got: %s", output)
	}
	if !strings.Contains(output, "local_addr=0.0.0.0:9090") {
		t.Errorf("expected local_addr attribute, got: %s", output)
	}
}

func TestComponent_NilLogger(t *testing.T) {
	logger := Component(nil, "udp")
	if logger == nil {
		t.Fatal("Component(nil) returned nil")
	}
	logger.Info("discarded")
}
