package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level to be Info, got %s", cfg.Level)
	}
	if cfg.Pretty {
		t.Error("Expected JSON output by default")
	}
	if cfg.Output == nil {
		t.Error("Expected a default output")
	}
}

// emitAll writes one message per level and returns which ones were written.
func emitAll(logger zerolog.Logger, buf *bytes.Buffer) map[LogLevel]bool {
	logger.Debug().Msg("msg-debug")
	logger.Info().Msg("msg-info")
	logger.Warn().Msg("msg-warn")
	logger.Error().Msg("msg-error")

	out := buf.String()
	return map[LogLevel]bool{
		LevelDebug: strings.Contains(out, "msg-debug"),
		LevelInfo:  strings.Contains(out, "msg-info"),
		LevelWarn:  strings.Contains(out, "msg-warn"),
		LevelError: strings.Contains(out, "msg-error"),
	}
}

func TestSetup_LevelFiltering(t *testing.T) {
	order := []LogLevel{LevelDebug, LevelInfo, LevelWarn, LevelError}

	for i, level := range order {
		t.Run(string(level), func(t *testing.T) {
			buf := &bytes.Buffer{}
			written := emitAll(Setup(Config{Level: level, Output: buf}), buf)

			for j, l := range order {
				want := j >= i
				if written[l] != want {
					t.Errorf("at level %s: %s message written = %v, want %v", level, l, written[l], want)
				}
			}
		})
	}
}

func TestSetup_UnknownLevelFallsBackToInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	written := emitAll(Setup(Config{Level: "loud", Output: buf}), buf)

	if written[LevelDebug] {
		t.Error("Debug message should be filtered at the fallback level")
	}
	if !written[LevelInfo] {
		t.Error("Info message should be written at the fallback level")
	}
}

func TestSetup_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := Setup(Config{Level: LevelInfo, Pretty: true, Output: buf})

	logger.Info().Str("bbox", "24.9,60.2,25.0,60.1").Msg("Global refresh complete")

	out := buf.String()
	if strings.HasPrefix(out, "{") {
		t.Errorf("Expected console output, got JSON: %q", out)
	}
	if !strings.Contains(out, "Global refresh complete") {
		t.Errorf("Expected message in output, got %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{" error ", LevelError, false},
		{"verbose", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestZerologLevel(t *testing.T) {
	tests := []struct {
		input    LogLevel
		expected zerolog.Level
	}{
		{LevelDebug, zerolog.DebugLevel},
		{LevelInfo, zerolog.InfoLevel},
		{LevelWarn, zerolog.WarnLevel},
		{LevelError, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		if got := zerologLevel(tt.input); got != tt.expected {
			t.Errorf("zerologLevel(%q) = %v, want %v", tt.input, got, tt.expected)
		}
	}
}

func TestNewLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	Setup(Config{Level: LevelInfo, Output: buf})

	NewLogger("explore").Info().Str("type", "bus_stop").Msg("Region marked")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("Expected one JSON line, got %q: %v", buf.String(), err)
	}
	if line["component"] != "explore" {
		t.Errorf("component = %v, want explore", line["component"])
	}
	if line["type"] != "bus_stop" {
		t.Errorf("type = %v, want bus_stop", line["type"])
	}
	if line["message"] != "Region marked" {
		t.Errorf("message = %v, want Region marked", line["message"])
	}
	if _, ok := line["time"]; !ok {
		t.Error("Expected a timestamp field")
	}
}
