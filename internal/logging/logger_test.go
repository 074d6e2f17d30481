package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func newBufferLogger(level Level, format Format) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := New(Config{
		Level:  level,
		Format: format,
		Output: &buf,
		Prefix: "test",
	})
	return logger, &buf
}

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level    Level
		expected string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{Level(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.expected {
			t.Errorf("Level(%d).String() = %q, expected %q", tt.level, got, tt.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		wantErr  bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"WARNING", LevelWarn, false},
		{"error", LevelError, false},
		{"", LevelInfo, false},
		{"verbose", LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLevel(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
		if got != tt.expected {
			t.Errorf("ParseLevel(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("JSON"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(JSON) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(\"\") = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestLogger_Log(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug, FormatText)

	logger.Info("plugin loaded", "name", "demo")

	out := buf.String()
	if !strings.Contains(out, "plugin loaded") {
		t.Errorf("expected message in output, got %q", out)
	}
	if !strings.Contains(out, "name=demo") {
		t.Errorf("expected key/value in output, got %q", out)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	logger, buf := newBufferLogger(LevelWarn, FormatText)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	if strings.Contains(out, "debug message") || strings.Contains(out, "info message") {
		t.Errorf("messages below level leaked: %q", out)
	}
	if !strings.Contains(out, "warn message") || !strings.Contains(out, "error message") {
		t.Errorf("expected warn and error messages, got %q", out)
	}
}

func TestLogger_SetLevel(t *testing.T) {
	logger, buf := newBufferLogger(LevelError, FormatText)

	logger.Info("hidden")
	logger.SetLevel(LevelDebug)
	logger.Debug("visible")

	if logger.Level() != LevelDebug {
		t.Errorf("Level() = %v, want debug", logger.Level())
	}
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("message logged before SetLevel should be filtered")
	}
	if !strings.Contains(out, "visible") {
		t.Error("message logged after SetLevel should be written")
	}
}

func TestLogger_WithComponent(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	logger.WithComponent("registry").WithField("plugin", "demo").Info("hook failed", "handler", "on_load")

	line := strings.TrimSpace(buf.String())
	if got := gjson.Get(line, "msg").String(); got != "hook failed" {
		t.Errorf("msg = %q, want hook failed", got)
	}
	for key, want := range map[string]string{
		"component": "registry",
		"plugin":    "demo",
		"handler":   "on_load",
	} {
		if got := gjson.Get(line, key).String(); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestLogger_WithFieldsDoesNotModifyParent(t *testing.T) {
	logger, buf := newBufferLogger(LevelInfo, FormatJSON)

	_ = logger.WithFields(map[string]any{"child": true})
	logger.Info("parent")

	if gjson.Get(strings.TrimSpace(buf.String()), "child").Exists() {
		t.Error("child field leaked into parent logger")
	}
}

func TestLogger_SetOutputAndFormat(t *testing.T) {
	logger, first := newBufferLogger(LevelInfo, FormatText)

	var second bytes.Buffer
	logger.SetOutput(&second)
	logger.SetFormat(FormatJSON)
	logger.Info("moved")

	if first.Len() != 0 {
		t.Errorf("old output received %q", first.String())
	}
	if !gjson.Valid(strings.TrimSpace(second.String())) {
		t.Errorf("expected JSON output, got %q", second.String())
	}
}

func TestLogger_Disable(t *testing.T) {
	logger, buf := newBufferLogger(LevelDebug, FormatText)

	logger.Disable()
	logger.Error("dropped")
	logger.Enable()
	logger.Error("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("disabled logger wrote output")
	}
	if !strings.Contains(out, "kept") {
		t.Error("re-enabled logger wrote nothing")
	}
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	logger.Error("nothing happens")
	logger.WithField("k", "v").Info("still nothing")
}

func TestDefault(t *testing.T) {
	original := Default()
	if original == nil {
		t.Fatal("Default() returned nil")
	}

	replacement := Discard()
	SetDefault(replacement)
	defer SetDefault(original)

	if Default() != replacement {
		t.Error("SetDefault() did not replace the default logger")
	}
}
