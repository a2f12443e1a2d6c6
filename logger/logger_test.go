package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-run")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-run" {
		t.Errorf("expected service 'test-run', got %q", l.service)
	}
}

func TestNewInvalidLevel(t *testing.T) {
	cfg := &Config{
		Level:  "invalid-level",
		Format: "json",
		Output: "stdout",
	}
	l := New(cfg, "test")
	if l == nil {
		t.Fatal("expected logger to be created even with invalid level")
	}
}

func TestNewFromEnv(t *testing.T) {
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LOG_FORMAT", "json")
	defer os.Unsetenv("LOG_LEVEL")
	defer os.Unsetenv("LOG_FORMAT")

	l := NewFromEnv("env-run")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestJSONOutputCarriesComponentAndRun(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "json"}, "ctc", &buf)
	l.WithComponent("expert").WithRun("run-1").Info("dev loss", Fields("split", "dev", "value", 1.5))

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry[FieldComponent] != "expert" {
		t.Errorf("expected component=expert, got %v", entry[FieldComponent])
	}
	if entry[FieldRunID] != "run-1" {
		t.Errorf("expected run_id=run-1, got %v", entry[FieldRunID])
	}
	if entry["split"] != "dev" || entry["message"] != "dev loss" {
		t.Errorf("unexpected entry %v", entry)
	}
}

func TestConsoleOutputNoColor(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "console", NoColor: true}, "runner", &buf)
	l.Info("started")
	out := buf.String()
	if !strings.Contains(out, "[RUN][INF]") {
		t.Errorf("expected service and level tags, got %q", out)
	}
	if !strings.Contains(out, "started") {
		t.Errorf("expected message, got %q", out)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Info("discarded")
	if l.WithComponent("x") == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestWithFieldsAndError(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&Config{Level: "info", Format: "json"}, "t", &buf)
	l.WithFields(map[string]interface{}{"key": "value"}).WithError(fmt.Errorf("boom")).Warn("w")
	if !strings.Contains(buf.String(), `"key":"value"`) || !strings.Contains(buf.String(), "boom") {
		t.Errorf("expected fields and error, got %q", buf.String())
	}
}

func TestInit(t *testing.T) {
	Init(Config{Level: "info", Format: "console", Output: "stdout", ServiceName: "ctckit"})
	gl := GetGlobalLogger()
	if gl == nil {
		t.Fatal("expected global logger to be set after Init")
	}
	if gl.service != "ctckit" {
		t.Errorf("expected service from config, got %q", gl.service)
	}
}

func TestGetGlobalLoggerDefault(t *testing.T) {
	globalLogger = nil
	if GetGlobalLogger() == nil {
		t.Fatal("expected default global logger to be created")
	}
}

func TestSetGlobalLogger(t *testing.T) {
	l := NewDefault("custom")
	SetGlobalLogger(l)
	if GetGlobalLogger() != l {
		t.Error("expected SetGlobalLogger to set the global logger")
	}
}

func TestPackageLevelFunctions(t *testing.T) {
	Init(Config{Level: "debug", Format: "console", Output: "stdout"})
	Debug("debug msg")
	Info("info msg")
	Warn("warn msg")
	Error("error msg")
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got %q", cfg.Level)
	}
	if cfg.Format != "console" {
		t.Errorf("expected format 'console', got %q", cfg.Format)
	}
	if cfg.Output != "stdout" {
		t.Errorf("expected output 'stdout', got %q", cfg.Output)
	}
	if !cfg.Timestamp {
		t.Error("expected Timestamp to be true")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: "json"}, false},
		{"valid console", Config{Level: "debug", Format: "console"}, false},
		{"valid pretty", Config{Level: "warn", Format: "pretty"}, false},
		{"invalid level", Config{Level: "bad", Format: "json"}, true},
		{"invalid format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestWithComponent_LeavesParentUntagged(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWithWriter(&Config{Level: "info", Format: "json"}, "ctc", &buf)
	parent.WithComponent("dataset").WithRun("run-7").Info("child")
	parent.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	var child, root map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &child); err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal([]byte(lines[1]), &root); err != nil {
		t.Fatal(err)
	}
	if child[FieldComponent] != "dataset" || child[FieldRunID] != "run-7" {
		t.Errorf("unexpected child entry %v", child)
	}
	if _, ok := root[FieldComponent]; ok {
		t.Errorf("parent gained a component field: %v", root)
	}
	if _, ok := root[FieldRunID]; ok {
		t.Errorf("parent gained a run_id field: %v", root)
	}
}

func TestPackageWithComponent_UsesGlobalLogger(t *testing.T) {
	prev := GetGlobalLogger()
	t.Cleanup(func() { SetGlobalLogger(prev) })

	var buf bytes.Buffer
	SetGlobalLogger(NewWithWriter(&Config{Level: "info", Format: "json"}, "ctc", &buf))
	WithComponent("runner").Info("step")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON line, got %q: %v", buf.String(), err)
	}
	if entry[FieldComponent] != "runner" {
		t.Errorf("expected component=runner, got %v", entry[FieldComponent])
	}
}

func TestFields(t *testing.T) {
	tests := []struct {
		name     string
		input    []interface{}
		expected map[string]interface{}
	}{
		{"key-value pairs", []interface{}{"op", "save", "id", 42}, map[string]interface{}{"op": "save", "id": 42}},
		{"odd number of args", []interface{}{"op", "save", "trailing"}, map[string]interface{}{"op": "save"}},
		{"non-string key skipped", []interface{}{123, "value", "key", "val"}, map[string]interface{}{"key": "val"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := Fields(tc.input...)
			if len(result) != len(tc.expected) {
				t.Fatalf("expected %d fields, got %v", len(tc.expected), result)
			}
			for k, v := range tc.expected {
				if result[k] != v {
					t.Errorf("Fields[%q] = %v, expected %v", k, result[k], v)
				}
			}
		})
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	fields := ErrorFields("load-manifest", fmt.Errorf("something broke"))
	if fields[FieldOperation] != "load-manifest" || fields[FieldError] != "something broke" {
		t.Errorf("unexpected error fields %v", fields)
	}

	d := DurationFields("epoch", 150*time.Millisecond)
	if d[FieldDuration] != int64(150) {
		t.Errorf("expected duration 150, got %v", d[FieldDuration])
	}

	s := StepFields("dev", 4000)
	if s[FieldSplit] != "dev" || s[FieldStep] != 4000 {
		t.Errorf("unexpected step fields %v", s)
	}
}
