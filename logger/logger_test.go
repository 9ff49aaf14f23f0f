package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newJSONLogger(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: FormatJSON}, buf, "feed-test")
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	line := strings.TrimSpace(buf.String())
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("log line is not JSON: %q (%v)", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("test-svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.service != "test-svc" {
		t.Errorf("expected service 'test-svc', got %q", l.service)
	}
}

func TestJSONOutputCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "debug").WithComponent("memtable")

	l.Info("table created", Fields(FieldTable, "test", "count", 3))

	m := decodeLine(t, &buf)
	if m["message"] != "table created" {
		t.Errorf("message = %v", m["message"])
	}
	if m[FieldComponent] != "memtable" {
		t.Errorf("component = %v", m[FieldComponent])
	}
	if m[FieldTable] != "test" {
		t.Errorf("table = %v", m[FieldTable])
	}
	if m[FieldService] != "feed-test" {
		t.Errorf("service = %v", m[FieldService])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf, "warn")

	l.Debug("hidden")
	l.Info("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}

	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn line, got %q", buf.String())
	}
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer
	newJSONLogger(&buf, "info").WithError(errors.New("boom")).Error("failed")

	m := decodeLine(t, &buf)
	if m[FieldError] != "boom" {
		t.Errorf("error = %v", m[FieldError])
	}
}

func TestNopDiscards(t *testing.T) {
	l := Nop()
	l.Error("nothing happens")
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) must return a usable logger")
	}
	if got := OrNop(l); got != l {
		t.Error("OrNop should return the given logger")
	}
}

func TestFields(t *testing.T) {
	m := Fields("a", 1, "b", "two", 3, "ignored", "dangling")
	if len(m) != 2 {
		t.Fatalf("expected 2 fields, got %d: %v", len(m), m)
	}
	if m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected fields: %v", m)
	}

	ef := ErrorFields("poll", errors.New("eof"))
	if ef[FieldOperation] != "poll" || ef[FieldError] != "eof" {
		t.Errorf("unexpected error fields: %v", ef)
	}

	df := DurationFields("poll", 1500*time.Millisecond)
	if df[FieldDuration] != int64(1500) {
		t.Errorf("unexpected duration: %v", df[FieldDuration])
	}
}

func TestConfig(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != FormatConsole || cfg.Output != "stdout" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	bad := Config{Level: "loud", Format: FormatJSON}
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid level to fail")
	}
	bad = Config{Level: "info", Format: "xml"}
	if err := bad.Validate(); err == nil {
		t.Error("expected invalid format to fail")
	}
}
