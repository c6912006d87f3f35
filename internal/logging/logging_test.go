package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelStringRoundTrip(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		parsed, err := ParseLevel(LevelString(level))
		if err != nil || parsed != level {
			t.Errorf("%v: parsed %v, err %v", level, parsed, err)
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
		t.Error("expected error for xml")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelInfo {
		t.Errorf("expected info level, got %v", cfg.Level)
	}
	if cfg.Component != "keyway" {
		t.Errorf("expected keyway component, got %q", cfg.Component)
	}
	if !strings.HasSuffix(cfg.FilePath, filepath.Join("keyway", "keyway.log")) {
		t.Errorf("unexpected default path %q", cfg.FilePath)
	}
}

func TestDefaultLogPathHonoursXDG(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/tmp/state")
	if got := DefaultLogPath(); got != "/tmp/state/keyway/keyway.log" {
		t.Errorf("DefaultLogPath() = %q", got)
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			t.Fatalf("bad json line %q: %v", line, err)
		}
		out = append(out, m)
	}
	return out
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Format: FormatJSON, Writer: &buf, Component: "keyway"})
	if err != nil {
		t.Fatal(err)
	}

	logger.WithComponent("engine").Info("started")

	lines := decodeLines(t, &buf)
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["component"] != "engine" {
		t.Errorf("component = %v", lines[0]["component"])
	}
}

func TestKeystrokeContentRedactedAboveDebug(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelDebug, Format: FormatJSON, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.Info("chord", "chord", "Ctrl+C", "items", 2)
	logger.Debug("chord", "chord", "Ctrl+C")
	logger.Warn("unmapped", "code", 250)

	lines := decodeLines(t, &buf)
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[0]["chord"] != redacted {
		t.Errorf("info chord = %v, want redacted", lines[0]["chord"])
	}
	if lines[0]["items"] != float64(2) {
		t.Errorf("non-sensitive attr altered: %v", lines[0]["items"])
	}
	if lines[1]["chord"] != "Ctrl+C" {
		t.Errorf("debug chord = %v, want verbatim", lines[1]["chord"])
	}
	if lines[2]["code"] != redacted {
		t.Errorf("warn code = %v, want redacted", lines[2]["code"])
	}
}

func TestBoundAttrsRedacted(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelDebug, Format: FormatText, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	logger.With("label", "⌃C").Debug("bound")
	if strings.Contains(buf.String(), "⌃C") {
		t.Errorf("bound label leaked: %s", buf.String())
	}
}

func TestFileRotatorWrites(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "keyway.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	data := []byte("line\n")
	n, err := rotator.Write(data)
	if err != nil || n != len(data) {
		t.Fatalf("write = %d, %v", n, err)
	}
	if err := rotator.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestFileRotatorRotatesBySize(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "keyway.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 1, MaxBackups: 5})
	if err != nil {
		t.Fatal(err)
	}

	chunk := bytes.Repeat([]byte("x"), 700*1024)
	for i := 0; i < 3; i++ {
		if _, err := rotator.Write(chunk); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
		// distinct rotation timestamps
		time.Sleep(2 * time.Millisecond)
	}
	if err := rotator.Close(); err != nil {
		t.Fatal(err)
	}

	backups, err := rotator.Backups()
	if err != nil {
		t.Fatal(err)
	}
	if len(backups) != 2 {
		t.Errorf("expected 2 rotated files, got %v", backups)
	}
}

func TestFileRotatorRotatesAtDayBoundary(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "keyway.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 10, MaxBackups: 5, Compress: true})
	if err != nil {
		t.Fatal(err)
	}

	day := time.Date(2026, 3, 1, 23, 59, 0, 0, time.Local)
	rotator.now = func() time.Time { return day }
	rotator.opened = day
	rotator.Write([]byte("before midnight\n"))

	day = day.Add(2 * time.Minute)
	rotator.Write([]byte("after midnight\n"))
	if err := rotator.Close(); err != nil {
		t.Fatal(err)
	}

	backups, _ := rotator.Backups()
	if len(backups) != 1 || !strings.HasSuffix(backups[0], ".gz") {
		t.Fatalf("expected one gzipped backup, got %v", backups)
	}
	current, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(current) != "after midnight\n" {
		t.Errorf("current log = %q", current)
	}
}

func TestRecover(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&Config{Level: LevelInfo, Format: FormatJSON, Writer: &buf})
	if err != nil {
		t.Fatal(err)
	}

	var got error
	func() {
		defer Recover(logger.Logger, "reader", func(err error) { got = err })
		panic("boom")
	}()

	if got == nil || !strings.Contains(got.Error(), "boom") {
		t.Errorf("onPanic error = %v", got)
	}
	if !strings.Contains(buf.String(), "recovered panic") {
		t.Errorf("panic not logged: %s", buf.String())
	}
	if errors.Unwrap(got) != nil {
		t.Errorf("unexpected wrapped error")
	}
}
