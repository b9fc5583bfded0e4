package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
)

func TestRotatingWriterDailyAndSize(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "logs", "moti.log")
	now := time.Date(2025, 10, 26, 23, 59, 0, 0, time.UTC)
	w, err := newRotatingWriter(base, 10, func() time.Time { return now })
	if err != nil {
		t.Fatalf("newRotatingWriter: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })

	if _, err := w.Write([]byte("12345678")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := filepath.Base(w.CurrentPath()); got != "moti-2025-10-26.log" {
		t.Fatalf("unexpected first file %s", got)
	}

	// Exceeds MaxBytes, rolls to index 2 on the same day.
	if _, err := w.Write([]byte("abcdef")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := filepath.Base(w.CurrentPath()); got != "moti-2025-10-26-2.log" {
		t.Fatalf("unexpected rollover file %s", got)
	}

	now = now.Add(2 * time.Minute)
	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := filepath.Base(w.CurrentPath()); got != "moti-2025-10-27.log" {
		t.Fatalf("unexpected next-day file %s", got)
	}

	if dest, err := os.Readlink(base); err == nil && filepath.Base(dest) != "moti-2025-10-27.log" {
		t.Fatalf("pointer not updated: %s", dest)
	}
	data, err := os.ReadFile(filepath.Join(dir, "logs", "moti-2025-10-26.log"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "12345678" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestRotatingWriterRequiresPath(t *testing.T) {
	if _, err := NewRotatingWriter(" ", 0); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "moti.log")
	logger, closeFn, err := New(Options{Level: "debug", File: base})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Infow("reply relayed", "provider", "ollama")
	if err := closeFn(); err != nil {
		t.Fatalf("close: %v", err)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, "moti-*.log"))
	if len(matches) != 1 {
		t.Fatalf("expected one log file, got %v", matches)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"reply relayed"`) || !strings.Contains(string(data), `"provider":"ollama"`) {
		t.Fatalf("unexpected log line %s", data)
	}
}

func TestNewWithoutFile(t *testing.T) {
	logger, closeFn, err := New(Options{File: "-"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debugw("not written")
	_ = closeFn()
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zapcore.Level{
		"":      zapcore.InfoLevel,
		"DEBUG": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
