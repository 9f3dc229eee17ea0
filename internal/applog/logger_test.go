package applog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDisabledLoggerIsNoOp(t *testing.T) {
	l := New(false, filepath.Join(t.TempDir(), "log.jsonl"), "voxterm")
	l.Event("anything", nil)
	if err := l.Close(); err != nil {
		t.Fatalf("unexpected error closing disabled logger: %v", err)
	}
}

func TestNilLoggerMethodsAreSafe(t *testing.T) {
	var l *Logger
	l.Event("x", nil)
	if err := l.Close(); err != nil {
		t.Fatalf("nil logger Close should be a no-op: %v", err)
	}
}

func TestEventWritesJSONLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	l := New(true, path, "voxterm")
	defer l.Close()

	l.Event("session_start", map[string]any{"backend": "codex"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if rec["event"] != "session_start" || rec["backend"] != "codex" || rec["actor"] != "voxterm" {
		t.Fatalf("got %+v", rec)
	}
}

func TestPromptfLogsReasonAndLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.jsonl")
	l := New(true, path, "voxterm")
	defer l.Close()

	l.Promptf("explicit_match", "$ ")

	data, _ := os.ReadFile(path)
	var rec map[string]any
	if err := json.Unmarshal(data[:len(data)-1], &rec); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if rec["event"] != "prompt_match" || rec["reason"] != "explicit_match" {
		t.Fatalf("got %+v", rec)
	}
}

func TestErrorfReturnsFormattedMessageAndLogs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "err.jsonl")
	l := New(true, path, "voxterm")
	defer l.Close()

	msg := l.Errorf("stt_timeout", "timed out after %dms", 500)
	if msg != "timed out after 500ms" {
		t.Fatalf("got %q", msg)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "stt_timeout") {
		t.Fatalf("expected log to contain event kind, got %q", data)
	}
}

func TestRotateIfNeededRotatesPastThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rot.jsonl")
	l := New(true, path, "voxterm")
	defer l.Close()
	l.size = MaxBytes // force rotation on next write

	l.Event("tick", nil)

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected rotated file to exist: %v", err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("expected fresh log file: %v", err)
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	count := 0
	for scanner.Scan() {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 line in the fresh file, got %d", count)
	}
}

func TestMultipleEventsAppendInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "multi.jsonl")
	l := New(true, path, "voxterm")
	defer l.Close()

	l.Event("first", nil)
	l.Event("second", nil)

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], "first") || !strings.Contains(lines[1], "second") {
		t.Fatalf("events out of order: %v", lines)
	}
}
