// Package applog provides an append-only, size-rotated JSON-lines logger.
// Both the prompt-event log (--prompt-log) and general diagnostic logging
// share this implementation; only the event shape differs.
package applog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// MaxBytes is the rotation threshold named in spec §6 ("size-rotated at
// 5 MiB").
const MaxBytes = 5 * 1024 * 1024

// Logger writes newline-delimited JSON records to path, rotating to
// path+".1" once the file exceeds MaxBytes. A file lock guards the
// rotation so two VoxTerm processes sharing a log path (e.g. the same
// working directory run twice) never interleave a truncate-and-rename.
type Logger struct {
	enabled bool
	path    string
	actor   string

	mu   sync.Mutex
	file *os.File
	lock *flock.Flock
	size int64
}

// New opens (creating parent directories as needed) the log at path. If
// enabled is false, New still returns a usable Logger whose methods are
// no-ops, so callers never need a nil check.
func New(enabled bool, path, actor string) *Logger {
	l := &Logger{enabled: enabled, path: path, actor: actor}
	if !enabled || path == "" {
		l.enabled = false
		return l
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.enabled = false
		return l
	}
	l.lock = flock.New(path + ".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		l.enabled = false
		return l
	}
	l.file = f
	if fi, err := f.Stat(); err == nil {
		l.size = fi.Size()
	}
	return l
}

// Event writes one JSON record: {"ts": ..., "actor": ..., "event": kind,
// ...fields}.
func (l *Logger) Event(kind string, fields map[string]any) {
	if l == nil || !l.enabled {
		return
	}
	rec := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"actor": l.actor,
		"event": kind,
	}
	for k, v := range fields {
		rec[k] = v
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lock != nil {
		if err := l.lock.Lock(); err == nil {
			defer l.lock.Unlock()
		}
	}
	l.rotateIfNeededLocked()
	n, err := l.file.Write(line)
	if err == nil {
		l.size += int64(n)
	}
}

// Promptf logs a prompt-tracker event with a reason string, matching
// spec §4.8's "last_prompt_seen_at ... with the reason logged".
func (l *Logger) Promptf(reason, line string) {
	l.Event("prompt_match", map[string]any{"reason": reason, "line": line})
}

func (l *Logger) rotateIfNeededLocked() {
	if l.size < MaxBytes {
		return
	}
	rotated := l.path + ".1"
	l.file.Close()
	os.Rename(l.path, rotated)
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		// Best effort: disable further logging rather than crash the run.
		l.enabled = false
		return
	}
	l.file = f
	l.size = 0
}

// Close flushes and closes the underlying file. Safe to call on a
// disabled logger.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Errorf is a convenience for recoverable-pipeline narration (spec §7):
// it both logs and returns a formatted string for the HUD status line.
func (l *Logger) Errorf(kind, format string, args ...any) string {
	msg := fmt.Sprintf(format, args...)
	l.Event(kind, map[string]any{"message": msg})
	return msg
}
