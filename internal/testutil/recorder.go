package testutil

import (
	"fmt"
	"strings"
	"sync"
)

// LogEntry is a single captured log record.
type LogEntry struct {
	Level   string
	Message string
	Args    []any
}

// String renders the entry roughly the way a real sink would, which makes
// substring assertions practical.
func (e LogEntry) String() string {
	if len(e.Args) == 0 {
		return e.Level + " " + e.Message
	}
	return e.Level + " " + e.Message + " " + fmt.Sprint(e.Args...)
}

// RecordingLogger captures log output for assertions. It satisfies
// logging.Logger and is safe for use from concurrent dispatch goroutines.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewRecordingLogger creates an empty recorder.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LogEntry{Level: level, Message: msg, Args: args})
}

func (l *RecordingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args) }
func (l *RecordingLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args) }

// Entries returns a snapshot of everything recorded so far.
func (l *RecordingLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Contains reports whether any entry at the given level mentions the
// substring in its message or arguments.
func (l *RecordingLogger) Contains(level, substring string) bool {
	for _, e := range l.Entries() {
		if e.Level != level {
			continue
		}
		if strings.Contains(e.String(), substring) {
			return true
		}
	}
	return false
}

// CountLevel returns how many entries were recorded at the given level.
func (l *RecordingLogger) CountLevel(level string) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// Reset discards all recorded entries.
func (l *RecordingLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
