// Package logger writes one JSON object per line, in the same shape as the
// HTTP access log: ts, level, component, event plus free-form fields.
package logger

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"
)

const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

type sink struct {
	mu  sync.Mutex
	w   io.Writer
	loc *time.Location
}

// Logger is safe for concurrent use. Derived loggers share the parent's writer.
type Logger struct {
	out       *sink
	component string
}

// New returns a logger writing to w with timestamps rendered in loc.
func New(w io.Writer, loc *time.Location) *Logger {
	if loc == nil {
		loc = time.UTC
	}
	return &Logger{out: &sink{w: w, loc: loc}}
}

// Stdout is the process-wide default used by the binaries.
func Stdout(loc *time.Location) *Logger {
	return New(os.Stdout, loc)
}

// Nop discards everything.
func Nop() *Logger {
	return New(io.Discard, time.UTC)
}

// With returns a logger that stamps every line with the given component.
func (l *Logger) With(component string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{out: l.out, component: component}
}

func (l *Logger) Info(event string, fields map[string]any) {
	l.write(LevelInfo, event, nil, fields)
}

func (l *Logger) Warn(event string, err error, fields map[string]any) {
	l.write(LevelWarn, event, err, fields)
}

func (l *Logger) Error(event string, err error, fields map[string]any) {
	l.write(LevelError, event, err, fields)
}

func (l *Logger) write(level, event string, err error, fields map[string]any) {
	if l == nil || l.out == nil {
		return
	}

	entry := make(map[string]any, len(fields)+5)
	for k, v := range fields {
		entry[k] = v
	}
	entry["ts"] = time.Now().In(l.out.loc).Format(time.RFC3339Nano)
	entry["level"] = level
	entry["event"] = event
	if l.component != "" {
		entry["component"] = l.component
	}
	if err != nil {
		entry["error_message"] = err.Error()
	}

	b, mErr := json.Marshal(entry)
	if mErr != nil {
		b, _ = json.Marshal(map[string]any{"level": LevelError, "event": "log_marshal_failed", "error_message": mErr.Error()})
	}

	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	_, _ = l.out.w.Write(append(b, '\n'))
}
