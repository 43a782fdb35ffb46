package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// Logger emits leveled messages under a fixed name. The zero-value fields map
// is never mutated; derivation methods copy it.
type Logger struct {
	name   string
	fields map[string]interface{}
	ctx    context.Context
}

// LogField is one structured key-value pair attached to a message.
type LogField struct {
	Key   string
	Value interface{}
}

// Field builds a LogField for the WithFields-style methods.
func Field(key string, value interface{}) LogField {
	return LogField{Key: key, Value: value}
}

// Debug logs a formatted message at DEBUG level.
func (l *Logger) Debug(format string, args ...interface{}) { l.printf(DEBUG, format, args...) }

// Info logs a formatted message at INFO level.
func (l *Logger) Info(format string, args ...interface{}) { l.printf(INFO, format, args...) }

// Warn logs a formatted message at WARN level.
func (l *Logger) Warn(format string, args ...interface{}) { l.printf(WARN, format, args...) }

// Error logs a formatted message at ERROR level.
func (l *Logger) Error(format string, args ...interface{}) { l.printf(ERROR, format, args...) }

// Fatal logs a formatted message at FATAL level and exits with code 1.
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.printf(FATAL, format, args...)
	exitFunc(1)
}

// ErrorWithErr logs a formatted message with the error appended.
func (l *Logger) ErrorWithErr(msg string, err error, args ...interface{}) {
	l.printf(ERROR, msg+" - %v", append(args, err)...)
}

// DebugWithFields logs a message with structured fields at DEBUG level.
func (l *Logger) DebugWithFields(msg string, fields ...LogField) { l.print(DEBUG, msg, fields) }

// InfoWithFields logs a message with structured fields at INFO level.
func (l *Logger) InfoWithFields(msg string, fields ...LogField) { l.print(INFO, msg, fields) }

// WarnWithFields logs a message with structured fields at WARN level.
func (l *Logger) WarnWithFields(msg string, fields ...LogField) { l.print(WARN, msg, fields) }

// ErrorWithFields logs a message with structured fields at ERROR level.
func (l *Logger) ErrorWithFields(msg string, fields ...LogField) { l.print(ERROR, msg, fields) }

// FatalWithFields logs a message with structured fields at FATAL level and
// exits with code 1.
func (l *Logger) FatalWithFields(msg string, fields ...LogField) {
	l.print(FATAL, msg, fields)
	exitFunc(1)
}

// WithName returns a logger emitting under a different name. Persistent
// fields do not carry over; the context does.
func (l *Logger) WithName(name string) *Logger {
	return &Logger{name: name, ctx: l.ctx}
}

// WithField returns a logger that attaches key=value to every message.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(LogField{Key: key, Value: value})
}

// WithFields returns a logger that attaches all given fields to every message.
func (l *Logger) WithFields(fields ...LogField) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	return &Logger{name: l.name, fields: merged, ctx: l.ctx}
}

// WithContext returns a logger that pulls trace_id and span_id from ctx on
// every message.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return &Logger{name: l.name, fields: l.fields, ctx: ctx}
}

func (l *Logger) printf(level Level, format string, args ...interface{}) {
	if level < effectiveLevel(l.name) {
		return
	}
	l.emit(level, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) print(level Level, msg string, fields []LogField) {
	if level < effectiveLevel(l.name) {
		return
	}
	l.emit(level, msg, fields)
}

// Output destinations, swappable in tests. DEBUG through WARN go to stdout,
// ERROR and FATAL to stderr.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// emit renders one line: [timestamp] [LEVEL] name: msg | k=v ...
// Field precedence, lowest first: context trace/span, persistent fields,
// call-site fields. Keys are sorted for stable output.
func (l *Logger) emit(level Level, msg string, callFields []LogField) {
	merged := contextFields(l.ctx)
	for k, v := range l.fields {
		if merged == nil {
			merged = make(map[string]interface{})
		}
		merged[k] = v
	}
	for _, f := range callFields {
		if merged == nil {
			merged = make(map[string]interface{})
		}
		merged[f.Key] = f.Value
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] [%s] %s: %s", timestamp(), level, l.name, msg)
	if len(merged) > 0 {
		keys := make([]string, 0, len(merged))
		for k := range merged {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, merged[k])
		}
	}

	w := stdout
	if level >= ERROR {
		w = stderr
	}
	fmt.Fprintln(w, b.String())
}

// timestamp returns the RFC3339 wall clock, or the LOG_TIMESTAMP env value
// when set, which tests use for deterministic output.
func timestamp() string {
	if override := os.Getenv("LOG_TIMESTAMP"); override != "" {
		return override
	}
	return time.Now().Format(time.RFC3339)
}
