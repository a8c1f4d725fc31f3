// Package mlog is the engine's structured-logging wrapper, backing onto
// github.com/rs/zerolog the way the teacher corpus's logiface/zerolog
// package backs logiface's generic Event abstraction onto zerolog — but
// collapsed to the single concrete backend and field vocabulary this
// module needs (see DESIGN.md for why the generic layer isn't
// reproduced).
package mlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger with the four error buckets of spec §7.
type Logger struct {
	z zerolog.Logger
}

// New returns a Logger writing human-readable console output to w (or
// os.Stderr if w is nil), matching the corpus's development-friendly
// default.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	z := zerolog.New(out).With().Timestamp().Logger()
	return &Logger{z: z}
}

// NewJSON returns a Logger writing newline-delimited JSON to w, for
// production/unattended use.
func NewJSON(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	z := zerolog.New(w).With().Timestamp().Logger()
	return &Logger{z: z}
}

// With returns a child Logger with component bound into every subsequent
// entry, so a component can log through a scoped logger rather than
// reaching for a package global.
func (l *Logger) With(component string) *Logger {
	return &Logger{z: l.z.With().Str("component", component).Logger()}
}

// Fatal logs a configuration-fatal error (spec §7 first bucket) and exits
// the process. The engine itself does not call it: it returns
// duplicate-engine, duplicate-module-name, port-collision and
// parent/child-mismatch faults to its caller as ErrKindConfigFatal errors.
func (l *Logger) Fatal(operation string, err error, fields ...Field) {
	ev := l.z.Fatal().Str("operation", operation).Err(err)
	applyFields(ev, fields)
	ev.Msg("configuration fatal")
}

// Error logs a user-input error or a user-code fault caught at a dispatch
// boundary (spec §7 second and fourth buckets); the caller is expected to
// skip the failed operation and continue the tick.
func (l *Logger) Error(operation string, err error, fields ...Field) {
	ev := l.z.Error().Str("operation", operation).Err(err)
	applyFields(ev, fields)
	ev.Msg("operation failed")
}

// Warn logs transient I/O trouble (spec §7 third bucket): MIDI drain
// failure, OSC send error. The caller retries or skips per the specific
// transport's contract.
func (l *Logger) Warn(operation string, err error, fields ...Field) {
	ev := l.z.Warn().Str("operation", operation).Err(err)
	applyFields(ev, fields)
	ev.Msg("transient I/O error")
}

// Info logs a non-error lifecycle event (engine start/stop, scene
// start/restart).
func (l *Logger) Info(msg string, fields ...Field) {
	ev := l.z.Info()
	applyFields(ev, fields)
	ev.Msg(msg)
}

// Debug logs fine-grained tick-level detail, generally disabled in
// production.
func (l *Logger) Debug(msg string, fields ...Field) {
	ev := l.z.Debug()
	applyFields(ev, fields)
	ev.Msg(msg)
}

// Field is a single structured key/value pair.
type Field struct {
	Key string
	Val any
}

// F constructs a Field.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

func applyFields(ev *zerolog.Event, fields []Field) {
	for _, f := range fields {
		ev.Interface(f.Key, f.Val)
	}
}
