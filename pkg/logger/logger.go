package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Level represents log level
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// Config holds logger configuration
type Config struct {
	Level  string
	Format string
	Output io.Writer
}

// Logger represents a structured logger backed by zerolog. The Field-based
// API predates the zerolog adoption and is kept so pkg/peer, pkg/slot,
// pkg/voice and pkg/dispatch don't need to learn zerolog's chained-event
// style directly.
type Logger struct {
	zl zerolog.Logger
}

// Field represents a structured logging field
type Field struct {
	Key   string
	Value interface{}
}

// New creates a new logger
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var w io.Writer = output
	if strings.ToLower(cfg.Format) != "json" {
		w = zerolog.ConsoleWriter{Out: output, NoColor: true}
	}

	zl := zerolog.New(w).With().Timestamp().Logger().Level(parseLevel(cfg.Level))

	return &Logger{zl: zl}
}

// WithComponent creates a child logger with a component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{zl: l.zl.With().Str("component", component).Logger()}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, fields ...Field) {
	apply(l.zl.Debug(), fields).Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string, fields ...Field) {
	apply(l.zl.Info(), fields).Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, fields ...Field) {
	apply(l.zl.Warn(), fields).Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string, fields ...Field) {
	apply(l.zl.Error(), fields).Msg(msg)
}

func apply(e *zerolog.Event, fields []Field) *zerolog.Event {
	for _, f := range fields {
		e = e.Interface(f.Key, f.Value)
	}
	return e
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Field constructors

// String creates a string field
func String(key, val string) Field {
	return Field{Key: key, Value: val}
}

// Int creates an int field
func Int(key string, val int) Field {
	return Field{Key: key, Value: val}
}

// Int64 creates an int64 field
func Int64(key string, val int64) Field {
	return Field{Key: key, Value: val}
}

// Uint64 creates a uint64 field
func Uint64(key string, val uint64) Field {
	return Field{Key: key, Value: val}
}

// Bool creates a bool field
func Bool(key string, val bool) Field {
	return Field{Key: key, Value: val}
}

// Uint creates a uint field
func Uint(key string, val uint) Field {
	return Field{Key: key, Value: val}
}

// Uint32 creates a uint32 field
func Uint32(key string, val uint32) Field {
	return Field{Key: key, Value: val}
}

// Float64 creates a float64 field
func Float64(key string, val float64) Field {
	return Field{Key: key, Value: val}
}

// Error creates an error field
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: "nil"}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a field with any value
func Any(key string, val interface{}) Field {
	return Field{Key: key, Value: val}
}
