// Package logger provides component-tagged leveled logging on top of
// charmbracelet/log.
package logger

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// TimeFormat is the timestamp layout of every line.
const TimeFormat = "15:04:05.000"

// Logger writes timestamped lines prefixed with its component name.
// Debug and Info lines are only written when verbose is enabled. Loggers
// derived with WithComponent share output and verbosity with their parent.
type Logger struct {
	base    *log.Logger
	verbose *atomic.Bool
	out     *sink
}

// sink lets SetOutput redirect every derived logger at once.
type sink struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// New creates a logger writing to stderr.
func New(component string, verbose bool) *Logger {
	v := &atomic.Bool{}
	v.Store(verbose)
	out := &sink{w: os.Stderr}
	return &Logger{
		base:    newBase(out, component),
		verbose: v,
		out:     out,
	}
}

func newBase(w io.Writer, component string) *log.Logger {
	if component == "" {
		component = "main"
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      TimeFormat,
		Prefix:          component,
		Level:           log.DebugLevel,
	})
}

// Discard returns a logger that writes nothing.
func Discard() *Logger {
	l := New("discard", false)
	l.out.w = io.Discard
	return l
}

// WithComponent derives a logger sharing output and verbosity.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		base:    newBase(l.out, component),
		verbose: l.verbose,
		out:     l.out,
	}
}

// SetOutput redirects this logger and all loggers derived from it.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()
	l.out.w = w
}

// SetVerbose toggles Debug and Info output.
func (l *Logger) SetVerbose(v bool) {
	l.verbose.Store(v)
}

// IsVerbose reports whether Debug and Info output is enabled.
func (l *Logger) IsVerbose() bool {
	return l.verbose.Load()
}

func (l *Logger) Debug(msg string, fields ...Field) {
	if l.IsVerbose() {
		l.base.Debug(msg, keyvals(fields)...)
	}
}

func (l *Logger) Info(msg string, fields ...Field) {
	if l.IsVerbose() {
		l.base.Info(msg, keyvals(fields)...)
	}
}

func (l *Logger) Warn(msg string, fields ...Field) {
	l.base.Warn(msg, keyvals(fields)...)
}

func (l *Logger) Error(msg string, fields ...Field) {
	l.base.Error(msg, keyvals(fields)...)
}

func keyvals(fields []Field) []interface{} {
	kv := make([]interface{}, 0, 2*len(fields))
	for _, f := range fields {
		kv = append(kv, f.Key, f.Value)
	}
	return kv
}

// F builds an arbitrary field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

func Count(n int) Field {
	return Field{Key: "count", Value: n}
}

func Duration(d time.Duration) Field {
	return Field{Key: "duration", Value: d}
}

func Err(err error) Field {
	return Field{Key: "error", Value: err}
}
