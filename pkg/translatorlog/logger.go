// Package translatorlog defines the logging seam shared across the engine:
// a small interface so packages never depend on a concrete logging library,
// plus a standard-library-backed implementation for the CLI binary.
package translatorlog

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"
)

// Logger is implemented by anything that can receive leveled, structured
// log lines. Args are logfmt-style key/value pairs.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. Useful as a safe default for components
// constructed without an explicit logger.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...interface{}) {}
func (NoOpLogger) Info(string, ...interface{})  {}
func (NoOpLogger) Warn(string, ...interface{})  {}
func (NoOpLogger) Error(string, ...interface{}) {}

// StdLogger writes leveled lines through the standard library's log
// package to an arbitrary writer (typically a RedactingWriter wrapping a
// rotating log file).
type StdLogger struct {
	logger *log.Logger
}

// NewStdLogger builds a StdLogger writing to w. Pass os.Stderr for
// operator-facing console output.
func NewStdLogger(w io.Writer) *StdLogger {
	return &StdLogger{logger: log.New(w, "", 0)}
}

func (l *StdLogger) Debug(msg string, args ...interface{}) { l.emit("DEBUG", msg, args) }
func (l *StdLogger) Info(msg string, args ...interface{})  { l.emit("INFO", msg, args) }
func (l *StdLogger) Warn(msg string, args ...interface{})  { l.emit("WARN", msg, args) }
func (l *StdLogger) Error(msg string, args ...interface{}) { l.emit("ERROR", msg, args) }

func (l *StdLogger) emit(level, msg string, args []interface{}) {
	ts := time.Now().Format("2006-01-02T15:04:05.000Z07:00")
	line := fmt.Sprintf("%s %-5s %s", ts, level, msg)
	if len(args) > 0 {
		line += " " + formatArgs(args)
	}
	l.logger.Println(line)
}

func formatArgs(args []interface{}) string {
	var b strings.Builder
	for i := 0; i+1 < len(args); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%v=%v", args[i], args[i+1])
	}
	return b.String()
}

// Default is a console-backed StdLogger for callers that want leveled
// output without wiring one up explicitly.
var Default Logger = NewStdLogger(os.Stderr)
