// Package logging provides the small leveled wrapper over the standard
// library's log.Logger used by the kvgossip node and manager runtimes and
// their binaries, matching the
// log.Printf/log.Fatalf style used throughout the gossip and storage
// binaries this module is built from.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
)

// Level is an ordered logging severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel maps a config string (as accepted by --log-level) to a Level.
// Unrecognized strings fall back to LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger gates log.Logger output by Level. It is not safe to mutate
// concurrently, but its logging methods are (they only call through to the
// underlying log.Logger, which serializes internally).
type Logger struct {
	level Level
	out   *log.Logger
}

// New returns a Logger writing to w (os.Stderr in production) at the given
// level.
func New(level Level, w io.Writer) *Logger {
	return &Logger{level: level, out: log.New(w, "", log.LstdFlags)}
}

// Default returns a Logger at LevelInfo writing to stderr.
func Default() *Logger {
	return New(LevelInfo, os.Stderr)
}

func (l *Logger) log(level Level, prefix, format string, args ...interface{}) {
	if level < l.level {
		return
	}
	l.out.Printf(prefix+" "+format, args...)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.log(LevelDebug, "[debug]", format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.log(LevelInfo, "[info]", format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.log(LevelWarn, "[warn]", format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.log(LevelError, "[error]", format, args...) }

// Fatalf logs at error level regardless of the configured level, then exits
// the process — used only during startup/bootstrap failures.
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.out.Fatalf(fmt.Sprintf("[fatal] %s", format), args...)
}
