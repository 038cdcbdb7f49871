// SPDX-License-Identifier: MIT

// Package log is the process-wide leveled logger. Components prefix their
// messages with their own name, e.g. "Engine: stream stalled". Once a session
// is known every line carries its short ID, so logs of consecutive runs
// appended to one file stay apart.
package log

import (
	"fmt"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// LogLevel defines the severity of a log message.
type LogLevel uint32

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

func (l LogLevel) String() string {
	if int(l) < len(levelNames) {
		return levelNames[l]
	}
	return "UNKNOWN"
}

// tag pads the level so messages line up: "[INFO]  x", "[ERROR] x".
func (l LogLevel) tag() string {
	return fmt.Sprintf("%-8s", "["+l.String()+"]")
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	name := strings.ToUpper(strings.TrimSpace(levelStr))
	if name == "WARNING" {
		return LevelWarn, true
	}
	for l, n := range levelNames {
		if n == name {
			return LogLevel(l), true
		}
	}
	return LevelInfo, false
}

var (
	currentLevel atomic.Uint32

	mu         sync.Mutex
	redirected bool
	logger     = stdlog.New(os.Stderr, "", stdlog.Ldate|stdlog.Ltime|stdlog.Lmicroseconds)
)

func init() {
	SetLevel(LevelInfo)
}

// SetLevel sets the global logging level atomically.
func SetLevel(level LogLevel) {
	currentLevel.Store(uint32(level))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(currentLevel.Load())
}

// Enabled reports whether messages at level are written. Callers use it to
// skip building expensive arguments.
func Enabled(level LogLevel) bool {
	return level >= GetLevel()
}

// SetOutput redirects log output, typically to a buffer in tests or to a
// file while the monitor owns the terminal. Fatal messages still reach
// stderr when output is redirected.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
	redirected = w != os.Stderr
}

// SetSession tags every following line with the first block of id. An
// empty id removes the tag.
func SetSession(id string) {
	short, _, _ := strings.Cut(id, "-")
	prefix := ""
	if short != "" {
		prefix = "[" + short + "] "
	}
	logger.SetPrefix(prefix)
}

func logf(level LogLevel, format string, v []any) {
	if Enabled(level) {
		logger.Print(level.tag() + fmt.Sprintf(format, v...))
	}
}

func logv(level LogLevel, v []any) {
	if Enabled(level) {
		logger.Print(level.tag() + fmt.Sprint(v...))
	}
}

func fatal(msg string) {
	line := LevelFatal.tag() + msg
	mu.Lock()
	if redirected {
		fmt.Fprintln(os.Stderr, line)
	}
	mu.Unlock()
	logger.Print(line)
	os.Exit(1)
}

func Debugf(format string, v ...any) { logf(LevelDebug, format, v) }
func Infof(format string, v ...any)  { logf(LevelInfo, format, v) }
func Warnf(format string, v ...any)  { logf(LevelWarn, format, v) }
func Errorf(format string, v ...any) { logf(LevelError, format, v) }

// Fatalf logs regardless of level and exits with status 1.
func Fatalf(format string, v ...any) { fatal(fmt.Sprintf(format, v...)) }

func Debug(v ...any) { logv(LevelDebug, v) }
func Info(v ...any)  { logv(LevelInfo, v) }
func Warn(v ...any)  { logv(LevelWarn, v) }
func Error(v ...any) { logv(LevelError, v) }
func Fatal(v ...any) { fatal(fmt.Sprint(v...)) }
