package util

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

type levelStyle struct {
	tag   string
	color string
}

var styles = map[LogLevel]levelStyle{
	LevelDebug: {"[DEBUG]", "\033[90m"},
	LevelInfo:  {"[INFO] ", "\033[36m"},
	LevelWarn:  {"[WARN] ", "\033[33m"},
	LevelError: {"[ERROR]", "\033[31m"},
}

var (
	logMu           sync.Mutex
	logOutput       io.Writer = os.Stderr
	currentLogLevel           = LevelInfo
	useColors                 = true
)

// SetLogLevel sets the minimum log level to display
func SetLogLevel(level LogLevel) {
	logMu.Lock()
	defer logMu.Unlock()
	currentLogLevel = level
}

// SetVerbose enables verbose (debug) logging
func SetVerbose(verbose bool) {
	if verbose {
		SetLogLevel(LevelDebug)
	}
}

// SetQuiet enables quiet mode (errors only)
func SetQuiet(quiet bool) {
	if quiet {
		SetLogLevel(LevelError)
	}
}

// IsVerbose reports whether debug output is enabled
func IsVerbose() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogLevel <= LevelDebug
}

// IsQuiet reports whether only errors are shown
func IsQuiet() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return currentLogLevel >= LevelError
}

// SetColors enables or disables colored output
func SetColors(enabled bool) {
	logMu.Lock()
	defer logMu.Unlock()
	useColors = enabled
}

// SetLogOutput redirects log lines, returning the previous writer.
func SetLogOutput(w io.Writer) io.Writer {
	logMu.Lock()
	defer logMu.Unlock()
	prev := logOutput
	logOutput = w
	return prev
}

func logAt(level LogLevel, tag, color, format string, args ...interface{}) {
	logMu.Lock()
	defer logMu.Unlock()
	if level < currentLogLevel {
		return
	}
	ts := time.Now().Format("15:04:05")
	if useColors {
		ts = color + ts + "\033[0m"
	}
	fmt.Fprintf(logOutput, "%s %s %s\n", ts, tag, fmt.Sprintf(format, args...))
}

// DebugLog logs debug messages
func DebugLog(format string, args ...interface{}) {
	s := styles[LevelDebug]
	logAt(LevelDebug, s.tag, s.color, format, args...)
}

// InfoLog logs informational messages
func InfoLog(format string, args ...interface{}) {
	s := styles[LevelInfo]
	logAt(LevelInfo, s.tag, s.color, format, args...)
}

// WarnLog logs warning messages
func WarnLog(format string, args ...interface{}) {
	s := styles[LevelWarn]
	logAt(LevelWarn, s.tag, s.color, format, args...)
}

// ErrorLog logs error messages
func ErrorLog(format string, args ...interface{}) {
	s := styles[LevelError]
	logAt(LevelError, s.tag, s.color, format, args...)
}

// SuccessLog logs success messages (shown at info level)
func SuccessLog(format string, args ...interface{}) {
	logAt(LevelInfo, "[OK]   ", "\033[32m", format, args...)
}
