// Package logger provides leveled diagnostic logging for the CLI and a file
// logger for serve mode, where stdout belongs to the protocol stream.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Level represents the logging level
type Level int

const (
	// LevelOff disables all logging
	LevelOff Level = iota
	// LevelInfo shows basic progress information
	LevelInfo
	// LevelDebug shows detailed debugging information
	LevelDebug
)

var (
	currentLevel = LevelOff
	startTime    = time.Now()
	output       io.Writer = os.Stderr
)

// SetLevel sets the global logging level
func SetLevel(level Level) {
	currentLevel = level
	startTime = time.Now()
}

// GetLevel returns the current logging level
func GetLevel() Level {
	return currentLevel
}

// SetOutput redirects leveled output away from stderr (used by tests).
func SetOutput(w io.Writer) {
	output = w
}

// IsVerbose returns true if verbose logging is enabled
func IsVerbose() bool {
	return currentLevel >= LevelInfo
}

// IsDebug returns true if debug logging is enabled
func IsDebug() bool {
	return currentLevel >= LevelDebug
}

// Info logs an informational message (shown with --verbose)
func Info(format string, args ...interface{}) {
	if currentLevel >= LevelInfo {
		elapsed := time.Since(startTime).Round(time.Millisecond)
		prefix := fmt.Sprintf("[%s] ", elapsed)
		fmt.Fprintf(output, prefix+format+"\n", args...)
	}
}

// Debug logs a debug message (shown with --debug)
func Debug(format string, args ...interface{}) {
	if currentLevel >= LevelDebug {
		elapsed := time.Since(startTime).Round(time.Millisecond)
		prefix := fmt.Sprintf("[%s] [DEBUG] ", elapsed)
		fmt.Fprintf(output, prefix+format+"\n", args...)
	}
}

// Error logs an error message (always shown when verbose is on)
func Error(format string, args ...interface{}) {
	if currentLevel >= LevelInfo {
		elapsed := time.Since(startTime).Round(time.Millisecond)
		prefix := fmt.Sprintf("[%s] [ERROR] ", elapsed)
		fmt.Fprintf(output, prefix+format+"\n", args...)
	}
}

// ServerFile opens (or creates) a log file for serve mode and returns a
// standard logger writing to it plus a close function. Serve mode must never
// log to stdout: the protocol stream owns it.
func ServerFile(path string) (*log.Logger, func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return log.New(f, "", log.LstdFlags|log.Lmicroseconds), f.Close, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}
