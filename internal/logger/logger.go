// Package logger provides leveled logging for passage on top of log/slog.
//
// Logs go to stderr: in MCP stdio mode stdout carries the protocol.
// By default only warnings and errors are printed; the --verbose flag
// lowers the level to debug so users can follow the ingestion and
// retrieval pipeline.
//
// Environment variables:
//
//	PASSAGE_LOG_FORMAT = text | json  (default: text)
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Format selects the slog handler.
type Format string

// Available formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

var (
	mu        sync.RWMutex
	verbose   bool
	logFormat           = formatFromEnv()
	output    io.Writer = os.Stderr
	level               = new(slog.LevelVar)
	log                 = build()
)

func formatFromEnv() Format {
	if strings.ToLower(os.Getenv("PASSAGE_LOG_FORMAT")) == string(FormatJSON) {
		return FormatJSON
	}
	return FormatText
}

// build creates the logger for the current output and format.
// Callers hold mu for writing, except during package init.
func build() *slog.Logger {
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelWarn)
	}

	opts := &slog.HandlerOptions{Level: level}
	if logFormat == FormatJSON {
		return slog.New(slog.NewJSONHandler(output, opts))
	}
	return slog.New(slog.NewTextHandler(output, opts))
}

// SetVerbose enables or disables debug logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	if v {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelWarn)
	}
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetOutput sets the output writer.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	log = build()
}

// SetFormat switches between text and JSON records.
func SetFormat(f Format) {
	mu.Lock()
	defer mu.Unlock()
	logFormat = f
	log = build()
}

// Logger returns the underlying slog logger for structured call sites.
func Logger() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

func emit(lvl slog.Level, format string, args []any, attrs ...any) {
	mu.RLock()
	l := log
	mu.RUnlock()
	ctx := context.Background()
	if !l.Enabled(ctx, lvl) {
		return
	}
	l.Log(ctx, lvl, fmt.Sprintf(format, args...), attrs...)
}

// Debug logs a message when verbose mode is enabled.
func Debug(format string, args ...any) {
	emit(slog.LevelDebug, format, args)
}

// Section marks the start of a pipeline stage in verbose output.
func Section(name string) {
	emit(slog.LevelDebug, "=== %s ===", []any{name}, "section", name)
}

// Info logs an informational message when verbose mode is enabled.
func Info(format string, args ...any) {
	emit(slog.LevelInfo, format, args)
}

// Warn logs a warning.
func Warn(format string, args ...any) {
	emit(slog.LevelWarn, format, args)
}

// Error logs an error.
func Error(format string, args ...any) {
	emit(slog.LevelError, format, args)
}
