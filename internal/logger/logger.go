// Package logger provides the process-wide logging facade for gangplank.
// It writes through log/slog so the host can choose text or JSON handlers,
// while exposing printf-style helpers for the common call sites.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

var (
	slogger *slog.Logger
	logFile *os.File
	level   = new(slog.LevelVar)
)

// Init initializes the global logger. Logs are written to stdout and, when
// logDir is non-empty, to a dated file inside it. If jsonOutput is true the
// file/console output is JSON formatted.
func Init(logDir string, jsonOutput bool) error {
	var writer io.Writer = os.Stdout

	if logDir != "" {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		logFileName := "gangplank-" + time.Now().Format("2006-01-02") + ".log"
		logFilePath := filepath.Join(logDir, logFileName)

		var err error
		logFile, err = os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		writer = io.MultiWriter(os.Stdout, logFile)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(writer, opts)
	} else {
		handler = slog.NewTextHandler(writer, opts)
	}

	slogger = slog.New(handler)
	slog.SetDefault(slogger)
	return nil
}

// Close closes the log file if one was opened.
func Close() error {
	if logFile != nil {
		return logFile.Close()
	}
	return nil
}

// SetDebug toggles debug-level output at runtime.
func SetDebug(enabled bool) {
	if enabled {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}
}

// Slog returns the slog.Logger instance for structured logging.
func Slog() *slog.Logger {
	if slogger == nil {
		return slog.Default()
	}
	return slogger
}

// Info logs an informational message.
func Info(format string, v ...any) {
	Slog().Info(fmt.Sprintf(format, v...))
}

// Warn logs a warning message.
func Warn(format string, v ...any) {
	Slog().Warn(fmt.Sprintf(format, v...))
}

// Error logs an error message.
func Error(format string, v ...any) {
	Slog().Error(fmt.Sprintf(format, v...))
}

// Debug logs a debug message.
func Debug(format string, v ...any) {
	Slog().Debug(fmt.Sprintf(format, v...))
}
