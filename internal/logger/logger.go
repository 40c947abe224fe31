package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

var (
	defaultLogger zerolog.Logger = zerolog.Nop()
	output        io.Closer
)

// Environment override for the configured level
const LevelEnv = "HIVEKEEPER_LOG_LEVEL"

// EventTypeCLI marks plumbing lines written by the command layer.
const EventTypeCLI = "cli"

// GetLogLevelFromString converts a level name, defaulting to info.
func GetLogLevelFromString(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

/**
 * Initialize the logger on the debug log file
 * @param {string} logPath - JSON-lines audit file, created if missing
 * @param {string} level - Log level name, HIVEKEEPER_LOG_LEVEL wins when set
 * @returns {error} Returns error if the file can't be opened
 * @description
 * - Every line is one JSON object carrying event_type "cli"
 * - The file is opened O_APPEND so concurrent processes never split a line
 */
func InitLogger(logPath string, level string) error {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	if lvl := os.Getenv(LevelEnv); lvl != "" {
		level = lvl
	}
	Close()
	InitWithWriter(file, level)
	output = file
	return nil
}

// InitWithWriter points the logger at an arbitrary writer.
func InitWithWriter(w io.Writer, level string) {
	defaultLogger = zerolog.New(w).
		Level(GetLogLevelFromString(level)).
		With().
		Timestamp().
		Str("event_type", EventTypeCLI).
		Int("pid", os.Getpid()).
		Logger()
}

// InitNop discards everything; used by tests.
func InitNop() {
	Close()
	defaultLogger = zerolog.Nop()
}

// Close releases the log file if one is open.
func Close() {
	if output != nil {
		output.Close()
		output = nil
	}
}

// Get exposes the underlying zerolog logger for structured fields.
func Get() *zerolog.Logger {
	return &defaultLogger
}

func Debug(v ...interface{}) {
	defaultLogger.Debug().Msg(fmt.Sprint(v...))
}

func Debugf(format string, v ...interface{}) {
	defaultLogger.Debug().Msgf(format, v...)
}

func Info(v ...interface{}) {
	defaultLogger.Info().Msg(fmt.Sprint(v...))
}

func Infof(format string, v ...interface{}) {
	defaultLogger.Info().Msgf(format, v...)
}

func Warn(v ...interface{}) {
	defaultLogger.Warn().Msg(fmt.Sprint(v...))
}

func Warnf(format string, v ...interface{}) {
	defaultLogger.Warn().Msgf(format, v...)
}

func Error(v ...interface{}) {
	defaultLogger.Error().Msg(fmt.Sprint(v...))
}

func Errorf(format string, v ...interface{}) {
	defaultLogger.Error().Msgf(format, v...)
}

// Fatal logs at error level, prints to stderr and exits.
func Fatal(v ...interface{}) {
	msg := fmt.Sprint(v...)
	defaultLogger.Error().Msg(msg)
	fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	os.Exit(1)
}

func Fatalf(format string, v ...interface{}) {
	Fatal(fmt.Sprintf(format, v...))
}
