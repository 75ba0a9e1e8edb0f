// Package logging sets up the application's slog loggers: a structured JSON
// logger on stdout and a human-readable text logger on stderr.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
)

var structuredLogger *slog.Logger
var humanReadableLogger *slog.Logger

// Handler inputs, kept so level and output changes compose.
var (
	structuredOutput    io.Writer  = os.Stdout
	humanReadableOutput io.Writer  = os.Stderr
	structuredLevel     slog.Level = slog.LevelDebug
	humanReadableLevel  slog.Level = slog.LevelInfo
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

// Custom level names for the extended levels.
var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelFatal: "FATAL",
}

func handlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				level := a.Value.Any().(slog.Level)
				label, ok := levelNames[level]
				if !ok {
					label = level.String()
				}
				a.Value = slog.StringValue(label)
			}
			return a
		},
	}
}

func rebuild() {
	structuredLogger = slog.New(slog.NewJSONHandler(structuredOutput, handlerOptions(structuredLevel)))
	humanReadableLogger = slog.New(slog.NewTextHandler(humanReadableOutput, handlerOptions(humanReadableLevel)))
	slog.SetDefault(structuredLogger)
}

// Init initializes the logging system. JSON output goes to stdout for log
// collection, text output to stderr for humans. The structured logger
// becomes the process default.
func Init() {
	rebuild()
}

// SetLevel sets the minimum level for both loggers. Intended for startup
// configuration, not mid-flight changes.
func SetLevel(level slog.Level) {
	structuredLevel = level
	humanReadableLevel = level
	rebuild()
}

// SetOutput redirects both loggers, e.g. to a log file, keeping the
// configured levels.
func SetOutput(structured, humanReadable io.Writer) {
	structuredOutput = structured
	humanReadableOutput = humanReadable
	rebuild()
}

// Structured returns the structured (JSON) logger, or nil before Init.
func Structured() *slog.Logger {
	return structuredLogger
}

// HumanReadable returns the text logger, or nil before Init.
func HumanReadable() *slog.Logger {
	return humanReadableLogger
}

// ForService returns a child of the structured logger carrying a 'service'
// attribute. Falls back to the slog default before Init so package-level
// logger variables are always safe to use.
func ForService(serviceName string) *slog.Logger {
	if structuredLogger == nil {
		return slog.Default().With("service", serviceName)
	}
	return structuredLogger.With("service", serviceName)
}

// Convenience functions on the default logger.

func Debug(msg string, args ...any) {
	slog.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	slog.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	slog.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	slog.Error(msg, args...)
}

// Fatal logs at the custom FATAL level and exits.
func Fatal(msg string, args ...any) {
	slog.Log(context.TODO(), LevelFatal, msg, args...)
	os.Exit(1)
}

// Trace logs at the custom TRACE level.
func Trace(msg string, args ...any) {
	slog.Log(context.TODO(), LevelTrace, msg, args...)
}
