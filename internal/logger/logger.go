// Package logger configures the process-wide zap logger: a human-readable
// console core plus a JSON file core with lumberjack rotation. Every
// component logs through Log; nothing in the engine writes to stdout
// directly except the CLI's own progress lines.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance. It defaults to a no-op logger so
// library consumers and tests that never call Initialize can still log
// safely.
var Log = zap.NewNop()

// Initialize sets up the structured logger with file rotation.
// logLevel: "debug", "info", "warn", "error" (default: "info")
// logFile: path to the rotated JSON log (default: "mixid.log")
func Initialize(logLevel string, logFile string) error {
	if logFile == "" {
		logFile = "mixid.log"
	}
	if logLevel == "" {
		logLevel = "info"
	}

	level := parseLogLevel(logLevel)

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     7, // days
		Compress:   true,
	})

	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())

	jsonEncoderConfig := zap.NewProductionEncoderConfig()
	jsonEncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	jsonEncoder := zapcore.NewJSONEncoder(jsonEncoderConfig)

	// Console output goes to stderr so the CLI's cue sheets and progress
	// lines on stdout stay machine-consumable.
	consoleCore := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), level)
	fileCore := zapcore.NewCore(jsonEncoder, fileWriter, level)

	core := zapcore.NewTee(consoleCore, fileCore)
	Log = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))

	Log.Debug("logger initialized",
		zap.String("level", logLevel),
		zap.String("file", logFile),
	)
	return nil
}

// Close flushes the logger before shutdown.
func Close() error {
	if Log != nil {
		return Log.Sync()
	}
	return nil
}

func parseLogLevel(levelStr string) zapcore.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Field helpers shared by the indexer, matchers, and CLI.

func WithTrackID(trackID uint) zap.Field {
	return zap.Uint("track_id", trackID)
}

func WithFilename(filename string) zap.Field {
	return zap.String("filename", filename)
}

func WithConfidence(confidence float64) zap.Field {
	return zap.Float64("confidence", confidence)
}
