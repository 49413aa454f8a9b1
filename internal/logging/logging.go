// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging provides the structured, file-backed logger used across
// chatly.
//
// The terminal belongs to the UI, so log output goes to a rotating JSON file
// by default. A console core is only attached when explicitly configured
// (the dev backend does this).
//
// # Usage
//
//	log, err := logging.New(cfg.Logging)
//	if err != nil {
//	    return err
//	}
//	defer log.Close()
//	chatLog := log.Named("chat")
//	chatLog.Warn("upload failed", logging.Fields{"surface": "healthcare", "error": err})
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jeranaias/chatly-tui/internal/config"
)

// Fields carries structured details for a log entry.
type Fields map[string]interface{}

// Logger is a module-scoped structured logger.
type Logger struct {
	z       *zap.Logger
	module  string
	rotator *lumberjack.Logger
}

// New builds a logger writing JSON lines to cfg.Path with rotation.
func New(cfg config.LoggingConfig) (*Logger, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("logging path is empty")
	}

	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	rotator := &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level),
	}
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.Lock(os.Stderr),
			level,
		))
	}

	z := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))
	return &Logger{z: z, module: "app", rotator: rotator}, nil
}

// Nop returns a logger that discards everything. Used by tests and as the
// zero-config default.
func Nop() *Logger {
	return &Logger{z: zap.NewNop(), module: "app"}
}

// Named returns a child logger tagging entries with module.
func (l *Logger) Named(module string) *Logger {
	if l == nil {
		return Nop().Named(module)
	}
	return &Logger{z: l.z, module: module, rotator: l.rotator}
}

// Zap exposes the underlying zap logger for libraries that want one.
func (l *Logger) Zap() *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.z
}

func (l *Logger) fields(details Fields) []zap.Field {
	out := []zap.Field{zap.String("module", l.module)}
	if len(details) == 0 {
		return out
	}
	if err, ok := details["error"].(error); ok {
		out = append(out, zap.Error(err))
		rest := make(Fields, len(details)-1)
		for k, v := range details {
			if k != "error" {
				rest[k] = v
			}
		}
		details = rest
	}
	if len(details) > 0 {
		out = append(out, zap.Any("details", map[string]interface{}(details)))
	}
	return out
}

// Debug logs at debug level.
func (l *Logger) Debug(message string, details Fields) {
	if l == nil {
		return
	}
	l.z.Debug(message, l.fields(details)...)
}

// Info logs at info level.
func (l *Logger) Info(message string, details Fields) {
	if l == nil {
		return
	}
	l.z.Info(message, l.fields(details)...)
}

// Warn logs at warn level.
func (l *Logger) Warn(message string, details Fields) {
	if l == nil {
		return
	}
	l.z.Warn(message, l.fields(details)...)
}

// Error logs at error level.
func (l *Logger) Error(message string, details Fields) {
	if l == nil {
		return
	}
	l.z.Error(message, l.fields(details)...)
}

// Close flushes and closes the log file.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	_ = l.z.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}
