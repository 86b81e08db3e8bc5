// internal/utils/logger.go
package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps a zap logger behind the field-map API used across the services.
type Logger struct {
	z *zap.Logger
}

var (
	globalLogger *Logger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the process logger. Before InitLogger it logs to stdout only.
func GetLogger() *Logger {
	loggerMutex.RLock()
	l := globalLogger
	loggerMutex.RUnlock()
	if l != nil {
		return l
	}

	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if globalLogger == nil {
		z, err := zap.NewProduction()
		if err != nil {
			z = zap.NewNop()
		}
		globalLogger = &Logger{z: z}
	}
	return globalLogger
}

// InitLogger builds the process logger writing JSON to stdout and logDir/app.log.
// Debug mode switches to the console encoder at debug level.
func InitLogger(logDir string, debug bool) error {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	cfg.OutputPaths = []string{"stdout"}
	if logDir != "" {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, filepath.Join(logDir, "app.log"))
	}

	z, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}

	SetLogger(z)
	return nil
}

// SetLogger replaces the process logger. Tests pass zap.NewNop() or an observer core.
func SetLogger(z *zap.Logger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = &Logger{z: z}
}

// Zap exposes the underlying logger for libraries that take one directly.
func (l *Logger) Zap() *zap.Logger {
	return l.z
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{z: l.z.Named(component)}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.z.Sync()
}

func toZapFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		if err, ok := fields[k].(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, fields[k]))
	}
	return out
}

func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.z.Debug(message, toZapFields(fields)...)
}

func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.z.Info(message, toZapFields(fields)...)
}

func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.z.Warn(message, toZapFields(fields)...)
}

func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.z.Error(message, toZapFields(fields)...)
}

func (l *Logger) Fatal(message string, fields map[string]interface{}) {
	l.z.Fatal(message, toZapFields(fields)...)
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.z.Sugar().Debugf(format, args...)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.z.Sugar().Infof(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.z.Sugar().Warnf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.z.Sugar().Errorf(format, args...)
}

func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.z.Sugar().Fatalf(format, args...)
}
