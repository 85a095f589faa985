// Package logger provides structured logging for cura
package logger

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	mu           sync.Mutex
)

// DefaultLogFile is the run log written next to the data directories
const DefaultLogFile = "cura_logs.txt"

// contextKey is the type for context keys
type contextKey string

const (
	// RunIDKey is the context key for the pipeline run ID
	RunIDKey contextKey = "run_id"
	// ProjectKey is the context key for the project name
	ProjectKey contextKey = "project"
	// PhaseKey is the context key for the current pipeline phase
	PhaseKey contextKey = "phase"
)

// Config represents logger configuration
type Config struct {
	Level    string
	Encoding string // json or console
	// LogFile receives a copy of everything written to stdout
	LogFile string
}

// Init builds the global logger. Calling it again flushes and replaces
// the previous one, so a command may reconfigure after reading its flags.
func Init(cfg Config) error {
	l, err := build(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
	globalLogger = l
	return nil
}

func build(cfg Config) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "console"
	}

	outputs := []string{"stdout"}
	if cfg.LogFile != "" {
		outputs = append(outputs, cfg.LogFile)
	}

	zapCfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: cfg.Encoding,
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	l, err := zapCfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// Get returns the global logger, creating a JSON stdout logger on first
// use when Init was never called
func Get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		l, err := build(Config{Level: "info", Encoding: "json"})
		if err != nil {
			l, _ = zap.NewProduction()
		}
		globalLogger = l
	}
	return globalLogger
}

// Set replaces the global logger. Tests use it with zaptest loggers.
func Set(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = l
}

// WithContext returns the global logger annotated with the run, project
// and phase carried by ctx
func WithContext(ctx context.Context) *zap.Logger {
	l := Get()

	if runID, ok := ctx.Value(RunIDKey).(string); ok {
		l = l.With(zap.String("run_id", runID))
	}
	if project, ok := ctx.Value(ProjectKey).(string); ok {
		l = l.With(zap.String("project", project))
	}
	if phase, ok := ctx.Value(PhaseKey).(string); ok {
		l = l.With(zap.String("phase", phase))
	}
	return l
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

// RemoveLogFile deletes the run log. A missing file is not an error.
func RemoveLogFile(path string) error {
	if path == "" {
		path = DefaultLogFile
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove log file: %w", err)
	}
	return nil
}
