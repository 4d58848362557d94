package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/LilVoxy/northwind_etl/ETL/config"
)

// ETLLogger is the logger of the ETL process
type ETLLogger struct {
	log *zap.SugaredLogger
}

// NewETLLogger creates a logger writing to stderr at the configured level and,
// when a log directory is set, to a daily file at debug level.
func NewETLLogger(cfg config.LoggingConfig) (*ETLLogger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var consoleEncoder zapcore.Encoder
	if cfg.Format == "json" {
		consoleEncoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), level),
	}

	if cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		logFileName := filepath.Join(cfg.Dir, fmt.Sprintf("etl_%s.log", time.Now().Format("2006-01-02")))
		file, err := os.OpenFile(logFileName, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.AddSync(file), zapcore.DebugLevel))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1), zap.AddStacktrace(zapcore.ErrorLevel))
	return &ETLLogger{log: logger.Sugar()}, nil
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *ETLLogger {
	return &ETLLogger{log: zap.NewNop().Sugar()}
}

// NewTestLogger wraps an existing zap logger, e.g. one built with zaptest/observer
func NewTestLogger(logger *zap.Logger) *ETLLogger {
	return &ETLLogger{log: logger.Sugar()}
}

// With returns a child logger carrying the given key/value pairs
func (l *ETLLogger) With(keysAndValues ...any) *ETLLogger {
	return &ETLLogger{log: l.log.With(keysAndValues...)}
}

// Info logs an informational message
func (l *ETLLogger) Info(format string, v ...any) {
	l.log.Infof(format, v...)
}

// Warn logs a warning
func (l *ETLLogger) Warn(format string, v ...any) {
	l.log.Warnf(format, v...)
}

// Error logs an error
func (l *ETLLogger) Error(format string, v ...any) {
	l.log.Errorf(format, v...)
}

// Debug logs a debug message
func (l *ETLLogger) Debug(format string, v ...any) {
	l.log.Debugf(format, v...)
}

// Sync flushes buffered entries
func (l *ETLLogger) Sync() {
	_ = l.log.Sync()
}

// LogPhaseStart logs the start of a pipeline phase
func (l *ETLLogger) LogPhaseStart(phase string) {
	l.Info("Starting %s...", phase)
}

// LogPhaseComplete logs the successful end of a pipeline phase
func (l *ETLLogger) LogPhaseComplete(phase string, duration time.Duration) {
	l.Info("%s completed successfully in %v", phase, duration.Round(time.Millisecond))
}

// LogETLComplete logs the end of a full pipeline run
func (l *ETLLogger) LogETLComplete(startTime time.Time, factRows, customers, products int) {
	l.Info("ETL process completed successfully! Duration: %v", time.Since(startTime).Round(time.Millisecond))
	l.Info("Loaded: %d sales facts, %d customers, %d products", factRows, customers, products)
}
