package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogCategory represents different log categories
type LogCategory string

const (
	CategoryDiscovery LogCategory = "discovery" // Page discovery runs (JSON)
	CategoryDownload  LogCategory = "download"  // Per-item download outcomes (JSON)
	CategoryJob       LogCategory = "job"       // Server job lifecycle (JSON)
	CategoryError     LogCategory = "error"     // Application errors (JSON)
)

// Categories lists every file-backed category
var Categories = []LogCategory{CategoryDiscovery, CategoryDownload, CategoryJob, CategoryError}

// ValidCategory reports whether c names a file-backed category
func ValidCategory(c LogCategory) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// MultiLogger provides categorized logging with separate output files
// next to a general-purpose logger
type MultiLogger struct {
	general *zap.Logger
	loggers map[LogCategory]*zap.Logger
	files   []*lumberjack.Logger
	config  MultiLoggerConfig
	mu      sync.RWMutex
}

// MultiLoggerConfig contains configuration for multi-output logging
type MultiLoggerConfig struct {
	Level      string // debug, info, warn, error
	LogsDir    string // Directory for log files
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// NewMultiLogger creates a new multi-output logger. general may be nil.
func NewMultiLogger(config MultiLoggerConfig, general *zap.Logger) (*MultiLogger, error) {
	if config.LogsDir == "" {
		return nil, fmt.Errorf("logs_dir must be specified")
	}
	if err := os.MkdirAll(config.LogsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	if general == nil {
		general = zap.NewNop()
	}

	ml := &MultiLogger{
		general: general,
		loggers: make(map[LogCategory]*zap.Logger),
		config:  config,
	}

	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	for _, category := range Categories {
		catLevel := level
		if category == CategoryError {
			catLevel = zapcore.ErrorLevel
		}
		ml.loggers[category] = ml.createStructuredLogger(category, catLevel)
	}

	return ml, nil
}

// createStructuredLogger creates a JSON-formatted logger for a category
func (ml *MultiLogger) createStructuredLogger(category LogCategory, level zapcore.Level) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "message"
	encoderConfig.LevelKey = "level"
	encoderConfig.CallerKey = ""

	maxSize := ml.config.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 5
	}
	file := &lumberjack.Logger{
		Filename:   categoryLogPath(ml.config.LogsDir, category, time.Now()),
		MaxSize:    maxSize,
		MaxBackups: ml.config.MaxBackups,
		MaxAge:     ml.config.MaxAgeDays,
		Compress:   ml.config.Compress,
	}
	ml.files = append(ml.files, file)

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(file), level)
	return zap.New(core).With(zap.String("category", string(category)))
}

// categoryLogPath generates a log file path for a category and date
func categoryLogPath(logsDir string, category LogCategory, date time.Time) string {
	filename := fmt.Sprintf("%s-%s.log", category, date.Format("20060102"))
	return filepath.Join(logsDir, filename)
}

// GetLogsDir returns the logs directory path
func (ml *MultiLogger) GetLogsDir() string {
	return ml.config.LogsDir
}

// GetLogger returns the structured logger for a specific category
func (ml *MultiLogger) GetLogger(category LogCategory) *zap.Logger {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	if logger, ok := ml.loggers[category]; ok {
		return logger
	}
	return ml.loggers[CategoryError]
}

// General returns the console/general logger
func (ml *MultiLogger) General() *zap.Logger {
	return ml.general
}

// Error returns the error logger (JSON format)
func (ml *MultiLogger) Error() *zap.Logger {
	return ml.GetLogger(CategoryError)
}

// LogAppError logs an application-level error to the error file and the general logger
func (ml *MultiLogger) LogAppError(msg string, fields ...zap.Field) {
	ml.Error().Error(msg, fields...)
	ml.general.Error(msg, fields...)
}

// LogDiscoveryEvent logs a discovery lifecycle event
func (ml *MultiLogger) LogDiscoveryEvent(event string, fields ...zap.Field) {
	ml.GetLogger(CategoryDiscovery).Info(event, fields...)
}

// LogDownloadEvent logs a per-item download event
func (ml *MultiLogger) LogDownloadEvent(event string, fields ...zap.Field) {
	ml.GetLogger(CategoryDownload).Info(event, fields...)
}

// LogJobEvent logs a job lifecycle event
func (ml *MultiLogger) LogJobEvent(event string, fields ...zap.Field) {
	ml.GetLogger(CategoryJob).Info(event, fields...)
}

// Sync flushes all loggers
func (ml *MultiLogger) Sync() error {
	ml.mu.RLock()
	defer ml.mu.RUnlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Close flushes and closes all category files
func (ml *MultiLogger) Close() error {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	var lastErr error
	for _, logger := range ml.loggers {
		if err := logger.Sync(); err != nil {
			lastErr = err
		}
	}
	for _, file := range ml.files {
		if err := file.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
