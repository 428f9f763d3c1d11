package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log levels
const (
	LevelDebug = iota
	LevelInfo
	LevelWarn
	LevelError
)

var (
	zapLevels = map[int]zapcore.Level{
		LevelDebug: zapcore.DebugLevel,
		LevelInfo:  zapcore.InfoLevel,
		LevelWarn:  zapcore.WarnLevel,
		LevelError: zapcore.ErrorLevel,
	}

	// Default to INFO in production, DEBUG in development
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	mu   sync.RWMutex
	base *zap.Logger
)

// Logger is a component-scoped sugared zap logger
type Logger struct {
	component string
}

func init() {
	var err error
	var config zap.Config
	if IsDevelopment() {
		level.SetLevel(zapcore.DebugLevel)
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
	}
	config.Level = level

	base, err = config.Build()
	if err != nil {
		base = zap.NewNop()
	}
}

// New creates a new logger for a specific component
func New(component string) *Logger {
	return &Logger{component: component}
}

// SetMinLevel allows changing the minimum log level at runtime
func SetMinLevel(minLevel int) {
	if zl, ok := zapLevels[minLevel]; ok {
		level.SetLevel(zl)
	}
}

// Replace swaps the process-wide zap logger, e.g. zap.NewNop() in tests or
// zaptest loggers. Component loggers pick the new core up immediately.
func Replace(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

// Sync flushes buffered entries. Call before exit.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = base.Sync()
}

func (l *Logger) sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return base.Named(l.component).Sugar()
}

// Debug logs debug information
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar().Debugf(format, args...)
}

// Info logs information messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar().Infof(format, args...)
}

// Warn logs warning messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.sugar().Warnf(format, args...)
}

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar().Errorf(format, args...)
}

// With returns a structured sugared logger carrying the component name and
// the given key/value pairs.
func (l *Logger) With(keysAndValues ...interface{}) *zap.SugaredLogger {
	return l.sugar().With(keysAndValues...)
}

// GetAppEnv returns the current application environment
func GetAppEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "development" // Default to development
	}
	return env
}

// IsDevelopment returns true if the current environment is development
func IsDevelopment() bool {
	return GetAppEnv() == "development"
}
