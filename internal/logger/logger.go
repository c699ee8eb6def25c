package logger

import (
	"sync"

	"go.uber.org/zap"
)

// Log levels used across the application.
const (
	DebugLevel = "debug"
	InfoLevel  = "info"
	WarnLevel  = "warn"
	ErrorLevel = "error"
)

// Output encodings.
const (
	EncodingConsole = "console"
	EncodingJSON    = "json"
)

var (
	globalLogger *Logger
	once         sync.Once
)

// Init builds the process-wide logger on first call; later calls return it unchanged.
func Init(level, encoding string) *Logger {
	once.Do(func() {
		globalLogger = newZapLogger(level, encoding)
	})
	return globalLogger
}

// Get returns the singleton logger, initializing it with a console encoder if needed.
func Get(level string) *Logger {
	return Init(level, EncodingConsole)
}

// Nop discards everything. Used by tests and optional collaborators.
func Nop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// With returns a child logger carrying the given key/value pairs.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(kv...)}
}
