package logging

import (
	"log/slog"
	"sync"
)

var (
	once         sync.Once
	globalLogger = New(Options{Level: InfoLevel})
	globalMu     sync.RWMutex
)

// Init configures the process-wide logger once and installs it as the
// slog default. Later calls are ignored.
func Init(opts Options) Logger {
	once.Do(func() {
		l := New(opts)
		SetGlobalLogger(l)
		slog.SetDefault(l.Slog())
	})
	return L()
}

// SetGlobalLogger replaces the process-wide logger
func SetGlobalLogger(logger Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// L returns the process-wide logger
func L() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

func Debug(msg string, fields ...Field) { L().Debug(msg, fields...) }

func Info(msg string, fields ...Field) { L().Info(msg, fields...) }

func Warn(msg string, fields ...Field) { L().Warn(msg, fields...) }

func LogError(msg string, fields ...Field) { L().Error(msg, fields...) }

func Fatal(msg string, fields ...Field) { L().Fatal(msg, fields...) }
