package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewTestLogger returns a logger that records every entry at trace level or
// above. Entries are exposed through the returned ObservedLogs.
func NewTestLogger(t testing.TB) (Logger, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(traceLevel)
	return newCentralLoggerWithCore(core, string(LogLevelTrace)).Module("test"), logs
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() Logger {
	return newCentralLoggerWithCore(zapcore.NewNopCore(), string(LogLevelError)).Module("nop")
}
