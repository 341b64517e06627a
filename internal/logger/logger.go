// Package logger provides module-aware structured logging for agrisense, backed by zap.
//
// Components receive a Logger through their constructors or obtain one with
// logger.Global().Module("<name>"). Console output uses zap's console encoder,
// file output uses the JSON encoder so logs can be shipped to aggregators.
//
//	cl, err := logger.NewCentralLogger(&settings.Logging)
//	if err != nil {
//	    return err
//	}
//	defer cl.Close()
//	logger.SetGlobal(cl)
//
//	log := cl.Module("engine")
//	log.Info("forecast served",
//	    logger.String("region", "Punjab"),
//	    logger.Float64("yield_kg_ha", 3920.4))
//
// Module scoping nests with dots: cl.Module("refdata").Module("sql") logs with
// module="refdata.sql". Per-module levels are configured through module_levels.
//
// WithContext picks up a trace ID stored by WithTraceID, which the HTTP layer
// uses to correlate log lines with the correlation ID returned to callers.
//
// For tests use NewNopLogger, or NewTestLogger which exposes the emitted
// entries through zap's observer core.
package logger

import (
	"context"
	"time"
	"unique"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field. Keys are interned with unique.Make.
type Field struct {
	Key   string
	Value any
}

// internKey returns an interned version of the key string.
// This ensures repeated keys share the same underlying memory.
func internKey(key string) string {
	return unique.Make(key).Value()
}

// Pre-interned common keys for zero-allocation access
var (
	errorKey = internKey("error")
)

// Logger is the centralized logging interface for dependency injection
type Logger interface {
	// Module returns a logger scoped to a specific module
	Module(name string) Logger

	// Leveled logging methods
	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// Context-aware logging
	With(fields ...Field) Logger
	WithContext(ctx context.Context) Logger

	// Log with explicit level
	Log(level LogLevel, msg string, fields ...Field)

	// Flush ensures all buffered logs are written
	Flush() error
}

// Field constructors. Prefer the typed constructors over Any so the encoder
// does not need reflection.
//
//	log.Info("prediction served",
//	    logger.String("region", req.Region),
//	    logger.String("crop", req.Crop),
//	    logger.Float64("yield_kg_ha", out.YieldKgPerHa),
//	    logger.Duration("elapsed", time.Since(start)))

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int64 creates a 64-bit integer field, used for byte counts and durations in ms.
func Int64(key string, value int64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float32 creates a float field. Class probabilities are logged with it.
func Float32(key string, value float32) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float64 creates a float field.
func Float64(key string, value float64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: internKey(key), Value: value}
}

// Error creates a field with the fixed key "error". A nil error yields a nil value.
//
//	if err := store.Load(ctx); err != nil {
//	    log.Error("reference data load failed",
//	        logger.Error(err),
//	        logger.String("source", "csv"))
//	}
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err.Error()}
}

// Duration creates a duration field rendered as a string ("1.5s", "200ms").
func Duration(key string, value time.Duration) Field {
	return Field{Key: internKey(key), Value: value.String()}
}

// Time creates a time field.
func Time(key string, value time.Time) Field {
	return Field{Key: internKey(key), Value: value}
}

// Any creates a field holding an arbitrary value. The value must be JSON
// serializable for the file encoder.
func Any(key string, value any) Field {
	return Field{Key: internKey(key), Value: value}
}
