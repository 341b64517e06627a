package logger

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	// IANA zone data for hosts without a system database
	_ "time/tzdata"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// traceLevel sits one step below zap's debug level
	traceLevel = zapcore.DebugLevel - 1

	// floatPrecisionRatio rounds floats to 3 decimal places in log output
	floatPrecisionRatio = 1000.0

	moduleKey  = "module"
	traceIDKey = "trace_id"
)

var (
	globalLogger   *CentralLogger
	globalLoggerMu sync.Mutex
)

// SetGlobal sets the global CentralLogger instance.
// Call it once during startup after the configuration has been loaded.
func SetGlobal(cl *CentralLogger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = cl
}

// Global returns the global CentralLogger instance.
// Before SetGlobal is called it returns a console-only fallback logger.
func Global() *CentralLogger {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()

	if globalLogger != nil {
		return globalLogger
	}

	cfg := &LoggingConfig{
		DefaultLevel: DefaultLogLevel,
		Console:      &ConsoleOutput{Enabled: true, Level: DefaultLogLevel},
		FileOutput:   &FileOutput{Enabled: false},
	}
	globalLogger = &CentralLogger{
		config:       cfg,
		timezone:     time.Local,
		base:         zap.New(newConsoleCore(zapcore.InfoLevel)),
		moduleLevels: make(map[string]zapcore.Level),
	}

	return globalLogger
}

type loggerContextKey struct{ name string }

// TraceIDKey is the context key for trace IDs. Use WithTraceID() to set values.
var TraceIDKey = loggerContextKey{"trace_id"}

// WithTraceID returns a new context with the trace ID set
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// TraceIDFromContext returns the trace ID stored by WithTraceID, or "".
func TraceIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if traceID, ok := ctx.Value(TraceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// CentralLogger owns the zap cores and hands out module-scoped loggers.
type CentralLogger struct {
	config       *LoggingConfig
	timezone     *time.Location
	base         *zap.Logger
	closeFile    func()
	moduleLevels map[string]zapcore.Level
	mu           sync.RWMutex
}

// NewCentralLogger builds a logger from cfg. Nil sections receive defaults.
func NewCentralLogger(cfg *LoggingConfig) (*CentralLogger, error) {
	if cfg == nil {
		return nil, fmt.Errorf("logging config cannot be nil")
	}

	applyConfigDefaults(cfg)

	var tz *time.Location
	switch cfg.Timezone {
	case "", "Local":
		tz = time.Local
	default:
		var err error
		tz, err = time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %s: %w", cfg.Timezone, err)
		}
	}

	cl := &CentralLogger{
		config:       cfg,
		timezone:     tz,
		moduleLevels: make(map[string]zapcore.Level),
	}

	for module, levelStr := range cfg.ModuleLevels {
		cl.moduleLevels[module] = parseLogLevel(levelStr)
	}

	var cores []zapcore.Core
	if cfg.Console.Enabled {
		cores = append(cores, newConsoleCore(parseLogLevel(cfg.Console.Level)))
	}

	if cfg.FileOutput.Enabled {
		if err := ensureFileDirectory(cfg.FileOutput.Path); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		sink, closeFn, err := zap.Open(cfg.FileOutput.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", cfg.FileOutput.Path, err)
		}
		cl.closeFile = closeFn
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(fileEncoderConfig(tz)),
			sink,
			zap.NewAtomicLevelAt(parseLogLevel(cfg.FileOutput.Level)),
		))
	}

	if len(cores) == 0 {
		cores = append(cores, newConsoleCore(parseLogLevel(cfg.DefaultLevel)))
	}

	cl.base = zap.New(zapcore.NewTee(cores...))
	return cl, nil
}

// newCentralLoggerWithCore wraps an existing core, used by the test helpers.
func newCentralLoggerWithCore(core zapcore.Core, defaultLevel string) *CentralLogger {
	cfg := &LoggingConfig{DefaultLevel: defaultLevel}
	applyConfigDefaults(cfg)
	return &CentralLogger{
		config:       cfg,
		timezone:     time.UTC,
		base:         zap.New(core),
		moduleLevels: make(map[string]zapcore.Level),
	}
}

func newConsoleCore(level zapcore.Level) zapcore.Core {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.TimeKey = ""
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = levelEncoder
	return zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.Lock(os.Stdout),
		zap.NewAtomicLevelAt(level),
	)
}

func fileEncoderConfig(tz *time.Location) zapcore.EncoderConfig {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.CallerKey = ""
	encCfg.EncodeLevel = levelEncoder
	encCfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(tz).Format(time.RFC3339))
	}
	return encCfg
}

// levelEncoder renders the custom trace level as TRACE instead of LEVEL(-2).
func levelEncoder(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
	if l == traceLevel {
		enc.AppendString("TRACE")
		return
	}
	zapcore.CapitalLevelEncoder(l, enc)
}

// Module returns a logger scoped to a specific module
func (cl *CentralLogger) Module(name string) Logger {
	if cl == nil {
		return nil
	}

	cl.mu.RLock()
	defer cl.mu.RUnlock()

	return &moduleLogger{
		module: name,
		base:   cl.base,
		level:  cl.getModuleLevelLocked(name),
	}
}

// getModuleLevelLocked returns the log level for a module (must hold read lock)
func (cl *CentralLogger) getModuleLevelLocked(module string) zapcore.Level {
	if level, ok := cl.moduleLevels[module]; ok {
		return level
	}
	return parseLogLevel(cl.config.DefaultLevel)
}

// Flush syncs all cores.
func (cl *CentralLogger) Flush() error {
	if cl == nil {
		return nil
	}
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	// stdout returns EINVAL on sync for terminals and pipes
	if err := cl.base.Sync(); err != nil && !isIgnorableSyncError(err) {
		return fmt.Errorf("failed to flush logger: %w", err)
	}
	return nil
}

// Close flushes and closes the log file, if any.
func (cl *CentralLogger) Close() error {
	if cl == nil {
		return nil
	}
	err := cl.Flush()

	cl.mu.Lock()
	defer cl.mu.Unlock()
	if cl.closeFile != nil {
		cl.closeFile()
		cl.closeFile = nil
	}
	return err
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "invalid argument") || strings.Contains(msg, "inappropriate ioctl")
}

// ensureFileDirectory creates the directory for a file path if it doesn't exist
func ensureFileDirectory(filePath string) error {
	if filePath == "" {
		return nil
	}

	dir := filepath.Dir(filePath)
	if dir == "." || dir == filePath {
		return nil
	}

	const dirPermissions = 0o755
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	return nil
}

// ValidLevel reports whether level is a recognised level name.
func ValidLevel(level string) bool {
	switch LogLevel(strings.ToLower(level)) {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true
	}
	return false
}

// parseLogLevel converts a level name to a zap level, defaulting to info.
func parseLogLevel(level string) zapcore.Level {
	switch LogLevel(strings.ToLower(level)) {
	case LogLevelTrace:
		return traceLevel
	case LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	case LogLevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// moduleLogger implements Logger interface for a specific module
type moduleLogger struct {
	module string
	base   *zap.Logger
	level  zapcore.Level
	fields []Field
}

// Module creates a sub-module logger with its own copy of the accumulated fields.
func (m *moduleLogger) Module(name string) Logger {
	if m == nil {
		return nil
	}

	return &moduleLogger{
		module: m.module + "." + name,
		base:   m.base,
		level:  m.level,
		fields: slices.Clone(m.fields),
	}
}

func (m *moduleLogger) Trace(msg string, fields ...Field) { m.log(traceLevel, msg, fields...) }
func (m *moduleLogger) Debug(msg string, fields ...Field) { m.log(zapcore.DebugLevel, msg, fields...) }
func (m *moduleLogger) Info(msg string, fields ...Field)  { m.log(zapcore.InfoLevel, msg, fields...) }
func (m *moduleLogger) Warn(msg string, fields ...Field)  { m.log(zapcore.WarnLevel, msg, fields...) }
func (m *moduleLogger) Error(msg string, fields ...Field) { m.log(zapcore.ErrorLevel, msg, fields...) }

// Log logs a message with explicit level
func (m *moduleLogger) Log(level LogLevel, msg string, fields ...Field) {
	m.log(parseLogLevel(string(level)), msg, fields...)
}

// With returns a new logger with accumulated fields
func (m *moduleLogger) With(fields ...Field) Logger {
	if m == nil {
		return nil
	}

	return &moduleLogger{
		module: m.module,
		base:   m.base,
		level:  m.level,
		fields: slices.Concat(m.fields, fields),
	}
}

// WithContext returns a logger carrying the trace ID found in ctx, if any.
func (m *moduleLogger) WithContext(ctx context.Context) Logger {
	if m == nil {
		return nil
	}

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		return m
	}

	return m.With(String(traceIDKey, traceID))
}

// Flush is a no-op; the CentralLogger owns the sinks.
func (m *moduleLogger) Flush() error {
	return nil
}

func (m *moduleLogger) log(level zapcore.Level, msg string, fields ...Field) {
	if m == nil || level < m.level {
		return
	}

	ce := m.base.Check(level, msg)
	if ce == nil {
		return
	}

	zf := make([]zap.Field, 0, 1+len(m.fields)+len(fields))
	if m.module != "" {
		zf = append(zf, zap.String(moduleKey, m.module))
	}
	for i := range m.fields {
		zf = append(zf, toZapField(m.fields[i]))
	}
	for i := range fields {
		zf = append(zf, toZapField(fields[i]))
	}
	ce.Write(zf...)
}

// roundFloat rounds a float64 to 3 decimal places for readable output.
func roundFloat(val float64) float64 {
	return math.Round(val*floatPrecisionRatio) / floatPrecisionRatio
}

func toZapField(f Field) zap.Field {
	f = redactField(f)
	switch v := f.Value.(type) {
	case nil:
		return zap.Skip()
	case string:
		return zap.String(f.Key, v)
	case int:
		return zap.Int(f.Key, v)
	case int64:
		return zap.Int64(f.Key, v)
	case float32:
		return zap.Float64(f.Key, roundFloat(float64(v)))
	case float64:
		return zap.Float64(f.Key, roundFloat(v))
	case bool:
		return zap.Bool(f.Key, v)
	case time.Time:
		return zap.Time(f.Key, v)
	case time.Duration:
		return zap.String(f.Key, v.Round(time.Millisecond).String())
	default:
		return zap.Any(f.Key, v)
	}
}
