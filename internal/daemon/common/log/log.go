package log

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging interface used across resolverd.
// Fields are free-form key/value pairs attached to the message.
type Logger interface {
	Debug(fields map[string]any, msg string)
	Info(fields map[string]any, msg string)
	Warn(fields map[string]any, msg string)
	Error(fields map[string]any, msg string)
	Panic(fields map[string]any, msg string)
	Fatal(fields map[string]any, msg string)

	// Named returns a child logger scoped to a subsystem, e.g. "engine" or "ipc".
	Named(name string) Logger
}

var global Logger = newZapLogger(false, zapcore.InfoLevel)

// SetLogger replaces the process-wide logger. Intended for tests.
func SetLogger(l Logger) {
	global = l
}

// GetLogger returns the current process-wide logger.
func GetLogger() Logger {
	return global
}

// Configure rebuilds the global logger for the given environment ("dev" or
// "prod") and level name.
func Configure(env, level string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	global = newZapLogger(env != "prod", lvl)
	return nil
}

// Package-level helpers log through the global logger.

func Debug(fields map[string]any, msg string) { global.Debug(fields, msg) }
func Info(fields map[string]any, msg string)  { global.Info(fields, msg) }
func Warn(fields map[string]any, msg string)  { global.Warn(fields, msg) }
func Error(fields map[string]any, msg string) { global.Error(fields, msg) }
func Panic(fields map[string]any, msg string) { global.Panic(fields, msg) }
func Fatal(fields map[string]any, msg string) { global.Fatal(fields, msg) }

// Named returns a subsystem logger that resolves the global logger at log
// time, so a later Configure (e.g. the verbose toggle) applies to children
// handed out earlier.
func Named(name string) Logger { return &namedLogger{names: []string{name}} }

// namedLogger defers to the current global logger on every call, applying
// its name chain to whatever logger is installed at that moment.
type namedLogger struct {
	names []string
}

func (l *namedLogger) resolve() Logger {
	out := global
	for _, n := range l.names {
		out = out.Named(n)
	}
	return out
}

func (l *namedLogger) Debug(fields map[string]any, msg string) { l.resolve().Debug(fields, msg) }
func (l *namedLogger) Info(fields map[string]any, msg string)  { l.resolve().Info(fields, msg) }
func (l *namedLogger) Warn(fields map[string]any, msg string)  { l.resolve().Warn(fields, msg) }
func (l *namedLogger) Error(fields map[string]any, msg string) { l.resolve().Error(fields, msg) }
func (l *namedLogger) Panic(fields map[string]any, msg string) { l.resolve().Panic(fields, msg) }
func (l *namedLogger) Fatal(fields map[string]any, msg string) { l.resolve().Fatal(fields, msg) }

func (l *namedLogger) Named(name string) Logger {
	names := make([]string, 0, len(l.names)+1)
	names = append(names, l.names...)
	names = append(names, name)
	return &namedLogger{names: names}
}

// zapLogger implements Logger on top of Uber's zap.
type zapLogger struct {
	base *zap.Logger
}

func newZapLogger(dev bool, level zapcore.Level) Logger {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.EncoderConfig.TimeKey = "time"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"

	logger, _ := cfg.Build(zap.AddCallerSkip(1))
	return &zapLogger{base: logger}
}

func (l *zapLogger) Debug(fields map[string]any, msg string) {
	l.base.Debug(msg, zapFields(fields)...)
}

func (l *zapLogger) Info(fields map[string]any, msg string) {
	l.base.Info(msg, zapFields(fields)...)
}

func (l *zapLogger) Warn(fields map[string]any, msg string) {
	l.base.Warn(msg, zapFields(fields)...)
}

func (l *zapLogger) Error(fields map[string]any, msg string) {
	l.base.Error(msg, zapFields(fields)...)
}

func (l *zapLogger) Panic(fields map[string]any, msg string) {
	l.base.Panic(msg, zapFields(fields)...)
}

func (l *zapLogger) Fatal(fields map[string]any, msg string) {
	l.base.Fatal(msg, zapFields(fields)...)
}

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{base: l.base.Named(name)}
}

func zapFields(m map[string]any) []zap.Field {
	fields := make([]zap.Field, 0, len(m))
	for k, v := range m {
		fields = append(fields, zap.Any(k, v))
	}
	return fields
}

// noopLogger discards everything. Useful when a component requires a Logger
// but the caller does not care about output.
type noopLogger struct{}

func (noopLogger) Debug(map[string]any, string) {}
func (noopLogger) Info(map[string]any, string)  {}
func (noopLogger) Warn(map[string]any, string)  {}
func (noopLogger) Error(map[string]any, string) {}
func (noopLogger) Panic(map[string]any, string) {}
func (noopLogger) Fatal(map[string]any, string) {}
func (n noopLogger) Named(string) Logger        { return n }

// NewNoopLogger returns a Logger that discards all messages.
func NewNoopLogger() Logger {
	return noopLogger{}
}
