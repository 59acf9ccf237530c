// Package logging defines the structured step logger the engine emits to.
// The engine depends only on this interface; a failing or absent sink must
// never affect a reconciliation run.
package logging

import "go.uber.org/zap"

// Level is the severity of a log entry.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Logger receives one structured entry per engine event: step kind, affected
// table, and a human message (typically the rendered statement and its
// duration).
type Logger interface {
	Log(level Level, stepKind, table, message string)
}

type nopLogger struct{}

func (nopLogger) Log(Level, string, string, string) {}

// Nop returns a logger that discards everything.
func Nop() Logger {
	return nopLogger{}
}

type zapLogger struct {
	l *zap.Logger
}

// NewZap adapts a zap logger to the engine's Logger interface.
func NewZap(l *zap.Logger) Logger {
	return &zapLogger{l: l}
}

func (z *zapLogger) Log(level Level, stepKind, table, message string) {
	fields := []zap.Field{
		zap.String("step", stepKind),
		zap.String("table", table),
	}
	switch level {
	case LevelDebug:
		z.l.Debug(message, fields...)
	case LevelWarn:
		z.l.Warn(message, fields...)
	case LevelError:
		z.l.Error(message, fields...)
	default:
		z.l.Info(message, fields...)
	}
}
