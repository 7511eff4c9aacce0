package fluvio

import "go.uber.org/zap"

// Logger is the structured-logging collaborator the core calls at
// well-defined points; the host may ignore them. It is satisfied
// directly by *zap.Logger via ZapLogger, or by any adapter a host wires
// in for another logging library.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// ZapLogger adapts a *zap.Logger to the Logger interface.
type ZapLogger struct {
	L *zap.Logger
}

// NewZapLogger wraps l, or a production zap.Logger if l is nil.
func NewZapLogger(l *zap.Logger) ZapLogger {
	if l == nil {
		l, _ = zap.NewProduction()
	}
	return ZapLogger{L: l}
}

func (z ZapLogger) Debug(msg string, fields ...zap.Field) { z.L.Debug(msg, fields...) }
func (z ZapLogger) Info(msg string, fields ...zap.Field)  { z.L.Info(msg, fields...) }
func (z ZapLogger) Warn(msg string, fields ...zap.Field)  { z.L.Warn(msg, fields...) }
func (z ZapLogger) Error(msg string, fields ...zap.Field) { z.L.Error(msg, fields...) }

// noopLogger is the default Logger when none is configured.
type noopLogger struct{}

func (noopLogger) Debug(string, ...zap.Field) {}
func (noopLogger) Info(string, ...zap.Field)  {}
func (noopLogger) Warn(string, ...zap.Field)  {}
func (noopLogger) Error(string, ...zap.Field) {}
