package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type zapLogger struct {
	log *zap.SugaredLogger
}

// NewZap builds a production zap logger at the given level ("debug",
// "info", "warn", "error"; anything else means info).
func NewZap(level string) Logger {
	cfg := zap.NewProductionConfig()

	switch level {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	log, err := cfg.Build()
	if err != nil {
		return Noop{}
	}
	return &zapLogger{log: log.Sugar()}
}

func (z *zapLogger) Debug(msg string, kv ...any) { z.log.Debugw(msg, kv...) }
func (z *zapLogger) Info(msg string, kv ...any)  { z.log.Infow(msg, kv...) }
func (z *zapLogger) Warn(msg string, kv ...any)  { z.log.Warnw(msg, kv...) }
func (z *zapLogger) Error(msg string, kv ...any) { z.log.Errorw(msg, kv...) }
