package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. levelStr is one of debug/info/warn/error;
// format "json" selects production encoding, anything else the development
// console encoder.
func New(levelStr, format string) *zap.Logger {
	level := zapcore.InfoLevel
	switch levelStr {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	}

	var cfg zap.Config
	if format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// Stage returns a child logger tagged with the pipeline stage name. All
// pipeline failures are logged through one of these so operators can filter
// by stage.
func Stage(l *zap.Logger, stage string) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.With(zap.String("stage", stage))
}
