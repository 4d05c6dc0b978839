package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Service string
	Env     string
	Level   string
}

// New builds a JSON production logger, or a console logger when Env is
// "dev", and installs it as the zap global.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if opts.Env == "dev" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(opts.Level))

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	l = l.With(
		zap.String("service", opts.Service),
		zap.String("env", opts.Env),
	)
	zap.ReplaceGlobals(l)
	return l, nil
}

func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
