package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/fatflowers/payflow/pkg/config"
)

// New builds the process logger. Production emits JSON at info level; every
// other env logs at debug so poller tick decisions are visible.
func New(cfg *config.Config) (*zap.SugaredLogger, error) {
	zc := zap.NewProductionConfig()
	if cfg == nil || cfg.Env != config.EnvProd {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.TimeKey = "time"
	l, err := zc.Build()
	if err != nil {
		return nil, err
	}
	if cfg != nil {
		l = l.With(zap.String("env", string(cfg.Env)))
	}
	return l.Sugar(), nil
}

// replaceGlobals makes zap.S() inside handlers write through the same core.
func replaceGlobals(l *zap.SugaredLogger) {
	zap.ReplaceGlobals(l.Desugar())
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(replaceGlobals),
)
