package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"omnistock/backend/internal/config"
)

// New builds the process logger. Development gets a colored console encoder
// and production a JSON encoder; both honour the configured level.
func New(appEnv string, cfg config.LoggerConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if appEnv == "development" {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	if cfg.Encoding == "console" || cfg.Encoding == "json" {
		zcfg.Encoding = cfg.Encoding
	}
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return zcfg.Build()
}
