package logger_fx

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"spreadchecker/pkg/logger"
)

var Module = fx.Provide(provideLogger)

func provideLogger() *zap.Logger {
	return logger.InitLogger()
}
