package logger

import (
	"context"

	"go-pipeline/internal/config"
	"go-pipeline/internal/database"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewLogger builds the console logger and, when Mongo is configured, tees every
// entry into the logs collection.
func NewLogger(lc fx.Lifecycle, cfg *config.Config, mongodb *database.MongodbDB) (*zap.Logger, error) {
	var zapConfig zap.Config
	if cfg.IsProduction() {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	// Enable Caller to get Function Name
	zapConfig.EncoderConfig.FunctionKey = "func"

	baseLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	if !mongodb.Enabled() {
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			_ = baseLogger.Sync()
			return nil
		}})
		return baseLogger, nil
	}

	dbWriter := NewDBLogWriter(mongodb.DB, cfg.AppId)
	logger := zap.New(NewDBCore(baseLogger.Core(), dbWriter), zap.AddCaller())

	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		dbWriter.Close()
		_ = logger.Sync()
		return nil
	}})
	return logger, nil
}
