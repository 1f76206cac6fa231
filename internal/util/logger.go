package util

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName identifies the shop in logs and traces
const ServiceName = "scooter-shop"

var logger *zap.Logger

// InitLogger builds the shop logger. Production uses JSON output; every
// entry carries the service name and environment.
func InitLogger(env string) error {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.InitialFields = map[string]interface{}{
		"service": ServiceName,
		"env":     env,
	}

	built, err := config.Build()
	if err != nil {
		return err
	}
	logger = built.Named(ServiceName)

	zap.ReplaceGlobals(logger)
	return nil
}

// GetLogger returns the shop logger, or a no-op logger before InitLogger
// has been called so that tests stay quiet.
func GetLogger() *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// ComponentLogger scopes the shop logger to one part of the shop, e.g.
// "catalog" or "orders", so its entries read scooter-shop.catalog.
func ComponentLogger(component string) *zap.Logger {
	return GetLogger().Named(component)
}

// SyncLogger flushes any buffered log entries
func SyncLogger() {
	if logger != nil {
		_ = logger.Sync()
	}
}
