package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const EnvironmentProduction = "production"

// New creates the process logger. Production writes JSON, anything else writes colored
// console output. Every entry carries the service name.
func New(environment, service string) (*zap.Logger, error) {
	var config zap.Config

	if environment == EnvironmentProduction {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.CallerKey = "caller"
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	config.InitialFields = map[string]interface{}{
		"service":     service,
		"environment": environment,
	}

	return config.Build(zap.AddCaller())
}
