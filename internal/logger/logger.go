package logger

import (
	"storefront/internal/domain"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config returns the zap configuration for env. Production logs JSON at info level;
// anything else logs colored console output at debug level.
func Config(env string) zap.Config {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Encoding = "json"
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	// Always log to stdout for container compatibility
	config.OutputPaths = []string{"stdout"}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config
}

// New creates a new structured logger
func New(env string) (*zap.Logger, error) {
	return Config(env).Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
}

// Event renders a broadcast event as a nested log object without its payload
func Event(e domain.Event) zap.Field {
	return zap.Object("event", zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("type", string(e.Type))
		if e.CartID != "" {
			enc.AddString("cartId", e.CartID)
		}
		if e.ProductID != "" {
			enc.AddString("productId", e.ProductID)
		}
		if e.Action != "" {
			enc.AddString("action", string(e.Action))
		}
		if e.Quantity != nil {
			enc.AddInt("quantity", *e.Quantity)
		}
		return nil
	}))
}
