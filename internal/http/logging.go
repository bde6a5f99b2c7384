package http

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/room-booking/internal/logging"
)

func defaultLogger(logger *zap.Logger) *zap.Logger {
	if logger != nil {
		return logger
	}
	return zap.L()
}

func handlerLogger(ctx context.Context, fallback *zap.Logger, handlerName, operation string, fields ...zap.Field) *zap.Logger {
	logger := logging.FromContextOr(ctx, defaultLogger(fallback))

	base := []zap.Field{zap.String("handler", handlerName)}
	if operation != "" {
		base = append(base, zap.String("operation", operation))
	}
	return logger.With(append(base, fields...)...)
}
