package http

import (
	"context"
	"log/slog"

	"github.com/example/date-booking/internal/logging"
)

// handlerLogger tags log lines with the handler and operation. Outside
// RequestLogger the request id and principal are added from ctx directly.
func handlerLogger(ctx context.Context, fallback *slog.Logger, handlerName, operation string, attrs ...any) *slog.Logger {
	pairs := []any{"handler", handlerName}

	logger := LoggerFromContext(ctx)
	if logger == nil {
		logger = fallback
		if logger == nil {
			logger = slog.Default()
		}
		if id := logging.RequestIDFromContext(ctx); id != "" {
			pairs = append(pairs, "request_id", id)
		}
		if principal, ok := PrincipalFromContext(ctx); ok {
			pairs = append(pairs, "user_id", principal.UserID)
		}
	}

	if operation != "" {
		pairs = append(pairs, "operation", operation)
	}
	return logger.With(append(pairs, attrs...)...)
}
